package telemetry

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/Speshl/gorrc_bot/internal/models"
	"go.bug.st/serial"
)

// Param is one named value in the line protocol. Value is a float64, int or bool.
type Param struct {
	Name  string
	Value any
}

// Params flattens a snapshot into the parameter table sent to the ESP.
func Params(t models.Telemetry) []Param {
	params := []Param{
		{"arm_status", t.ArmStateID},
		{"pitch", t.Orientation.Pitch},
		{"roll", t.Orientation.Roll},
		{"yaw", t.Orientation.Heading},
		{"accel_x", t.Orientation.Accel.X},
		{"accel_y", t.Orientation.Accel.Y},
		{"accel_z", t.Orientation.Accel.Z},
		{"ambient_temp", t.Orientation.Temperature},
	}
	for i, value := range t.Mixer.Wheel {
		params = append(params, Param{fmt.Sprintf("wheel_%d", i), value})
	}
	for i, value := range t.Mixer.WeaponMotor {
		params = append(params, Param{fmt.Sprintf("weapon_%d", i), value})
	}
	params = append(params,
		Param{"inverted", t.Orientation.Inverted},
		Param{"drive_stalled", t.Stalled[0]},
		Param{"weapon_stalled", t.Stalled[1]},
	)
	return params
}

func FormatParam(p Param) string {
	switch v := p.Value.(type) {
	case float64:
		return fmt.Sprintf("%s %.2f\r", p.Name, v)
	case int:
		return fmt.Sprintf("%s %d\r", p.Name, v)
	case bool:
		if v {
			return fmt.Sprintf("%s ON\r", p.Name)
		}
		return fmt.Sprintf("%s OFF\r", p.Name)
	default:
		return fmt.Sprintf("%s %v\r", p.Name, v)
	}
}

// LineStreamer writes the parameter table as text lines, one write per snapshot.
type LineStreamer struct {
	lock   sync.Mutex
	writer io.Writer
	closer io.Closer
}

func NewLineStreamer(writer io.Writer) *LineStreamer {
	return &LineStreamer{
		writer: writer,
	}
}

func OpenLineStreamer(port string, baud int) (*LineStreamer, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed opening telemetry port %s: %w", port, err)
	}
	log.Printf("telemetry streaming to %s at %d baud\n", port, baud)

	return &LineStreamer{
		writer: p,
		closer: p,
	}, nil
}

func (s *LineStreamer) Send(t models.Telemetry) error {
	var b strings.Builder
	for _, p := range Params(t) {
		b.WriteString(FormatParam(p))
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	_, err := io.WriteString(s.writer, b.String())
	if err != nil {
		return fmt.Errorf("failed writing telemetry lines: %w", err)
	}
	return nil
}

func (s *LineStreamer) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

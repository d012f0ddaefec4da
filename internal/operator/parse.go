package operator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/google/uuid"
)

const (
	MaxLineLength = 100
	MaxParams     = 2

	NotRecognised = "Command not recognised!"
	TooLong       = "Command too long!"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrCommandTooLong = errors.New("command too long")
	ErrQueueFull      = errors.New("command queue full")
)

var commandKinds = map[string]models.CommandKind{
	"fully_disarm":   models.FullyDisarm,
	"partial_disarm": models.PartialDisarm,
	"partial_arm":    models.PartialArm,
	"fully_arm":      models.FullyArm,
	"status":         models.Status,
}

func CommandName(kind models.CommandKind) string {
	for name, k := range commandKinds {
		if k == kind {
			return name
		}
	}
	return "invalid"
}

// Parse turns "<name> [param1] [param2]" into a command. Names must match exactly.
func Parse(line string, source string) (models.Command, error) {
	if len(line) > MaxLineLength {
		return models.Command{}, fmt.Errorf("%w: %d bytes", ErrCommandTooLong, len(line))
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return models.Command{}, fmt.Errorf("%w: empty line", ErrInvalidCommand)
	}

	kind, ok := commandKinds[fields[0]]
	if !ok {
		return models.Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, fields[0])
	}

	params := fields[1:]
	if len(params) > MaxParams {
		return models.Command{}, fmt.Errorf("%w: %s takes at most %d params", ErrInvalidCommand, fields[0], MaxParams)
	}

	return models.Command{
		ID:       uuid.New(),
		Kind:     kind,
		Name:     fields[0],
		Params:   params,
		Source:   source,
		Received: time.Now(),
	}, nil
}

// ParseErrorLine is the operator facing text for a parse failure.
func ParseErrorLine(err error) string {
	if errors.Is(err, ErrCommandTooLong) {
		return fmt.Sprintf("%s (max %d bytes)", TooLong, MaxLineLength)
	}
	return NotRecognised
}

// LineBuffer assembles console input one byte at a time.
type LineBuffer struct {
	buf      []byte
	overflow bool
}

func NewLineBuffer() *LineBuffer {
	return &LineBuffer{
		buf: make([]byte, 0, MaxLineLength),
	}
}

// Feed adds one byte. When b ends a line the finished line is returned with done set.
// A line that grew past MaxLineLength returns ErrCommandTooLong instead.
func (l *LineBuffer) Feed(b byte) (line string, done bool, err error) {
	switch b {
	case '\r', '\n':
		line = string(l.buf)
		overflow := l.overflow
		l.Reset()
		if overflow {
			return "", true, ErrCommandTooLong
		}
		return line, true, nil
	case '\b', 0x7f:
		if len(l.buf) > 0 && !l.overflow {
			l.buf = l.buf[:len(l.buf)-1]
		}
		return "", false, nil
	}

	if len(l.buf) >= MaxLineLength {
		l.overflow = true
		return "", false, nil
	}
	l.buf = append(l.buf, b)
	return "", false, nil
}

func (l *LineBuffer) String() string {
	return string(l.buf)
}

func (l *LineBuffer) Reset() {
	l.buf = l.buf[:0]
	l.overflow = false
}

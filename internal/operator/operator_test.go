package operator

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Speshl/gorrc_bot/internal/arming"
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noStalls struct{}

func (noStalls) Stalled() (bool, bool) { return false, false }

type weaponStalled struct{}

func (weaponStalled) Stalled() (bool, bool) { return false, true }

type fixedOrientation struct {
	orientation models.Orientation
}

func (f fixedOrientation) Orientation() models.Orientation { return f.orientation }

type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func TestParse(t *testing.T) {
	tests := []struct {
		line   string
		kind   models.CommandKind
		params []string
	}{
		{"fully_disarm", models.FullyDisarm, []string{}},
		{"partial_disarm", models.PartialDisarm, []string{}},
		{"partial_arm", models.PartialArm, []string{}},
		{"  fully_arm  ", models.FullyArm, []string{}},
		{"status a b", models.Status, []string{"a", "b"}},
	}

	for _, tt := range tests {
		cmd, err := Parse(tt.line, "test")
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.kind, cmd.Kind)
		assert.Equal(t, tt.params, cmd.Params)
		assert.Equal(t, "test", cmd.Source)
		assert.NotEqual(t, uuid.Nil, cmd.ID)
	}
}

func TestParseRejects(t *testing.T) {
	for _, line := range []string{"", "   ", "fully", "stat", "fully_arm_now", "FULLY_ARM", "status a b c"} {
		_, err := Parse(line, "test")
		assert.ErrorIs(t, err, ErrInvalidCommand, "%q", line)
		assert.Equal(t, NotRecognised, ParseErrorLine(err))
	}

	_, err := Parse("status "+strings.Repeat("x", MaxLineLength), "test")
	assert.ErrorIs(t, err, ErrCommandTooLong)
	assert.Contains(t, ParseErrorLine(err), TooLong)
}

func TestCommandIDsAreUnique(t *testing.T) {
	a, err := Parse("status", "test")
	require.NoError(t, err)
	b, err := Parse("status", "test")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "status", CommandName(models.Status))
}

func TestLineBuffer(t *testing.T) {
	l := NewLineBuffer()
	for _, b := range []byte("statux\bs") {
		_, done, err := l.Feed(b)
		require.NoError(t, err)
		require.False(t, done)
	}
	line, done, err := l.Feed('\r')
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "status", line)
	assert.Equal(t, "", l.String())
}

func TestLineBufferOverflow(t *testing.T) {
	l := NewLineBuffer()
	for i := 0; i < MaxLineLength+10; i++ {
		_, done, _ := l.Feed('a')
		require.False(t, done)
	}
	_, done, err := l.Feed('\n')
	assert.True(t, done)
	assert.ErrorIs(t, err, ErrCommandTooLong)

	for _, b := range []byte("status") {
		l.Feed(b)
	}
	line, _, err := l.Feed('\r')
	require.NoError(t, err)
	assert.Equal(t, "status", line, "buffer recovers after an overflow")
}

func TestProcessorExecute(t *testing.T) {
	machine := arming.NewMachine(noStalls{})
	p := NewProcessor(machine, nil, 4)

	tests := []struct {
		line  string
		code  models.ResultCode
		state models.ArmState
	}{
		{"fully_disarm", models.ResultAlreadyDisarmed, models.Disarmed},
		{"partial_disarm", models.ResultAlreadyDisarmed, models.Disarmed},
		{"partial_arm", models.ResultOk, models.DriveOnly},
		{"fully_arm", models.ResultOk, models.FullyArmed},
		{"partial_arm", models.ResultAlreadyArmed, models.FullyArmed},
		{"partial_disarm", models.ResultOk, models.WeaponOnly},
		{"fully_disarm", models.ResultOk, models.Disarmed},
	}

	for _, tt := range tests {
		cmd, err := Parse(tt.line, "test")
		require.NoError(t, err)
		result := p.Execute(cmd)
		assert.Equal(t, tt.code.String(), result.Code, tt.line)
		assert.Equal(t, cmd.ID, result.CommandID)
		assert.Equal(t, tt.state, machine.State(), tt.line)
	}

	executed, failed := p.Stats()
	assert.Equal(t, uint64(len(tests)), executed)
	assert.Equal(t, uint64(0), failed)
}

func TestProcessorFailsafeOverrideIsError(t *testing.T) {
	machine := arming.NewMachine(weaponStalled{})
	p := NewProcessor(machine, nil, 4)

	cmd, err := Parse("fully_arm", "test")
	require.NoError(t, err)
	result := p.Execute(cmd)

	assert.Equal(t, "ERROR", result.Code)
	assert.Equal(t, models.DriveOnly, machine.State())
	_, failed := p.Stats()
	assert.Equal(t, uint64(1), failed)
}

func TestProcessorStatus(t *testing.T) {
	machine := arming.NewMachine(noStalls{})
	p := NewProcessor(machine, fixedOrientation{models.Orientation{
		Euler:    models.Euler{Heading: 90, Pitch: 1, Roll: -45},
		Detected: models.OrientationInverted,
		Override: models.OrientationUnknown,
	}}, 4)

	cmd, err := Parse("status", "test")
	require.NoError(t, err)
	result := p.Execute(cmd)

	assert.Equal(t, "OK", result.Code)
	require.Len(t, result.Lines, 3)
	assert.Equal(t, "Status: DISARMED", result.Lines[0])
	assert.Contains(t, result.Lines[1], "detected: inverted")
	assert.Contains(t, result.Lines[2], "roll: -45")
	assert.Equal(t, models.Disarmed, machine.State())
}

func TestProcessorQueueFull(t *testing.T) {
	p := NewProcessor(arming.NewMachine(noStalls{}), nil, 1)

	_, err := p.SubmitLine("status", "test", nil)
	require.NoError(t, err)
	_, err = p.SubmitLine("status", "test", nil)
	assert.ErrorIs(t, err, ErrQueueFull)

	_, err = p.SubmitLine("bogus", "test", nil)
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestProcessorExecutesEachCommandOnce(t *testing.T) {
	machine := arming.NewMachine(noStalls{})
	p := NewProcessor(machine, nil, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	results := make(chan models.CommandResult, 8)
	reply := func(result models.CommandResult) { results <- result }
	for _, line := range []string{"partial_arm", "partial_arm", "partial_arm"} {
		_, err := p.SubmitLine(line, "test", reply)
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		select {
		case result := <-results:
			assert.Equal(t, "OK", result.Code)
		case <-time.After(time.Second):
			t.Fatal("command not executed")
		}
	}
	assert.Equal(t, models.FullyArmed, machine.State())

	executed, _ := p.Stats()
	assert.Equal(t, uint64(3), executed)
}

func TestConsole(t *testing.T) {
	machine := arming.NewMachine(noStalls{})
	p := NewProcessor(machine, nil, 4)
	out := &syncBuffer{}
	input := "partial_arm\rbogus\r" + strings.Repeat("z", MaxLineLength+1) + "\r"
	console := NewConsoleWithIO(p, strings.NewReader(input), out)
	require.NoError(t, console.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)
	go console.Start(ctx)

	require.Eventually(t, func() bool {
		text := out.String()
		return strings.Contains(text, "partial_arm: OK") && strings.Contains(text, TooLong)
	}, time.Second, time.Millisecond)

	text := out.String()
	assert.True(t, strings.HasPrefix(text, prompt))
	assert.Contains(t, text, NotRecognised)
	assert.Contains(t, text, TooLong)
	assert.Equal(t, models.DriveOnly, machine.State())
}

func TestConsoleCRLFIsOneLine(t *testing.T) {
	machine := arming.NewMachine(noStalls{})
	p := NewProcessor(machine, nil, 4)
	out := &syncBuffer{}
	console := NewConsoleWithIO(p, strings.NewReader("status\r\nbogus\r\n\n"), out)
	require.NoError(t, console.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)
	go console.Start(ctx)

	// one prompt at start, one after the status reply, one after the bad line and one for the bare \n
	require.Eventually(t, func() bool {
		text := out.String()
		return strings.Contains(text, "Status: DISARMED") && strings.Contains(text, NotRecognised) &&
			strings.Count(text, prompt) == 4
	}, time.Second, time.Millisecond)
	assert.Never(t, func() bool {
		return strings.Count(out.String(), prompt) > 4
	}, 20*time.Millisecond, time.Millisecond)
}

package operator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/Speshl/gorrc_bot/internal/arming"
	"github.com/Speshl/gorrc_bot/internal/models"
)

type OrientationSource interface {
	Orientation() models.Orientation
}

type ReplyFunc func(result models.CommandResult)

type request struct {
	cmd   models.Command
	reply ReplyFunc
}

// Processor executes queued operator commands against the arming machine, one at a time.
type Processor struct {
	machine     *arming.Machine
	orientation OrientationSource
	queue       chan request

	executed atomic.Uint64
	failed   atomic.Uint64
}

func NewProcessor(machine *arming.Machine, orientation OrientationSource, queueSize int) *Processor {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Processor{
		machine:     machine,
		orientation: orientation,
		queue:       make(chan request, queueSize),
	}
}

// Submit queues cmd without blocking. reply may be nil.
func (p *Processor) Submit(cmd models.Command, reply ReplyFunc) error {
	select {
	case p.queue <- request{cmd: cmd, reply: reply}:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s", ErrQueueFull, cmd.Name)
	}
}

// SubmitLine parses and queues one line of operator input.
func (p *Processor) SubmitLine(line string, source string, reply ReplyFunc) (models.Command, error) {
	cmd, err := Parse(line, source)
	if err != nil {
		return cmd, err
	}
	return cmd, p.Submit(cmd, reply)
}

func (p *Processor) Start(ctx context.Context) error {
	log.Println("starting command processor")
	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping command processor: %s\n", ctx.Err().Error())
			return ctx.Err()
		case req := <-p.queue:
			result := p.Execute(req.cmd)
			if req.reply != nil {
				req.reply(result)
			}
		}
	}
}

// Stats returns the number of executed and failed commands.
func (p *Processor) Stats() (executed uint64, failed uint64) {
	return p.executed.Load(), p.failed.Load()
}

// Execute runs cmd once. Failures are reported in the result and never retried.
func (p *Processor) Execute(cmd models.Command) models.CommandResult {
	p.executed.Add(1)
	log.Printf("executing command %s (%s) from %s\n", cmd.Name, cmd.ID, cmd.Source)

	if cmd.Kind == models.Status {
		return p.status(cmd)
	}

	state, err := p.machine.Apply(cmd.Kind)
	code := ResultCode(err)
	if code == models.ResultError {
		p.failed.Add(1)
		log.Printf("failed executing command %s: %s\n", cmd.Name, err.Error())
	}

	lines := []string{fmt.Sprintf("%s: %s", cmd.Name, code)}
	if err != nil && code == models.ResultError {
		lines = append(lines, fmt.Sprintf("error: %s", err.Error()))
	}
	lines = append(lines, fmt.Sprintf("Status: %s", state))

	return models.CommandResult{
		CommandID: cmd.ID,
		Name:      cmd.Name,
		Code:      code.String(),
		Lines:     lines,
	}
}

func (p *Processor) status(cmd models.Command) models.CommandResult {
	lines := []string{fmt.Sprintf("Status: %s", p.machine.State())}
	if p.orientation != nil {
		o := p.orientation.Orientation()
		lines = append(lines,
			fmt.Sprintf("(Orientation) detected: %s, overridden: %s", o.Detected, o.Override),
			fmt.Sprintf("              heading: %.0f, pitch: %.0f, roll: %.0f", o.Heading, o.Pitch, o.Roll),
		)
	}
	return models.CommandResult{
		CommandID: cmd.ID,
		Name:      cmd.Name,
		Code:      models.ResultOk.String(),
		Lines:     lines,
	}
}

// ResultCode maps an arming error onto the reported result code.
func ResultCode(err error) models.ResultCode {
	switch {
	case err == nil:
		return models.ResultOk
	case errors.Is(err, arming.ErrAlreadyDisarmed):
		return models.ResultAlreadyDisarmed
	case errors.Is(err, arming.ErrAlreadyArmed):
		return models.ResultAlreadyArmed
	default:
		return models.ResultError
	}
}

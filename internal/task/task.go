package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownTask  = errors.New("unknown task")
	ErrCriticalTask = errors.New("critical task exited")
)

type Runner interface {
	Start(ctx context.Context) error
}

// RunnerFunc adapts a function to a Runner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Start(ctx context.Context) error {
	return f(ctx)
}

// Periodic calls fn every period while enabled.
type Periodic struct {
	name    string
	period  time.Duration
	fn      func()
	enabled atomic.Bool
	runs    atomic.Uint64
}

func NewPeriodic(name string, period time.Duration, fn func()) *Periodic {
	p := &Periodic{
		name:   name,
		period: period,
		fn:     fn,
	}
	p.enabled.Store(true)
	return p
}

func (p *Periodic) Name() string {
	return p.name
}

func (p *Periodic) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
}

func (p *Periodic) Enabled() bool {
	return p.enabled.Load()
}

func (p *Periodic) Runs() uint64 {
	return p.runs.Load()
}

func (p *Periodic) Start(ctx context.Context) error {
	if p.period <= 0 {
		return fmt.Errorf("task %s has invalid period %s", p.name, p.period)
	}

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !p.enabled.Load() {
				continue
			}
			p.fn()
			p.runs.Add(1)
		}
	}
}

type entry struct {
	name     string
	runner   Runner
	periodic *Periodic
	critical bool
	onExit   func()
}

// Supervisor runs every registered task until its context is cancelled.
// A task that fails is logged and does not stop the others, unless it is critical:
// a critical task that exits runs its onExit hook and stops every task.
type Supervisor struct {
	lock    sync.RWMutex
	entries []entry
	byName  map[string]*entry
	cancel  context.CancelFunc
}

func NewSupervisor() *Supervisor {
	return &Supervisor{
		byName: make(map[string]*entry),
	}
}

func (s *Supervisor) Add(name string, runner Runner) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries = append(s.entries, entry{name: name, runner: runner})
	s.reindex()
}

func (s *Supervisor) AddPeriodic(p *Periodic) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries = append(s.entries, entry{name: p.name, runner: p, periodic: p})
	s.reindex()
}

// AddCritical registers a task whose exit stops the supervisor. onExit runs first and may be nil.
func (s *Supervisor) AddCritical(name string, runner Runner, onExit func()) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries = append(s.entries, entry{name: name, runner: runner, critical: true, onExit: onExit})
	s.reindex()
}

func (s *Supervisor) AddCriticalPeriodic(p *Periodic, onExit func()) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries = append(s.entries, entry{name: p.name, runner: p, periodic: p, critical: true, onExit: onExit})
	s.reindex()
}

func (s *Supervisor) reindex() {
	s.byName = make(map[string]*entry, len(s.entries))
	for i := range s.entries {
		s.byName[s.entries[i].name] = &s.entries[i]
	}
}

// SetEnabled pauses or resumes a periodic task.
func (s *Supervisor) SetEnabled(name string, enabled bool) error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	e, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	if e.periodic == nil {
		return fmt.Errorf("task %s cannot be paused", name)
	}
	e.periodic.SetEnabled(enabled)
	log.Printf("task %s enabled: %t\n", name, enabled)
	return nil
}

func (s *Supervisor) Names() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	names := make([]string, 0, len(s.entries))
	for i := range s.entries {
		names = append(names, s.entries[i].name)
	}
	return names
}

// Stop cancels a running supervisor.
func (s *Supervisor) Stop() {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Supervisor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.lock.Lock()
	s.cancel = cancel
	entries := make([]entry, len(s.entries))
	copy(entries, s.entries)
	s.lock.Unlock()

	errGroup, errGroupCtx := errgroup.WithContext(ctx)
	for i := range entries {
		e := entries[i]
		errGroup.Go(func() error {
			log.Printf("starting task %s\n", e.name)
			err := e.runner.Start(errGroupCtx)
			if e.critical && errGroupCtx.Err() == nil {
				log.Printf("critical task %s exited, stopping all tasks: %v\n", e.name, err)
				if e.onExit != nil {
					e.onExit()
				}
				return fmt.Errorf("%w: %s", ErrCriticalTask, e.name)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("task %s stopped: %s\n", e.name, err.Error())
				return nil
			}
			log.Printf("task %s stopped\n", e.name)
			return nil
		})
	}

	err := errGroup.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

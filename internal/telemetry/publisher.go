package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
)

const TaskName = "telemetry"

type Sink interface {
	Send(models.Telemetry) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(models.Telemetry) error

func (f SinkFunc) Send(t models.Telemetry) error {
	return f(t)
}

// Publisher hands a fresh snapshot to every sink each period.
type Publisher struct {
	collector *Collector
	period    time.Duration

	lock  sync.RWMutex
	sinks map[string]Sink
}

func NewPublisher(collector *Collector, period time.Duration) *Publisher {
	return &Publisher{
		collector: collector,
		period:    period,
		sinks:     make(map[string]Sink),
	}
}

func (p *Publisher) AddSink(name string, sink Sink) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.sinks[name] = sink
}

// Publish sends one snapshot. Sink errors are logged and do not stop the others.
func (p *Publisher) Publish() models.Telemetry {
	snapshot := p.collector.Snapshot()

	p.lock.RLock()
	defer p.lock.RUnlock()
	for name, sink := range p.sinks {
		err := sink.Send(snapshot)
		if err != nil {
			log.Printf("failed sending telemetry to %s: %s\n", name, err.Error())
		}
	}
	return snapshot
}

func (p *Publisher) Start(ctx context.Context) error {
	if p.period <= 0 {
		return fmt.Errorf("telemetry period must be positive")
	}

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping telemetry publisher: %s\n", ctx.Err().Error())
			return ctx.Err()
		case <-ticker.C:
			p.Publish()
		}
	}
}

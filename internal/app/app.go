// Package app wires the live mirror: discovery loop, controllers, scheduler
// and the optional status server.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/retroenv/procmirror/internal/config"
	"github.com/retroenv/procmirror/internal/detector"
	"github.com/retroenv/procmirror/internal/options"
	"github.com/retroenv/procmirror/internal/pipeline"
	"github.com/retroenv/procmirror/internal/scheduler"
	"github.com/retroenv/procmirror/internal/signature"
	"github.com/retroenv/procmirror/internal/state"
	"github.com/retroenv/procmirror/internal/statusserver"
	"github.com/retroenv/retrogolib/log"
)

// Mirror is a live mirror of one target process.
type Mirror struct {
	logger *log.Logger
	cfg    config.File

	Scheduler *scheduler.Scheduler
	Context   *state.Context
	Process   *state.ProcessInfo
	Status    *statusserver.Server
}

// New builds the mirror. The attacher is nil for a live process lookup
// configured by cfg and opts.
func New(logger *log.Logger, cfg config.File, opts options.Program, attacher state.Attacher,
	alive func(pid int) bool) (*Mirror, error) {

	sched := scheduler.New(scheduler.Config{
		Sink: scheduler.NewLogSink(logger),
	})
	mctx := state.NewContext(logger, sched, cfg.State())

	if attacher == nil {
		catalogue, err := signature.LoadCatalogue(cfg.Signatures)
		if err != nil {
			return nil, fmt.Errorf("loading signatures: %w", err)
		}

		det := detector.New(logger)
		source := pipeline.Live{
			Detector: det,
			Name:     cfg.ProcessName,
			PID:      opts.PID,
			Module:   cfg.Module,
		}
		p, err := pipeline.New(logger, source, catalogue, cfg.LayoutBuild)
		if err != nil {
			return nil, fmt.Errorf("creating pipeline: %w", err)
		}
		attacher = p
		if alive == nil {
			alive = det.Alive
		}
	}

	m := &Mirror{
		logger:    logger,
		cfg:       cfg,
		Scheduler: sched,
		Context:   mctx,
		Process:   state.NewProcessInfo(logger, mctx, attacher, alive, nil, cfg.RetryInterval),
	}

	if cfg.Listen != "" {
		m.Status = statusserver.New(logger, mctx)
		mctx.Subscribe(func(e *scheduler.Event) {
			m.Status.Publish(e.Name(), sched.Clock().Now())
		})
	}
	return m, nil
}

// Run starts the discovery loop and ticks the scheduler until the context
// is cancelled. The process is detached on return.
func (m *Mirror) Run(ctx context.Context) error {
	m.Process.Start()
	m.logger.Info("Waiting for target process", log.String("name", m.cfg.ProcessName))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	statusErr := make(chan error, 1)
	if m.Status != nil {
		go func() {
			err := m.Status.ListenAndServe(ctx, m.cfg.Listen)
			if err != nil {
				cancel()
			}
			statusErr <- err
		}()
	} else {
		close(statusErr)
	}

	runErr := m.Scheduler.Run(ctx, m.cfg.TickInterval)
	cancel()

	detachErr := m.Context.Detach()
	return errors.Join(runErr, <-statusErr, detachErr)
}

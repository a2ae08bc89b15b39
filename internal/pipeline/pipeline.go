// Package pipeline orchestrates the attach workflow stages.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/retroenv/procmirror/internal/detector"
	"github.com/retroenv/procmirror/internal/layout"
	"github.com/retroenv/procmirror/internal/loader"
	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/procmirror/internal/signature"
	"github.com/retroenv/procmirror/internal/state"
	"github.com/retroenv/retrogolib/log"
)

const detectTimeout = 5 * time.Second

// Target is an opened foreign address space with the module image to scan.
type Target struct {
	PID    int
	Reader memory.Reader
	Module memory.Module
	Close  func() error
}

// Source opens the target address space.
type Source interface {
	Open() (*Target, error)
}

// Pipeline runs the attach workflow: open the target, read the module image
// and resolve the static addresses.
type Pipeline struct {
	logger    *log.Logger
	source    Source
	catalogue signature.Catalogue
}

// New creates a new attach pipeline. The catalogue build has to match a
// known layout build and the selected build, if one is set.
func New(logger *log.Logger, source Source, catalogue signature.Catalogue, build string) (*Pipeline, error) {
	if err := layout.Check(catalogue.Build); err != nil {
		return nil, fmt.Errorf("signature catalogue: %w", err)
	}
	if err := layout.Match(build, catalogue.Build); err != nil {
		return nil, err
	}
	return &Pipeline{
		logger:    logger,
		source:    source,
		catalogue: catalogue,
	}, nil
}

// Attach opens the target and resolves all signatures of the catalogue.
// Unresolved signatures do not fail the attach.
func (p *Pipeline) Attach() (*state.Attachment, error) {
	target, err := p.source.Open()
	if err != nil {
		return nil, fmt.Errorf("opening target: %w", err)
	}

	image, failed := memory.ReadImage(target.Reader, target.Module)
	if failed > 0 {
		p.logger.Debug("Module image pages not readable",
			log.String("module", target.Module.Name),
			log.Int("pages", failed))
	}

	statics := signature.ResolveAll(p.logger, image, target.Module.Base, p.catalogue.Signatures)
	p.logger.Info("Resolved static addresses",
		log.String("module", target.Module.Name),
		log.String("base", target.Module.Base.String()),
		log.Int("resolved", len(statics.Resolved())),
		log.Int("missing", len(statics.Missing())))

	return &state.Attachment{
		PID:     target.PID,
		Reader:  target.Reader,
		Statics: statics,
		Close:   target.Close,
	}, nil
}

// Live opens a running process, found by name unless a pid is given.
type Live struct {
	Detector *detector.Detector
	Name     string
	PID      int
	Module   string
}

// Open finds and opens the process and looks up the module to scan.
func (l Live) Open() (*Target, error) {
	pid := l.PID
	if pid == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
		defer cancel()

		var err error
		pid, err = l.Detector.Find(ctx, l.Name)
		if err != nil {
			return nil, fmt.Errorf("finding process: %w", err)
		}
	}

	proc, err := memory.Open(pid)
	if err != nil {
		return nil, err //nolint:wrapcheck // AttachError carries the pid
	}
	module, err := proc.Module(l.Module)
	if err != nil {
		_ = proc.Close()
		return nil, fmt.Errorf("looking up module: %w", err)
	}

	return &Target{
		PID:    pid,
		Reader: proc,
		Module: module,
		Close:  proc.Close,
	}, nil
}

// Offline opens a memory dump directory.
type Offline struct {
	Loader *loader.Loader
	Dir    string
}

// Open loads the dump into a synthetic address space.
func (o Offline) Open() (*Target, error) {
	dump, err := o.Loader.Load(o.Dir)
	if err != nil {
		return nil, fmt.Errorf("loading dump: %w", err)
	}
	return &Target{
		Reader: dump.Buffer,
		Module: dump.Module,
	}, nil
}

// Package fileprocessor handles offline dump processing operations
package fileprocessor

import (
	"fmt"
	"io"
	"os"

	"github.com/retroenv/procmirror/internal/config"
	"github.com/retroenv/procmirror/internal/loader"
	"github.com/retroenv/procmirror/internal/options"
	"github.com/retroenv/procmirror/internal/pipeline"
	"github.com/retroenv/procmirror/internal/scheduler"
	"github.com/retroenv/procmirror/internal/signature"
	"github.com/retroenv/procmirror/internal/state"
	"github.com/retroenv/procmirror/internal/writer"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

// passes is the number of scheduler ticks run on a dump, enough to deliver
// the events raised while binding the controllers.
const passes = 3

// ProcessDump mirrors an offline memory dump once and writes the snapshot.
func ProcessDump(logger *log.Logger, cfg config.File, opts options.Program) error {
	catalogue, err := signature.LoadCatalogue(cfg.Signatures)
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}

	source := pipeline.Offline{
		Loader: loader.New(logger),
		Dir:    opts.Dump,
	}
	p, err := pipeline.New(logger, source, catalogue, cfg.LayoutBuild)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	snapshot, err := mirrorOnce(logger, cfg, p)
	if err != nil {
		return err
	}

	w, err := createWriter(opts)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if closer, ok := w.(io.Closer); ok && w != os.Stdout {
			_ = closer.Close()
		}
	}()

	if err := writer.New(w, writer.Options{Addresses: opts.Debug}).Write(snapshot); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

func mirrorOnce(logger *log.Logger, cfg config.File, attacher state.Attacher) (*state.Snapshot, error) {
	sched := scheduler.New(scheduler.Config{
		Sink: scheduler.NewLogSink(logger),
	})
	mctx := state.NewContext(logger, sched, cfg.State())

	a, err := attacher.Attach()
	if err != nil {
		return nil, fmt.Errorf("attaching to dump: %w", err)
	}
	if err := mctx.Attach(a); err != nil {
		logger.Warn("Controllers unbound", log.Err(err))
	}
	for range passes {
		sched.Tick()
	}
	mctx.Publish()
	snapshot := mctx.Snapshot()

	if err := mctx.Detach(); err != nil {
		return nil, fmt.Errorf("detaching dump: %w", err)
	}
	return snapshot, nil
}

func createWriter(opts options.Program) (io.Writer, error) {
	if opts.Output == "" {
		return os.Stdout, nil
	}

	file, err := os.Create(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("creating output file %s: %w", opts.Output, err)
	}
	return file, nil
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}
	logger.Info("procmirror - foreign process memory mirror",
		log.String("version", buildinfo.Version(version, commit, date)))
}

// Package writer implements the text output of mirrored state snapshots.
package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/retroenv/procmirror/internal/state"
)

// Writer writes snapshots as text.
type Writer struct {
	options Options
	writer  io.Writer
}

// Options of the writer.
type Options struct {
	InRangeOnly bool // skip entities that are outside of the update radius
	Addresses   bool // output the foreign address of every entity
}

// New creates a new writer.
func New(writer io.Writer, options Options) *Writer {
	return &Writer{
		options: options,
		writer:  writer,
	}
}

// Write outputs the header and the entity table of the snapshot.
func (w Writer) Write(s *state.Snapshot) error {
	if s == nil {
		return nil
	}
	if err := w.writeHeader(s); err != nil {
		return err
	}
	return w.writeEntities(s.Entities)
}

func (w Writer) writeHeader(s *state.Snapshot) error {
	lines := []struct {
		name  string
		value any
	}{
		{"time", s.Time.UTC().Format("2006-01-02 15:04:05.000")},
		{"pid", s.PID},
		{"attached", s.Attached},
		{"state", valueOrNone(s.State)},
		{"area", valueOrNone(s.AreaName)},
		{"loading", s.IsLoading},
		{"area level", s.AreaLevel},
		{"area hash", fmt.Sprintf("%08X", s.AreaHash)},
		{"environments", formatKeys(s.EnvironmentKeys)},
		{"players", valueOrNone(strings.Join(s.Players, ", "))},
	}

	for _, line := range lines {
		if _, err := fmt.Fprintf(w.writer, "; %-14s %v\n", line.name+":", line.value); err != nil {
			return fmt.Errorf("writing header line: %w", err)
		}
	}
	if _, err := fmt.Fprintln(w.writer); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

func (w Writer) writeEntities(entities []state.EntitySnapshot) error {
	written := 0
	for _, e := range entities {
		if w.options.InRangeOnly && !e.InRange {
			continue
		}

		buf := &strings.Builder{}
		fmt.Fprintf(buf, "%8d  %-6s %6d/%-6d %5d,%-5d  %s",
			e.ID, rangeLabel(e.InRange), e.Health, e.MaxHealth, e.GridX, e.GridY, e.Path)
		if w.options.Addresses {
			fmt.Fprintf(buf, "  ; %s", e.Address)
		}

		if _, err := fmt.Fprintln(w.writer, buf.String()); err != nil {
			return fmt.Errorf("writing entity %d: %w", e.ID, err)
		}
		written++
	}

	if _, err := fmt.Fprintf(w.writer, "\n; %d entities\n", written); err != nil {
		return fmt.Errorf("writing entity count: %w", err)
	}
	return nil
}

func formatKeys(keys []uint16) string {
	if len(keys) == 0 {
		return "-"
	}
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = fmt.Sprint(key)
	}
	return strings.Join(parts, ", ")
}

func rangeLabel(inRange bool) string {
	if inRange {
		return "near"
	}
	return "far"
}

func valueOrNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

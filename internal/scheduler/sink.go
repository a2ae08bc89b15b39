package scheduler

import (
	"github.com/retroenv/retrogolib/log"
)

// DiagnosticSink receives problems that are not returned to a caller.
type DiagnosticSink interface {
	// TaskFault is called after a faulting task has been deregistered.
	TaskFault(task string, err error)
	// EventBacklog is called when a tick stops delivering events because
	// of the per tick bound, pending is the number of carried over events.
	EventBacklog(pending int)
	// Report is called for non fatal problems of a source, like a failed
	// decode pass of a bound object.
	Report(source string, err error)
}

// LogSink writes diagnostics to a logger.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink returns a diagnostic sink that logs to the logger.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// TaskFault logs the task fault as error.
func (s *LogSink) TaskFault(task string, err error) {
	s.logger.Error("Task deregistered after fault",
		log.String("task", task),
		log.Err(err))
}

// EventBacklog logs the number of carried over events.
func (s *LogSink) EventBacklog(pending int) {
	s.logger.Warn("Event delivery bound reached",
		log.Int("pending", pending))
}

// Report logs the problem at debug level, transient read faults are expected
// while the target mutates.
func (s *LogSink) Report(source string, err error) {
	s.logger.Debug("Refresh failed",
		log.String("source", source),
		log.Err(err))
}

type nopSink struct{}

func (nopSink) TaskFault(string, error) {}
func (nopSink) EventBacklog(int)        {}
func (nopSink) Report(string, error)    {}

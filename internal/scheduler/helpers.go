package scheduler

import "time"

// After runs fn once after the delay. The task is detached, nothing can
// cancel it; fn has to check itself whether its work is still wanted.
func (s *Scheduler) After(name string, delay time.Duration, fn func()) {
	task := TaskFunc(func() (Wait, error) {
		fn()
		return Finish(), nil
	})
	s.RegisterWaiting(name, task, Sleep(delay))
}

// Every runs fn each interval, starting one interval after registration,
// until fn returns false or an error.
func (s *Scheduler) Every(name string, interval time.Duration, fn func() (bool, error)) {
	task := TaskFunc(func() (Wait, error) {
		more, err := fn()
		if err != nil {
			return Finish(), err
		}
		if !more {
			return Finish(), nil
		}
		return Sleep(interval), nil
	})
	s.RegisterWaiting(name, task, Sleep(interval))
}

// OnEvent runs fn every time the event is raised until fn returns false.
func (s *Scheduler) OnEvent(name string, e *Event, fn func() bool) {
	task := TaskFunc(func() (Wait, error) {
		if !fn() {
			return Finish(), nil
		}
		return WaitFor(e), nil
	})
	s.RegisterWaiting(name, task, WaitFor(e))
}

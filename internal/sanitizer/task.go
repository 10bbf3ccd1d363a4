package sanitizer

import "context"

// Task is a sanitization running in the background.
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc
	result []string
}

// Start runs Sanitize in its own goroutine.
func (s *Sanitizer) Start(ctx context.Context, contents []string) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(t.done)
		defer cancel()
		t.result = s.Sanitize(ctx, contents)
	}()
	return t
}

// Done is closed once the result is available.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes and returns its result.
func (t *Task) Wait() []string {
	<-t.done
	return t.result
}

// Cancel stops polling; Wait then returns the original content for unfinished chunks.
func (t *Task) Cancel() { t.cancel() }

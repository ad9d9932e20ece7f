package util

import "sync"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Perror collects errors reported by parallel worker goroutines. Errors are sent to a listener goroutine and
// buffered until the job has completed and Stop has been called.
type Perror struct {
	listen     chan error // Channel for receiving errors from worker goroutines.
	stop       chan error // A message on this channel stops the listener.
	done       chan error // Closed when the listener has returned.
	errors     []error    // Buffered errors, in order of arrival.
	sync.Mutex            // Guards errors.
}

// ----------------------
// ----- Constants ------
// ----------------------

// defaultBufferSize is the fallback capacity of the error buffer.
const defaultBufferSize = 16

// ---------------------
// ----- functions -----
// ---------------------

// NewPerror returns a started error listener with room for n errors before the buffer grows.
func NewPerror(n int) *Perror {
	if n < 1 {
		n = defaultBufferSize
	}
	pe := Perror{
		listen: make(chan error),
		stop:   make(chan error),
		done:   make(chan error),
		errors: make([]error, 0, n),
	}
	go pe.run()
	return &pe
}

// run appends received errors to the buffer until the stop signal arrives.
func (pe *Perror) run() {
	defer close(pe.done)
	for {
		select {
		case err := <-pe.listen:
			pe.Lock()
			pe.errors = append(pe.errors, err)
			pe.Unlock()
		case <-pe.stop:
			return
		}
	}
}

// Len returns the number of buffered errors.
func (pe *Perror) Len() int {
	pe.Lock()
	defer pe.Unlock()
	return len(pe.errors)
}

// Stop signals the listener and waits for it to return. Append must not be called after Stop.
func (pe *Perror) Stop() {
	pe.stop <- nil
	<-pe.done
}

// Append reports err to the listener. Nil errors are ignored.
func (pe *Perror) Append(err error) {
	if err != nil {
		pe.listen <- err
	}
}

// Errors returns a copy of the buffered errors in order of arrival.
func (pe *Perror) Errors() []error {
	pe.Lock()
	defer pe.Unlock()
	errs := make([]error, len(pe.errors))
	copy(errs, pe.errors)
	return errs
}

package util

import (
	"bufio"
	"errors"
	"io"
	"os"
	"time"
)

// ---------------------
// ----- Constants -----
// ---------------------

// stdinTimeout is how long ReadSource waits for input on stdin when no source file is given.
const stdinTimeout = 500 * time.Millisecond

// ---------------------
// ----- Functions -----
// ---------------------

// ReadSource reads source code from file or stdin.
// If the Options structure holds a source path the file is read. Else the function waits for a short period for
// input on stdin and returns an error if none arrives.
func ReadSource(opt Options) (string, error) {
	if len(opt.Src) > 0 {
		b, err := os.ReadFile(opt.Src)
		return string(b), err
	}

	type result struct {
		s   string
		err error
	}
	c := make(chan result, 1)

	// Concurrently wait for input on stdin.
	go func() {
		b, err := io.ReadAll(bufio.NewReader(os.Stdin))
		c <- result{string(b), err}
	}()

	select {
	case <-time.After(stdinTimeout):
		return "", errors.New("expected input from stdin, got none")
	case r := <-c:
		if r.err == nil && len(r.s) == 0 {
			return "", errors.New("expected input from stdin, got none")
		}
		return r.s, r.err
	}
}

// WriteOutput writes s to the output file of opt, or to stdout if none is given.
func WriteOutput(opt Options, s string) error {
	var f *os.File
	if len(opt.Out) > 0 {
		var err error
		if f, err = os.Create(opt.Out); err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
	} else {
		f = os.Stdout
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	return w.Flush()
}

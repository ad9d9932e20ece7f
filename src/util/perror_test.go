package util

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestPerror(t *testing.T) {
	const workers, each = 8, 25
	pe := NewPerror(workers)

	wg := sync.WaitGroup{}
	wg.Add(workers)
	for i1 := 0; i1 < workers; i1++ {
		go func(id int) {
			defer wg.Done()
			for i2 := 0; i2 < each; i2++ {
				pe.Append(fmt.Errorf("worker %d error %02d", id, i2))
				pe.Append(nil)
			}
		}(i1)
	}
	wg.Wait()
	pe.Stop()

	if pe.Len() != workers*each {
		t.Fatalf("got %d errors, want %d", pe.Len(), workers*each)
	}
	errs := pe.Errors()
	msgs := make([]string, len(errs))
	for i1, e1 := range errs {
		msgs[i1] = e1.Error()
	}
	sort.Strings(msgs)
	for i1 := 1; i1 < len(msgs); i1++ {
		if msgs[i1] == msgs[i1-1] {
			t.Fatalf("duplicate error %q", msgs[i1])
		}
	}

	// The returned slice is a copy.
	errs[0] = nil
	if pe.Errors()[0] == nil {
		t.Error("Errors exposes the internal buffer")
	}
}

func TestPerrorEmpty(t *testing.T) {
	pe := NewPerror(0)
	pe.Stop()
	if pe.Len() != 0 || len(pe.Errors()) != 0 {
		t.Errorf("expected no errors, got %v", pe.Errors())
	}
}

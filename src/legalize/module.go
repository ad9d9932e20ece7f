package legalize

import (
	"sync"

	"moslegal/src/ir/gmir"
	"moslegal/src/logger"
	"moslegal/src/util"
)

// LegalizeModule legalizes every function of Module m. With opt.Threads greater than one the functions are split
// into contiguous chunks, one per worker goroutine, all sharing the default rule table.
func LegalizeModule(opt util.Options, m *gmir.Module) error {
	fs := m.Functions()
	if len(fs) == 0 {
		return nil
	}
	t := DefaultTable()

	if opt.Threads > 1 {
		// Parallel.
		th := opt.Threads
		if th > len(fs) {
			th = len(fs)
		}
		n := len(fs) / th
		res := len(fs) % th

		start := 0
		end := n

		// Create error listener.
		perr := util.NewPerror(th)

		// Create wait group for main go routine to wait for worker go routines.
		wg := sync.WaitGroup{}
		wg.Add(th)

		// Spawn th worker go routines.
		for i1 := 0; i1 < th; i1++ {
			if i1 < res {
				end++
			}
			go func(start, end int, wg *sync.WaitGroup) {
				defer wg.Done()
				for _, e2 := range fs[start:end] {
					if err := legalizeFunc(opt, t, e2); err != nil {
						perr.Append(err)
					}
				}
			}(start, end, &wg)
			start = end
			end += n
		}

		// Wait for worker go routines to finish legalization.
		wg.Wait()
		perr.Stop()

		// Check for errors from worker go routines.
		if perr.Len() > 0 {
			return &ModuleError{Errs: perr.Errors()}
		}
		return nil
	}

	// Sequential.
	for _, e1 := range fs {
		if err := legalizeFunc(opt, t, e1); err != nil {
			return err
		}
	}
	return nil
}

// legalizeFunc legalizes a single function with rule Table t.
func legalizeFunc(opt util.Options, t *Table, f *gmir.Function) error {
	stats, err := NewWithTable(t, f).Run()
	if err != nil {
		return err
	}
	if opt.Verbose {
		logger.Info("Legalized function", "function", f.Name(), "iterations", stats.Iterations,
			"steps", stats.Steps, "created", stats.Created, "erased", stats.Erased)
	}
	return nil
}

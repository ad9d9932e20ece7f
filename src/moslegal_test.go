package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"moslegal/src/backend/mos"
	"moslegal/src/frontend"
	"moslegal/src/ir/gmir"
	"moslegal/src/ir/llvm"
	"moslegal/src/legalize"
	"moslegal/src/util"
)

// -----------------------------
// ----- Type definitions ------
// -----------------------------

// benchType defines a benchmark with pre-defined benchmark parameters.
type benchType struct {
	name string // Informative name of benchmark.
	src  string // The gMIR source file as a string.
}

// ----------------------
// ----- Constants ------
// ----------------------

// p defines the maximum number of parallel threads to pass to the legalizer.
const p = 4

// --------------------
// ----- Globals ------
// --------------------

// srcPath defines the relative path from the project root to the gMIR source files.
var srcPath = "/resources/gmir/"

// llPath defines the relative path from the project root to the LLVM IR source files.
var llPath = "/resources/ll/"

// ----------------------
// ----- Functions ------
// ----------------------

// BenchmarkLegalize benchmarks legalizing all bundled gMIR source files with 1 to p worker goroutines.
func BenchmarkLegalize(b *testing.B) {
	benchmarks := helperBenchmarks(srcPath, b)
	opt := util.Options{
		Threads: 1, // Re-configured in benchmark inner loop.
	}

	for _, e1 := range benchmarks {
		m, err := frontend.Parse(e1.name, e1.src)
		if err != nil {
			b.Fatalf("Could not parse %s: %s\n", e1.name, err)
		}

		// Test for 1 to p parallel worker go routines.
		for i2 := 1; i2 <= p; i2++ {
			opt.Threads = i2
			b.Run(fmt.Sprintf("%s-threads=%d", e1.name, i2), func(b *testing.B) {
				for n := 0; n < b.N; n++ {
					b.StopTimer()
					work := m.Clone()
					b.StartTimer()
					if err := legalize.LegalizeModule(opt, work); err != nil {
						b.Fatalf("Legalizer error: %s\n", err)
					}
				}
			})
		}
	}
}

// BenchmarkParse benchmarks scanning and parsing the bundled gMIR source files.
func BenchmarkParse(b *testing.B) {
	benchmarks := helperBenchmarks(srcPath, b)
	for _, e1 := range benchmarks {
		b.Run(e1.name, func(b *testing.B) {
			for n := 0; n < b.N; n++ {
				if _, err := frontend.Parse(e1.name, e1.src); err != nil {
					b.Fatalf("Could not parse %s: %s\n", e1.name, err)
				}
			}
		})
	}
}

// BenchmarkImportLLVM benchmarks translating the bundled LLVM IR files into gMIR.
func BenchmarkImportLLVM(b *testing.B) {
	benchmarks := helperBenchmarks(llPath, b)
	for _, e1 := range benchmarks {
		b.Run(e1.name, func(b *testing.B) {
			for n := 0; n < b.N; n++ {
				if _, err := llvm.ImportSource(e1.name, e1.src); err != nil {
					b.Fatalf("Could not import %s: %s\n", e1.name, err)
				}
			}
		})
	}
}

// TestBundledSources legalizes every bundled source and checks the result against the selector vocabulary.
func TestBundledSources(t *testing.T) {
	for _, e1 := range []string{srcPath, llPath} {
		for _, e2 := range helperBenchmarks(e1, t) {
			t.Run(e2.name, func(t *testing.T) {
				var m *gmir.Module
				var err error
				if strings.HasSuffix(e2.name, ".ll") {
					m, err = llvm.ImportSource(e2.name, e2.src)
				} else {
					m, err = frontend.Parse(e2.name, e2.src)
				}
				if err != nil {
					t.Fatal(err)
				}
				if err := legalize.LegalizeModule(util.Options{Threads: p}, m); err != nil {
					t.Fatal(err)
				}
				for _, e3 := range m.Functions() {
					if err := mos.Check(e3); err != nil {
						t.Error(err)
					}
				}
			})
		}
	}
}

// helperBenchmarks reads all source files in the directory dir, relative to the project root.
func helperBenchmarks(dir string, tb testing.TB) []benchType {
	tb.Helper()
	wd, err := os.Getwd()
	if err != nil {
		tb.Fatal(err)
	}
	path := filepath.Join(wd, "../", dir)
	files, err := os.ReadDir(path)
	if err != nil {
		tb.Fatalf("Could not read source files: %s", err)
	}
	res := make([]benchType, 0, len(files))
	for _, e1 := range files {
		data, err := os.ReadFile(filepath.Join(path, e1.Name()))
		if err != nil {
			tb.Fatal(err)
		}
		res = append(res, benchType{name: e1.Name(), src: string(data)})
	}
	return res
}

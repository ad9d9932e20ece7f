package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"moslegal/src/backend/mos"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the command line configuration of the legalizer.
type Options struct {
	Src         string  // Path to source file.
	Out         string  // Path to output file.
	Threads     int     // Thread count.
	Verbose     bool    // Set true if the legalizer should log statistical data and debug records.
	LogFormat   string  // Format of log records, "text" or "json".
	LogLevel    string  // Minimum level of log records: "debug", "info", "warn" or "error".
	LogFile     string  // Path of a file log records are appended to. Defaults to stderr.
	TokenStream bool    // Set true if the legalizer should output the token stream and exit.
	LLVM        bool    // Set true if the source is textual LLVM IR rather than gMIR.
	Check       bool    // Set true if the source should only be checked against the selector vocabulary.
	CPU         mos.CPU // Target CPU.
}

// ---------------------
// ----- Constants -----
// ---------------------

const maxThreads = 64 // Maximum threads allowed executing in parallel.
const appVersion = "moslegal 1.0"

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses command line arguments.
func ParseArgs() (Options, error) {
	return parseArgs(os.Args[1:])
}

// parseArgs parses the arguments following the program name. The last argument is the source file unless it's a
// flag.
func parseArgs(args []string) (Options, error) {
	opt := Options{Threads: 1, LogFormat: "text", LogLevel: "warn"}
	if len(args) == 0 {
		return opt, nil
	}
	n := len(args)
	if !strings.HasPrefix(args[n-1], "-") {
		opt.Src = args[n-1]
		n--
	}
	for i1 := 0; i1 < n; i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			// Help and usage.
			printHelp()
			os.Exit(0)
		case "-ll":
			// Read textual LLVM IR.
			opt.LLVM = true
		case "-o", "-t", "-cpu", "-log", "-level", "-logfile":
			if i1+1 >= n {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, fmt.Errorf("expected argument to %s, got new flag %s", args[i1], args[i1+1])
			}
			switch args[i1] {
			case "-o":
				// Output file.
				opt.Out = args[i1+1]
			case "-t":
				// Thread count.
				if t, err := strconv.Atoi(args[i1+1]); err == nil {
					if t > 0 && t <= maxThreads {
						opt.Threads = t
					} else {
						return opt, fmt.Errorf("thread count must be integer in range [1, %d]", maxThreads)
					}
				} else {
					return opt, fmt.Errorf("expected integer thread count, got: %s", args[i1+1])
				}
			case "-cpu":
				// Target CPU.
				cpu, err := mos.ParseCPU(args[i1+1])
				if err != nil {
					return opt, fmt.Errorf("%w, expected one of %s", err, strings.Join(mos.CPUs(), ", "))
				}
				opt.CPU = cpu
			case "-log":
				// Log record format.
				switch args[i1+1] {
				case "text", "json":
					opt.LogFormat = args[i1+1]
				default:
					return opt, fmt.Errorf("unexpected log format: %s", args[i1+1])
				}
			case "-level":
				// Log level.
				switch args[i1+1] {
				case "debug", "info", "warn", "error":
					opt.LogLevel = args[i1+1]
				default:
					return opt, fmt.Errorf("unexpected log level: %s", args[i1+1])
				}
			case "-logfile":
				// Log destination.
				opt.LogFile = args[i1+1]
			}
			i1++
		case "-check":
			// Check the source only.
			opt.Check = true
		case "-ts":
			// Output token stream
			opt.TokenStream = true
		case "-v", "--v", "-version", "--version":
			// Application version.
			fmt.Println(appVersion)
			os.Exit(0)
		case "-vb":
			// Verbose mode.
			opt.Verbose = true
		default:
			return opt, fmt.Errorf("unexpected flag: %s", args[i1])
		}
	}
	if opt.TokenStream && opt.LLVM {
		return opt, fmt.Errorf("-ts only applies to gMIR sources")
	}
	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "Usage: moslegal [flags] [source]")
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(w, "--h, --help")
	_, _ = fmt.Fprintln(w, "-check\tReport the instructions of the source the selector does not accept and exit.")
	_, _ = fmt.Fprintf(w, "-cpu\tTarget CPU: %s. Defaults to 'mos6502'.\n", strings.Join(mos.CPUs(), ", "))
	_, _ = fmt.Fprintln(w, "-ll\tRead textual LLVM IR instead of gMIR.")
	_, _ = fmt.Fprintln(w, "-level\tMinimum log level: 'debug', 'info', 'warn' or 'error'. Defaults to 'warn'.")
	_, _ = fmt.Fprintln(w, "-log\tLog record format, 'text' or 'json'. Defaults to 'text'.")
	_, _ = fmt.Fprintln(w, "-logfile\tAppend log records to this file instead of stderr.")
	_, _ = fmt.Fprintln(w, "-o\tPath and name of the output file. Defaults to stdout.")
	_, _ = fmt.Fprintf(w, "-t\tNumber of threads to run in parallel. Must be in range [1, %d].\n", maxThreads)
	_, _ = fmt.Fprintln(w, "-ts\tOutput the tokens of the source code and exit.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintln(w, "--v, --version")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode: print legalization statistics and debug records.")
	_ = w.Flush()
}

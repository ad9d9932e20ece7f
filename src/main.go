package main

import (
	"fmt"
	"os"

	"moslegal/src/driver"
	"moslegal/src/logger"
	"moslegal/src/util"
)

func main() {
	// Parse command line arguments.
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}

	cfg := logger.DefaultConfig()
	cfg.Format = opt.LogFormat
	cfg.Level = logger.ParseLevel(opt.LogLevel)
	cfg.LogFile = opt.LogFile
	if opt.Verbose {
		cfg.Level = logger.LevelDebug
	}
	if err := logger.Init(cfg); err != nil {
		fmt.Printf("Could not initialise logger: %s\n", err)
		os.Exit(1)
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Internal error: %v\n", r)
			os.Exit(2)
		}
	}()
	if err := driver.Run(opt); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

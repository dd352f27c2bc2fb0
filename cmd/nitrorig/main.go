// nitrorig recovers skinning skeletons from Nitro model files and builds
// their rest-pose vertex and index buffers.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/nitro-rig/internal/config"
	"github.com/Faultbox/nitro-rig/internal/logger"
	"github.com/Faultbox/nitro-rig/internal/rig"
)

func main() {
	flag.Usage = printUsage
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if config.SaveRequested() {
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config saved to %s\n", config.ConfigDir())
	}

	paths := config.Args()
	if len(paths) == 0 {
		if config.SaveRequested() {
			return
		}
		printUsage()
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := rig.Run(paths, cfg, os.Stdout); err != nil {
		logger.Error("some models failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `nitrorig - Nitro model skeleton and mesh builder

Usage:
  nitrorig [options] <model.yaml>...

Options:`)
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, `
Examples:
  nitrorig chest.yaml
  nitrorig -tree -poly tris+quads -ngons models/*.yaml
  nitrorig -jobs 8 -dump ./reports models/*.yaml
  nitrorig -poly tris+quads -save-config`)
}

package config

import "flag"

var (
	flagConfig = flag.String("config", "", "Path to config file")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
	flagPoly   = flag.String("poly", "", "Face layout: tris or tris+quads")
	flagNgons  = flag.Bool("ngons", false, "Triangulate quads so they can be recovered (needs -poly tris+quads)")
	flagJobs   = flag.Int("jobs", 0, "Number of models processed at once")
	flagDump   = flag.String("dump", "", "Directory to write a YAML report per model")
	flagTree   = flag.Bool("tree", false, "Print the joint tree of each model")
	flagSave   = flag.Bool("save-config", false, "Write the effective config to the user config directory")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag arguments: the model files to process.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via -config flag.
func ConfigPath() string {
	return *flagConfig
}

// SaveRequested reports whether -save-config was given.
func SaveRequested() bool {
	return *flagSave
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagPoly != "" {
		cfg.Build.PolyType = *flagPoly
	}
	if *flagNgons {
		cfg.Build.EncodeNgons = true
	}
	if *flagJobs > 0 {
		cfg.Build.Jobs = *flagJobs
	}
	if *flagDump != "" {
		cfg.Output.DumpDir = *flagDump
	}
	if *flagTree {
		cfg.Output.PrintTree = true
	}
}

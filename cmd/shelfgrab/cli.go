package main

import (
	"flag"
	"fmt"
	"os"
)

type cliFlags struct {
	configFile string
	help       bool
	version    bool
}

func parseFlags() cliFlags {
	var flags cliFlags
	flag.StringVar(&flags.configFile, "config", "", "Path to configuration file (YAML)")
	flag.BoolVar(&flags.help, "help", false, "Show help")
	flag.BoolVar(&flags.version, "version", false, "Show version")
	flag.Parse()
	return flags
}

func showHelp() {
	fmt.Fprintf(os.Stderr, `shelfgrab - reading-list to library reconciliation service

Usage:
  shelfgrab [flags]

Flags:
  -config string   Path to configuration file (YAML)
  -help            Show this help
  -version         Show version

Configuration is read from the config file, then overridden by environment
variables (LL_API_KEY, LL_HOST, FS_URL, SG_BASE_URL, PORT, ...). A .env file
in the working directory is loaded if present.
`)
}

func showVersion() {
	fmt.Printf("shelfgrab %s\n", version)
}

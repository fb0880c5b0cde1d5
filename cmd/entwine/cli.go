package main

import "flag"

var (
	flagGops, flagLogDateTime          bool
	flagConfigFile, flagEnvFile        string
	flagBuildName, flagInputs          string
	flagLogLevel                       string
	flagNoServer                       bool
)

func cliInit() {
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Add date and time to log messages")
	flag.BoolVar(&flagNoServer, "no-server", false, "Do not start the HTTP server; exit after ingestion completes")
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to `config.json`")
	flag.StringVar(&flagEnvFile, "env", "./.env", "Path to an optional `.env` overlay")
	flag.StringVar(&flagBuildName, "build", "default", "Name recorded for this build in the catalog")
	flag.StringVar(&flagInputs, "inputs", "", "Comma-separated list of CSV `files` to ingest before serving")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Logging level: `[debug, info, warn, err, crit]`")
	flag.Parse()
}

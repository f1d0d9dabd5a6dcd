// Package cmd defines the command line flags shared by the indexer binary.
package cmd

import "github.com/urfave/cli/v2"

var (
	// VerbosityFlag defines the logrus configuration.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (debug, info=default, warn, error, fatal, panic)",
		Value: "info",
	}
	// BaseDirFlag is the root of the on-disk content-addressed store
	// (spec §3, §6.1).
	BaseDirFlag = &cli.StringFlag{
		Name:  "base-dir",
		Usage: "Directory the indexer reads and writes its on-disk store under",
		Value: "./indexer-data",
	}
	// ResetFlag recursively clears the base directory before creating the
	// on-disk layout (§6.4).
	ResetFlag = &cli.BoolFlag{
		Name:  "reset",
		Usage: "Clear the base directory before indexing starts",
	}
	// BootEnrFlag supplies a boot ENR to dial on startup; repeatable.
	BootEnrFlag = &cli.StringSliceFlag{
		Name:  "boot-enr",
		Usage: "ENR of a bootstrap peer to dial on startup, may be repeated",
	}
	// P2PPortFlag defines the port to be used by libp2p.
	P2PPortFlag = &cli.IntFlag{
		Name:  "p2p-port",
		Usage: "The TCP port used by libp2p",
		Value: 13000,
	}
	// DisableMonitoringFlag disables the Prometheus/healthz HTTP server.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable the metrics and healthz HTTP server",
	}
	// MonitoringPortFlag defines the HTTP port used to serve Prometheus metrics.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used to listen and respond with metrics for Prometheus",
		Value: 8080,
	}
	// LogFileFlag tees logging output to a file in addition to stdout.
	LogFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Path to a log file; when set, log output is duplicated there",
	}
)

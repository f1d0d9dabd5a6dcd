// Command beacon-indexer runs the direct beacon-chain indexer: it follows
// a running consensus client over the wire, consolidates blocks and
// epochs, and writes them to a content-addressed MessagePack store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/beaconindexer/indexer/indexer"
	"github.com/beaconindexer/indexer/indexer/transition"
	"github.com/beaconindexer/indexer/shared/cmd"
	"github.com/beaconindexer/indexer/shared/fileutil"
	"github.com/beaconindexer/indexer/shared/logutil"
	"github.com/beaconindexer/indexer/shared/metrics"
	"github.com/beaconindexer/indexer/shared/params"
)

// referenceNumValidators seeds the reference beacon state used until a
// real state-transition implementation is substituted (spec §6.3, non-goal:
// the transition functions themselves are out of scope).
const referenceNumValidators = 64

var appFlags = []cli.Flag{
	cmd.VerbosityFlag,
	cmd.BaseDirFlag,
	cmd.ResetFlag,
	cmd.BootEnrFlag,
	cmd.P2PPortFlag,
	cmd.DisableMonitoringFlag,
	cmd.MonitoringPortFlag,
	cmd.LogFileFlag,
}

func main() {
	log := logrus.WithField("prefix", "main")

	app := cli.App{
		Name:   "beacon-indexer",
		Usage:  "Indexes a beacon chain's canonical history to a content-addressed MessagePack store",
		Flags:  appFlags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if err := logutil.ConfigureLogging(c.String(cmd.VerbosityFlag.Name)); err != nil {
		return err
	}
	if logFile := c.String(cmd.LogFileFlag.Name); logFile != "" {
		if err := logutil.ConfigurePersistentLogging(logFile); err != nil {
			logrus.WithError(err).Error("could not configure persistent logging")
		}
	}

	baseDir := c.String(cmd.BaseDirFlag.Name)
	if c.Args().Present() {
		baseDir = c.Args().First()
	}
	if c.Bool(cmd.ResetFlag.Name) {
		if err := fileutil.ClearDir(baseDir); err != nil {
			return err
		}
	}

	var monitoring *metrics.Service
	if !c.Bool(cmd.DisableMonitoringFlag.Name) {
		monitoring = metrics.New(fmt.Sprintf(":%d", c.Int(cmd.MonitoringPortFlag.Name)))
		monitoring.Register("dispatcher", func() error { return nil })
		monitoring.Start()
		defer func() {
			if err := monitoring.Stop(); err != nil {
				logrus.WithError(err).Warn("error stopping monitoring server")
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	idxCfg := params.DefaultIndexerConfig()
	slotsPerEpoch := idxCfg.SlotsPerEpoch

	// ForkDigest distinguishes networks at the libp2p protocol-id level;
	// computing the real value requires the genesis validators root this
	// indexer doesn't maintain, so it stays the zero digest until a real
	// beacon-state source is wired in (see DESIGN.md).
	ind, err := indexer.New(ctx, indexer.Config{
		BaseDir:      baseDir,
		P2PPort:      c.Int(cmd.P2PPortFlag.Name),
		ForkDigest:   [4]byte{},
		BootAddrs:    c.StringSlice(cmd.BootEnrFlag.Name),
		IndexerCfg:   idxCfg,
		Transition:   transition.NewReferenceTransition(slotsPerEpoch),
		GenesisState: transition.NewReferenceState(slotsPerEpoch, referenceNumValidators),
	})
	if err != nil {
		return err
	}

	logrus.WithField("baseDir", baseDir).Info("Starting beacon indexer")
	return ind.Run(ctx)
}

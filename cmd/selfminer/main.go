// Command selfminer runs a discrete-event simulation of a proof-of-work
// network: honest mining, transaction and block gossip, selfish mining by
// a coalition, and an optional eclipse attack.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/blocksim/selfminer/internal/config"
	"github.com/blocksim/selfminer/internal/report"
	"github.com/blocksim/selfminer/internal/simulation"
)

const usage = "usage: selfminer <num_nodes> <percent_malicious> <mean_tx_iat_ms> <block_iat_s> <timeout_ms> <output_dir> [--eclipse]"

func main() {
	app := &cli.App{
		Name:      "selfminer",
		Usage:     "simulate a PoW network under selfish mining and an optional eclipse attack",
		UsageText: usage,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "eclipse", Usage: "enable the eclipse attack: malicious nodes drop honest-origin GetBlockRequests from non-coalition peers"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	args := ctx.Args().Slice()
	eclipse := ctx.Bool("eclipse")
	if len(args) == 7 && args[6] == "--eclipse" {
		// Flag parsing stops at the first positional argument, so a
		// trailing --eclipse arrives here as a seventh argument.
		eclipse = true
		args = args[:6]
	}
	if len(args) != 6 {
		return fmt.Errorf("expected 6 positional arguments, got %d", len(args))
	}

	cfg := config.Defaults()
	var err error
	if cfg.NumNodes, err = strconv.Atoi(args[0]); err != nil {
		return fmt.Errorf("num_nodes: %w", err)
	}
	if cfg.PercentMalicious, err = strconv.Atoi(args[1]); err != nil {
		return fmt.Errorf("percent_malicious: %w", err)
	}
	meanTx, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("mean_tx_iat_ms: %w", err)
	}
	cfg.MeanTxInterArrival = meanTx
	blockIATSeconds, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("block_iat_s: %w", err)
	}
	cfg.BlockInterArrival = blockIATSeconds * 1000
	if cfg.TimerTimeout, err = strconv.ParseInt(args[4], 10, 64); err != nil {
		return fmt.Errorf("timeout_ms: %w", err)
	}
	cfg.OutputDir = args[5]
	cfg.Eclipse = eclipse

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := report.NewLogger(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("selfminer: %w", err)
	}
	defer logger.Close()

	logger.Info("starting simulation",
		"num_nodes", cfg.NumNodes, "percent_malicious", cfg.PercentMalicious,
		"mean_tx_iat_ms", cfg.MeanTxInterArrival, "block_iat_ms", cfg.BlockInterArrival,
		"timeout_ms", cfg.TimerTimeout, "eclipse", cfg.Eclipse, "output_dir", cfg.OutputDir)

	sim, err := simulation.New(&cfg, logger)
	if err != nil {
		return fmt.Errorf("selfminer: %w", err)
	}
	sim.Run()

	commonAdj, commonEdges, maliciousAdj, maliciousEdges := sim.Topology()
	if err := report.WriteNetworkFiles(cfg.OutputDir, commonAdj, commonEdges, maliciousAdj, maliciousEdges); err != nil {
		return fmt.Errorf("selfminer: %w", err)
	}
	if err := report.WriteStats(cfg.OutputDir, sim.Network().Nodes); err != nil {
		return fmt.Errorf("selfminer: %w", err)
	}

	logger.Info("simulation complete")
	return nil
}

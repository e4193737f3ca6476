// Package config holds the fixed experiment constants and parsed CLI
// parameters for a simulator run: a plain struct of named values threaded
// through the rest of the program rather than read back out of a global.
package config

import "fmt"

// Config is the full parameter set for one simulation run. The first block
// of fields comes from the CLI; the second block is the fixed experiment
// constants.
type Config struct {
	NumNodes           int
	PercentMalicious   int
	MeanTxInterArrival int64 // ms
	BlockInterArrival  int64 // ms, already multiplied by 1000 from the CLI's seconds value
	TimerTimeout       int64 // ms
	OutputDir          string
	Eclipse            bool

	MiningReward                 int64
	InitialBalance               int64
	InitialNumberOfTransactions  int
	TxMin                        int64
	TxMax                        int64
	TransactionSizeBits          int64
	HashSizeBits                 int64
	GetMessageSizeBits           int64
	QueuingDelayConstant         float64
	MaximumRetries               int
	PropagationDelayMin          int64
	PropagationDelayMax          int64
	PropagationDelayMaliciousMin int64
	PropagationDelayMaliciousMax int64
	FastBandwidth                int64
	SlowBandwidth                int64
	MitigationEnabled            bool
	MitigationFailureThreshold   int
	Seed                         int64
}

// Defaults returns the fixed experiment constants, leaving the CLI-derived
// fields zero.
func Defaults() Config {
	return Config{
		MiningReward:                 50,
		InitialBalance:               1000,
		InitialNumberOfTransactions:  20000,
		TxMin:                        5,
		TxMax:                        20,
		TransactionSizeBits:          1024 * 8,
		HashSizeBits:                 64 * 8,
		GetMessageSizeBits:           64 * 8,
		QueuingDelayConstant:         96, // 96000 bits per second, in bits/ms
		MaximumRetries:               100,
		PropagationDelayMin:          10,
		PropagationDelayMax:          500,
		PropagationDelayMaliciousMin: 1,
		PropagationDelayMaliciousMax: 10,
		FastBandwidth:                100000,
		SlowBandwidth:                5000,
		MitigationEnabled:            true,
		MitigationFailureThreshold:   10,
		Seed:                         911,
	}
}

// Validate range-checks the CLI-derived fields and returns a user-facing
// error for the first violation found.
func (c Config) Validate() error {
	switch {
	case c.NumNodes < 1:
		return fmt.Errorf("num_nodes must be >= 1, got %d", c.NumNodes)
	case c.PercentMalicious < 0 || c.PercentMalicious > 100:
		return fmt.Errorf("percent_malicious must be in [0, 100], got %d", c.PercentMalicious)
	case c.MeanTxInterArrival <= 0:
		return fmt.Errorf("mean_tx_iat_ms must be > 0, got %d", c.MeanTxInterArrival)
	case c.BlockInterArrival <= 0:
		return fmt.Errorf("block_iat_s must be > 0, got %d", c.BlockInterArrival)
	case c.TimerTimeout <= 0:
		return fmt.Errorf("timeout_ms must be > 0, got %d", c.TimerTimeout)
	case c.OutputDir == "":
		return fmt.Errorf("output_dir must not be empty")
	}
	return nil
}

// Copyright (C) 2015-2020 The Lightning Network Developers

package lnchand

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/blockforge/lnchand/build"
)

const (
	defaultDataDirname = "data"
	defaultLogDirname  = "logs"
	defaultLogFilename = "lnchand.log"
	defaultLogLevel    = "info"

	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	// defaultChannelCommitInterval is the default maximum time between
	// receiving a channel state update and signing a new commitment.
	defaultChannelCommitInterval = 50 * time.Millisecond

	// defaultChannelCommitBatchSize is the default maximum number of
	// channel state updates accumulated before signing a new commitment.
	defaultChannelCommitBatchSize = 10

	// defaultCoopCloseTargetConfs is the default confirmation target used
	// to estimate a fee rate during a cooperative close we didn't
	// initiate.
	defaultCoopCloseTargetConfs = 6

	// defaultRemoteMaxHtlcs is the default limit on the number of
	// concurrent HTLCs the remote party may add to the commitment.
	defaultRemoteMaxHtlcs = 483

	// defaultMaxChannelFeeAllocation is the default ceiling on the
	// fraction of channel capacity the initiator may commit to fees.
	defaultMaxChannelFeeAllocation = 1.0

	// defaultLeaseTable names the Postgres table leaselock.Locker
	// contends for when HA mode is on.
	defaultLeaseTable = "lnchand_lease"
	defaultLeaseID    = "lnchand"
)

var (
	// DefaultLnchandDir is the default directory lnchand stores its data
	// and logs under.
	DefaultLnchandDir = btcutil.AppDataDir("lnchand", false)

	defaultDataDir = filepath.Join(DefaultLnchandDir, defaultDataDirname)
	defaultLogDir  = filepath.Join(DefaultLnchandDir, defaultLogDirname)
)

// Config holds every tunable this daemon reads at startup: where it keeps
// its channel database, how verbosely it logs, which network it's running
// against, the channel policy defaults lnwallet and chanfsm apply to every
// channel, and the Postgres lease-lock parameters from §5. There's no RPC,
// wallet, or peer-transport configuration here — those are §6 external
// collaborators this daemon is wired to, not configuration it owns.
type Config struct {
	LnchandDir string `long:"lnchanddir" description:"The base directory that contains the channel database, logs, and configuration file."`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `long:"datadir" description:"The directory to store the channel database within"`

	DebugLevel     string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,... to set the log level for individual subsystems"`
	LogDir         string `long:"logdir" description:"Directory to log output."`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	Network string `long:"network" description:"The Bitcoin network to validate channel parameters against" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"simnet"`

	MaxPendingChannels      int           `long:"maxpendingchannels" description:"The maximum number of incoming pending channels permitted per peer."`
	DefaultRemoteMaxHtlcs   uint16        `long:"default-remote-max-htlcs" description:"The default max_htlc applied when opening or accepting channels."`
	MaxChannelFeeAllocation float64       `long:"max-channel-fee-allocation" description:"The maximum percentage of total funds that can be allocated to a channel's commitment fee. Valid values are within (0, 1]."`
	CoopCloseTargetConfs    uint32        `long:"coop-close-target-confs" description:"The target number of blocks a cooperative close transaction should confirm in, when we aren't the one initiating the closure."`
	ChannelCommitInterval   time.Duration `long:"channel-commit-interval" description:"The maximum time allowed to pass between receiving a channel state update and signing the next commitment."`
	ChannelCommitBatchSize  uint32        `long:"channel-commit-batch-size" description:"The maximum number of channel state updates accumulated before signing a new commitment."`

	HAEnabled bool   `long:"ha.enabled" description:"If true, acquire a Postgres lease lock before opening the channel database, and keep renewing it for as long as the daemon runs."`
	HADSN     string `long:"ha.dsn" description:"Postgres connection string for the lease lock table, required when ha.enabled is set."`
	HATable   string `long:"ha.table" description:"Postgres table backing the lease row"`
	HAID      string `long:"ha.id" description:"Identifies the lease row this instance contends for; every replica of the same node must set the same value."`

	// LogWriter is the root logger every subsystem logger is hooked up
	// to.
	LogWriter *build.RotatingLogWriter

	// activeNetParams is resolved from Network by ValidateConfig.
	activeNetParams *chaincfg.Params
}

// DefaultConfig returns a Config populated with sane defaults.
func DefaultConfig() Config {
	return Config{
		LnchandDir:              DefaultLnchandDir,
		DataDir:                 defaultDataDir,
		DebugLevel:              defaultLogLevel,
		LogDir:                  defaultLogDir,
		MaxLogFiles:             defaultMaxLogFiles,
		MaxLogFileSize:          defaultMaxLogFileSize,
		Network:                 "testnet",
		DefaultRemoteMaxHtlcs:   defaultRemoteMaxHtlcs,
		MaxChannelFeeAllocation: defaultMaxChannelFeeAllocation,
		CoopCloseTargetConfs:    defaultCoopCloseTargetConfs,
		ChannelCommitInterval:   defaultChannelCommitInterval,
		ChannelCommitBatchSize:  defaultChannelCommitBatchSize,
		HATable:                 defaultLeaseTable,
		HAID:                    defaultLeaseID,
		LogWriter:               build.NewRotatingLogWriter(),
	}
}

// LoadConfig parses the config file (if any) and command line flags into a
// validated Config, following the teacher's own precedence: defaults, then
// config file, then command line flags override both.
func LoadConfig() (*Config, error) {
	preCfg := DefaultConfig()
	if _, err := flags.Parse(&preCfg); err != nil {
		return nil, err
	}

	cfg := preCfg
	configFilePath := preCfg.ConfigFile
	if configFilePath == "" {
		configFilePath = filepath.Join(preCfg.LnchandDir, "lnchand.conf")
	}
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		if _, ok := err.(*flags.IniError); ok {
			return nil, err
		}
	}

	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	return ValidateConfig(cfg)
}

// ValidateConfig sanity-checks cfg and resolves its derived fields.
func ValidateConfig(cfg Config) (*Config, error) {
	if cfg.MaxChannelFeeAllocation <= 0 || cfg.MaxChannelFeeAllocation > 1 {
		return nil, fmt.Errorf("invalid max channel fee allocation: "+
			"%v, must be within (0, 1]", cfg.MaxChannelFeeAllocation)
	}

	switch cfg.Network {
	case "mainnet":
		cfg.activeNetParams = &chaincfg.MainNetParams
	case "testnet", "":
		cfg.activeNetParams = &chaincfg.TestNet3Params
	case "regtest":
		cfg.activeNetParams = &chaincfg.RegressionNetParams
	case "simnet":
		cfg.activeNetParams = &chaincfg.SimNetParams
	default:
		return nil, fmt.Errorf("unknown network %q", cfg.Network)
	}

	if cfg.HAEnabled && cfg.HADSN == "" {
		return nil, fmt.Errorf("ha.dsn is required when ha.enabled is set")
	}

	for _, dir := range []string{cfg.LnchandDir, cfg.DataDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("unable to create %v: %w", dir, err)
		}
	}

	return &cfg, nil
}

// ActiveNetParams returns the chain parameters ValidateConfig resolved from
// Network.
func (c *Config) ActiveNetParams() *chaincfg.Params {
	return c.activeNetParams
}

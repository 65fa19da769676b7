package lnchand

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/blockforge/lnchand/chanfsm"
	"github.com/blockforge/lnchand/channeldb"
	"github.com/blockforge/lnchand/contractcourt"
	"github.com/blockforge/lnchand/input"
	"github.com/blockforge/lnchand/leaselock"
	"github.com/blockforge/lnchand/lnwallet"
	"github.com/blockforge/lnchand/signal"
)

// ImplementationCfg bundles the §6 external collaborators this daemon
// never implements itself: the signer behind every channel's keys, the
// chain backend's watch/publish surface, and a source of fresh sweep
// addresses for the closure handler's claim transactions. Whoever embeds
// this daemon — a remote signer, a full node RPC client, a wallet
// process — supplies a concrete ImplementationCfg; lnchand only ever
// consumes these through the narrow interfaces contractcourt and
// lnwallet already declare. Grounded on the teacher's own lnd.go, which
// bundles the equivalent chain-control/wallet pieces into an
// ImplementationCfg passed into Main rather than constructing them
// itself.
type ImplementationCfg struct {
	Signer       input.Signer
	Watcher      contractcourt.ChainWatcher
	Publisher    contractcourt.TxPublisher
	SweepAddress func() ([]byte, error)
}

// channelRuntime pairs one open channel's state machine with the closure
// handler that takes over once the machine emits a BroadcastTx or
// NotifyClosure effect.
type channelRuntime struct {
	machine *chanfsm.Machine
	handler *contractcourt.ClosureHandler
}

// Main opens the channel database, restores a Machine and ClosureHandler
// for every channel found open in it, and runs until signal.ShutdownChannel
// closes. It returns once every restored channel's Machine has stopped.
func Main(cfg *Config, implCfg *ImplementationCfg) error {
	if implCfg == nil || implCfg.Signer == nil || implCfg.Watcher == nil ||
		implCfg.Publisher == nil {

		return fmt.Errorf("lnchand: signer, chain watcher, and tx " +
			"publisher must be supplied by the wallet/chain-" +
			"backend integration before Main can run")
	}

	logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
	if err := initLogRotator(cfg, logFile); err != nil {
		return fmt.Errorf("unable to initialize log rotator: %w", err)
	}
	setLogLevels(cfg.DebugLevel)

	if cfg.HAEnabled {
		unlock, err := acquireLease(cfg)
		if err != nil {
			return err
		}
		defer unlock()
	}

	db, err := channeldb.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("unable to open channel database: %w", err)
	}
	defer db.Close()

	channels, err := db.FetchAllChannels()
	if err != nil {
		return fmt.Errorf("unable to fetch open channels: %w", err)
	}

	sigPool := lnwallet.NewSigPool(runtime.NumCPU(), implCfg.Signer)
	if err := sigPool.Start(); err != nil {
		return fmt.Errorf("unable to start signature pool: %w", err)
	}
	defer sigPool.Stop()

	feePolicy := chanfsm.FeePolicy{
		MinRelayFeePerKw:    253,
		ToleranceMultiplier: 10,
	}

	runtimes := make([]*channelRuntime, 0, len(channels))
	for _, oc := range channels {
		rt, err := startChannel(oc, implCfg, sigPool, feePolicy)
		if err != nil {
			return fmt.Errorf("unable to restore channel %v: %w",
				oc.FundingOutpoint, err)
		}

		runtimes = append(runtimes, rt)
		go rt.run()
	}

	lnchLog.Infof("lnchand ready, restored %d channel(s)", len(runtimes))

	<-signal.ShutdownChannel()

	lnchLog.Infof("shutting down, stopping %d channel(s)", len(runtimes))
	for _, rt := range runtimes {
		rt.machine.Stop()
	}

	return nil
}

// startChannel restores a single persisted channel: it rebuilds the
// lnwallet.LightningChannel from its two most recent commitments, starts
// a Machine for it in the Normal state (a channel persisted as open has
// already completed funding, per §4.3's lifecycle), and constructs its
// closure handler.
func startChannel(oc *channeldb.OpenChannel, implCfg *ImplementationCfg,
	sigPool *lnwallet.SigPool,
	feePolicy chanfsm.FeePolicy) (*channelRuntime, error) {

	channel, err := lnwallet.NewLightningChannel(
		implCfg.Signer, oc, sigPool,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to build commitment engine: %w",
			err)
	}

	handler, err := contractcourt.NewClosureHandler(
		oc, oc.ChanType, implCfg.Watcher, implCfg.Publisher,
		implCfg.Signer, implCfg.SweepAddress,
		make(map[[32]byte][32]byte), contractcourtLogger(),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to construct closure handler: %w",
			err)
	}

	machine := chanfsm.NewMachine(
		oc, channel, chanfsm.Normal, feePolicy, chanfsmLogger(),
	)
	machine.Start()

	return &channelRuntime{machine: machine, handler: handler}, nil
}

// run drains one channel's effects for as long as its Machine is alive,
// handing BroadcastTx and NotifyClosure off to the closure handler.
// SendMessage and CompleteCommand are the peer transport's and the local
// caller's concerns — neither is something this daemon owns, per §6.
func (rt *channelRuntime) run() {
	for effect := range rt.machine.Effects() {
		switch e := effect.(type) {
		case chanfsm.BroadcastTx:
			if err := rt.handler.HandleBroadcast(e.Tx); err != nil {
				lnchLog.Errorf("unable to broadcast closing "+
					"tx: %v", err)
			}

		case chanfsm.NotifyClosure:
			if err := rt.handler.HandleClosure(e); err != nil {
				lnchLog.Errorf("unable to hand off closure: %v",
					err)
			}
		}
	}
}

// acquireLease connects to cfg.HADSN, acquires the §5 lease lock, and
// starts its renewal loop. The returned unlock func stops the renewal
// loop and closes the pool; callers defer it unconditionally.
func acquireLease(cfg *Config) (func(), error) {
	ctx := context.Background()

	pool, err := pgxpool.Connect(ctx, cfg.HADSN)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to ha.dsn: %w", err)
	}

	lock, err := leaselock.New(pool, leaselock.Config{
		Table: cfg.HATable,
		ID:    cfg.HAID,
		Log:   leaselockLogger(),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to construct lease lock: %w", err)
	}

	if err := lock.Acquire(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to acquire lease lock: %w", err)
	}

	if err := lock.Start(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to start lease renewal: %w", err)
	}

	unlock := func() {
		lock.Stop()
		pool.Close()
	}

	return unlock, nil
}

package contractcourt

import (
	"fmt"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/blockforge/lnchand/chanfsm"
	"github.com/blockforge/lnchand/channeldb"
	"github.com/blockforge/lnchand/input"
	"github.com/blockforge/lnchand/lnwire"
)

// ClosureHandler is the single entry point into §4.4's post-broadcast
// half: one per open channel, it consumes the BroadcastTx and
// NotifyClosure effects chanfsm.Machine emits and dispatches to whichever
// of Nursery or BreachWatcher the close reason calls for. chanfsm owns
// everything up to and including broadcasting a closing transaction;
// ClosureHandler owns everything from there on.
type ClosureHandler struct {
	chanType lnwire.CommitmentType

	publisher TxPublisher
	nursery   *Nursery
	breach    *BreachWatcher

	preimages map[[32]byte][32]byte
	log       btclog.Logger
}

// NewClosureHandler constructs a ClosureHandler for chanState and starts
// its nursery's block-watching goroutine. preimages supplies the payment
// preimage for every settled incoming HTLC this channel holds — callers
// keep it current as HTLCs settle, the same map fed to Nursery.
func NewClosureHandler(chanState *channeldb.OpenChannel,
	chanType lnwire.CommitmentType, watcher ChainWatcher,
	publisher TxPublisher, signer input.Signer,
	sweepAddr func() ([]byte, error), preimages map[[32]byte][32]byte,
	log btclog.Logger) (*ClosureHandler, error) {

	nursery := NewNursery(watcher, publisher, signer, sweepAddr, log)
	if err := nursery.Start(); err != nil {
		return nil, fmt.Errorf("unable to start nursery: %w", err)
	}

	return &ClosureHandler{
		chanType:  chanType,
		publisher: publisher,
		nursery:   nursery,
		breach: NewBreachWatcher(
			chanState, watcher, publisher, signer, sweepAddr, log,
		),
		preimages: preimages,
		log:       log,
	}, nil
}

// WatchBreach blocks until the channel's funding outpoint is spent,
// independent of any chanfsm effect: a revoked commitment can surface on
// chain at any time, not just when the state machine itself notices the
// spend. Callers run this in its own goroutine from the moment the
// channel is funded, with expectedCloseTxid nil until a mutual or force
// close is actually in flight (at which point the goroutine should be
// restarted with the now-known txid, so an expected close isn't mistaken
// for a breach). It returns nil once the spend turns out to be the
// expected close, or after broadcasting the justice transaction if not —
// either way the channel is closed and there's nothing left to watch.
func (h *ClosureHandler) WatchBreach(expectedCloseTxid *chainhash.Hash) error {
	return h.breach.Watch(expectedCloseTxid)
}

// HandleBroadcast publishes a chanfsm.BroadcastTx effect's transaction.
func (h *ClosureHandler) HandleBroadcast(tx *wire.MsgTx) error {
	return h.publisher.PublishTransaction(tx)
}

// HandleClosure dispatches on closure.Reason, the counterpart to every
// chanfsm.NotifyClosure effect.
func (h *ClosureHandler) HandleClosure(closure chanfsm.NotifyClosure) error {
	switch closure.Reason {
	case chanfsm.CloseMutual, chanfsm.CloseOpenTimeout:
		// A mutual close pays both parties directly in the closing
		// transaction itself, and an open-timeout abandons a channel
		// that was never funded — neither leaves anything to claim.
		return nil

	case chanfsm.CloseForce, chanfsm.CloseUnilateralLocal:
		if closure.ForceClose == nil || closure.ForceClose.CloseTx == nil {
			return fmt.Errorf("missing force-close summary for "+
				"reason %v", closure.Reason)
		}
		commitTxid := closure.ForceClose.CloseTx.TxHash()
		return h.nursery.IncubateForceClose(
			&commitTxid, h.chanType, closure.ForceClose, h.preimages,
		)

	case chanfsm.CloseUnilateralRemote:
		if closure.ForceClose == nil || closure.ForceClose.CloseTx == nil {
			return fmt.Errorf("missing force-close summary for " +
				"unilateral remote close")
		}
		commitTxid := closure.ForceClose.CloseTx.TxHash()
		return h.nursery.IncubateRemoteClose(
			&commitTxid, h.chanType, closure.ForceClose, h.preimages,
		)

	case chanfsm.CloseBreach:
		// The breach path runs continuously via WatchBreach, not
		// triggered by this effect.
		return nil

	default:
		return fmt.Errorf("unknown close reason %v", closure.Reason)
	}
}

// Stop halts the nursery's block-watching goroutine. The breach watcher
// has nothing to stop: Watch returns on its own once the funding outpoint
// is spent, which a closed channel's outpoint always eventually is.
func (h *ClosureHandler) Stop() {
	h.nursery.Stop()
}

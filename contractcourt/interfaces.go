// Package contractcourt implements the post-broadcast half of §4.4's
// closure handler: once chanfsm has broadcast a mutual-close or
// force-close transaction, or detected that the counterparty broadcast a
// revoked commitment, everything from confirmation-watching through
// claim-transaction scheduling happens here.
package contractcourt

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ConfirmationEvent is delivered once a transaction registered via
// ChainWatcher.WatchConfirmed reaches its requested depth, per §6's
// "Blockchain watcher ... delivers WatchEventConfirmed(txid, block_height,
// tx)". Confirmed is closed (not sent on) if the watcher shuts down before
// the transaction confirms.
type ConfirmationEvent struct {
	Confirmed chan *ConfirmationDetail
}

// ConfirmationDetail carries the confirming height and the transaction
// itself.
type ConfirmationDetail struct {
	Tx          *wire.MsgTx
	BlockHeight uint32
}

// SpendEvent is delivered once the watched outpoint is spent on chain, per
// §6's "delivers ... WatchEventSpent(outpoint, spending_tx)".
type SpendEvent struct {
	Spend chan *SpendDetail
}

// SpendDetail carries the spending transaction and the height it confirmed
// in.
type SpendDetail struct {
	SpendingTx  *wire.MsgTx
	SpenderTxHash *chainhash.Hash
	BlockHeight uint32
}

// ChainWatcher is the §6 "Blockchain watcher" external collaborator:
// WatchConfirmed(txid, min_depth, hint) and WatchSpent(outpoint, script),
// each returning the channel on which the corresponding event eventually
// arrives. contractcourt never implements this itself — it's provided by
// the chain backend, grounded on chainntnfs.ChainNotifier's
// RegisterConfirmationsNtfn/RegisterSpendNtfn/RegisterBlockEpochNtfn shape
// (breacharbiter.go, utxonursery.go, witness_beacon.go) but narrowed to
// the two operations §6 names plus a block-epoch subscription.
type ChainWatcher interface {
	// WatchConfirmed registers for a notification once txid reaches
	// minDepth confirmations. pkScript is a hint used by light clients
	// to locate the transaction; full-node backends may ignore it.
	WatchConfirmed(txid *chainhash.Hash, pkScript []byte,
		minDepth uint32) (*ConfirmationEvent, error)

	// WatchSpent registers for a notification once outpoint is spent,
	// scanning for scripts matching pkScript.
	WatchSpent(outpoint wire.OutPoint, pkScript []byte) (*SpendEvent, error)

	// RegisterBlockEpochs returns a channel that receives every new
	// block height as it connects, used to drive output-maturity
	// scheduling in nursery.go.
	RegisterBlockEpochs() (<-chan int32, func(), error)
}

// TxPublisher broadcasts a fully signed transaction to the network. This is
// the closure handler's side of §6's on-chain wallet collaborator — grounded
// on lnwallet.WalletController.PublishTransaction / LightningWallet
// .PublishTransaction's role in breacharbiter.go/utxonursery.go, narrowed to
// the one capability contractcourt itself needs.
type TxPublisher interface {
	PublishTransaction(tx *wire.MsgTx) error
}

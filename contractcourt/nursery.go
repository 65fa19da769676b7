package contractcourt

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/blockforge/lnchand/input"
	"github.com/blockforge/lnchand/lnwallet"
	"github.com/blockforge/lnchand/lnwire"
)

// sweepFeeSatoshis is the flat fee subtracted from a sweep transaction's
// output. §4.4 doesn't specify a fee-estimation policy for claim
// transactions beyond the penalty tx's "may be repeatedly re-fee-bumped";
// nursery sweeps use a fixed fee the same way utxoNursery.createSweepTx
// does, rather than inventing an estimator this package has no feerate
// source for.
const sweepFeeSatoshis = btcutil.Amount(5000)

// witnessGenerator produces the final witness for a claim transaction's
// single input, deferred until the transaction (and therefore its sighash)
// is fully assembled.
type witnessGenerator func(tx *wire.MsgTx, hc *txscript.TxSigHashes,
	inputIndex int) (wire.TxWitness, error)

// maturingOutput is a claimable output on our own force-closed commitment
// (or on a second-level HTLC transaction descending from it) that isn't
// spendable yet because its CSV delay hasn't elapsed.
type maturingOutput struct {
	outPoint    wire.OutPoint
	amt         btcutil.Amount
	witnessFunc witnessGenerator

	csvDelay       uint32
	confHeight     uint32
	maturityHeight uint32
}

// Nursery incubates the outputs of a commitment transaction we
// unilaterally broadcast until each matures, then sweeps it into the
// wallet, per §4.4's "Unilateral close — our commitment" paragraph.
// Grounded on utxonursery.go's incubator/createSweepTx shape, extended to
// drive the two-stage HTLC-timeout/success resolutions (the teacher's
// version only ever handled the single to_local output) and to depend on
// ChainWatcher/TxPublisher rather than a concrete *lnwallet.LightningWallet.
type Nursery struct {
	watcher   ChainWatcher
	publisher TxPublisher
	signer    input.Signer
	sweepAddr func() ([]byte, error)
	log       btclog.Logger

	mu      sync.Mutex
	pending map[wire.OutPoint]*maturingOutput

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewNursery constructs a Nursery. sweepAddr supplies a fresh wallet
// pkScript for each sweep transaction's output.
func NewNursery(watcher ChainWatcher, publisher TxPublisher,
	signer input.Signer, sweepAddr func() ([]byte, error),
	log btclog.Logger) *Nursery {

	return &Nursery{
		watcher:   watcher,
		publisher: publisher,
		signer:    signer,
		sweepAddr: sweepAddr,
		log:       log,
		pending:   make(map[wire.OutPoint]*maturingOutput),
		quit:      make(chan struct{}),
	}
}

// Start launches the block-watching goroutine that sweeps outputs as they
// mature.
func (n *Nursery) Start() error {
	epochs, cancel, err := n.watcher.RegisterBlockEpochs()
	if err != nil {
		return err
	}

	n.wg.Add(1)
	go n.incubator(epochs, cancel)

	return nil
}

// Stop signals the nursery's block-watching goroutine to exit.
func (n *Nursery) Stop() {
	close(n.quit)
	n.wg.Wait()
}

func (n *Nursery) incubator(epochs <-chan int32, cancel func()) {
	defer n.wg.Done()
	defer cancel()

	for {
		select {
		case height, ok := <-epochs:
			if !ok {
				return
			}
			n.sweepMatured(uint32(height))
		case <-n.quit:
			return
		}
	}
}

func (n *Nursery) sweepMatured(height uint32) {
	n.mu.Lock()
	var mature []*maturingOutput
	for op, out := range n.pending {
		if out.maturityHeight != 0 && out.maturityHeight <= height {
			mature = append(mature, out)
			delete(n.pending, op)
		}
	}
	n.mu.Unlock()

	if len(mature) == 0 {
		return
	}

	sweepTx, err := n.createSweepTx(mature)
	if err != nil {
		n.log.Errorf("unable to create sweep tx: %v", err)
		return
	}

	if err := n.publisher.PublishTransaction(sweepTx); err != nil {
		n.log.Errorf("unable to broadcast sweep tx: %v", err)
	}
}

func (n *Nursery) createSweepTx(outputs []*maturingOutput) (*wire.MsgTx, error) {
	pkScript, err := n.sweepAddr()
	if err != nil {
		return nil, err
	}

	var total btcutil.Amount
	for _, o := range outputs {
		total += o.amt
	}
	if total <= sweepFeeSatoshis {
		return nil, fmt.Errorf("swept amount %v does not cover fee", total)
	}

	sweepTx := wire.NewMsgTx(2)
	sweepTx.AddTxOut(&wire.TxOut{
		PkScript: pkScript,
		Value:    int64(total - sweepFeeSatoshis),
	})
	prevOuts := txscript.NewMultiPrevOutFetcher(nil)
	for _, o := range outputs {
		sweepTx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: o.outPoint,
			Sequence:         o.csvDelay,
		})
		prevOuts.AddPrevOut(o.outPoint, &wire.TxOut{
			Value: int64(o.amt),
		})
	}

	hashCache := txscript.NewTxSigHashes(sweepTx, prevOuts)
	for i, o := range outputs {
		witness, err := o.witnessFunc(sweepTx, hashCache, i)
		if err != nil {
			return nil, err
		}
		sweepTx.TxIn[i].Witness = witness
	}

	return sweepTx, nil
}

// trackCsvOutput registers outPoint for a confirmation of txid; once
// confirmed, its CSV delay is added to the confirming height and it's
// tracked for sweeping once that height is reached.
func (n *Nursery) trackCsvOutput(txid *chainhash.Hash, pkScript []byte,
	out *maturingOutput) error {

	confEvent, err := n.watcher.WatchConfirmed(txid, pkScript, 1)
	if err != nil {
		return err
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		select {
		case detail, ok := <-confEvent.Confirmed:
			if !ok {
				return
			}
			out.maturityHeight = detail.BlockHeight + out.csvDelay

			n.mu.Lock()
			n.pending[out.outPoint] = out
			n.mu.Unlock()
		case <-n.quit:
		}
	}()

	return nil
}

// IncubateForceClose begins tracking every claimable output of our own
// force-closed commitment, per §4.4's "Unilateral close — our commitment"
// paragraph: to_local after the to-self-delay, an HTLC-timeout transaction
// for each offered HTLC after its CLTV, and an HTLC-success transaction for
// each received HTLC whose preimage we hold. commitTxid is the already-
// broadcast commitment transaction's hash, needed to watch for its own
// confirmation before the to_local CSV clock starts.
func (n *Nursery) IncubateForceClose(commitTxid *chainhash.Hash,
	chanType lnwire.CommitmentType, summary *lnwallet.ForceCloseSummary,
	preimages map[[32]byte][32]byte) error {

	if summary.CommitResolution != nil {
		if err := n.trackToLocal(commitTxid, summary.CommitResolution); err != nil {
			return fmt.Errorf("to_local: %w", err)
		}
	}

	for _, htlc := range summary.OutgoingHtlcResolutions {
		if err := n.sweepOutgoingHtlc(chanType, htlc); err != nil {
			return fmt.Errorf("outgoing htlc %v: %w", htlc.HtlcIndex, err)
		}
	}

	for _, htlc := range summary.IncomingHtlcResolutions {
		preimage, ok := preimages[htlc.RHash]
		if !ok {
			// We don't know the preimage for this HTLC yet; only
			// the sender can claim it now, via their own CLTV
			// timeout path — not our concern until we learn it.
			continue
		}
		if err := n.sweepIncomingHtlc(chanType, htlc, preimage); err != nil {
			return fmt.Errorf("incoming htlc %v: %w", htlc.HtlcIndex, err)
		}
	}

	return nil
}

// IncubateRemoteClose begins tracking the claimable outputs of the
// counterparty's own (non-revoked) commitment transaction, per §4.4's
// "Unilateral close — their commitment" paragraph: our to_remote output,
// spendable immediately with no relative delay once the commitment
// confirms, and an HTLC-success transaction for each HTLC they offered us
// whose preimage we hold.
func (n *Nursery) IncubateRemoteClose(commitTxid *chainhash.Hash,
	chanType lnwire.CommitmentType, summary *lnwallet.ForceCloseSummary,
	preimages map[[32]byte][32]byte) error {

	if summary.CommitResolution != nil {
		if err := n.trackToRemote(commitTxid, summary.CommitResolution); err != nil {
			return fmt.Errorf("to_remote: %w", err)
		}
	}

	for _, htlc := range summary.IncomingHtlcResolutions {
		preimage, ok := preimages[htlc.RHash]
		if !ok {
			continue
		}
		if err := n.sweepIncomingHtlc(chanType, htlc, preimage); err != nil {
			return fmt.Errorf("incoming htlc %v: %w", htlc.HtlcIndex, err)
		}
	}

	return nil
}

func (n *Nursery) trackToRemote(commitTxid *chainhash.Hash,
	res *lnwallet.CommitOutputResolution) error {

	signDesc := res.SelfOutputSignDesc
	witnessFunc := func(tx *wire.MsgTx, hc *txscript.TxSigHashes,
		idx int) (wire.TxWitness, error) {

		desc := signDesc
		desc.SigHashes = hc
		desc.InputIndex = idx
		return input.CommitSpendNoDelay(n.signer, &desc, tx)
	}

	out := &maturingOutput{
		outPoint:    res.SelfOutPoint,
		amt:         btcutil.Amount(signDesc.Output.Value),
		witnessFunc: witnessFunc,
		csvDelay:    0,
	}

	return n.trackCsvOutput(commitTxid, signDesc.Output.PkScript, out)
}

func (n *Nursery) trackToLocal(commitTxid *chainhash.Hash,
	res *lnwallet.CommitOutputResolution) error {

	signDesc := res.SelfOutputSignDesc
	witnessFunc := func(tx *wire.MsgTx, hc *txscript.TxSigHashes,
		idx int) (wire.TxWitness, error) {

		desc := signDesc
		desc.SigHashes = hc
		desc.InputIndex = idx
		return input.CommitSpendTimeout(n.signer, &desc, tx)
	}

	out := &maturingOutput{
		outPoint:    res.SelfOutPoint,
		amt:         btcutil.Amount(signDesc.Output.Value),
		witnessFunc: witnessFunc,
		csvDelay:    res.MaturityDelay,
	}

	return n.trackCsvOutput(commitTxid, signDesc.Output.PkScript, out)
}

// sweepOutgoingHtlc broadcasts the HTLC-timeout second-level transaction —
// valid once its own locktime (the HTLC's CLTV) passes — then tracks its
// lone output for the CSV delay that follows, per §4.4.
func (n *Nursery) sweepOutgoingHtlc(chanType lnwire.CommitmentType,
	htlc lnwallet.OutgoingHtlcResolution) error {

	htlcAmt := btcutil.Amount(htlc.SignDetails.Output.Value)

	if len(htlc.CounterpartySig) == 0 {
		return fmt.Errorf("no counterparty signature persisted for "+
			"htlc index %d, can't spend its second-level covenant",
			htlc.HtlcIndex)
	}

	timeoutTx, err := lnwallet.CreateHtlcTimeoutTx(
		chanType, htlc.HtlcOutpoint, htlcAmt, htlc.Expiry,
		htlc.CsvDelay, htlc.RevocationKey, htlc.DelayKey,
	)
	if err != nil {
		return err
	}

	signDesc := htlc.SignDetails
	timeoutPrevOuts := txscript.NewCannedPrevOutputFetcher(
		signDesc.Output.PkScript, signDesc.Output.Value,
	)
	signDesc.SigHashes = txscript.NewTxSigHashes(timeoutTx, timeoutPrevOuts)
	signDesc.InputIndex = 0

	// The HTLC-timeout transaction spends a 2-of-2 covenant output: our
	// own signature plus the remote party's, persisted at the time they
	// signed our commitment (see lnwallet.ReceiveNewCommitment).
	witness, err := input.SenderHtlcSpendTimeout(
		htlc.CounterpartySig, n.signer, &signDesc, timeoutTx,
	)
	if err != nil {
		return err
	}
	timeoutTx.TxIn[0].Witness = witness

	if err := n.publisher.PublishTransaction(timeoutTx); err != nil {
		return err
	}

	sweepSignDesc := input.SignDescriptor{
		KeyDesc:       htlc.SignDetails.KeyDesc,
		SingleTweak:   htlc.SignDetails.SingleTweak,
		WitnessScript: timeoutTx.TxOut[0].PkScript,
		Output:        timeoutTx.TxOut[0],
		HashType:      signDesc.HashType,
	}
	witnessFunc := func(tx *wire.MsgTx, hc *txscript.TxSigHashes,
		idx int) (wire.TxWitness, error) {

		desc := sweepSignDesc
		desc.SigHashes = hc
		desc.InputIndex = idx
		return input.HtlcSecondLevelSpend(n.signer, &desc, tx)
	}

	out := &maturingOutput{
		outPoint:    wire.OutPoint{Hash: timeoutTx.TxHash(), Index: 0},
		amt:         htcOutputAmt(timeoutTx),
		witnessFunc: witnessFunc,
		csvDelay:    htlc.CsvDelay,
	}

	txid := timeoutTx.TxHash()
	return n.trackCsvOutput(&txid, timeoutTx.TxOut[0].PkScript, out)
}

// sweepIncomingHtlc broadcasts the HTLC-success second-level transaction —
// spendable immediately given preimage — then tracks its lone output for
// the CSV delay that follows.
func (n *Nursery) sweepIncomingHtlc(chanType lnwire.CommitmentType,
	htlc lnwallet.IncomingHtlcResolution, preimage [32]byte) error {

	htlcAmt := btcutil.Amount(htlc.SignDetails.Output.Value)

	if len(htlc.CounterpartySig) == 0 {
		return fmt.Errorf("no counterparty signature persisted for "+
			"htlc index %d, can't spend its second-level covenant",
			htlc.HtlcIndex)
	}

	successTx, err := lnwallet.CreateHtlcSuccessTx(
		chanType, htlc.HtlcOutpoint, htlcAmt, htlc.CsvDelay,
		htlc.RevocationKey, htlc.DelayKey,
	)
	if err != nil {
		return err
	}

	signDesc := htlc.SignDetails
	successPrevOuts := txscript.NewCannedPrevOutputFetcher(
		signDesc.Output.PkScript, signDesc.Output.Value,
	)
	signDesc.SigHashes = txscript.NewTxSigHashes(successTx, successPrevOuts)
	signDesc.InputIndex = 0

	// Symmetric to the outgoing case: the remote party's signature over
	// this transaction was persisted when they signed our commitment.
	witness, err := input.ReceiverHtlcSpendRedeem(
		htlc.CounterpartySig, preimage[:], n.signer, &signDesc, successTx,
	)
	if err != nil {
		return err
	}
	successTx.TxIn[0].Witness = witness

	if err := n.publisher.PublishTransaction(successTx); err != nil {
		return err
	}

	sweepSignDesc := input.SignDescriptor{
		KeyDesc:       htlc.SignDetails.KeyDesc,
		SingleTweak:   htlc.SignDetails.SingleTweak,
		WitnessScript: successTx.TxOut[0].PkScript,
		Output:        successTx.TxOut[0],
		HashType:      signDesc.HashType,
	}
	witnessFunc := func(tx *wire.MsgTx, hc *txscript.TxSigHashes,
		idx int) (wire.TxWitness, error) {

		desc := sweepSignDesc
		desc.SigHashes = hc
		desc.InputIndex = idx
		return input.HtlcSecondLevelSpend(n.signer, &desc, tx)
	}

	out := &maturingOutput{
		outPoint:    wire.OutPoint{Hash: successTx.TxHash(), Index: 0},
		amt:         htcOutputAmt(successTx),
		witnessFunc: witnessFunc,
		csvDelay:    htlc.CsvDelay,
	}

	txid := successTx.TxHash()
	return n.trackCsvOutput(&txid, successTx.TxOut[0].PkScript, out)
}

func htcOutputAmt(tx *wire.MsgTx) btcutil.Amount {
	return btcutil.Amount(tx.TxOut[0].Value)
}

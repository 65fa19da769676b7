package lnwallet

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/txsort"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/blockforge/lnchand/channeldb"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/blockforge/lnchand/input"
	"github.com/blockforge/lnchand/lnwire"
)

// updateType is the type of an entry in a channel's update log: an offered
// HTLC, or a settle/fail/fee-update that resolves one already offered.
type updateType uint8

const (
	// Add is an offered HTLC.
	Add updateType = iota

	// Fail is an HTLC failure, removing a previously added HTLC from the
	// opposite party's log.
	Fail

	// MalformedFail is an HTLC failure caused by a malformed onion
	// packet, carried with its own error code rather than an encrypted
	// failure blob.
	MalformedFail

	// Settle reveals the preimage for a previously added HTLC, removing
	// it from the opposite party's log.
	Settle

	// FeeUpdate adjusts the commitment feerate going forward. Unlike the
	// other types it has no parent HTLC.
	FeeUpdate
)

// String returns the name of an updateType.
func (u updateType) String() string {
	switch u {
	case Add:
		return "Add"
	case Fail:
		return "Fail"
	case MalformedFail:
		return "MalformedFail"
	case Settle:
		return "Settle"
	case FeeUpdate:
		return "FeeUpdate"
	default:
		return "Unknown"
	}
}

// PaymentDescriptor houses every piece of data a single entry in a channel's
// update log needs: either a new HTLC offer, or the settle/fail/fee-update
// that resolves one. It doubles as the wire-level intent (what was sent) and
// the bookkeeping record (when it locked into each chain).
type PaymentDescriptor struct {
	// RHash is the payment hash this HTLC is conditioned on. Populated
	// for Add entries.
	RHash [32]byte

	// RPreimage is the preimage revealed by a Settle entry.
	RPreimage [32]byte

	// Timeout is the CLTV expiry height of an offered HTLC.
	Timeout uint32

	// Amount is the value, in millisatoshi, of an offered HTLC.
	Amount lnwire.MilliSatoshi

	// EntryType classifies this log entry.
	EntryType updateType

	// HtlcIndex is the index, from the adder's update log, of the HTLC
	// this entry concerns. For an Add entry this is its own index; for a
	// Settle/Fail it is the index of the HTLC it resolves.
	HtlcIndex uint64

	// LogIndex is this entry's own position in the update log it was
	// appended to.
	LogIndex uint64

	// ParentIndex is the HtlcIndex of the Add entry that a Settle/Fail
	// resolves, within the opposite log.
	ParentIndex uint64

	// OnionBlob is the onion-routing packet carried by an Add entry.
	OnionBlob [lnwire.OnionPacketSize]byte

	// FailReason carries the encrypted failure blob of a Fail entry.
	FailReason []byte

	// addCommitHeightRemote and addCommitHeightLocal record the
	// CommitHeight at which an Add entry first locked into the remote,
	// respectively local, commitment chain. Zero means "not yet locked
	// in".
	addCommitHeightRemote uint64
	addCommitHeightLocal  uint64

	// removeCommitHeightRemote and removeCommitHeightLocal record the
	// CommitHeight at which a Settle/Fail/FeeUpdate entry first locked
	// into the remote, respectively local, commitment chain.
	removeCommitHeightRemote uint64
	removeCommitHeightLocal  uint64

	// localOutputIndex and remoteOutputIndex are this HTLC's output
	// index on the local, respectively remote, commitment transaction
	// that includes it, or -1 if trimmed as dust.
	localOutputIndex  int32
	remoteOutputIndex int32
}

// commitment represents one node's version of a pending or active
// commitment state, as tracked by a commitmentChain. It carries everything
// needed to re-derive the signed transaction and its HTLC outputs without
// re-walking the update logs.
type commitment struct {
	height uint64

	// isOurs is true if this is our version of the commitment
	// transaction, signed by the remote party, false if it's the
	// counterparty's, signed by us.
	isOurs bool

	ourBalance   lnwire.MilliSatoshi
	theirBalance lnwire.MilliSatoshi

	feePerKw btcutil.Amount
	fee      btcutil.Amount

	txn *wire.MsgTx
	sig []byte

	// htlcs is the set of in-flight HTLCs, with their output index on
	// txn already resolved (-1 if trimmed).
	htlcs []channeldb.HTLC

	// outgoingHTLCs and incomingHTLCs are the PaymentDescriptors backing
	// htlcs, retained so the log-height bookkeeping can be updated once
	// this commitment is signed, and later revoked.
	outgoingHTLCs []*PaymentDescriptor
	incomingHTLCs []*PaymentDescriptor

	// ourMessageIndex/theirMessageIndex freeze the log indices, from each
	// update log, that this commitment's balances already reflect.
	ourMessageIndex   uint64
	theirMessageIndex uint64
}

// toChannelCommitment converts a commitment into its persisted form.
func (c *commitment) toChannelCommitment() channeldb.ChannelCommitment {
	return channeldb.ChannelCommitment{
		CommitHeight:  c.height,
		LocalBalance:  c.ourBalance,
		RemoteBalance: c.theirBalance,
		CommitFee:     c.fee,
		FeePerKw:      c.feePerKw,
		CommitTx:      c.txn,
		CommitSig:     c.sig,
		Htlcs:         c.htlcs,
	}
}

// CommitmentKeyRing holds the complete set of keys needed to construct and
// spend one side's version of a commitment transaction at a particular
// per-commitment point, derived per BOLT-3 from the two ChannelConfigs.
type CommitmentKeyRing struct {
	CommitPoint *btcec.PublicKey

	// ToLocalKey is the key that locks the commitment owner's to_local
	// output, spendable after ToLocalCsvDelay or immediately with the
	// revocation key.
	ToLocalKey *btcec.PublicKey

	// ToRemoteKey is the key that locks the to_remote output, paying
	// the non-owner directly.
	ToRemoteKey *btcec.PublicKey

	// RevocationKey locks the commitment owner's to_local output under
	// the counterparty's revocation path.
	RevocationKey *btcec.PublicKey

	// LocalHtlcKey and RemoteHtlcKey are the per-commitment-tweaked HTLC
	// keys of the local, respectively remote, party, used in every HTLC
	// script on this commitment.
	LocalHtlcKey  *btcec.PublicKey
	RemoteHtlcKey *btcec.PublicKey
}

// chanTypeIsTweakless reports whether chanType pays the non-owner's
// to_remote output directly to their payment base point, untweaked by the
// per-commitment point, as BOLT-3 requires starting with static_remotekey.
func chanTypeIsTweakless(chanType lnwire.CommitmentType) bool {
	return chanType >= lnwire.CommitmentTypeTweakless
}

// deriveCommitmentKeys derives the full set of keys needed to construct and
// spend the commitment transaction owned by isOurCommit's party, at the
// given per-commitment point.
func deriveCommitmentKeys(commitPoint *btcec.PublicKey, isOurCommit bool,
	chanType lnwire.CommitmentType, localChanCfg,
	remoteChanCfg *channeldb.ChannelConfig) *CommitmentKeyRing {

	ownerChanCfg, otherChanCfg := localChanCfg, remoteChanCfg
	if !isOurCommit {
		ownerChanCfg, otherChanCfg = remoteChanCfg, localChanCfg
	}

	keyRing := &CommitmentKeyRing{
		CommitPoint: commitPoint,
		ToLocalKey: input.TweakPubKey(
			ownerChanCfg.DelayBasePoint.PubKey, commitPoint,
		),
		// The revocation pubkey embedded in this commitment must be
		// derivable by whichever party does NOT own it, since they're
		// the one who gains the punishment right once the owner
		// reveals the per-commitment secret for this height. That
		// means it's built from the other side's revocation
		// basepoint, tweaked by the owner's current commit point.
		RevocationKey: input.DeriveRevocationPubkey(
			otherChanCfg.RevocationBasePoint.PubKey, commitPoint,
		),
		LocalHtlcKey: input.TweakPubKey(
			localChanCfg.HtlcBasePoint.PubKey, commitPoint,
		),
		RemoteHtlcKey: input.TweakPubKey(
			remoteChanCfg.HtlcBasePoint.PubKey, commitPoint,
		),
	}

	if chanTypeIsTweakless(chanType) {
		keyRing.ToRemoteKey = otherChanCfg.PaymentBasePoint.PubKey
	} else {
		keyRing.ToRemoteKey = input.TweakPubKey(
			otherChanCfg.PaymentBasePoint.PubKey, commitPoint,
		)
	}

	return keyRing
}

// LightningChannel implements the commitment engine of §4.2: derivation of
// per-commitment keys, construction of commitment and second-level HTLC
// transactions, and the commitment_signed/revoke_and_ack signature
// interleaving protocol. It holds no opinion on *when* to advance state —
// that's chanfsm's job, driving this type's methods from its persist-then-
// act transitions.
type LightningChannel struct {
	sync.RWMutex

	// Signer signs commitment and HTLC transactions on our behalf.
	Signer input.Signer

	// channelState is this channel's persisted record. Callers are
	// expected to call channelState.PutOpenChannel (or Refresh) around
	// every state-mutating method here, per the persist-then-act
	// contract.
	channelState *channeldb.OpenChannel

	localChanCfg  *channeldb.ChannelConfig
	remoteChanCfg *channeldb.ChannelConfig

	localCommitChain  *commitmentChain
	remoteCommitChain *commitmentChain

	localUpdateLog  *updateLog
	remoteUpdateLog *updateLog

	sigPool *SigPool
}

// NewLightningChannel creates a LightningChannel backed by the given
// persisted channel state, restoring its update logs and commitment chains
// from the two most recent commitments on record.
func NewLightningChannel(signer input.Signer, state *channeldb.OpenChannel,
	sigPool *SigPool) (*LightningChannel, error) {

	lc := &LightningChannel{
		Signer:            signer,
		channelState:      state,
		localChanCfg:      &state.LocalChanCfg,
		remoteChanCfg:     &state.RemoteChanCfg,
		localCommitChain:  newCommitmentChain(),
		remoteCommitChain: newCommitmentChain(),
		localUpdateLog:    newUpdateLog(0, 0),
		remoteUpdateLog:   newUpdateLog(0, 0),
		sigPool:           sigPool,
	}

	localCommit := &commitment{
		height:       state.LocalCommitment.CommitHeight,
		isOurs:       true,
		ourBalance:   state.LocalCommitment.LocalBalance,
		theirBalance: state.LocalCommitment.RemoteBalance,
		feePerKw:     state.LocalCommitment.FeePerKw,
		fee:          state.LocalCommitment.CommitFee,
		txn:          state.LocalCommitment.CommitTx,
		sig:          state.LocalCommitment.CommitSig,
		htlcs:        state.LocalCommitment.Htlcs,
	}
	remoteCommit := &commitment{
		height:       state.RemoteCommitment.CommitHeight,
		isOurs:       false,
		ourBalance:   state.RemoteCommitment.LocalBalance,
		theirBalance: state.RemoteCommitment.RemoteBalance,
		feePerKw:     state.RemoteCommitment.FeePerKw,
		fee:          state.RemoteCommitment.CommitFee,
		txn:          state.RemoteCommitment.CommitTx,
		sig:          state.RemoteCommitment.CommitSig,
		htlcs:        state.RemoteCommitment.Htlcs,
	}

	lc.localCommitChain.addCommitment(localCommit)
	lc.remoteCommitChain.addCommitment(remoteCommit)

	for _, htlc := range state.LocalCommitment.Htlcs {
		lc.localUpdateLog.restoreHtlc(htlcToPaymentDescriptor(htlc))
	}

	return lc, nil
}

// htlcToPaymentDescriptor converts a persisted HTLC back into the
// PaymentDescriptor shape the update log restores entries as.
func htlcToPaymentDescriptor(htlc channeldb.HTLC) *PaymentDescriptor {
	return &PaymentDescriptor{
		RHash:      htlc.RHash,
		Timeout:    htlc.RefundTimeout,
		Amount:     htlc.Amt,
		EntryType:  Add,
		HtlcIndex:  htlc.HtlcIndex,
		OnionBlob:  htlc.OnionBlob,
		localOutputIndex: func() int32 {
			if htlc.Direction == channeldb.Outgoing {
				return htlc.OutputIndex
			}
			return -1
		}(),
	}
}

// ChannelPoint returns the outpoint of this channel's funding transaction.
func (lc *LightningChannel) ChannelPoint() wire.OutPoint {
	return lc.channelState.FundingOutpoint
}

// AddHTLC offers a new HTLC on this channel, appending it to our update log.
// It returns the HTLC's index within that log, which the caller embeds into
// the outgoing UpdateAddHTLC message.
func (lc *LightningChannel) AddHTLC(htlc *lnwire.UpdateAddHTLC) (uint64, error) {
	lc.Lock()
	defer lc.Unlock()

	pd := &PaymentDescriptor{
		RHash:     htlc.PaymentHash,
		Timeout:   htlc.Expiry,
		Amount:    htlc.Amount,
		EntryType: Add,
		OnionBlob: htlc.OnionBlob,
	}

	pd.HtlcIndex = lc.localUpdateLog.htlcCounter
	lc.localUpdateLog.appendHtlc(pd)

	return pd.HtlcIndex, nil
}

// ReceiveHTLC records an HTLC offered by the remote party into our view of
// their update log.
func (lc *LightningChannel) ReceiveHTLC(htlc *lnwire.UpdateAddHTLC) (uint64, error) {
	lc.Lock()
	defer lc.Unlock()

	if htlc.ID != lc.remoteUpdateLog.htlcCounter {
		return 0, fmt.Errorf("ID %d out of sequence, expected %d",
			htlc.ID, lc.remoteUpdateLog.htlcCounter)
	}

	pd := &PaymentDescriptor{
		RHash:     htlc.PaymentHash,
		Timeout:   htlc.Expiry,
		Amount:    htlc.Amount,
		EntryType: Add,
		OnionBlob: htlc.OnionBlob,
	}

	pd.HtlcIndex = lc.remoteUpdateLog.htlcCounter
	lc.remoteUpdateLog.appendHtlc(pd)

	return pd.HtlcIndex, nil
}

// SettleHTLC settles an HTLC we previously received, appending a Settle
// entry to our update log referencing it.
func (lc *LightningChannel) SettleHTLC(preimage [32]byte, htlcIndex uint64) error {
	lc.Lock()
	defer lc.Unlock()

	htlc := lc.remoteUpdateLog.lookupHtlc(htlcIndex)
	if htlc == nil {
		return fmt.Errorf("unable to find htlc with index %d", htlcIndex)
	}

	pd := &PaymentDescriptor{
		RPreimage:   preimage,
		ParentIndex: htlc.HtlcIndex,
		HtlcIndex:   htlcIndex,
		LogIndex:    lc.localUpdateLog.logIndex,
		EntryType:   Settle,
	}

	lc.localUpdateLog.appendUpdate(pd)
	lc.remoteUpdateLog.markHtlcModified(htlcIndex)

	return nil
}

// ReceiveHTLCSettle records the remote party's settlement of an HTLC we
// offered.
func (lc *LightningChannel) ReceiveHTLCSettle(preimage [32]byte, htlcIndex uint64) error {
	lc.Lock()
	defer lc.Unlock()

	htlc := lc.localUpdateLog.lookupHtlc(htlcIndex)
	if htlc == nil {
		return fmt.Errorf("unable to find htlc with index %d", htlcIndex)
	}

	pd := &PaymentDescriptor{
		RPreimage:   preimage,
		ParentIndex: htlc.HtlcIndex,
		HtlcIndex:   htlcIndex,
		LogIndex:    lc.remoteUpdateLog.logIndex,
		EntryType:   Settle,
	}

	lc.remoteUpdateLog.appendUpdate(pd)
	lc.localUpdateLog.markHtlcModified(htlcIndex)

	return nil
}

// FailHTLC fails an HTLC we previously received, appending a Fail entry to
// our update log referencing it.
func (lc *LightningChannel) FailHTLC(htlcIndex uint64, reason []byte) error {
	lc.Lock()
	defer lc.Unlock()

	htlc := lc.remoteUpdateLog.lookupHtlc(htlcIndex)
	if htlc == nil {
		return fmt.Errorf("unable to find htlc with index %d", htlcIndex)
	}

	pd := &PaymentDescriptor{
		ParentIndex: htlc.HtlcIndex,
		HtlcIndex:   htlcIndex,
		LogIndex:    lc.localUpdateLog.logIndex,
		EntryType:   Fail,
		FailReason:  reason,
	}

	lc.localUpdateLog.appendUpdate(pd)
	lc.remoteUpdateLog.markHtlcModified(htlcIndex)

	return nil
}

// fetchParty returns, for isOurCommit, the (owner, other) ChannelConfig
// pair in owner-first order, matching deriveCommitmentKeys' convention.
func (lc *LightningChannel) fetchParty(isOurCommit bool) (*channeldb.ChannelConfig,
	*channeldb.ChannelConfig) {

	if isOurCommit {
		return lc.localChanCfg, lc.remoteChanCfg
	}
	return lc.remoteChanCfg, lc.localChanCfg
}

// pendingHTLCs returns the unresolved Add entries of our update log (ours)
// and of the remote party's update log (theirs). The caller decides which
// set is outgoing on the commitment it builds.
func (lc *LightningChannel) pendingHTLCs() (ours, theirs []*PaymentDescriptor) {
	for e := lc.localUpdateLog.Front(); e != nil; e = e.Next() {
		//nolint:forcetypeassert
		pd := e.Value.(*PaymentDescriptor)
		if pd.EntryType == Add && !lc.localUpdateLog.htlcHasModification(pd.HtlcIndex) {
			ours = append(ours, pd)
		}
	}
	for e := lc.remoteUpdateLog.Front(); e != nil; e = e.Next() {
		//nolint:forcetypeassert
		pd := e.Value.(*PaymentDescriptor)
		if pd.EntryType == Add && !lc.remoteUpdateLog.htlcHasModification(pd.HtlcIndex) {
			theirs = append(theirs, pd)
		}
	}
	return ours, theirs
}

// createCommitmentTx builds and BIP-69 sorts the commitment transaction
// owned by isOurCommit's party at height, including every currently
// unresolved HTLC, per the BOLT-3 commitment transaction template.
func (lc *LightningChannel) createCommitmentTx(keyRing *CommitmentKeyRing,
	isOurCommit bool, height uint64, ourBalance,
	theirBalance lnwire.MilliSatoshi, feePerKw btcutil.Amount,
	ourHTLCs, theirHTLCs []*PaymentDescriptor) (*commitment, error) {

	ownerCfg, otherCfg := lc.fetchParty(isOurCommit)

	commitTx := wire.NewMsgTx(2)
	commitTx.AddTxIn(wire.NewTxIn(&lc.channelState.FundingOutpoint, nil, nil))

	// dustHTLCs never get an output on the commitment transaction at
	// all and keep OutputIndex -1. Non-dust HTLCs record their pkScript
	// here and get their real OutputIndex filled in below, once
	// txsort.InPlaceSort has finished reordering commitTx.TxOut — an
	// index assigned before that sort would point at the wrong output.
	var htlcs []channeldb.HTLC
	pkScripts := make(map[int]([]byte))
	addHTLCOutput := func(pd *PaymentDescriptor, outgoing bool) error {
		var script []byte
		var err error
		if outgoing {
			script, err = input.SenderHTLCScript(
				keyRing.LocalHtlcKey, keyRing.RemoteHtlcKey,
				keyRing.RevocationKey, pd.RHash[:],
			)
		} else {
			script, err = input.ReceiverHTLCScript(
				pd.Timeout, keyRing.RemoteHtlcKey,
				keyRing.LocalHtlcKey, keyRing.RevocationKey,
				pd.RHash[:],
			)
		}
		if err != nil {
			return err
		}

		pkScript, err := input.WitnessScriptHash(script)
		if err != nil {
			return err
		}

		direction := channeldb.Outgoing
		if !outgoing {
			direction = channeldb.Incoming
		}

		isDust := int64(pd.Amount.ToSatoshis()) < int64(lc.localChanCfg.DustLimit)
		if !isDust {
			pkScripts[len(htlcs)] = pkScript
			commitTx.AddTxOut(wire.NewTxOut(
				int64(pd.Amount.ToSatoshis()), pkScript,
			))
		}

		htlcs = append(htlcs, channeldb.HTLC{
			Direction:     direction,
			HtlcIndex:     pd.HtlcIndex,
			Amt:           pd.Amount,
			RHash:         pd.RHash,
			RefundTimeout: pd.Timeout,
			OnionBlob:     pd.OnionBlob,
			OutputIndex:   -1,
		})

		return nil
	}

	// From the PoV of the commitment owner, ourHTLCs were offered by the
	// owner (outgoing) and theirHTLCs were offered to the owner
	// (incoming).
	for _, pd := range ourHTLCs {
		if err := addHTLCOutput(pd, true); err != nil {
			return nil, err
		}
	}
	for _, pd := range theirHTLCs {
		if err := addHTLCOutput(pd, false); err != nil {
			return nil, err
		}
	}

	if int64(ourBalance.ToSatoshis()) >= int64(ownerCfg.DustLimit) {
		toLocalScript, err := input.CommitScriptToSelf(
			uint32(ownerCfg.CsvDelay), keyRing.ToLocalKey,
			keyRing.RevocationKey,
		)
		if err != nil {
			return nil, err
		}
		pkScript, err := input.WitnessScriptHash(toLocalScript)
		if err != nil {
			return nil, err
		}
		commitTx.AddTxOut(wire.NewTxOut(int64(ourBalance.ToSatoshis()), pkScript))
	}

	if int64(theirBalance.ToSatoshis()) >= int64(otherCfg.DustLimit) {
		toRemoteScript, err := input.CommitScriptUnencumbered(keyRing.ToRemoteKey)
		if err != nil {
			return nil, err
		}
		commitTx.AddTxOut(wire.NewTxOut(int64(theirBalance.ToSatoshis()), toRemoteScript))
	}

	txsort.InPlaceSort(commitTx)

	// Sorting just invalidated every output index recorded above (it
	// reorders commitTx.TxOut in place); re-derive each non-dust HTLC's
	// real index by locating its pkScript in the now-sorted output set.
	// Outputs are claimed one-for-one as they're matched so that two
	// HTLCs sharing an identical script (same hash/timeout/direction,
	// and therefore identical amount) still each land on a distinct
	// index rather than both resolving to the first match.
	claimed := make(map[int]bool)
	for i, pkScript := range pkScripts {
		for outIdx, txOut := range commitTx.TxOut {
			if claimed[outIdx] || !bytes.Equal(txOut.PkScript, pkScript) {
				continue
			}
			htlcs[i].OutputIndex = int32(outIdx)
			claimed[outIdx] = true
			break
		}
	}

	fee := (btcutil.Amount(commitTx.SerializeSize()) * feePerKw) / 1000

	return &commitment{
		height:       height,
		isOurs:       isOurCommit,
		ourBalance:   ourBalance,
		theirBalance: theirBalance,
		feePerKw:     feePerKw,
		fee:          fee,
		txn:          commitTx,
		htlcs:        htlcs,
	}, nil
}

// sortedNonDustHTLCs returns htlcs restricted to those with a real output
// index and sorted ascending by it, matching the commitment transaction's
// own output order — the ordering BOLT-2 requires for commit_sig's
// htlc_signatures.
func sortedNonDustHTLCs(htlcs []channeldb.HTLC) []channeldb.HTLC {
	var out []channeldb.HTLC
	for _, htlc := range htlcs {
		if htlc.OutputIndex >= 0 {
			out = append(out, htlc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OutputIndex < out[j].OutputIndex
	})
	return out
}

// htlcSecondLevelWitnessScript returns the witness script locking htlc's
// output on commitTx, along with the second-level transaction that spends
// it: HTLC-timeout for an offered HTLC, HTLC-success for a received one.
// Both sides must sign this transaction's single input, since it spends a
// 2-of-2 covenant output neither party controls alone.
func htlcSecondLevelWitnessScript(chanType lnwire.CommitmentType,
	commitTx *wire.MsgTx, htlc channeldb.HTLC, csvDelay uint32,
	keyRing *CommitmentKeyRing) ([]byte, *wire.MsgTx, error) {

	htlcOutpoint := wire.OutPoint{
		Hash:  commitTx.TxHash(),
		Index: uint32(htlc.OutputIndex),
	}
	amt := btcutil.Amount(commitTx.TxOut[htlc.OutputIndex].Value)

	if htlc.Direction == channeldb.Outgoing {
		script, err := input.SenderHTLCScript(
			keyRing.LocalHtlcKey, keyRing.RemoteHtlcKey,
			keyRing.RevocationKey, htlc.RHash[:],
		)
		if err != nil {
			return nil, nil, err
		}
		timeoutTx, err := CreateHtlcTimeoutTx(
			chanType, htlcOutpoint, amt, htlc.RefundTimeout,
			csvDelay, keyRing.RevocationKey, keyRing.ToLocalKey,
		)
		return script, timeoutTx, err
	}

	script, err := input.ReceiverHTLCScript(
		htlc.RefundTimeout, keyRing.RemoteHtlcKey,
		keyRing.LocalHtlcKey, keyRing.RevocationKey, htlc.RHash[:],
	)
	if err != nil {
		return nil, nil, err
	}
	successTx, err := CreateHtlcSuccessTx(
		chanType, htlcOutpoint, amt, csvDelay,
		keyRing.RevocationKey, keyRing.ToLocalKey,
	)
	return script, successTx, err
}

// SignNextCommitment signs the next commitment transaction for the remote
// party, covering every update either side has appended since the last
// exchanged commitment_signed, and returns that signature along with one
// per included HTLC, ready to embed into an outgoing CommitSig message.
func (lc *LightningChannel) SignNextCommitment() (input.Signature, []input.Signature, error) {
	lc.Lock()
	defer lc.Unlock()

	ourHTLCs, theirHTLCs := lc.pendingHTLCs()

	tip := lc.remoteCommitChain.tip()
	nextHeight := tip.height + 1

	// The commitment we're building belongs to the remote party, so its
	// per-commitment point is theirs too: they disclose each one to us
	// in advance (at funding time for height 0, then one ahead of
	// schedule in every subsequent revoke_and_ack's NextRevocationKey),
	// never a secret we could derive ourselves the way we do for our
	// own commitments via RevocationProducer.
	nextPointBytes := lc.channelState.RemoteCurrentRevocation
	fn.MapOptionZ(lc.channelState.RemoteNextRevocation, func(p [33]byte) error {
		nextPointBytes = p
		return nil
	})
	perCommitPoint, err := btcec.ParsePubKey(nextPointBytes[:])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid remote per-commitment "+
			"point for height %d: %w", nextHeight, err)
	}

	keyRing := deriveCommitmentKeys(
		perCommitPoint, false, lc.channelState.ChanType,
		lc.localChanCfg, lc.remoteChanCfg,
	)

	newCommit, err := lc.createCommitmentTx(
		keyRing, false, nextHeight, tip.theirBalance, tip.ourBalance,
		tip.feePerKw, theirHTLCs, ourHTLCs,
	)
	if err != nil {
		return nil, nil, err
	}

	fundingScript, err := input.GenMultiSigScript(
		lc.localChanCfg.MultiSigKey.PubKey.SerializeCompressed(),
		lc.remoteChanCfg.MultiSigKey.PubKey.SerializeCompressed(),
	)
	if err != nil {
		return nil, nil, err
	}
	fundingOutput, err := input.WitnessScriptHash(fundingScript)
	if err != nil {
		return nil, nil, err
	}

	fundingTxOut := wire.NewTxOut(int64(lc.channelState.Capacity), fundingOutput)
	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(
		fundingTxOut.PkScript, fundingTxOut.Value,
	)
	sigHashes := txscript.NewTxSigHashes(newCommit.txn, prevOutFetcher)

	signDesc := &input.SignDescriptor{
		KeyDesc:       lc.localChanCfg.MultiSigKey,
		WitnessScript: fundingScript,
		Output:        fundingTxOut,
		HashType:      txscript.SigHashAll,
		SigHashes:     sigHashes,
		InputIndex:    0,
	}
	commitSig, err := lc.Signer.SignOutputRaw(newCommit.txn, signDesc)
	if err != nil {
		return nil, nil, err
	}

	// Sign the remote party's second-level HTLC-timeout/success
	// transactions too: each spends a 2-of-2 covenant output on the
	// commitment we're signing for them, so they can't unilaterally
	// claim it later without a signature from us collected now, while
	// we're both still online.
	sortedHTLCs := sortedNonDustHTLCs(newCommit.htlcs)
	htlcSigs := make([]input.Signature, 0, len(sortedHTLCs))
	for _, htlc := range sortedHTLCs {
		witnessScript, secondLevelTx, err := htlcSecondLevelWitnessScript(
			lc.channelState.ChanType, newCommit.txn, htlc,
			uint32(lc.remoteChanCfg.CsvDelay), keyRing,
		)
		if err != nil {
			return nil, nil, err
		}

		htlcOut := newCommit.txn.TxOut[htlc.OutputIndex]
		htlcPrevFetcher := txscript.NewCannedPrevOutputFetcher(
			htlcOut.PkScript, htlcOut.Value,
		)
		htlcSigHashes := txscript.NewTxSigHashes(
			secondLevelTx, htlcPrevFetcher,
		)

		htlcSig, err := lc.Signer.SignOutputRaw(secondLevelTx, &input.SignDescriptor{
			KeyDesc:       lc.localChanCfg.HtlcBasePoint,
			SingleTweak:   input.SingleTweakBytes(perCommitPoint, lc.localChanCfg.HtlcBasePoint.PubKey),
			WitnessScript: witnessScript,
			Output:        htlcOut,
			HashType:      txscript.SigHashAll,
			SigHashes:     htlcSigHashes,
			InputIndex:    0,
		})
		if err != nil {
			return nil, nil, err
		}

		htlcSigs = append(htlcSigs, htlcSig)

		// Keep our own copy too: should the remote party ever
		// unilaterally broadcast this exact commitment, it's the
		// same signature we'd need to claim a received HTLC's
		// second-level transaction ourselves, and by then we have
		// no one left to ask for it.
		sigBytes := htlcSig.Serialize()
		for j := range newCommit.htlcs {
			if newCommit.htlcs[j].HtlcIndex == htlc.HtlcIndex &&
				newCommit.htlcs[j].Direction == htlc.Direction {

				newCommit.htlcs[j].SecondStageSig = sigBytes
				break
			}
		}
	}

	newCommit.ourMessageIndex = lc.localUpdateLog.logIndex
	newCommit.theirMessageIndex = lc.remoteUpdateLog.logIndex
	lc.remoteCommitChain.addCommitment(newCommit)

	return commitSig, htlcSigs, nil
}

// ReceiveNewCommitment validates and accepts a commitment_signed from the
// remote party, constructing our own next commitment transaction and
// checking its signature before advancing our commitment chain.
func (lc *LightningChannel) ReceiveNewCommitment(commitSig input.Signature,
	htlcSigs []input.Signature) error {

	lc.Lock()
	defer lc.Unlock()

	ourHTLCs, theirHTLCs := lc.pendingHTLCs()

	tip := lc.localCommitChain.tip()
	nextHeight := tip.height + 1

	commitPoint, err := lc.channelState.RevocationProducer.AtIndex(nextHeight)
	if err != nil {
		return err
	}
	perCommitPoint := input.ComputeCommitmentPoint(commitPoint[:])

	keyRing := deriveCommitmentKeys(
		perCommitPoint, true, lc.channelState.ChanType,
		lc.localChanCfg, lc.remoteChanCfg,
	)

	newCommit, err := lc.createCommitmentTx(
		keyRing, true, nextHeight, tip.ourBalance, tip.theirBalance,
		tip.feePerKw, ourHTLCs, theirHTLCs,
	)
	if err != nil {
		return err
	}

	fundingScript, err := input.GenMultiSigScript(
		lc.localChanCfg.MultiSigKey.PubKey.SerializeCompressed(),
		lc.remoteChanCfg.MultiSigKey.PubKey.SerializeCompressed(),
	)
	if err != nil {
		return err
	}
	fundingOutput, err := input.WitnessScriptHash(fundingScript)
	if err != nil {
		return err
	}

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(
		fundingOutput, int64(lc.channelState.Capacity),
	)
	sigHashes := txscript.NewTxSigHashes(newCommit.txn, prevOutFetcher)
	sigHash, err := txscript.CalcWitnessSigHash(
		fundingScript, sigHashes, txscript.SigHashAll, newCommit.txn,
		0, int64(lc.channelState.Capacity),
	)
	if err != nil {
		return err
	}
	if !commitSig.Verify(sigHash, lc.remoteChanCfg.MultiSigKey.PubKey) {
		return fmt.Errorf("invalid commitment signature for height %d",
			nextHeight)
	}

	// Verify and persist the remote party's signature over each
	// non-dust HTLC's second-level transaction on this, our own, next
	// commitment. Without these we could never unilaterally claim our
	// own HTLCs after a force close, since their second-level
	// transactions spend a 2-of-2 covenant output.
	sortedHTLCs := sortedNonDustHTLCs(newCommit.htlcs)
	if len(htlcSigs) != len(sortedHTLCs) {
		return fmt.Errorf("expected %d htlc signatures, got %d",
			len(sortedHTLCs), len(htlcSigs))
	}
	for i, htlc := range sortedHTLCs {
		witnessScript, secondLevelTx, err := htlcSecondLevelWitnessScript(
			lc.channelState.ChanType, newCommit.txn, htlc,
			uint32(lc.localChanCfg.CsvDelay), keyRing,
		)
		if err != nil {
			return err
		}

		htlcOut := newCommit.txn.TxOut[htlc.OutputIndex]
		htlcPrevFetcher := txscript.NewCannedPrevOutputFetcher(
			htlcOut.PkScript, htlcOut.Value,
		)
		htlcSigHashes := txscript.NewTxSigHashes(
			secondLevelTx, htlcPrevFetcher,
		)
		htlcSigHash, err := txscript.CalcWitnessSigHash(
			witnessScript, htlcSigHashes, txscript.SigHashAll,
			secondLevelTx, 0, htlcOut.Value,
		)
		if err != nil {
			return err
		}

		if !htlcSigs[i].Verify(htlcSigHash, keyRing.RemoteHtlcKey) {
			return fmt.Errorf("invalid htlc signature for "+
				"htlc index %d at height %d", htlc.HtlcIndex,
				nextHeight)
		}

		sigBytes := htlcSigs[i].Serialize()
		for j := range newCommit.htlcs {
			if newCommit.htlcs[j].HtlcIndex == htlc.HtlcIndex &&
				newCommit.htlcs[j].Direction == htlc.Direction {

				newCommit.htlcs[j].SecondStageSig = sigBytes
				break
			}
		}
	}

	newCommit.sig = commitSig.Serialize()
	newCommit.ourMessageIndex = lc.localUpdateLog.logIndex
	newCommit.theirMessageIndex = lc.remoteUpdateLog.logIndex
	lc.localCommitChain.addCommitment(newCommit)

	return nil
}

// RevokeCurrentCommitment generates the RevokeAndAck for our just-
// superseded commitment: the per-commitment secret for its height, and the
// next per-commitment point we'll use. The caller MUST have already
// persisted the channel state reflecting the new tip before sending this
// message, per §4.3's persist-then-act contract — revealing a secret ahead
// of persistence can leak funds if the process crashes in between.
func (lc *LightningChannel) RevokeCurrentCommitment() (*lnwire.RevokeAndAck, error) {
	lc.Lock()
	defer lc.Unlock()

	tail := lc.localCommitChain.tail()

	revocation, err := lc.channelState.RevocationProducer.AtIndex(tail.height)
	if err != nil {
		return nil, err
	}

	nextPreimage, err := lc.channelState.RevocationProducer.AtIndex(tail.height + 2)
	if err != nil {
		return nil, err
	}
	nextPoint := input.ComputeCommitmentPoint(nextPreimage[:])

	lc.localCommitChain.advanceTail()
	compactLogs(lc.localUpdateLog, lc.remoteUpdateLog, tail.height, tail.height)

	return &lnwire.RevokeAndAck{
		ChanID:            lc.channelState.ChanID,
		Revocation:        *revocation,
		NextRevocationKey: nextPoint,
	}, nil
}

// ReestablishPoint bundles the four pieces of state a channel_reestablish
// reports about this side of the channel: the height we next expect a
// commitment_signed for, the height of the remote commitment we still
// consider valid, the last secret the remote party revealed to us, and our
// own current unrevoked commitment point (so the remote party can recognize
// and sweep against it if it force-closes believing we've lost state).
type ReestablishPoint struct {
	NextLocalCommitHeight     uint64
	RemoteCommitTailHeight    uint64
	LastRemoteCommitSecret    [32]byte
	LocalUnrevokedCommitPoint *btcec.PublicKey

	// LocalCommitTailHeight is the height of our own local commitment
	// tail — not sent on the wire, but needed by the caller to judge
	// the peer's own RemoteCommitTailHeight claim about it.
	LocalCommitTailHeight uint64

	// PendingRemoteCommitHeight is the height of the commitment we most
	// recently signed for the remote party, whether or not they've
	// acked it yet — not sent on the wire, but needed by the caller to
	// judge the peer's NextLocalCommitHeight claim against it.
	PendingRemoteCommitHeight uint64
}

// ReestablishPoint computes the values this side needs to send in a
// channel_reestablish message, per §4.3's "Reconnection" paragraph.
func (lc *LightningChannel) ReestablishPoint() (*ReestablishPoint, error) {
	lc.RLock()
	defer lc.RUnlock()

	localTail := lc.localCommitChain.tail()
	remoteTail := lc.remoteCommitChain.tail()

	preimage, err := lc.channelState.RevocationProducer.AtIndex(localTail.height)
	if err != nil {
		return nil, err
	}
	commitPoint := input.ComputeCommitmentPoint(preimage[:])

	var lastSecret [32]byte
	if remoteTail.height > 0 {
		secret, err := lc.channelState.RevocationStore.LookUp(
			remoteTail.height - 1,
		)
		if err != nil {
			return nil, err
		}
		lastSecret = *secret
	}

	return &ReestablishPoint{
		NextLocalCommitHeight:     lc.localCommitChain.tip().height + 1,
		RemoteCommitTailHeight:    remoteTail.height,
		LastRemoteCommitSecret:    lastSecret,
		LocalUnrevokedCommitPoint: commitPoint,
		LocalCommitTailHeight:     localTail.height,
		PendingRemoteCommitHeight: lc.remoteCommitChain.tip().height,
	}, nil
}

// ReceiveRevocation processes a RevokeAndAck from the remote party: it
// stores the now-disclosed commitment secret (enabling a penalty claim
// should that commitment ever be broadcast) and records their next
// per-commitment point, then advances our view of their commitment chain.
func (lc *LightningChannel) ReceiveRevocation(revoke *lnwire.RevokeAndAck) error {
	lc.Lock()
	defer lc.Unlock()

	tail := lc.remoteCommitChain.tail()

	// Archive the commitment we're about to revoke before revealing the
	// secret that revokes it: once the secret is disclosed, this is the
	// last point at which its HTLC set is still derivable from anywhere
	// but a penalty claim replaying the chain itself.
	if err := lc.channelState.LogRevokedCommitment(tail.toChannelCommitment()); err != nil {
		return err
	}

	revokedHash := chainhash.Hash(revoke.Revocation)
	if err := lc.channelState.RevocationStore.AddNextEntry(&revokedHash); err != nil {
		return err
	}

	lc.remoteCommitChain.advanceTail()
	compactLogs(lc.localUpdateLog, lc.remoteUpdateLog, tail.height, tail.height)

	// The point we'd been tracking as "next" is now current, since the
	// commitment it belongs to just became the tip of the remote
	// party's chain; NextRevocationKey replaces it with the point for
	// the commitment height after that, ready for the following
	// SignNextCommitment call.
	fn.MapOptionZ(lc.channelState.RemoteNextRevocation, func(p [33]byte) error {
		lc.channelState.RemoteCurrentRevocation = p
		return nil
	})
	if revoke.NextRevocationKey != nil {
		var next [33]byte
		copy(next[:], revoke.NextRevocationKey.SerializeCompressed())
		lc.channelState.RemoteNextRevocation = fn.Some(next)
	}

	return nil
}

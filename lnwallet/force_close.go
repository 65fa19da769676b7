package lnwallet

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/blockforge/lnchand/channeldb"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/blockforge/lnchand/input"
)

// CommitOutputResolution describes how to claim the to_local output of a
// commitment transaction we unilaterally broadcast: spendable once its
// relative CSV delay has passed, per §4.4's "to_local after to-self-delay"
// rule.
type CommitOutputResolution struct {
	SelfOutPoint      wire.OutPoint
	SelfOutputSignDesc input.SignDescriptor
	MaturityDelay     uint32

	// NoDelay is set when this resolution claims a to_remote output on
	// a commitment we don't own: per §4.4's "their commitment" claim,
	// that output is a plain key-spend with no relative delay attached
	// at all, so MaturityDelay is meaningless here and the witness
	// generator (input.CommitSpendNoDelay rather than
	// input.CommitSpendTimeout) differs too.
	NoDelay bool
}

// OutgoingHtlcResolution describes how to claim an HTLC we offered on a
// commitment we broadcast: the second-level HTLC-timeout transaction, once
// its CLTV expiry passes, followed by a CSV-delayed sweep of its own output.
type OutgoingHtlcResolution struct {
	HtlcIndex uint64
	Expiry    uint32
	CsvDelay  uint32

	// HtlcOutpoint locates the HTLC output on the commitment transaction
	// itself — the input of the HTLC-timeout transaction.
	HtlcOutpoint wire.OutPoint

	// RevocationKey/DelayKey are the keys the HTLC-timeout transaction's
	// own output is locked to (via input.SecondLevelHtlcScript), needed
	// to build that transaction in the first place.
	RevocationKey, DelayKey *btcec.PublicKey

	// CounterpartySig is the remote party's signature over the
	// HTLC-timeout transaction, received in commit_sig.htlc_signatures
	// and persisted via channeldb.HTLC.SecondStageSig — without it the
	// 2-of-2 covenant output can't be spent at all.
	CounterpartySig []byte

	SignDetails   input.SignDescriptor
	SweepSignDesc input.SignDescriptor
}

// IncomingHtlcResolution describes how to claim an HTLC offered to us on a
// commitment we broadcast: the second-level HTLC-success transaction,
// spendable immediately with the payment preimage, followed by a
// CSV-delayed sweep of its own output.
type IncomingHtlcResolution struct {
	HtlcIndex    uint64
	RHash        [32]byte
	CsvDelay     uint32
	HtlcOutpoint wire.OutPoint

	RevocationKey, DelayKey *btcec.PublicKey

	// CounterpartySig is the remote party's signature over the
	// HTLC-success transaction, persisted the same way as on
	// OutgoingHtlcResolution.
	CounterpartySig []byte

	SignDetails   input.SignDescriptor
	SweepSignDesc input.SignDescriptor
}

// ForceCloseSummary bundles everything the closure handler needs to claim
// every output of a commitment transaction we unilaterally broadcast, per
// §4.4's "Unilateral close — our commitment" paragraph.
type ForceCloseSummary struct {
	ChanPoint wire.OutPoint
	CloseTx   *wire.MsgTx

	// CommitResolution is nil if our to_local output was dust.
	CommitResolution *CommitOutputResolution

	OutgoingHtlcResolutions []OutgoingHtlcResolution
	IncomingHtlcResolutions []IncomingHtlcResolution

	ChanSnapshot channeldb.ChannelCommitment
}

// ForceClose returns our latest local commitment transaction, ready for
// broadcast, along with every sign descriptor the closure handler needs to
// later claim its outputs. It performs no broadcast and no state mutation —
// that belongs to contractcourt, which owns the chain-watching half of the
// closure handler.
func (lc *LightningChannel) ForceClose() (*ForceCloseSummary, error) {
	lc.Lock()
	defer lc.Unlock()

	localCommit := lc.channelState.LocalCommitment
	if localCommit.CommitTx == nil {
		return nil, fmt.Errorf("no local commitment to force close with")
	}

	commitPointPreimage, err := lc.channelState.RevocationProducer.AtIndex(
		localCommit.CommitHeight,
	)
	if err != nil {
		return nil, err
	}
	commitPoint := input.ComputeCommitmentPoint(commitPointPreimage[:])

	keyRing := deriveCommitmentKeys(
		commitPoint, true, lc.channelState.ChanType,
		lc.localChanCfg, lc.remoteChanCfg,
	)

	summary := &ForceCloseSummary{
		ChanPoint:    lc.channelState.FundingOutpoint,
		CloseTx:      localCommit.CommitTx,
		ChanSnapshot: localCommit,
	}

	if int64(localCommit.LocalBalance.ToSatoshis()) >= int64(lc.localChanCfg.DustLimit) {
		toLocalScript, err := input.CommitScriptToSelf(
			uint32(lc.localChanCfg.CsvDelay), keyRing.ToLocalKey,
			keyRing.RevocationKey,
		)
		if err != nil {
			return nil, err
		}
		pkScript, err := input.WitnessScriptHash(toLocalScript)
		if err != nil {
			return nil, err
		}

		outputIndex, err := findOutput(
			localCommit.CommitTx, pkScript,
		)
		if err != nil {
			return nil, err
		}

		summary.CommitResolution = &CommitOutputResolution{
			SelfOutPoint: wire.OutPoint{
				Hash:  localCommit.CommitTx.TxHash(),
				Index: outputIndex,
			},
			SelfOutputSignDesc: input.SignDescriptor{
				KeyDesc:     lc.localChanCfg.DelayBasePoint,
				SingleTweak: input.SingleTweakBytes(commitPoint, lc.localChanCfg.DelayBasePoint.PubKey),
				WitnessScript: toLocalScript,
				Output: localCommit.CommitTx.TxOut[outputIndex],
				HashType: txscript.SigHashAll,
			},
			MaturityDelay: uint32(lc.localChanCfg.CsvDelay),
		}
	}

	for _, htlc := range localCommit.Htlcs {
		if htlc.OutputIndex < 0 {
			continue
		}

		pkScript := localCommit.CommitTx.TxOut[htlc.OutputIndex].PkScript

		if htlc.Direction == channeldb.Outgoing {
			script, err := input.SenderHTLCScript(
				keyRing.LocalHtlcKey, keyRing.RemoteHtlcKey,
				keyRing.RevocationKey, htlc.RHash[:],
			)
			if err != nil {
				return nil, err
			}

			summary.OutgoingHtlcResolutions = append(
				summary.OutgoingHtlcResolutions,
				OutgoingHtlcResolution{
					HtlcIndex: htlc.HtlcIndex,
					Expiry:    htlc.RefundTimeout,
					CsvDelay:  uint32(lc.localChanCfg.CsvDelay),
					HtlcOutpoint: wire.OutPoint{
						Hash:  localCommit.CommitTx.TxHash(),
						Index: uint32(htlc.OutputIndex),
					},
					RevocationKey:   keyRing.RevocationKey,
					DelayKey:        keyRing.ToLocalKey,
					CounterpartySig: htlc.SecondStageSig,
					SignDetails: input.SignDescriptor{
						KeyDesc:       lc.localChanCfg.HtlcBasePoint,
						SingleTweak:   input.SingleTweakBytes(commitPoint, lc.localChanCfg.HtlcBasePoint.PubKey),
						WitnessScript: script,
						Output: &wire.TxOut{
							Value:    localCommit.CommitTx.TxOut[htlc.OutputIndex].Value,
							PkScript: pkScript,
						},
						HashType: txscript.SigHashAll,
					},
				},
			)
			continue
		}

		script, err := input.ReceiverHTLCScript(
			htlc.RefundTimeout, keyRing.RemoteHtlcKey,
			keyRing.LocalHtlcKey, keyRing.RevocationKey,
			htlc.RHash[:],
		)
		if err != nil {
			return nil, err
		}

		summary.IncomingHtlcResolutions = append(
			summary.IncomingHtlcResolutions,
			IncomingHtlcResolution{
				HtlcIndex: htlc.HtlcIndex,
				RHash:     htlc.RHash,
				CsvDelay:  uint32(lc.localChanCfg.CsvDelay),
				HtlcOutpoint: wire.OutPoint{
					Hash:  localCommit.CommitTx.TxHash(),
					Index: uint32(htlc.OutputIndex),
				},
				RevocationKey:   keyRing.RevocationKey,
				DelayKey:        keyRing.ToLocalKey,
				CounterpartySig: htlc.SecondStageSig,
				SignDetails: input.SignDescriptor{
					KeyDesc:       lc.localChanCfg.HtlcBasePoint,
					SingleTweak:   input.SingleTweakBytes(commitPoint, lc.localChanCfg.HtlcBasePoint.PubKey),
					WitnessScript: script,
					Output: &wire.TxOut{
						Value:    localCommit.CommitTx.TxOut[htlc.OutputIndex].Value,
						PkScript: pkScript,
					},
					HashType: txscript.SigHashAll,
				},
			},
		)
	}

	return summary, nil
}

// ForceCloseRemote returns a claim descriptor for our latest RemoteCommitment
// — the counterparty's valid (non-revoked) commitment transaction — should
// they broadcast it themselves, per §4.4's "Unilateral close — their
// commitment" paragraph: our to_remote output is claimable immediately, and
// every HTLC they offered us is claimable with its preimage, symmetric to
// ForceClose but without that paragraph's CLTV-gated offered-HTLC case,
// since claiming those belongs to whoever offered them, not to us.
func (lc *LightningChannel) ForceCloseRemote() (*ForceCloseSummary, error) {
	lc.Lock()
	defer lc.Unlock()

	remoteCommit := lc.channelState.RemoteCommitment
	if remoteCommit.CommitTx == nil {
		return nil, fmt.Errorf("no remote commitment on record")
	}

	// remoteCommit is the tip of our view of the remote party's
	// commitment chain: the last one we signed that they haven't yet
	// revoked. Its per-commitment point is therefore whichever one
	// SignNextCommitment most recently used to build it — their own
	// point, disclosed to us, never a secret we could derive ourselves.
	commitPointBytes := lc.channelState.RemoteCurrentRevocation
	fn.MapOptionZ(lc.channelState.RemoteNextRevocation, func(p [33]byte) error {
		commitPointBytes = p
		return nil
	})
	commitPoint, err := btcec.ParsePubKey(commitPointBytes[:])
	if err != nil {
		return nil, fmt.Errorf("invalid remote per-commitment point: %w", err)
	}

	keyRing := deriveCommitmentKeys(
		commitPoint, false, lc.channelState.ChanType,
		lc.localChanCfg, lc.remoteChanCfg,
	)

	summary := &ForceCloseSummary{
		ChanPoint:    lc.channelState.FundingOutpoint,
		CloseTx:      remoteCommit.CommitTx,
		ChanSnapshot: remoteCommit,
	}

	if int64(remoteCommit.RemoteBalance.ToSatoshis()) >= int64(lc.localChanCfg.DustLimit) {
		toRemoteScript, err := input.CommitScriptUnencumbered(keyRing.ToRemoteKey)
		if err != nil {
			return nil, err
		}

		outputIndex, err := findOutput(remoteCommit.CommitTx, toRemoteScript)
		if err != nil {
			return nil, err
		}

		signDesc := input.SignDescriptor{
			KeyDesc:  lc.localChanCfg.PaymentBasePoint,
			Output:   remoteCommit.CommitTx.TxOut[outputIndex],
			HashType: txscript.SigHashAll,
		}
		if !chanTypeIsTweakless(lc.channelState.ChanType) {
			signDesc.SingleTweak = input.SingleTweakBytes(
				commitPoint, lc.localChanCfg.PaymentBasePoint.PubKey,
			)
		}

		summary.CommitResolution = &CommitOutputResolution{
			SelfOutPoint: wire.OutPoint{
				Hash:  remoteCommit.CommitTx.TxHash(),
				Index: outputIndex,
			},
			SelfOutputSignDesc: signDesc,
			NoDelay:            true,
		}
	}

	for _, htlc := range remoteCommit.Htlcs {
		if htlc.OutputIndex < 0 || htlc.Direction != channeldb.Incoming {
			continue
		}

		pkScript := remoteCommit.CommitTx.TxOut[htlc.OutputIndex].PkScript
		script, err := input.ReceiverHTLCScript(
			htlc.RefundTimeout, keyRing.RemoteHtlcKey,
			keyRing.LocalHtlcKey, keyRing.RevocationKey, htlc.RHash[:],
		)
		if err != nil {
			return nil, err
		}

		summary.IncomingHtlcResolutions = append(
			summary.IncomingHtlcResolutions,
			IncomingHtlcResolution{
				HtlcIndex: htlc.HtlcIndex,
				RHash:     htlc.RHash,
				CsvDelay:  uint32(lc.remoteChanCfg.CsvDelay),
				HtlcOutpoint: wire.OutPoint{
					Hash:  remoteCommit.CommitTx.TxHash(),
					Index: uint32(htlc.OutputIndex),
				},
				RevocationKey:   keyRing.RevocationKey,
				DelayKey:        keyRing.ToLocalKey,
				CounterpartySig: htlc.SecondStageSig,
				SignDetails: input.SignDescriptor{
					KeyDesc:       lc.localChanCfg.HtlcBasePoint,
					SingleTweak:   input.SingleTweakBytes(commitPoint, lc.localChanCfg.HtlcBasePoint.PubKey),
					WitnessScript: script,
					Output: &wire.TxOut{
						Value:    remoteCommit.CommitTx.TxOut[htlc.OutputIndex].Value,
						PkScript: pkScript,
					},
					HashType: txscript.SigHashAll,
				},
			},
		)
	}

	return summary, nil
}

// findOutput locates pkScript's index among tx's outputs.
func findOutput(tx *wire.MsgTx, pkScript []byte) (uint32, error) {
	for i, out := range tx.TxOut {
		if bytes.Equal(out.PkScript, pkScript) {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("output script not found in commitment")
}

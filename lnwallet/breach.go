package lnwallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/blockforge/lnchand/channeldb"
	"github.com/blockforge/lnchand/input"
)

// HtlcRetribution describes how to claim a single HTLC output on a revoked
// commitment transaction via its revocation clause, per §4.4's "penalty
// transaction sweeping every output — balance + all HTLCs — to us."
type HtlcRetribution struct {
	SignDesc   input.SignDescriptor
	OutPoint   wire.OutPoint
	IsIncoming bool
}

// BreachRetribution holds everything needed to build and sign a single
// justice transaction sweeping every output of a revoked commitment
// transaction the counterparty broadcast. It never signs or broadcasts
// anything itself — that's contractcourt's job, once it observes breachTx
// confirm on chain.
type BreachRetribution struct {
	BreachTransaction wire.MsgTx
	RevokedStateNum   uint64

	// LocalOutpoint/LocalOutputSignDesc claim the to_remote output of the
	// breached commitment, which already pays us directly and needs no
	// penalty path.
	LocalOutpoint      wire.OutPoint
	LocalOutputSignDesc *input.SignDescriptor

	// RemoteOutpoint/RemoteOutputSignDesc claim the counterparty's own
	// to_local output via its revocation clause.
	RemoteOutpoint      wire.OutPoint
	RemoteOutputSignDesc *input.SignDescriptor

	HtlcRetributions []HtlcRetribution

	KeyRing *CommitmentKeyRing
}

// NewBreachRetribution reconstructs the full set of penalty claims available
// against breachTx, the counterparty's revoked commitment at breachHeight,
// using the archived HTLC set channeldb.OpenChannel.LogRevokedCommitment
// persisted for that height and the secret channeldb.OpenChannel.RevocationStore
// received for it upon its revocation.
func NewBreachRetribution(chanState *channeldb.OpenChannel,
	breachHeight uint64, breachTx *wire.MsgTx) (*BreachRetribution, error) {

	localChanCfg := &chanState.LocalChanCfg
	remoteChanCfg := &chanState.RemoteChanCfg

	revokedCommit, err := chanState.FetchRevocationLogEntry(breachHeight)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch archived commitment "+
			"for height %v: %v", breachHeight, err)
	}

	commitSecret, err := chanState.RevocationStore.LookUp(breachHeight)
	if err != nil {
		return nil, fmt.Errorf("unable to derive revocation secret "+
			"for height %v: %v", breachHeight, err)
	}

	commitPoint := input.ComputeCommitmentPoint(commitSecret[:])
	commitPrivKey, _ := btcec.PrivKeyFromBytes(commitSecret[:])

	keyRing := deriveCommitmentKeys(
		commitPoint, false, chanState.ChanType, localChanCfg,
		remoteChanCfg,
	)

	retribution := &BreachRetribution{
		BreachTransaction: *breachTx,
		RevokedStateNum:   breachHeight,
		KeyRing:           keyRing,
	}

	ourBalance := revokedCommit.LocalBalance.ToSatoshis()
	theirBalance := revokedCommit.RemoteBalance.ToSatoshis()

	// The to_remote output already pays us directly; claim it with a
	// regular signature, tweaked the same way the live channel's
	// to_remote output is.
	if int64(ourBalance) >= int64(remoteChanCfg.DustLimit) {
		signDesc := &input.SignDescriptor{
			KeyDesc:  localChanCfg.PaymentBasePoint,
			HashType: txscript.SigHashAll,
		}
		if !chanTypeIsTweakless(chanState.ChanType) {
			signDesc.SingleTweak = input.SingleTweakBytes(
				commitPoint, localChanCfg.PaymentBasePoint.PubKey,
			)
		}

		toRemoteScript, err := input.CommitScriptUnencumbered(
			keyRing.ToRemoteKey,
		)
		if err != nil {
			return nil, err
		}

		outputIndex, err := findOutput(breachTx, toRemoteScript)
		if err != nil {
			return nil, err
		}

		retribution.LocalOutpoint = wire.OutPoint{
			Hash:  breachTx.TxHash(),
			Index: outputIndex,
		}
		signDesc.Output = breachTx.TxOut[outputIndex]
		retribution.LocalOutputSignDesc = signDesc
	}

	// The to_local output is the counterparty's self output, clawed back
	// in full via the revocation clause of CommitScriptToSelf.
	if int64(theirBalance) >= int64(localChanCfg.DustLimit) {
		toLocalScript, err := input.CommitScriptToSelf(
			uint32(remoteChanCfg.CsvDelay), keyRing.ToLocalKey,
			keyRing.RevocationKey,
		)
		if err != nil {
			return nil, err
		}
		pkScript, err := input.WitnessScriptHash(toLocalScript)
		if err != nil {
			return nil, err
		}

		outputIndex, err := findOutput(breachTx, pkScript)
		if err != nil {
			return nil, err
		}

		retribution.RemoteOutpoint = wire.OutPoint{
			Hash:  breachTx.TxHash(),
			Index: outputIndex,
		}
		retribution.RemoteOutputSignDesc = &input.SignDescriptor{
			KeyDesc:       localChanCfg.RevocationBasePoint,
			DoubleTweak:   commitPrivKey,
			WitnessScript: toLocalScript,
			Output:        breachTx.TxOut[outputIndex],
			HashType:      txscript.SigHashAll,
		}
	}

	for _, htlc := range revokedCommit.Htlcs {
		if htlc.OutputIndex < 0 {
			continue
		}

		pkScript := breachTx.TxOut[htlc.OutputIndex].PkScript

		var (
			script     []byte
			isIncoming bool
		)
		if htlc.Direction == channeldb.Outgoing {
			script, err = input.SenderHTLCScript(
				keyRing.LocalHtlcKey, keyRing.RemoteHtlcKey,
				keyRing.RevocationKey, htlc.RHash[:],
			)
		} else {
			isIncoming = true
			script, err = input.ReceiverHTLCScript(
				htlc.RefundTimeout, keyRing.RemoteHtlcKey,
				keyRing.LocalHtlcKey, keyRing.RevocationKey,
				htlc.RHash[:],
			)
		}
		if err != nil {
			return nil, err
		}

		retribution.HtlcRetributions = append(
			retribution.HtlcRetributions, HtlcRetribution{
				IsIncoming: isIncoming,
				OutPoint: wire.OutPoint{
					Hash:  breachTx.TxHash(),
					Index: uint32(htlc.OutputIndex),
				},
				SignDesc: input.SignDescriptor{
					KeyDesc:       localChanCfg.RevocationBasePoint,
					DoubleTweak:   commitPrivKey,
					WitnessScript: script,
					Output: &wire.TxOut{
						Value:    breachTx.TxOut[htlc.OutputIndex].Value,
						PkScript: pkScript,
					},
					HashType: txscript.SigHashAll,
				},
			},
		)
	}

	return retribution, nil
}

package lnwallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/txsort"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/blockforge/lnchand/input"
)

// closingTxWeight estimates the weight of a mutual close transaction: one
// P2WSH funding input plus two segwit outputs, the shape every closing_signed
// proposal in §4.4 negotiates a fee for. It's a fixed estimate rather than a
// true weight calculation because neither output's script is known yet when
// the fee itself is still being proposed.
const closingTxWeight = 650

// CalcFee converts a feerate into the absolute fee a mutual close transaction
// at that feerate would pay, the quantity closing_signed actually carries on
// the wire.
func (lc *LightningChannel) CalcFee(feePerKw btcutil.Amount) btcutil.Amount {
	return feePerKw * closingTxWeight / 1000
}

// CreateCloseProposal builds and signs our half of a mutual close
// transaction paying proposedFee out of the funder's balance, per §4.4's
// "both sides exchange closing_signed messages" paragraph. The returned
// transaction is not yet valid: it carries no witness, and our signature
// over its funding input is returned beside it. CompleteCooperativeClose
// assembles the SpendMultiSig witness once the other party's signature
// arrives.
func (lc *LightningChannel) CreateCloseProposal(proposedFee btcutil.Amount,
	localDeliveryScript, remoteDeliveryScript []byte) (
	*wire.MsgTx, input.Signature, error) {

	lc.Lock()
	defer lc.Unlock()

	localCommit := lc.channelState.LocalCommitment

	ourBalance := localCommit.LocalBalance.ToSatoshis()
	theirBalance := localCommit.RemoteBalance.ToSatoshis()

	if lc.channelState.IsInitiator {
		ourBalance -= proposedFee
	} else {
		theirBalance -= proposedFee
	}

	closeTx, err := createCooperativeCloseTx(
		lc.channelState.FundingOutpoint, lc.localChanCfg.DustLimit,
		lc.remoteChanCfg.DustLimit, ourBalance, theirBalance,
		localDeliveryScript, remoteDeliveryScript,
	)
	if err != nil {
		return nil, nil, err
	}

	sig, err := lc.signClosingTx(closeTx)
	if err != nil {
		return nil, nil, err
	}

	return closeTx, sig, nil
}

// CompleteCooperativeClose assembles the final, fully witnessed mutual close
// transaction from both sides' signatures once a fee offer has converged,
// ready to hand to the closure handler for broadcast.
func (lc *LightningChannel) CompleteCooperativeClose(localSig,
	remoteSig input.Signature, localDeliveryScript,
	remoteDeliveryScript []byte, fee btcutil.Amount) (*wire.MsgTx, error) {

	lc.Lock()
	defer lc.Unlock()

	localCommit := lc.channelState.LocalCommitment

	ourBalance := localCommit.LocalBalance.ToSatoshis()
	theirBalance := localCommit.RemoteBalance.ToSatoshis()

	if lc.channelState.IsInitiator {
		ourBalance -= fee
	} else {
		theirBalance -= fee
	}

	closeTx, err := createCooperativeCloseTx(
		lc.channelState.FundingOutpoint, lc.localChanCfg.DustLimit,
		lc.remoteChanCfg.DustLimit, ourBalance, theirBalance,
		localDeliveryScript, remoteDeliveryScript,
	)
	if err != nil {
		return nil, err
	}

	fundingScript, err := input.GenMultiSigScript(
		lc.localChanCfg.MultiSigKey.PubKey.SerializeCompressed(),
		lc.remoteChanCfg.MultiSigKey.PubKey.SerializeCompressed(),
	)
	if err != nil {
		return nil, err
	}

	localPub := lc.localChanCfg.MultiSigKey.PubKey.SerializeCompressed()
	remotePub := lc.remoteChanCfg.MultiSigKey.PubKey.SerializeCompressed()

	witness := input.SpendMultiSig(
		fundingScript,
		localPub, appendHashType(localSig),
		remotePub, appendHashType(remoteSig),
	)
	closeTx.TxIn[0].Witness = witness

	return closeTx, nil
}

// signClosingTx produces our signature over a not-yet-complete closing
// transaction's sole input, the 2-of-2 funding output.
func (lc *LightningChannel) signClosingTx(closeTx *wire.MsgTx) (input.Signature, error) {
	fundingScript, err := input.GenMultiSigScript(
		lc.localChanCfg.MultiSigKey.PubKey.SerializeCompressed(),
		lc.remoteChanCfg.MultiSigKey.PubKey.SerializeCompressed(),
	)
	if err != nil {
		return nil, err
	}
	fundingOutput, err := input.WitnessScriptHash(fundingScript)
	if err != nil {
		return nil, err
	}

	fundingTxOut := wire.NewTxOut(int64(lc.channelState.Capacity), fundingOutput)
	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(
		fundingTxOut.PkScript, fundingTxOut.Value,
	)
	sigHashes := txscript.NewTxSigHashes(closeTx, prevOutFetcher)

	signDesc := &input.SignDescriptor{
		KeyDesc:       lc.localChanCfg.MultiSigKey,
		WitnessScript: fundingScript,
		Output:        fundingTxOut,
		HashType:      txscript.SigHashAll,
		SigHashes:     sigHashes,
		InputIndex:    0,
	}

	return lc.Signer.SignOutputRaw(closeTx, signDesc)
}

// createCooperativeCloseTx assembles the shared shape of a mutual close
// transaction: one input spending the funding outpoint, and up to two
// delivery outputs, each omitted if it would be dust.
func createCooperativeCloseTx(fundingOutpoint wire.OutPoint,
	localDust, remoteDust btcutil.Amount, ourBalance,
	theirBalance btcutil.Amount, localDeliveryScript,
	remoteDeliveryScript []byte) (*wire.MsgTx, error) {

	closeTx := wire.NewMsgTx(2)
	closeTx.AddTxIn(wire.NewTxIn(&fundingOutpoint, nil, nil))

	if ourBalance >= localDust {
		closeTx.AddTxOut(wire.NewTxOut(
			int64(ourBalance), localDeliveryScript,
		))
	}
	if theirBalance >= remoteDust {
		closeTx.AddTxOut(wire.NewTxOut(
			int64(theirBalance), remoteDeliveryScript,
		))
	}

	if len(closeTx.TxOut) == 0 {
		return nil, fmt.Errorf("closing tx pays no one: both " +
			"balances are dust")
	}

	txsort.InPlaceSort(closeTx)

	return closeTx, nil
}

// appendHashType serializes a raw signature with the SIGHASH_ALL byte
// SpendMultiSig's witness stack expects, mirroring how every other witness
// generator in this package finalizes a signature for inclusion on-chain.
func appendHashType(sig input.Signature) []byte {
	return append(sig.Serialize(), byte(txscript.SigHashAll))
}

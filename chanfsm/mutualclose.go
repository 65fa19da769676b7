package chanfsm

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/blockforge/lnchand/input"
	"github.com/blockforge/lnchand/lnwire"
)

// closeFeeTolerance bounds how far apart two closing_signed fee proposals
// may be before either side treats the other's offer as outside their
// acceptable range, per §4.4's "closing_signed exchange" paragraph. It
// mirrors FeePolicy.ToleranceMultiplier's role for commitment fee updates,
// just centered on our own ideal fee rather than bounding only upward moves.
const closeFeeTolerance = 0.3

// BroadcastTx is an Effect carrying a fully signed transaction the host
// must publish to the chain backend. The closure handler (contractcourt)
// takes over watching for its confirmation once it's sent.
type BroadcastTx struct {
	Tx *wire.MsgTx
}

func (BroadcastTx) effectName() string { return "BroadcastTx" }

// closeNegotiation tracks an in-flight closing_signed fee bisection. It's
// in-memory only: per BOLT-2, a reconnect mid-negotiation just restarts the
// shutdown handshake, so there's nothing here worth surviving a restart.
type closeNegotiation struct {
	ourDeliveryScript   []byte
	theirDeliveryScript []byte

	lastFeeSent btcutil.Amount
	lastSigSent input.Signature
}

// handlePeerShutdown records the counterparty's shutdown and, once both
// delivery scripts are known, advances into Negotiating. If we haven't
// issued our own CmdClose yet, it only stashes their script and waits —
// the host is expected to notice the state change and eventually reply
// with its own CmdClose carrying a delivery script.
func (m *Machine) handlePeerShutdown(msg *lnwire.Shutdown) ([]Effect, error) {
	if m.closeNeg == nil {
		m.closeNeg = &closeNegotiation{}
	}
	m.closeNeg.theirDeliveryScript = msg.Address

	if m.state == Normal || m.state == Offline {
		m.state = Shutdown
	}
	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	if m.closeNeg.ourDeliveryScript == nil {
		return nil, nil
	}

	return m.beginNegotiation()
}

// beginNegotiation moves into Negotiating once both sides' delivery
// scripts are known. Per §4.4, the funder sends the first closing_signed
// proposal; the fundee only ever responds to one.
func (m *Machine) beginNegotiation() ([]Effect, error) {
	m.state = Negotiating
	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	if !m.channelState.IsInitiator {
		return nil, nil
	}

	return m.proposeFee(m.idealCloseFee())
}

// handlePeerClosingSigned advances the fee bisection on a received
// closing_signed: converging on a fee either finalizes and broadcasts the
// closing transaction, or produces our own counter-proposal.
func (m *Machine) handlePeerClosingSigned(msg *lnwire.ClosingSigned) ([]Effect, error) {
	if m.closeNeg == nil {
		return nil, fmt.Errorf("received closing_signed before shutdown " +
			"was exchanged")
	}

	theirSig, err := msg.Signature.ToSignature()
	if err != nil {
		return nil, err
	}

	// The counterparty accepts an offer by echoing our own last fee
	// back, so an exact match always finalizes regardless of who we
	// are.
	if m.closeNeg.lastSigSent != nil && msg.FeeSatoshis == m.closeNeg.lastFeeSent {
		return m.finalizeClose(msg.FeeSatoshis, theirSig)
	}

	ideal := m.idealCloseFee()
	if feeInAcceptableRange(ideal, msg.FeeSatoshis) {
		// Accepting means echoing their fee back with our own
		// signature over the same transaction, which finalizes it on
		// their end too.
		return m.acceptFee(msg.FeeSatoshis, theirSig)
	}

	compromise := calcCompromiseFee(ideal, msg.FeeSatoshis)
	if compromise == m.closeNeg.lastFeeSent {
		// We've already proposed this exact fee before; the other
		// side isn't going to move any closer, so accept theirs
		// rather than bisect forever.
		return m.acceptFee(msg.FeeSatoshis, theirSig)
	}

	return m.proposeFee(compromise)
}

// proposeFee signs a new closing transaction at fee and sends it as a
// closing_signed proposal.
func (m *Machine) proposeFee(fee btcutil.Amount) ([]Effect, error) {
	_, sig, err := m.channel.CreateCloseProposal(
		fee, m.closeNeg.ourDeliveryScript, m.closeNeg.theirDeliveryScript,
	)
	if err != nil {
		return nil, err
	}

	m.closeNeg.lastFeeSent = fee
	m.closeNeg.lastSigSent = sig

	wireSig, err := sigToWire(sig)
	if err != nil {
		return nil, err
	}

	msg := &lnwire.ClosingSigned{
		ChannelID:   m.chanID(),
		FeeSatoshis: fee,
		Signature:   wireSig,
	}

	return []Effect{SendMessage{Msg: msg}}, nil
}

// acceptFee echoes fee back as our own proposal at the same amount, then
// immediately finalizes using our own signature over that proposal paired
// with the signature the counterparty sent for it.
func (m *Machine) acceptFee(fee btcutil.Amount, theirSig input.Signature) ([]Effect, error) {
	_, ourSig, err := m.channel.CreateCloseProposal(
		fee, m.closeNeg.ourDeliveryScript, m.closeNeg.theirDeliveryScript,
	)
	if err != nil {
		return nil, err
	}

	wireSig, err := sigToWire(ourSig)
	if err != nil {
		return nil, err
	}

	closeTx, err := m.channel.CompleteCooperativeClose(
		ourSig, theirSig, m.closeNeg.ourDeliveryScript,
		m.closeNeg.theirDeliveryScript, fee,
	)
	if err != nil {
		return nil, err
	}

	m.state = Closing
	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	echo := &lnwire.ClosingSigned{
		ChannelID:   m.chanID(),
		FeeSatoshis: fee,
		Signature:   wireSig,
	}

	return []Effect{
		SendMessage{Msg: echo},
		BroadcastTx{Tx: closeTx},
		NotifyClosure{Reason: CloseMutual},
	}, nil
}

// finalizeClose assembles and broadcasts the closing transaction once the
// counterparty's closing_signed matches a fee we've already signed for.
func (m *Machine) finalizeClose(fee btcutil.Amount, theirSig input.Signature) ([]Effect, error) {
	closeTx, err := m.channel.CompleteCooperativeClose(
		m.closeNeg.lastSigSent, theirSig, m.closeNeg.ourDeliveryScript,
		m.closeNeg.theirDeliveryScript, fee,
	)
	if err != nil {
		return nil, err
	}

	m.state = Closing
	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	return []Effect{
		BroadcastTx{Tx: closeTx},
		NotifyClosure{Reason: CloseMutual},
	}, nil
}

// idealCloseFee converts our locally expected commitment feerate into the
// absolute fee we'd like the closing transaction to pay.
func (m *Machine) idealCloseFee() btcutil.Amount {
	feePerKw := m.channelState.LocalCommitment.FeePerKw
	if feePerKw < m.feePolicy.MinRelayFeePerKw {
		feePerKw = m.feePolicy.MinRelayFeePerKw
	}
	return m.channel.CalcFee(feePerKw)
}

// feeInAcceptableRange reports whether proposed falls within tolerance of
// ideal, per §4.4's fee-negotiation tolerance window.
func feeInAcceptableRange(ideal, proposed btcutil.Amount) bool {
	lower := btcutil.Amount(float64(ideal) * (1 - closeFeeTolerance))
	upper := btcutil.Amount(float64(ideal) * (1 + closeFeeTolerance))
	return proposed >= lower && proposed <= upper
}

// calcCompromiseFee splits the difference between our ideal fee and the
// counterparty's latest proposal, ratcheting the negotiation toward
// convergence each round.
func calcCompromiseFee(ideal, theirs btcutil.Amount) btcutil.Amount {
	return (ideal + theirs) / 2
}

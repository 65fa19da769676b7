package chanfsm

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog"
	"github.com/blockforge/lnchand/channeldb"
	"github.com/blockforge/lnchand/input"
	"github.com/blockforge/lnchand/lnwallet"
	"github.com/blockforge/lnchand/lnwallet/chanvalidate"
	"github.com/blockforge/lnchand/lnwire"
	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"
)

// Effect is anything a transition wants done after it returns: a message
// delivered to the peer, or a handoff to the closure handler. The Machine
// never performs an Effect itself — per §9's actor-scheduling contract and
// the persist-then-act rule, every Effect is emitted only after the
// transition that produced it has already been durably persisted.
type Effect interface {
	effectName() string
}

// SendMessage is an Effect carrying a wire message the host must deliver
// to this channel's peer.
type SendMessage struct {
	Msg lnwire.Message
}

func (SendMessage) effectName() string { return "SendMessage" }

// CloseReason names why a channel is leaving Normal operation for good,
// per §4.4.
type CloseReason uint8

const (
	CloseMutual CloseReason = iota
	CloseForce
	CloseUnilateralLocal
	CloseUnilateralRemote
	CloseBreach
	CloseOpenTimeout
)

// NotifyClosure is an Effect telling the host that the closure handler
// (contractcourt) must take over this channel. ForceClose carries the
// claim-resolution data for whichever commitment just hit the chain: our
// own (CloseForce, CloseUnilateralLocal) or the counterparty's
// (CloseUnilateralRemote). It's nil for CloseMutual (no claims, the
// cooperative close output already pays our wallet directly),
// CloseBreach (contractcourt's BreachWatcher builds its own retribution
// data straight from the revoked commitment it observes on chain), and
// CloseOpenTimeout (no commitment exists yet to claim anything from).
type NotifyClosure struct {
	Reason     CloseReason
	ForceClose *lnwallet.ForceCloseSummary
}

func (NotifyClosure) effectName() string { return "NotifyClosure" }

// CompleteCommand is an Effect delivering a local command's result to the
// caller that issued it. It is a distinct Effect, rather than a direct
// channel send from within the transition, so that every side effect of a
// transition funnels through the same emit step.
type CompleteCommand struct {
	Result chan<- CmdResult
	Value  CmdResult
}

func (CompleteCommand) effectName() string { return "CompleteCommand" }

// defaultOpenTimeout bounds how long WaitForFundingConfirmed may run before
// the funder abandons the channel, per §4.3's "Open timeout" paragraph.
const defaultOpenTimeout = 10 * time.Minute

// defaultReconnectInterval paces reconnection attempts while Offline.
const defaultReconnectInterval = 30 * time.Second

// Machine runs a single channel's input queue, one input at a time,
// applying §4.3's per-transition contract: validate, compute the new
// Commitments, persist them, and only then emit any Effect. Exactly one
// Machine goroutine ever touches a given channel's state, regardless of
// how many peer connections, timers, or local callers feed its queue —
// the single-consumer-per-channel actor contract of §9.
type Machine struct {
	mu sync.Mutex

	state State

	channelState *channeldb.OpenChannel
	channel      *lnwallet.LightningChannel

	// closeNeg tracks an in-flight mutual close's closing_signed fee
	// bisection, per §4.4. It's created the moment either side's
	// shutdown is seen and is never persisted — a reconnect mid-
	// negotiation simply restarts it from the Shutdown state.
	closeNeg *closeNegotiation

	feePolicy FeePolicy

	// origins maps an in-flight HTLC's index to the hot Origin that
	// carries its in-memory reply channel — the cold form the Origin
	// wraps is what actually gets persisted alongside the HTLC itself.
	origins map[uint64]Origin

	inputs *queue.ConcurrentQueue

	openTimeout ticker.Ticker
	reconnect   ticker.Ticker

	effects chan Effect

	log btclog.Logger

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewMachine constructs a Machine for a channel already recorded in
// channeldb, wiring it to the serial input queue and timers a fresh
// Machine needs before Start is called.
func NewMachine(state *channeldb.OpenChannel, channel *lnwallet.LightningChannel,
	initial State, feePolicy FeePolicy, log btclog.Logger) *Machine {

	m := &Machine{
		state:        initial,
		channelState: state,
		channel:      channel,
		feePolicy:    feePolicy,
		origins:      make(map[uint64]Origin),
		inputs:       queue.NewConcurrentQueue(64),
		reconnect:    ticker.New(defaultReconnectInterval),
		effects:      make(chan Effect, 64),
		log:          log,
		quit:         make(chan struct{}),
	}

	switch initial {
	case WaitForFundingInternal, WaitForFundingConfirmed:
		m.openTimeout = ticker.New(defaultOpenTimeout)
		m.openTimeout.Resume()
	}

	m.reconnect.Pause()
	if initial == Offline {
		m.reconnect.Resume()
	}

	return m
}

// State returns the Machine's current coarse lifecycle phase.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Effects returns the channel the host should drain for this Machine's
// emitted SendMessage/NotifyClosure/CompleteCommand effects.
func (m *Machine) Effects() <-chan Effect {
	return m.effects
}

// Enqueue hands a single Input to the Machine's serial queue. It never
// blocks on the Machine's own processing — only on the queue's configured
// buffer, matching the bounded-mailbox discipline of §9's actor contract.
func (m *Machine) Enqueue(in Input) {
	m.inputs.ChanIn() <- in
}

// Start launches the Machine's input queue and its run loop.
func (m *Machine) Start() {
	m.inputs.Start()

	m.wg.Add(1)
	go m.run()
}

// Stop drains and halts the Machine. It does not itself close the
// channel — that's a CmdForceClose, delivered like any other Input.
func (m *Machine) Stop() {
	close(m.quit)
	m.wg.Wait()
	m.inputs.Stop()
	if m.openTimeout != nil {
		m.openTimeout.Stop()
	}
	m.reconnect.Stop()
}

// run is the Machine's single consumer loop: it pulls one Input at a time
// off the serial queue and applies it, never processing two concurrently.
func (m *Machine) run() {
	defer m.wg.Done()

	for {
		select {
		case in := <-m.inputs.ChanOut():
			m.step(in.(Input))

		case <-m.timerChan():
			m.step(OpenTimeoutTick{Time: time.Now()})

		case t := <-m.reconnect.Ticks():
			m.step(ReconnectTick{Time: t})

		case <-m.quit:
			return
		}
	}
}

// timerChan returns the open-timeout ticker's channel if one is armed, or
// a nil channel (which blocks forever) otherwise — select on a nil
// channel is a documented no-op, so run's select above stays branchless
// whether or not a timer is currently running.
func (m *Machine) timerChan() <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openTimeout == nil {
		return nil
	}
	return m.openTimeout.Ticks()
}

// step applies a single Input under lock, dispatching by the Machine's
// current state, and emits whatever Effects the transition produced.
func (m *Machine) step(in Input) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Debugf("channel %v: state %v, input %v", m.chanID(), m.state,
		in.inputName())

	effs, err := m.dispatch(in)
	if err != nil {
		m.log.Errorf("channel %v: input %v rejected in state %v: %v",
			m.chanID(), in.inputName(), m.state, err)
	}

	for _, eff := range effs {
		m.effects <- eff
	}
}

func (m *Machine) chanID() lnwire.ChannelID {
	return m.channelState.ChanID
}

// dispatch routes an Input to the handler for the Machine's current
// state. Inputs valid in any live state — disconnection, CmdForceClose,
// and the chain events that drive the closure handler once a commitment
// is on-chain — are handled once here rather than duplicated per state.
func (m *Machine) dispatch(in Input) ([]Effect, error) {
	switch ev := in.(type) {
	case Disconnected:
		return m.handleDisconnected()

	case Reconnected:
		return m.handleReconnected()

	case CmdForceClose:
		return m.handleForceClose(ev)
	}

	switch m.state {
	case WaitForFundingInternal:
		return m.stepFundingInternal(in)
	case WaitForFundingConfirmed:
		return m.stepFundingConfirmed(in)
	case WaitForFundingLocked:
		return m.stepFundingLocked(in)
	case Normal:
		return m.stepNormal(in)
	case Offline:
		return m.stepOffline(in)
	case Shutdown, Negotiating:
		return m.stepClosing(in)
	case Closing, Closed:
		return nil, fmt.Errorf("channel is closing or closed, " +
			"input dropped")
	default:
		return nil, fmt.Errorf("no handler wired for state %v", m.state)
	}
}

// stepFundingInternal handles the funder-only wait for the on-chain
// wallet to construct and broadcast the funding transaction. Building
// that transaction is an external collaborator's job per §6; this
// Machine only reacts once the collaborator reports success or failure.
func (m *Machine) stepFundingInternal(in Input) ([]Effect, error) {
	switch ev := in.(type) {
	case OpenTimeoutTick:
		return m.transitionOpenTimeout(ev)

	case FundingConfirmedEvent:
		return m.transitionFundingConfirmed(ev)
	}

	return nil, fmt.Errorf("unexpected input %v in WaitForFundingInternal",
		in.inputName())
}

// stepFundingConfirmed waits for the funding transaction to reach its
// configured confirmation depth.
func (m *Machine) stepFundingConfirmed(in Input) ([]Effect, error) {
	switch ev := in.(type) {
	case OpenTimeoutTick:
		return m.transitionOpenTimeout(ev)

	case FundingConfirmedEvent:
		return m.transitionFundingConfirmed(ev)
	}

	return nil, fmt.Errorf("unexpected input %v in WaitForFundingConfirmed",
		in.inputName())
}

// stepFundingLocked waits for channel_ready to be exchanged in both
// directions before the channel becomes Normal.
func (m *Machine) stepFundingLocked(in Input) ([]Effect, error) {
	msg, ok := in.(PeerMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected input %v in "+
			"WaitForFundingLocked", in.inputName())
	}

	if _, ok := msg.Msg.(*lnwire.ChannelReady); !ok {
		return nil, fmt.Errorf("unexpected message %T in "+
			"WaitForFundingLocked", msg.Msg)
	}

	m.state = Normal
	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	return nil, nil
}

// transitionOpenTimeout implements §4.3's "Open timeout" edge case: if the
// funding transaction hasn't confirmed before the configured deadline, the
// channel is abandoned, not retried.
func (m *Machine) transitionOpenTimeout(_ OpenTimeoutTick) ([]Effect, error) {
	m.state = Closed
	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	if m.openTimeout != nil {
		m.openTimeout.Stop()
		m.openTimeout = nil
	}

	return []Effect{NotifyClosure{Reason: CloseOpenTimeout}}, nil
}

// validateFundingTx confirms the as-mined funding transaction actually pays
// into the multisig output both sides negotiated at FundingOutpoint, and
// for the correct amount, before the channel is trusted to proceed.
func (m *Machine) validateFundingTx(fundingTx *wire.MsgTx) error {
	localKey := m.channelState.LocalChanCfg.MultiSigKey.PubKey
	remoteKey := m.channelState.RemoteChanCfg.MultiSigKey.PubKey

	multiSigScript, err := input.GenMultiSigScript(
		localKey.SerializeCompressed(),
		remoteKey.SerializeCompressed(),
	)
	if err != nil {
		return err
	}

	witnessScript, err := input.WitnessScriptHash(multiSigScript)
	if err != nil {
		return err
	}

	_, err = chanvalidate.Validate(&chanvalidate.Context{
		Locator: &chanvalidate.OutPointChanLocator{
			ChanPoint: m.channelState.FundingOutpoint,
		},
		MultiSigPkScript: witnessScript,
		FundingTx:        fundingTx,
	})
	return err
}

// transitionFundingConfirmed advances a funding-confirmed channel to
// WaitForFundingLocked and emits the channel_ready we owe the peer in
// response.
func (m *Machine) transitionFundingConfirmed(
	ev FundingConfirmedEvent) ([]Effect, error) {

	if ev.FundingTx != nil {
		if err := m.validateFundingTx(ev.FundingTx); err != nil {
			return nil, fmt.Errorf("funding transaction failed "+
				"validation: %w", err)
		}
	}

	m.state = WaitForFundingLocked
	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	if m.openTimeout != nil {
		m.openTimeout.Stop()
		m.openTimeout = nil
	}

	readyPoint, err := m.channel.ReestablishPoint()
	if err != nil {
		return nil, err
	}

	ready := &lnwire.ChannelReady{
		ChanID:                 m.chanID(),
		NextPerCommitmentPoint: readyPoint.LocalUnrevokedCommitPoint,
	}

	return []Effect{SendMessage{Msg: ready}}, nil
}

// stepNormal handles every input a fully operational channel accepts:
// local commands, peer updates, commitment exchange, and the fee and
// shutdown paths that can only begin from Normal.
func (m *Machine) stepNormal(in Input) ([]Effect, error) {
	switch ev := in.(type) {
	case CmdAddHTLC:
		return m.handleCmdAddHTLC(ev)
	case CmdFulfillHTLC:
		return m.handleCmdFulfillHTLC(ev)
	case CmdFailHTLC:
		return m.handleCmdFailHTLC(ev)
	case CmdUpdateFee:
		return m.handleCmdUpdateFee(ev)
	case CmdSign:
		return m.handleCmdSign(ev)
	case CmdClose:
		return m.handleCmdClose(ev)

	case PeerMessage:
		return m.handlePeerMessageNormal(ev)

	case CommitmentSpentEvent:
		return m.handleCommitmentSpent(ev)
	}

	return nil, fmt.Errorf("unexpected input %v in Normal", in.inputName())
}

func (m *Machine) handleCmdAddHTLC(ev CmdAddHTLC) ([]Effect, error) {
	add := &lnwire.UpdateAddHTLC{
		ChanID:      m.chanID(),
		Amount:      ev.Amount,
		PaymentHash: ev.PaymentHash,
		Expiry:      ev.Expiry,
		OnionBlob:   ev.OnionBlob,
	}

	htlcIdx, err := m.channel.AddHTLC(add)
	if err != nil {
		return m.completeWith(ev.Result, nil, err), nil
	}
	add.ID = htlcIdx

	m.origins[htlcIdx] = ev.Origin

	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	return m.completeWith(ev.Result, htlcIdx, nil,
		SendMessage{Msg: add}), nil
}

func (m *Machine) handleCmdFulfillHTLC(ev CmdFulfillHTLC) ([]Effect, error) {
	fulfill := &lnwire.UpdateFulfillHTLC{
		ChanID:          m.chanID(),
		ID:              ev.HtlcIndex,
		PaymentPreimage: ev.Preimage,
	}

	if err := m.channel.SettleHTLC(ev.Preimage, ev.HtlcIndex); err != nil {
		return m.completeWith(ev.Result, nil, err), nil
	}

	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	return m.completeWith(ev.Result, nil, nil,
		SendMessage{Msg: fulfill}), nil
}

func (m *Machine) handleCmdFailHTLC(ev CmdFailHTLC) ([]Effect, error) {
	fail := &lnwire.UpdateFailHTLC{
		ChanID: m.chanID(),
		ID:     ev.HtlcIndex,
		Reason: ev.Reason,
	}

	if err := m.channel.FailHTLC(ev.HtlcIndex, ev.Reason); err != nil {
		return m.completeWith(ev.Result, nil, err), nil
	}

	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	return m.completeWith(ev.Result, nil, nil,
		SendMessage{Msg: fail}), nil
}

// handleCmdUpdateFee applies §4.3's fee update rule: only the funder may
// propose one, and it must pass FeePolicy before being sent.
func (m *Machine) handleCmdUpdateFee(ev CmdUpdateFee) ([]Effect, error) {
	if !m.channelState.IsInitiator {
		err := fmt.Errorf("only the channel funder may propose a fee update")
		return m.completeWith(ev.Result, nil, err), nil
	}

	localFeePerKw := m.channelState.LocalCommitment.FeePerKw
	funderBalance := m.channelState.LocalCommitment.LocalBalance.ToSatoshis()
	funderReserve := m.channelState.LocalChanCfg.ChanReserve

	feePerKw := btcutil.Amount(ev.FeePerKw)
	if err := m.feePolicy.ValidateFeeUpdate(feePerKw, localFeePerKw,
		funderBalance, funderReserve); err != nil {

		return m.completeWith(ev.Result, nil, err), nil
	}

	msg := &lnwire.UpdateFee{ChanID: m.chanID(), FeePerKw: ev.FeePerKw}

	return m.completeWith(ev.Result, nil, nil, SendMessage{Msg: msg}), nil
}

// sigToWire converts an input.Signature returned by the channel's signer
// into the fixed-size lnwire.Sig carried on the wire. Every signer this
// Machine is wired to produces *ecdsa.Signature values.
func sigToWire(sig input.Signature) (lnwire.Sig, error) {
	ecdsaSig, ok := sig.(*ecdsa.Signature)
	if !ok {
		return lnwire.Sig{}, fmt.Errorf("unsupported signature type %T", sig)
	}

	return lnwire.NewSigFromSignature(ecdsaSig)
}

func (m *Machine) handleCmdSign(ev CmdSign) ([]Effect, error) {
	sig, htlcSigs, err := m.channel.SignNextCommitment()
	if err != nil {
		return m.completeWith(ev.Result, nil, err), nil
	}

	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	wireSigs := make([]lnwire.Sig, len(htlcSigs))
	for i, s := range htlcSigs {
		wireSig, err := sigToWire(s)
		if err != nil {
			return nil, err
		}
		wireSigs[i] = wireSig
	}

	wireSig, err := sigToWire(sig)
	if err != nil {
		return nil, err
	}

	commitSig := &lnwire.CommitSig{
		ChanID:    m.chanID(),
		CommitSig: wireSig,
		HtlcSigs:  wireSigs,
	}

	return m.completeWith(ev.Result, nil, nil,
		SendMessage{Msg: commitSig}), nil
}

// handleCmdClose begins a mutual close, per §4.4: once issued, no further
// HTLCs may be added in either direction on this channel.
func (m *Machine) handleCmdClose(ev CmdClose) ([]Effect, error) {
	m.state = Shutdown

	if m.closeNeg == nil {
		m.closeNeg = &closeNegotiation{}
	}
	m.closeNeg.ourDeliveryScript = ev.DeliveryScript

	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	msg := &lnwire.Shutdown{
		ChannelID: m.chanID(),
		Address:   lnwire.DeliveryAddress(ev.DeliveryScript),
	}
	effs := m.completeWith(ev.Result, nil, nil, SendMessage{Msg: msg})

	if m.closeNeg.theirDeliveryScript == nil {
		return effs, nil
	}

	moreEffs, err := m.beginNegotiation()
	if err != nil {
		return nil, err
	}

	return append(effs, moreEffs...), nil
}

// handleForceClose implements §5's cancellation rule: a force close is
// immediate and takes priority over any pending negotiation.
func (m *Machine) handleForceClose(ev CmdForceClose) ([]Effect, error) {
	summary, err := m.channel.ForceClose()
	if err != nil {
		return m.completeWith(ev.Result, nil, err), nil
	}

	m.state = Closing
	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	effs := m.completeWith(ev.Result, nil, nil,
		BroadcastTx{Tx: summary.CloseTx})
	effs = append(effs, NotifyClosure{
		Reason:     CloseForce,
		ForceClose: summary,
	})

	return effs, nil
}

func (m *Machine) handleCommitmentSpent(ev CommitmentSpentEvent) ([]Effect, error) {
	m.state = Closing
	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	if !ev.IsOurCommit {
		summary, err := m.channel.ForceCloseRemote()
		if err != nil {
			return nil, err
		}

		return []Effect{
			NotifyClosure{
				Reason:     CloseUnilateralRemote,
				ForceClose: summary,
			},
		}, nil
	}

	summary, err := m.channel.ForceClose()
	if err != nil {
		return nil, err
	}

	return []Effect{
		NotifyClosure{
			Reason:     CloseUnilateralLocal,
			ForceClose: summary,
		},
	}, nil
}

// handlePeerMessageNormal dispatches the subset of peer messages valid in
// Normal operation.
func (m *Machine) handlePeerMessageNormal(ev PeerMessage) ([]Effect, error) {
	switch msg := ev.Msg.(type) {
	case *lnwire.UpdateAddHTLC:
		_, err := m.channel.ReceiveHTLC(msg)
		if err != nil {
			return nil, err
		}
		return nil, m.channelState.PutOpenChannel()

	case *lnwire.UpdateFulfillHTLC:
		err := m.channel.ReceiveHTLCSettle(
			msg.PaymentPreimage, msg.ID,
		)
		if err != nil {
			return nil, err
		}
		delete(m.origins, msg.ID)
		return nil, m.channelState.PutOpenChannel()

	case *lnwire.UpdateFailHTLC:
		delete(m.origins, msg.ID)
		return nil, m.channelState.PutOpenChannel()

	case *lnwire.UpdateFee:
		return m.handlePeerFeeUpdate(msg)

	case *lnwire.CommitSig:
		return m.handlePeerCommitSig(msg)

	case *lnwire.RevokeAndAck:
		return m.handlePeerRevokeAndAck(msg)

	case *lnwire.Shutdown:
		return m.handlePeerShutdown(msg)

	case *lnwire.ChannelReestablish:
		return m.handleReestablish(msg)

	case *lnwire.Warning:
		m.log.Warnf("channel %v: received warning: %x", m.chanID(),
			msg.Data)
		return nil, nil
	}

	return nil, fmt.Errorf("unexpected message %T in Normal", ev.Msg)
}

// handlePeerFeeUpdate validates an incoming fee proposal from the funder
// against our own expectation before accepting it onto the pending
// commitment.
func (m *Machine) handlePeerFeeUpdate(msg *lnwire.UpdateFee) ([]Effect, error) {
	if m.channelState.IsInitiator {
		return nil, fmt.Errorf("received a fee update from a " +
			"non-funder peer")
	}

	localFeePerKw := m.channelState.LocalCommitment.FeePerKw
	remoteBalance := m.channelState.RemoteCommitment.RemoteBalance.ToSatoshis()
	remoteReserve := m.channelState.RemoteChanCfg.ChanReserve

	feePerKw := btcutil.Amount(msg.FeePerKw)
	if err := m.feePolicy.ValidateFeeUpdate(feePerKw, localFeePerKw,
		remoteBalance, remoteReserve); err != nil {

		return nil, err
	}

	return nil, nil
}

func (m *Machine) handlePeerCommitSig(msg *lnwire.CommitSig) ([]Effect, error) {
	commitSig, err := msg.CommitSig.ToSignature()
	if err != nil {
		return nil, err
	}

	htlcSigs := make([]input.Signature, len(msg.HtlcSigs))
	for i, s := range msg.HtlcSigs {
		sig, err := s.ToSignature()
		if err != nil {
			return nil, err
		}
		htlcSigs[i] = sig
	}

	if err := m.channel.ReceiveNewCommitment(commitSig, htlcSigs); err != nil {
		return nil, err
	}

	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	revoke, err := m.channel.RevokeCurrentCommitment()
	if err != nil {
		return nil, err
	}

	return []Effect{SendMessage{Msg: revoke}}, nil
}

func (m *Machine) handlePeerRevokeAndAck(msg *lnwire.RevokeAndAck) ([]Effect, error) {
	if err := m.channel.ReceiveRevocation(msg); err != nil {
		return nil, err
	}

	return nil, m.channelState.PutOpenChannel()
}

// handleReestablish compares the peer's channel_reestablish against our
// own view and retransmits whatever it asks for, or moves the channel to
// WaitForRemotePublishFutureCommitment if either side appears to have
// lost state, per §4.3's "Reconnection" paragraph.
func (m *Machine) handleReestablish(msg *lnwire.ChannelReestablish) ([]Effect, error) {
	mine, err := m.channel.ReestablishPoint()
	if err != nil {
		return nil, err
	}

	action, err := ComputeReestablishAction(mine, msg)
	if err != nil {
		return nil, err
	}

	if action.WeLostState {
		m.state = WaitForRemotePublishFutureCommitment
		if err := m.channelState.PutOpenChannel(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if action.PeerLostState {
		summary, err := m.channel.ForceClose()
		if err != nil {
			return nil, err
		}

		m.state = Closing
		if err := m.channelState.PutOpenChannel(); err != nil {
			return nil, err
		}
		return []Effect{
			BroadcastTx{Tx: summary.CloseTx},
			NotifyClosure{
				Reason:     CloseUnilateralLocal,
				ForceClose: summary,
			},
		}, nil
	}

	var effs []Effect
	if action.ResendRevocation {
		revoke, err := m.channel.RevokeCurrentCommitment()
		if err != nil {
			return nil, err
		}
		effs = append(effs, SendMessage{Msg: revoke})
	}
	if action.ResendCommitSig {
		sig, _, err := m.channel.SignNextCommitment()
		if err != nil {
			return nil, err
		}
		wireSig, err := sigToWire(sig)
		if err != nil {
			return nil, err
		}
		effs = append(effs, SendMessage{Msg: &lnwire.CommitSig{
			ChanID:    m.chanID(),
			CommitSig: wireSig,
		}})
	}

	return effs, nil
}

// stepOffline preserves a Normal channel's data while its peer connection
// is down: no commands may progress, but a reconnect or a unilateral
// close elsewhere on-chain still must be handled.
func (m *Machine) stepOffline(in Input) ([]Effect, error) {
	switch in.(type) {
	case ReconnectTick:
		return nil, nil
	}

	if ev, ok := in.(CommitmentSpentEvent); ok {
		return m.handleCommitmentSpent(ev)
	}

	return nil, fmt.Errorf("channel offline, input %v deferred",
		in.inputName())
}

// stepClosing handles Shutdown and Negotiating: the cooperative-close fee
// bisection of closing_signed, per §4.4.
func (m *Machine) stepClosing(in Input) ([]Effect, error) {
	msg, ok := in.(PeerMessage)
	if !ok {
		if ev, ok := in.(CommitmentSpentEvent); ok {
			return m.handleCommitmentSpent(ev)
		}
		return nil, fmt.Errorf("unexpected input %v while closing",
			in.inputName())
	}

	switch wireMsg := msg.Msg.(type) {
	case *lnwire.Shutdown:
		return m.handlePeerShutdown(wireMsg)

	case *lnwire.ClosingSigned:
		return m.handlePeerClosingSigned(wireMsg)
	}

	return nil, fmt.Errorf("unexpected message %T while closing", msg.Msg)
}

func (m *Machine) handleDisconnected() ([]Effect, error) {
	if !m.state.hasCommitments() {
		return nil, nil
	}

	m.state = Offline
	m.reconnect.Resume()
	return nil, m.channelState.PutOpenChannel()
}

func (m *Machine) handleReconnected() ([]Effect, error) {
	if m.state != Offline {
		return nil, nil
	}

	mine, err := m.channel.ReestablishPoint()
	if err != nil {
		return nil, err
	}

	m.state = Normal
	m.reconnect.Pause()
	if err := m.channelState.PutOpenChannel(); err != nil {
		return nil, err
	}

	msg := &lnwire.ChannelReestablish{
		ChanID:                    m.chanID(),
		NextLocalCommitHeight:     mine.NextLocalCommitHeight,
		RemoteCommitTailHeight:    mine.RemoteCommitTailHeight,
		LastRemoteCommitSecret:    mine.LastRemoteCommitSecret,
		LocalUnrevokedCommitPoint: mine.LocalUnrevokedCommitPoint,
	}

	return []Effect{SendMessage{Msg: msg}}, nil
}

// completeWith packages a command's result into a CompleteCommand Effect
// alongside whatever other Effects the transition produced.
func (m *Machine) completeWith(result chan<- CmdResult, value interface{},
	err error, rest ...Effect) []Effect {

	if result == nil {
		return rest
	}

	effs := make([]Effect, 0, len(rest)+1)
	effs = append(effs, CompleteCommand{
		Result: result,
		Value:  CmdResult{Value: value, Err: err},
	})
	effs = append(effs, rest...)

	return effs
}

package chanfsm

import (
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/blockforge/lnchand/lnwire"
)

// Input is the single type every event on a channel's serial queue
// implements: peer messages (typed by BOLT-2), user commands, blockchain
// events, timer events, and disconnection notifications, per §4.3's
// "Inputs" paragraph.
type Input interface {
	// inputName names the concrete input kind for logging.
	inputName() string
}

// PeerMessage wraps any lnwire.Message received from the channel's peer.
type PeerMessage struct {
	Msg lnwire.Message
}

func (PeerMessage) inputName() string { return "PeerMessage" }

// CmdAddHTLC requests that a new HTLC be offered on the channel. Result
// delivers the assigned HTLC index or a failure, never a panic — per the
// AMBIENT STACK's "local command failures" error shape.
type CmdAddHTLC struct {
	Amount      lnwire.MilliSatoshi
	PaymentHash [32]byte
	Expiry      uint32
	OnionBlob   [lnwire.OnionPacketSize]byte
	Origin      Origin
	Result      chan<- CmdResult
}

func (CmdAddHTLC) inputName() string { return "CmdAddHTLC" }

// CmdFulfillHTLC requests that an HTLC previously received on this channel
// be settled with the given preimage.
type CmdFulfillHTLC struct {
	HtlcIndex uint64
	Preimage  [32]byte
	Result    chan<- CmdResult
}

func (CmdFulfillHTLC) inputName() string { return "CmdFulfillHTLC" }

// CmdFailHTLC requests that an HTLC previously received on this channel be
// failed with the given onion-encrypted reason.
type CmdFailHTLC struct {
	HtlcIndex uint64
	Reason    []byte
	Result    chan<- CmdResult
}

func (CmdFailHTLC) inputName() string { return "CmdFailHTLC" }

// CmdUpdateFee requests a new commitment feerate. Only the funder's request
// is honored; see fee.go for the receiver-side tolerance check this same
// command type drives when it arrives as a PeerMessage-wrapped UpdateFee
// instead.
type CmdUpdateFee struct {
	FeePerKw uint32
	Result   chan<- CmdResult
}

func (CmdUpdateFee) inputName() string { return "CmdUpdateFee" }

// CmdSign requests that a commitment_signed be produced and sent covering
// every update appended since the last one, per §4.3's CMD_SIGN.
type CmdSign struct {
	Result chan<- CmdResult
}

func (CmdSign) inputName() string { return "CmdSign" }

// CmdClose requests a cooperative (mutual) close. The channel enters
// Shutdown as soon as the command is handled.
type CmdClose struct {
	DeliveryScript []byte
	Result         chan<- CmdResult
}

func (CmdClose) inputName() string { return "CmdClose" }

// CmdForceClose requests an immediate unilateral close: the current
// commitment is broadcast without negotiation. Per §5's cancellation rule
// this is immediate — pending commands fail, subsequent ones are rejected.
type CmdForceClose struct {
	Result chan<- CmdResult
}

func (CmdForceClose) inputName() string { return "CmdForceClose" }

// CmdResult is delivered to a command's Result channel: either a success
// value (command-specific, e.g. the new HTLC's index) or a typed failure,
// matching the AMBIENT STACK's "local command failures" error shape rather
// than a panic or log.Fatal.
type CmdResult struct {
	Value interface{}
	Err   error
}

// Origin is the hot form of per-HTLC bookkeeping: it carries the in-memory
// reply mechanism that cannot cross the persistence boundary (DESIGN NOTES
// "Hot/cold origins"). The Machine keeps hot Origins in a sibling in-memory
// map keyed by HtlcIndex and writes only the cold form (channeldb.Origin)
// to the database.
type Origin struct {
	Cold  interface{}
	Reply chan<- CmdResult
}

// FundingConfirmedEvent reports that the channel's funding transaction has
// reached its configured confirmation depth. FundingTx carries the
// as-confirmed transaction so the transition can verify it actually pays
// into the multisig output both sides negotiated before trusting it.
type FundingConfirmedEvent struct {
	BlockHeight uint32
	FundingTx   *wire.MsgTx
}

func (FundingConfirmedEvent) inputName() string { return "FundingConfirmedEvent" }

// CommitmentSpentEvent reports that some version of this channel's
// commitment transaction has appeared on-chain — the trigger for the
// closure handler's unilateral/revoked-commitment branches (§4.4).
type CommitmentSpentEvent struct {
	SpendingHeight uint32
	SpendingTxid   [32]byte
	IsOurCommit    bool
}

func (CommitmentSpentEvent) inputName() string { return "CommitmentSpentEvent" }

// HtlcOutputSpentEvent reports that an HTLC output on a broadcast
// commitment has been spent, either by a timeout/success claim or by the
// counterparty racing it.
type HtlcOutputSpentEvent struct {
	HtlcIndex      uint64
	SpendingHeight uint32
}

func (HtlcOutputSpentEvent) inputName() string { return "HtlcOutputSpentEvent" }

// BlockHeightTick reports a new chain tip, driving CLTV/CSV-timer-gated
// logic in the closure handler.
type BlockHeightTick struct {
	Height uint32
}

func (BlockHeightTick) inputName() string { return "BlockHeightTick" }

// OpenTimeoutTick is delivered if the funding transaction hasn't confirmed
// before the configured channel-open timeout elapses.
type OpenTimeoutTick struct {
	Time time.Time
}

func (OpenTimeoutTick) inputName() string { return "OpenTimeoutTick" }

// ReconnectTick drives periodic reconnection attempts while Offline.
type ReconnectTick struct {
	Time time.Time
}

func (ReconnectTick) inputName() string { return "ReconnectTick" }

// Disconnected reports that the peer connection has dropped.
type Disconnected struct{}

func (Disconnected) inputName() string { return "Disconnected" }

// Reconnected reports that the peer connection has been reestablished. It
// carries no data; the Machine builds the channel_reestablish it sends in
// response from its own channel state.
type Reconnected struct{}

func (Reconnected) inputName() string { return "Reconnected" }

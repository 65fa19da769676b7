// Package chanfsm implements the per-channel state machine of §4.3: a
// single task per channel, consuming one serial queue of peer messages,
// user commands, chain events, and timers, and applying the persist-then-
// act contract to every transition before any effect reaches the wire or
// the chain.
package chanfsm

import "fmt"

// State tags a channel's coarse lifecycle phase. The fine-grained data that
// goes with a given tag — which HTLCs are outstanding, which commitment
// point was last exchanged — lives on the Machine itself, not on State;
// State exists purely to gate which inputs a transition will accept.
type State uint8

const (
	// WaitForInit is the zero state of a Machine that has not yet been
	// handed an opening or accepting role.
	WaitForInit State = iota

	// WaitForOpenChannel is the fundee's wait for the funder's
	// open_channel.
	WaitForOpenChannel

	// WaitForAcceptChannel is the funder's wait for the fundee's
	// accept_channel.
	WaitForAcceptChannel

	// WaitForFundingCreated is the fundee's wait for funding_created.
	WaitForFundingCreated

	// WaitForFundingSigned is the funder's wait for funding_signed.
	WaitForFundingSigned

	// WaitForFundingInternal is the funder-only wait for the on-chain
	// wallet to actually construct and broadcast the funding
	// transaction (external collaborator, §6's make_funding_tx).
	WaitForFundingInternal

	// WaitForFundingConfirmed is the wait for the funding transaction to
	// reach its required confirmation depth.
	WaitForFundingConfirmed

	// WaitForFundingLocked is the wait for both sides' channel_ready
	// (funding_locked) exchange.
	WaitForFundingLocked

	// Normal is a fully operational channel: HTLCs may be added, signed,
	// settled, and failed.
	Normal

	// Offline is a shadow state preserving a Normal channel's data while
	// its peer connection is down.
	Offline

	// Shutdown marks a channel that has begun cooperative closure
	// negotiation but has not yet agreed on a closing fee.
	Shutdown

	// Negotiating is the closing_signed fee-bisection phase of a mutual
	// close.
	Negotiating

	// Closing marks a channel whose closing transaction — mutual or
	// unilateral — has been broadcast but not yet confirmed to the
	// configured depth.
	Closing

	// Closed is the terminal state: the closing transaction has reached
	// its confirmation depth.
	Closed

	// WaitForRemotePublishFutureCommitment is an exceptional branch
	// reachable from any state with live commitments: channel_reestablish
	// revealed that the peer is ahead of us (we are the one who appears
	// to have lost state), so we wait for them to either force-close or
	// disclose a commitment we can recognize before doing anything that
	// could broadcast a stale commitment.
	WaitForRemotePublishFutureCommitment
)

// String returns the human-readable name of a State.
func (s State) String() string {
	switch s {
	case WaitForInit:
		return "WaitForInit"
	case WaitForOpenChannel:
		return "WaitForOpenChannel"
	case WaitForAcceptChannel:
		return "WaitForAcceptChannel"
	case WaitForFundingCreated:
		return "WaitForFundingCreated"
	case WaitForFundingSigned:
		return "WaitForFundingSigned"
	case WaitForFundingInternal:
		return "WaitForFundingInternal"
	case WaitForFundingConfirmed:
		return "WaitForFundingConfirmed"
	case WaitForFundingLocked:
		return "WaitForFundingLocked"
	case Normal:
		return "Normal"
	case Offline:
		return "Offline"
	case Shutdown:
		return "Shutdown"
	case Negotiating:
		return "Negotiating"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	case WaitForRemotePublishFutureCommitment:
		return "WaitForRemotePublishFutureCommitment"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// hasCommitments reports whether a channel in this state already has a
// signed commitment, and so is eligible for the Offline and
// WaitForRemotePublishFutureCommitment exceptional branches on
// disconnection or a reestablish mismatch.
func (s State) hasCommitments() bool {
	switch s {
	case WaitForFundingConfirmed, WaitForFundingLocked, Normal, Offline,
		Shutdown, Negotiating:
		return true
	default:
		return false
	}
}

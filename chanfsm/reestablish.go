package chanfsm

import (
	"fmt"

	"github.com/blockforge/lnchand/lnwallet"
	"github.com/blockforge/lnchand/lnwire"
)

// ReestablishAction is what a received channel_reestablish obligates this
// side to do, per §4.3's "Reconnection" paragraph: retransmit a message
// that apparently never reached the peer, or recognize that one side has
// lost state and must not continue operating the channel normally.
type ReestablishAction struct {
	// ResendRevocation indicates our revoke_and_ack for the commitment
	// one below our current local tail apparently never reached the
	// peer, and must be resent before anything else.
	ResendRevocation bool

	// ResendCommitSig indicates our commitment_signed for the current
	// tip of the remote party's chain apparently never reached the
	// peer, and must be resent, along with its per-HTLC signatures.
	ResendCommitSig bool

	// PeerLostState is set when the peer's reported heights are behind
	// ours by more than the single retransmission BOLT-2 tolerates —
	// the peer has very likely lost state. The channel should be
	// force-closed rather than continue.
	PeerLostState bool

	// WeLostState is set when the peer claims to hold a revocation for
	// one of our commitments that we don't believe we've sent, or
	// claims we've already signed a commitment height we have no
	// record of. We very likely lost state ourselves; the channel must
	// move to WaitForRemotePublishFutureCommitment rather than risk
	// broadcasting or revoking anything further.
	WeLostState bool
}

// ComputeReestablishAction compares this side's own ReestablishPoint
// against the peer's received channel_reestablish and decides what
// retransmission, if any, is owed, or whether either side appears to have
// lost state.
//
// The three error branches below (peer ahead by more than one, peer behind
// by more than one, peer claims a revocation height we haven't reached)
// are all intentionally folded into PeerLostState/WeLostState rather than
// returned as plain errors: per §4.3, a reestablish mismatch is not a
// protocol violation to disconnect over, it's the trigger for the
// exceptional close branches the state machine itself has to run.
func ComputeReestablishAction(mine *lnwallet.ReestablishPoint,
	theirs *lnwire.ChannelReestablish) (*ReestablishAction, error) {

	if mine == nil || theirs == nil {
		return nil, fmt.Errorf("reestablish requires both a local " +
			"and a remote point")
	}

	action := &ReestablishAction{}

	switch {
	case theirs.NextLocalCommitHeight == mine.PendingRemoteCommitHeight+1:
		// The peer has everything we've sent it; nothing owed.

	case theirs.NextLocalCommitHeight == mine.PendingRemoteCommitHeight:
		// The peer never got (or never processed) our last
		// commitment_signed for its chain.
		action.ResendCommitSig = true

	case theirs.NextLocalCommitHeight > mine.PendingRemoteCommitHeight+1:
		// The peer expects a commitment height we have no record of
		// proposing — we're the one who has fallen behind.
		action.WeLostState = true

	default:
		// The peer expects a commitment height more than one below
		// what we've already sent — it has fallen behind by more
		// than a single retransmission window.
		action.PeerLostState = true
	}

	switch {
	case theirs.RemoteCommitTailHeight == mine.LocalCommitTailHeight:
		// The peer has revoked exactly what we think it has.

	case theirs.RemoteCommitTailHeight+1 == mine.LocalCommitTailHeight:
		// Our revoke_and_ack for the commitment just below our
		// current tail never reached the peer.
		action.ResendRevocation = true

	case theirs.RemoteCommitTailHeight > mine.LocalCommitTailHeight:
		// The peer claims to have revoked one of our commitments
		// that we don't believe we've advanced past — it's holding
		// state we don't recognize as ours.
		action.WeLostState = true

	default:
		action.PeerLostState = true
	}

	return action, nil
}

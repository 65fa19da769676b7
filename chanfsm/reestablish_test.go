package chanfsm

import (
	"testing"

	"github.com/blockforge/lnchand/lnwallet"
	"github.com/blockforge/lnchand/lnwire"
	"github.com/stretchr/testify/require"
)

func testPoint(localTail, pendingRemote uint64) *lnwallet.ReestablishPoint {
	return &lnwallet.ReestablishPoint{
		LocalCommitTailHeight:     localTail,
		PendingRemoteCommitHeight: pendingRemote,
	}
}

func testReestablish(nextLocal, remoteTail uint64) *lnwire.ChannelReestablish {
	return &lnwire.ChannelReestablish{
		NextLocalCommitHeight:  nextLocal,
		RemoteCommitTailHeight: remoteTail,
	}
}

// TestComputeReestablishActionInSync asserts that two sides whose reported
// heights exactly match each other's expectation owe each other nothing.
func TestComputeReestablishActionInSync(t *testing.T) {
	t.Parallel()

	mine := testPoint(5, 5)
	theirs := testReestablish(6, 5)

	action, err := ComputeReestablishAction(mine, theirs)
	require.NoError(t, err)
	require.False(t, action.ResendRevocation)
	require.False(t, action.ResendCommitSig)
	require.False(t, action.PeerLostState)
	require.False(t, action.WeLostState)
}

// TestComputeReestablishActionResendCommitSig asserts that a peer reporting
// the same NextLocalCommitHeight we've already sent a commit_sig for (that
// apparently never arrived) triggers a resend rather than a lost-state
// branch.
func TestComputeReestablishActionResendCommitSig(t *testing.T) {
	t.Parallel()

	mine := testPoint(5, 5)
	theirs := testReestablish(5, 5)

	action, err := ComputeReestablishAction(mine, theirs)
	require.NoError(t, err)
	require.True(t, action.ResendCommitSig)
	require.False(t, action.WeLostState)
	require.False(t, action.PeerLostState)
}

// TestComputeReestablishActionResendRevocation asserts that a peer claiming
// its commit tail is one behind ours triggers a revocation resend.
func TestComputeReestablishActionResendRevocation(t *testing.T) {
	t.Parallel()

	mine := testPoint(5, 5)
	theirs := testReestablish(6, 4)

	action, err := ComputeReestablishAction(mine, theirs)
	require.NoError(t, err)
	require.True(t, action.ResendRevocation)
	require.False(t, action.WeLostState)
	require.False(t, action.PeerLostState)
}

// TestComputeReestablishActionWeLostState asserts that a peer claiming a
// commit height we have no record of sending puts us in the
// WaitForRemotePublishFutureCommitment branch rather than a normal resend.
func TestComputeReestablishActionWeLostState(t *testing.T) {
	t.Parallel()

	mine := testPoint(5, 5)
	theirs := testReestablish(8, 5)

	action, err := ComputeReestablishAction(mine, theirs)
	require.NoError(t, err)
	require.True(t, action.WeLostState)
}

// TestComputeReestablishActionPeerLostState asserts that a peer reporting a
// height more than one retransmission behind ours is treated as having
// lost state, triggering a force close rather than an endless resend.
func TestComputeReestablishActionPeerLostState(t *testing.T) {
	t.Parallel()

	mine := testPoint(5, 5)
	theirs := testReestablish(2, 5)

	action, err := ComputeReestablishAction(mine, theirs)
	require.NoError(t, err)
	require.True(t, action.PeerLostState)
}

// TestComputeReestablishActionRequiresBothPoints asserts the guard against
// a nil point on either side.
func TestComputeReestablishActionRequiresBothPoints(t *testing.T) {
	t.Parallel()

	_, err := ComputeReestablishAction(nil, testReestablish(1, 0))
	require.Error(t, err)

	_, err = ComputeReestablishAction(testPoint(0, 0), nil)
	require.Error(t, err)
}

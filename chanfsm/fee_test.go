package chanfsm

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

func testPolicy() FeePolicy {
	return FeePolicy{
		MinRelayFeePerKw:    btcutil.Amount(250),
		ToleranceMultiplier: 10,
	}
}

// TestValidateFeeUpdateAccepted asserts that a feerate at or above both the
// mempool minimum and the local expectation, and within the tolerance
// ceiling, is accepted.
func TestValidateFeeUpdateAccepted(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	err := p.ValidateFeeUpdate(500, 253, 1_000_000, 10_000)
	require.NoError(t, err)
}

// TestValidateFeeUpdateBelowReserve asserts that a fee update is rejected
// outright if applying it would drop the funder below its channel reserve,
// regardless of how reasonable the feerate itself is.
func TestValidateFeeUpdateBelowReserve(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	err := p.ValidateFeeUpdate(300, 253, 5_000, 10_000)
	require.ErrorIs(t, err, ErrFunderBelowReserve)
}

// TestValidateFeeUpdateBelowMinRelay asserts that a proposal under the
// configured mempool minimum is rejected even if it's above the local fee
// expectation.
func TestValidateFeeUpdateBelowMinRelay(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	err := p.ValidateFeeUpdate(100, 50, 1_000_000, 10_000)
	require.ErrorIs(t, err, ErrFeeTooLow)
}

// TestValidateFeeUpdateBelowLocalExpectation asserts that a proposal below
// our own current feerate is rejected as too low, not silently accepted as
// a downward adjustment — only the funder proposes fee changes, and a
// decrease invites a stuck commitment if the mempool has since risen.
func TestValidateFeeUpdateBelowLocalExpectation(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	err := p.ValidateFeeUpdate(300, 500, 1_000_000, 10_000)
	require.ErrorIs(t, err, ErrFeeTooLow)
}

// TestValidateFeeUpdateAboveTolerance asserts that a proposal more than
// ToleranceMultiplier above the local feerate is rejected as too
// aggressive.
func TestValidateFeeUpdateAboveTolerance(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	err := p.ValidateFeeUpdate(10_000, 253, 1_000_000, 10_000)
	require.ErrorIs(t, err, ErrFeeTooHigh)
}

package chanfsm

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// FeePolicy bounds the feerates this Machine will accept or propose for a
// channel's commitment transaction, per §4.3's "Fee update" paragraph.
type FeePolicy struct {
	// MinRelayFeePerKw is the configured mempool minimum feerate; a
	// proposal below this is always rejected regardless of tolerance.
	MinRelayFeePerKw btcutil.Amount

	// ToleranceMultiplier caps how much higher than our own locally
	// expected feerate we will accept a funder's update before
	// rejecting it as too aggressive. A proposal below our expectation
	// is rejected outright — only upward moves get a tolerance window.
	ToleranceMultiplier float64
}

// ErrFeeTooLow is returned when a proposed feerate falls below the
// configured mempool minimum, or below the local feerate expectation.
var ErrFeeTooLow = fmt.Errorf("proposed feerate is too low")

// ErrFeeTooHigh is returned when a proposed feerate exceeds the configured
// tolerance above the local feerate expectation.
var ErrFeeTooHigh = fmt.Errorf("proposed feerate exceeds tolerance")

// ErrFunderBelowReserve is returned when applying a proposed fee would
// leave the funder's balance below its channel reserve.
var ErrFunderBelowReserve = fmt.Errorf("fee update would drop funder below reserve")

// ValidateFeeUpdate applies §4.3's three fee-update rejection rules: the
// new feerate must not drop the funder below its reserve, must not fall
// below the configured mempool minimum, and must not differ from the local
// expectation by more than the configured tolerance — a too-low proposal is
// rejected outright, a too-high one is accepted only up to the policy's
// cap.
func (p FeePolicy) ValidateFeeUpdate(proposedFeePerKw, localFeePerKw,
	funderBalanceAfterFee, funderReserve btcutil.Amount) error {

	if funderBalanceAfterFee < funderReserve {
		return ErrFunderBelowReserve
	}

	if proposedFeePerKw < p.MinRelayFeePerKw {
		return ErrFeeTooLow
	}

	if proposedFeePerKw < localFeePerKw {
		return ErrFeeTooLow
	}

	ceiling := btcutil.Amount(float64(localFeePerKw) * p.ToleranceMultiplier)
	if proposedFeePerKw > ceiling {
		return ErrFeeTooHigh
	}

	return nil
}

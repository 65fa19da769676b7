package lnwire

import (
	"fmt"
)

// CommitmentType is an enum-like value that classifies the script template
// family used for a channel's commitment outputs. Unlike ChannelType,
// which is the negotiated BOLT-9 feature-bit set exchanged on the wire,
// CommitmentType is the node's own internal classification of which
// output layout those feature bits resolve to, used by the commitment
// engine to pick the right script templates.
type CommitmentType uint16

const (
	// CommitmentTypeBase is the original channel commitment type, with
	// no anchor outputs and no tweakless keys.
	CommitmentTypeBase CommitmentType = 0

	// CommitmentTypeTweakless denotes a commitment that removes the
	// randomized nonce used to compute the pkScript of the remote party
	// during a force close.
	CommitmentTypeTweakless CommitmentType = 1

	// CommitmentTypeAnchors denotes a commitment that adds anchor
	// outputs to both parties' commitment transactions, allowing fees
	// to be bumped after broadcast.
	CommitmentTypeAnchors CommitmentType = 2

	// CommitmentTypeAnchorsZeroFee denotes a modification of
	// CommitmentTypeAnchors that moves the HTLC second-level transaction
	// fees off of those transactions and onto an additional input,
	// allowing them to be published at a zero fee rate.
	CommitmentTypeAnchorsZeroFee CommitmentType = 3

	// CommitmentTypeScriptEnforcedLease denotes a modification of
	// CommitmentTypeAnchorsZeroFee that adds a CLTV lock to the owner's
	// output, used to enforce a channel lease on both parties.
	CommitmentTypeScriptEnforcedLease CommitmentType = 4

	// CommitmentTypeTaproot denotes a musig2 taproot channel, where the
	// funding output and to-local outputs are taproot outputs, and
	// commitment signatures are musig2 partial signatures rather than
	// plain ECDSA signatures.
	CommitmentTypeTaproot CommitmentType = 5
)

// String returns a human readable representation of the target
// CommitmentType.
func (c CommitmentType) String() string {
	switch c {
	case CommitmentTypeBase:
		return "CommitmentTypeBase"

	case CommitmentTypeTweakless:
		return "CommitmentTypeTweakless"

	case CommitmentTypeAnchors:
		return "CommitmentTypeAnchors"

	case CommitmentTypeAnchorsZeroFee:
		return "CommitmentTypeAnchorsZeroFee"

	case CommitmentTypeScriptEnforcedLease:
		return "CommitmentTypeScriptEnforcedLease"

	case CommitmentTypeTaproot:
		return "CommitmentTypeTaproot"

	default:
		return fmt.Sprintf("<UnknownCommitmentType(%v)>", uint16(c))
	}
}

// HasAnchors returns true if this commitment type pays to anchor outputs.
func (c CommitmentType) HasAnchors() bool {
	switch c {
	case CommitmentTypeAnchors, CommitmentTypeAnchorsZeroFee,
		CommitmentTypeScriptEnforcedLease, CommitmentTypeTaproot:
		return true
	default:
		return false
	}
}

// IsTaproot returns true if this commitment type uses musig2 taproot
// outputs rather than legacy P2WSH outputs.
func (c CommitmentType) IsTaproot() bool {
	return c == CommitmentTypeTaproot
}

// CommitmentTypeFromFeatures derives the CommitmentType implied by a
// negotiated ChannelType feature vector, following the BOLT-9 convention
// that each successive commitment format is a strict superset of
// capability over the last.
func CommitmentTypeFromFeatures(chanType *ChannelType) CommitmentType {
	if chanType == nil {
		return CommitmentTypeBase
	}

	fv := RawFeatureVector(*chanType)

	switch {
	case fv.IsSet(ScidAliasRequired):
		return CommitmentTypeTaproot

	case fv.IsSet(ZeroConfRequired) && fv.IsSet(AnchorsZeroFeeHtlcTxRequired):
		return CommitmentTypeScriptEnforcedLease

	case fv.IsSet(AnchorsZeroFeeHtlcTxRequired):
		return CommitmentTypeAnchorsZeroFee

	case fv.IsSet(StaticRemoteKeyRequired):
		return CommitmentTypeTweakless

	default:
		return CommitmentTypeBase
	}
}

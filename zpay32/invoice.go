// Package zpay32 implements the BOLT-11 invoice codec: encoding a payment
// request into its bech32 string representation and parsing one back out,
// including signature recovery and validation of the tagged-field grammar.
package zpay32

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/blockforge/lnchand/lnwire"
)

const (
	// maxInvoiceLength is the maximum total length, in characters, an
	// invoice is permitted to have. This is not a protocol-mandated
	// value, but a defensive bound against malformed or malicious input.
	maxInvoiceLength = 7089

	// mSatPerBtc is the number of millisatoshis in one bitcoin.
	mSatPerBtc = 100000000000

	// timestampBase32Len is the number of base32 groups used to encode
	// the 35-bit invoice timestamp.
	timestampBase32Len = 7

	// pubKeyBase32Len is the number of base32 groups needed to encode a
	// 33-byte compressed public key.
	pubKeyBase32Len = 53

	// hopHintLen is the number of bytes a single routing hop hint
	// occupies in its base256 representation: a 33-byte node ID, an
	// 8-byte short channel id, a 4-byte base fee, a 4-byte proportional
	// fee, and a 2-byte CLTV delta.
	hopHintLen = 53 - 2

	// fallbackVersionPubkeyHash is the address version used for a
	// legacy pay-to-pubkey-hash fallback address.
	fallbackVersionPubkeyHash = 17

	// fallbackVersionScriptHash is the address version used for a
	// legacy pay-to-script-hash fallback address.
	fallbackVersionScriptHash = 18
)

// ErrInvoiceTooLarge is returned when encoding an invoice whose bech32
// representation would exceed maxInvoiceLength.
var ErrInvoiceTooLarge = fmt.Errorf("invoice too large")

// MessageSigner is a function closure over the node's signing key, used to
// produce the recoverable compact signature that terminates every invoice.
type MessageSigner struct {
	// SignCompact signs the passed message with the node's identity key,
	// returning a 65-byte recoverable ECDSA signature.
	SignCompact func(msg []byte) ([]byte, error)
}

// HopHint is a routing hint for a single hop along a private channel that
// the payee includes so the payer's router can reach an otherwise
// unadvertised destination.
type HopHint struct {
	// NodeID is the public key of the node at the start of this channel.
	NodeID *btcec.PublicKey

	// ChannelID is the short channel id of this channel.
	ChannelID uint64

	// FeeBaseMSat is the base fee, in millisatoshi, charged for
	// forwarding along this channel.
	FeeBaseMSat uint32

	// FeeProportionalMillionths is the proportional fee, in
	// millionths of the forwarded amount, charged along this channel.
	FeeProportionalMillionths uint32

	// CLTVExpiryDelta is the CLTV delta imposed by this channel.
	CLTVExpiryDelta uint16
}

// Invoice represents a decoded, or to-be-encoded, BOLT-11 payment request.
// Only PaymentHash, exactly one of Description/DescriptionHash, and
// Destination (once decoded) are mandatory; every other field is optional.
type Invoice struct {
	// Net is the Bitcoin network this invoice is valid on, determining
	// the bech32 human-readable prefix.
	Net *chaincfg.Params

	// MilliSat is the amount, if any, that this invoice requests.
	MilliSat *lnwire.MilliSatoshi

	// Timestamp is the time this invoice was created.
	Timestamp time.Time

	// PaymentHash is the hash of the preimage that settles this invoice.
	PaymentHash *[32]byte

	// Destination is the public key of the node that this invoice was
	// created by. This is recovered from the invoice signature during
	// decode, and may optionally be set before encoding to have the
	// signature checked against it.
	Destination *btcec.PublicKey

	// Description is a short, free-form description of the purpose of
	// this invoice. Exactly one of Description or DescriptionHash must
	// be set.
	Description *string

	// DescriptionHash is a hash of a longer description of the purpose
	// of this invoice. Exactly one of Description or DescriptionHash
	// must be set.
	DescriptionHash *[32]byte

	// FallbackAddr is an on-chain address the payer may pay to directly
	// if they are unable to complete the payment over Lightning.
	FallbackAddr btcutil.Address

	// RouteHints lists sets of chained hop hints, each set describing a
	// private route to this invoice's destination.
	RouteHints [][]HopHint

	// Features is the set of feature bits this invoice advertises as
	// required or supported for paying it.
	Features *lnwire.FeatureVector

	// PaymentAddr, if present, is the 32-byte payment identifier that
	// must be included in the final hop's onion payload, preventing
	// intermediate nodes from intercepting or probing the payment.
	PaymentAddr fn.Option[[32]byte]

	// Metadata is opaque application-defined data the payer is expected
	// to echo back in the final onion payload, unauthenticated beyond
	// being covered by the invoice signature.
	Metadata []byte

	// minFinalCLTVExpiry is the minimum CLTV delta the final hop should
	// use when extending the payment's HTLC.
	minFinalCLTVExpiry *uint64

	// expiry is the duration after Timestamp during which this invoice
	// remains valid for payment.
	expiry *time.Duration

	// sigValid records whether the invoice's signature was successfully
	// validated against Destination during Decode.
	sigValid bool
}

// NewInvoice creates a new Invoice object. The last parameter is a set of
// variadic functional options that modify the created invoice according to
// the passed arguments.
func NewInvoice(net *chaincfg.Params, paymentHash [32]byte,
	timestamp time.Time, options ...func(*Invoice)) (*Invoice, error) {

	invoice := &Invoice{
		Net:         net,
		Timestamp:   timestamp,
		PaymentHash: &paymentHash,
		Features:    lnwire.NewFeatureVector(nil, lnwire.GlobalFeatures),
	}

	for _, option := range options {
		option(invoice)
	}

	if err := validateInvoice(invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

// Amount is a functional option that sets the amount of the created
// invoice.
func Amount(msat lnwire.MilliSatoshi) func(*Invoice) {
	return func(i *Invoice) {
		i.MilliSat = &msat
	}
}

// Description is a functional option that sets the description of the
// created invoice.
func Description(description string) func(*Invoice) {
	return func(i *Invoice) {
		i.Description = &description
	}
}

// DescriptionHash is a functional option that sets the description hash of
// the created invoice.
func DescriptionHash(descriptionHash [32]byte) func(*Invoice) {
	return func(i *Invoice) {
		i.DescriptionHash = &descriptionHash
	}
}

// Destination is a functional option that sets the payee's node key of the
// created invoice.
func Destination(destination *btcec.PublicKey) func(*Invoice) {
	return func(i *Invoice) {
		i.Destination = destination
	}
}

// FallbackAddr is a functional option that sets the fallback on-chain
// address of the created invoice.
func FallbackAddr(fallbackAddr btcutil.Address) func(*Invoice) {
	return func(i *Invoice) {
		i.FallbackAddr = fallbackAddr
	}
}

// RouteHint is a functional option that adds a single route hint to the
// created invoice. Multiple route hints may be added via repeated
// application of this option.
func RouteHint(routeHint []HopHint) func(*Invoice) {
	return func(i *Invoice) {
		i.RouteHints = append(i.RouteHints, routeHint)
	}
}

// CLTVExpiry is a functional option that sets the minimum final CLTV
// expiry delta of the created invoice.
func CLTVExpiry(delta uint64) func(*Invoice) {
	return func(i *Invoice) {
		i.minFinalCLTVExpiry = &delta
	}
}

// Expiry is a functional option that sets the expiry duration of the
// created invoice.
func Expiry(expiry time.Duration) func(*Invoice) {
	return func(i *Invoice) {
		i.expiry = &expiry
	}
}

// Features is a functional option that sets the feature vector of the
// created invoice.
func Features(features *lnwire.FeatureVector) func(*Invoice) {
	return func(i *Invoice) {
		i.Features = features
	}
}

// PaymentAddr is a functional option that sets the payment address of the
// created invoice.
func PaymentAddr(addr [32]byte) func(*Invoice) {
	return func(i *Invoice) {
		i.PaymentAddr = fn.Some(addr)
	}
}

// Metadata is a functional option that sets the payment metadata of the
// created invoice.
func Metadata(metadata []byte) func(*Invoice) {
	return func(i *Invoice) {
		i.Metadata = metadata
	}
}

// MinFinalCLTVExpiry returns the minimum final CLTV expiry delta this
// invoice requires, falling back to the BOLT-11 default of 18 blocks when
// the invoice did not specify one.
func (invoice *Invoice) MinFinalCLTVExpiry() uint64 {
	if invoice.minFinalCLTVExpiry != nil {
		return *invoice.minFinalCLTVExpiry
	}

	return DefaultFinalCLTVDelta
}

// Expiry returns the relative expiry of this invoice, falling back to the
// BOLT-11 default of one hour when the invoice did not specify one.
func (invoice *Invoice) Expiry() time.Duration {
	if invoice.expiry != nil {
		return *invoice.expiry
	}

	return DefaultInvoiceExpiry
}

// IsExpired returns true if the invoice has expired as of the given time.
func (invoice *Invoice) IsExpired(now time.Time) bool {
	return now.After(invoice.Timestamp.Add(invoice.Expiry()))
}

// SignatureValid reports whether the invoice's signature validated against
// Destination during Decode.
func (invoice *Invoice) SignatureValid() bool {
	return invoice.sigValid
}

const (
	// DefaultFinalCLTVDelta is the default minimum final CLTV delta
	// assumed for an invoice that does not specify one explicitly.
	DefaultFinalCLTVDelta = 18

	// DefaultInvoiceExpiry is the default validity window assumed for
	// an invoice that does not specify one explicitly.
	DefaultInvoiceExpiry = time.Hour
)

// validateInvoice does a sanity check on the given invoice, making sure it
// can be encoded or was decoded correctly.
func validateInvoice(invoice *Invoice) error {
	if invoice.PaymentHash == nil {
		return fmt.Errorf("invoice must have a payment hash set")
	}

	if invoice.Description == nil && invoice.DescriptionHash == nil {
		return fmt.Errorf("invoice must have either a description " +
			"or a description hash set")
	}

	if invoice.Description != nil && invoice.DescriptionHash != nil {
		return fmt.Errorf("invoice cannot have both a description " +
			"and a description hash set")
	}

	if invoice.MilliSat != nil && *invoice.MilliSat < 0 {
		return fmt.Errorf("invoice amount cannot be negative")
	}

	return nil
}

// recoverDestination recovers the payee's public key from a compact
// signature over the invoice's signed payload. It does not compare the key
// with an explicitly-set Destination.
func recoverDestination(sig *ecdsa.Signature, recoveryID byte,
	hash []byte) (*btcec.PublicKey, error) {

	compact := make([]byte, 65)
	compact[0] = recoveryID + 27 + 4
	copy(compact[1:33], sig.R().Bytes())
	copy(compact[33:], sig.S().Bytes())

	pubKey, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, fmt.Errorf("unable to recover pubkey: %w", err)
	}

	return pubKey, nil
}

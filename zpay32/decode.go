package zpay32

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/blockforge/lnchand/lnwire"
)

// supportedNets maps every bech32 human-readable prefix this decoder
// recognizes to the chain parameters it denotes.
var supportedNets = map[string]*chaincfg.Params{
	"ln" + chaincfg.MainNetParams.Bech32HRPSegwit:  &chaincfg.MainNetParams,
	"ln" + chaincfg.TestNet3Params.Bech32HRPSegwit: &chaincfg.TestNet3Params,
	"ln" + chaincfg.RegressionNetParams.Bech32HRPSegwit: &chaincfg.RegressionNetParams,
	"ln" + chaincfg.SimNetParams.Bech32HRPSegwit:        &chaincfg.SimNetParams,
	"lntbs": &chaincfg.SigNetParams,
}

// decodeOptions holds the set of parameters that govern how a decoded
// invoice's feature bits are interpreted.
type decodeOptions struct {
	knownFeatureBits         map[lnwire.FeatureBit]string
	errorOnUnknownFeatureBit bool
}

// DecodeOption is a functional option that modifies how Decode interprets
// the feature bits of the invoice it parses.
type DecodeOption func(*decodeOptions)

// WithKnownFeatureBits overrides the default table of known feature bit
// names used to label the decoded invoice's feature vector.
func WithKnownFeatureBits(bits map[lnwire.FeatureBit]string) DecodeOption {
	return func(o *decodeOptions) {
		o.knownFeatureBits = bits
	}
}

// WithErrorOnUnknownFeatureBit causes Decode to fail if the invoice sets a
// feature bit not present in the known feature bit table.
func WithErrorOnUnknownFeatureBit() DecodeOption {
	return func(o *decodeOptions) {
		o.errorOnUnknownFeatureBit = true
	}
}

// Decode parses the provided bech32-encoded bolt11 payment request, and
// returns a decoded Invoice if it is valid by BOLT-0011 and matches the
// provided active network.
func Decode(invoiceStr string, net *chaincfg.Params,
	opts ...DecodeOption) (*Invoice, error) {

	options := &decodeOptions{
		knownFeatureBits: lnwire.Features,
	}
	for _, opt := range opts {
		opt(options)
	}

	if len(invoiceStr) > maxInvoiceLength {
		return nil, ErrInvoiceTooLarge
	}

	hrp, data, err := bech32.DecodeNoLimit(invoiceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid bech32 string: %w", err)
	}

	netPrefix, amountStr, err := splitHrp(hrp)
	if err != nil {
		return nil, err
	}

	decodedNet, ok := supportedNets[netPrefix]
	if !ok {
		return nil, fmt.Errorf("unknown bech32 prefix %q", netPrefix)
	}
	if decodedNet.Name != net.Name {
		return nil, fmt.Errorf("invoice not for current active "+
			"network '%s'", net.Name)
	}

	invoice := &Invoice{
		Net:      decodedNet,
		Features: lnwire.NewFeatureVector(nil, options.knownFeatureBits),
	}

	if amountStr != "" {
		msat, err := decodeAmount(amountStr)
		if err != nil {
			return nil, err
		}
		invoice.MilliSat = &msat
	}

	if len(data) < timestampBase32Len {
		return nil, fmt.Errorf("data too short to contain timestamp")
	}

	t, err := base32ToUint64(data[:timestampBase32Len])
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}
	invoice.Timestamp = time.Unix(int64(t), 0)

	data = data[timestampBase32Len:]

	signatureBase32Len := 104
	if len(data) < signatureBase32Len {
		return nil, fmt.Errorf("data too short to contain signature")
	}

	taggedFields := data[:len(data)-signatureBase32Len]
	sigField := data[len(data)-signatureBase32Len:]

	if err := parseTaggedFields(
		invoice, taggedFields, decodedNet, options,
	); err != nil {
		return nil, err
	}

	if err := validateInvoice(invoice); err != nil {
		return nil, err
	}

	sigBase256, err := bech32.ConvertBits(sigField, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("unable to convert signature to "+
			"base256: %w", err)
	}
	if len(sigBase256) != 65 {
		return nil, fmt.Errorf("signature field is %d bytes, "+
			"expected 65", len(sigBase256))
	}

	rawSig := sigBase256[:64]
	recoveryID := sigBase256[64]

	sig, err := lnwire.NewSigFromWireECDSA(rawSig)
	if err != nil {
		return nil, err
	}
	signature, err := sig.ToSignature()
	if err != nil {
		return nil, fmt.Errorf("unable to deserialize signature: %w",
			err)
	}

	taggedFieldsBytes, err := bech32.ConvertBits(taggedFields, 5, 8, true)
	if err != nil {
		return nil, err
	}
	toVerify := append([]byte(hrp), taggedFieldsBytes...)
	hash := chainhash.HashB(toVerify)

	pubKey, err := recoverDestination(signature, recoveryID, hash)
	if err != nil {
		return nil, err
	}
	invoice.Destination = pubKey
	invoice.sigValid = signature.Verify(hash, pubKey)

	return invoice, nil
}

// splitHrp splits a bech32 human-readable prefix into the "ln"+network
// portion and, if present, the trailing amount specifier.
func splitHrp(hrp string) (netPrefix, amount string, err error) {
	if len(hrp) < 2 || hrp[:2] != "ln" {
		return "", "", fmt.Errorf("invalid prefix %q", hrp)
	}

	n := len(hrp)
	for n > 2 {
		c := hrp[n-1]
		if c >= '0' && c <= '9' {
			n--
			continue
		}
		if c == 'm' || c == 'u' || c == 'n' || c == 'p' {
			n--
			continue
		}
		break
	}

	return hrp[:n], hrp[n:], nil
}

// parseTaggedFields decodes the base32 tagged-field stream of an invoice,
// populating the recognized fields on invoice and silently skipping fields
// of an unknown type, per BOLT-11's forward-compatibility rule.
func parseTaggedFields(invoice *Invoice, fields []byte,
	net *chaincfg.Params, options *decodeOptions) error {

	for len(fields) > 0 {
		if len(fields) < 3 {
			return fmt.Errorf("truncated tagged field header")
		}

		fieldType := fields[0]
		dataLen, err := base32ToUint64(fields[1:3])
		if err != nil {
			return fmt.Errorf("invalid tagged field length: %w",
				err)
		}

		fields = fields[3:]
		if uint64(len(fields)) < dataLen {
			return fmt.Errorf("truncated tagged field body")
		}

		field := fields[:dataLen]
		fields = fields[dataLen:]

		if err := parseTaggedField(
			invoice, fieldType, field, net, options,
		); err != nil {
			return err
		}
	}

	return nil
}

// parseTaggedField applies a single decoded tagged field to invoice.
func parseTaggedField(invoice *Invoice, fieldType byte, field []byte,
	net *chaincfg.Params, options *decodeOptions) error {

	switch fieldType {
	case fieldTypeP:
		// A p field of any other length than 52 groups is skipped.
		if len(field) != 52 {
			break
		}
		hash, err := base32ToBytes32(field)
		if err != nil {
			return fmt.Errorf("invalid payment hash: %w", err)
		}
		if invoice.PaymentHash == nil {
			invoice.PaymentHash = &hash
		}

	case fieldTypeS:
		if len(field) != 52 {
			break
		}
		addr, err := base32ToBytes32(field)
		if err != nil {
			return fmt.Errorf("invalid payment addr: %w", err)
		}
		if invoice.PaymentAddr.IsNone() {
			invoice.PaymentAddr = fn.Some(addr)
		}

	case fieldTypeD:
		base256, err := bech32.ConvertBits(field, 5, 8, false)
		if err != nil {
			return err
		}
		if invoice.Description == nil {
			description := string(base256)
			invoice.Description = &description
		}

	case fieldTypeM:
		base256, err := bech32.ConvertBits(field, 5, 8, false)
		if err != nil {
			return err
		}
		if invoice.Metadata == nil {
			invoice.Metadata = base256
		}

	case fieldTypeH:
		if len(field) != 52 {
			break
		}
		hash, err := base32ToBytes32(field)
		if err != nil {
			return fmt.Errorf("invalid description hash: %w", err)
		}
		if invoice.DescriptionHash == nil {
			invoice.DescriptionHash = &hash
		}

	case fieldTypeC:
		expiry, err := base32ToUint64(field)
		if err != nil {
			return fmt.Errorf("invalid min final cltv: %w", err)
		}
		if invoice.minFinalCLTVExpiry == nil {
			invoice.minFinalCLTVExpiry = &expiry
		}

	case fieldTypeX:
		seconds, err := base32ToUint64(field)
		if err != nil {
			return fmt.Errorf("invalid expiry: %w", err)
		}
		if invoice.expiry == nil {
			expiry := time.Duration(seconds) * time.Second
			invoice.expiry = &expiry
		}

	case fieldTypeF:
		base256, err := bech32.ConvertBits(field, 5, 8, false)
		if err != nil {
			return err
		}
		if invoice.FallbackAddr == nil {
			addr, err := parseFallbackAddr(base256, net)
			if err != nil {
				return err
			}
			invoice.FallbackAddr = addr
		}

	case fieldTypeR:
		base256, err := bech32.ConvertBits(field, 5, 8, false)
		if err != nil {
			return err
		}
		hopHints, err := parseHopHints(base256)
		if err != nil {
			return err
		}
		invoice.RouteHints = append(invoice.RouteHints, hopHints)

	case fieldTypeN:
		// An n field of the wrong length is skipped.
		if len(field) != pubKeyBase32Len {
			break
		}
		base256, err := bech32.ConvertBits(field, 5, 8, false)
		if err != nil {
			return err
		}
		destination, err := btcec.ParsePubKey(base256)
		if err != nil {
			return err
		}
		invoice.Destination = destination

	case fieldType9:
		rawFeatures := lnwire.NewRawFeatureVector()
		if err := rawFeatures.DecodeBase32(
			bytes.NewReader(field), len(field),
		); err != nil {
			return fmt.Errorf("unable to parse feature bits: %w",
				err)
		}

		if options.errorOnUnknownFeatureBit {
			for bit := range rawFeatures.Features() {
				if _, ok := options.knownFeatureBits[bit]; !ok {
					return fmt.Errorf("unknown feature "+
						"bit: %d", bit)
				}
			}
		}

		invoice.Features = lnwire.NewFeatureVector(
			rawFeatures, options.knownFeatureBits,
		)

	default:
		// Unknown field type; ignore per BOLT-11.
	}

	return nil
}

// base32ToBytes32 converts a 52-group base32 field into its 32-byte base256
// representation.
func base32ToBytes32(field []byte) ([32]byte, error) {
	var out [32]byte

	base256, err := bech32.ConvertBits(field, 5, 8, false)
	if err != nil {
		return out, err
	}
	if len(base256) != 32 {
		return out, fmt.Errorf("field is %d bytes, expected 32",
			len(base256))
	}

	copy(out[:], base256)

	return out, nil
}

package lnwire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/tlv"
)

// MilliSatoshi is a denomination of satoshis to the 1000th decimal place. It
// is used to convey fractional satoshi amounts for the purpose of fee rates
// and intra-channel HTLC accounting, where a fixed-point value smaller than
// a single satoshi is required.
type MilliSatoshi int64

// NewMSatFromSatoshis creates a new MilliSatoshi from a regular satoshi
// amount.
func NewMSatFromSatoshis(sat btcutil.Amount) MilliSatoshi {
	return MilliSatoshi(sat * 1000)
}

// ToSatoshis converts a MilliSatoshi amount to its corresponding value in
// satoshis, truncating any fractional value in the process.
func (m MilliSatoshi) ToSatoshis() btcutil.Amount {
	return btcutil.Amount(int64(m) / 1000)
}

// String returns the string representation of the MilliSatoshi amount.
func (m MilliSatoshi) String() string {
	return fmt.Sprintf("%d mSAT", int64(m))
}

// rawSigLen is the length, in bytes, of a fixed-size raw signature as
// carried on the wire. Signatures are stored in their raw, fixed-size
// (64-byte) representation rather than DER so the per-HTLC signature list in
// CommitSig has a predictable per-entry size.
const rawSigLen = 64

// Sig is a raw 64-byte fixed-size ECDSA signature (32-byte R, 32-byte S, both
// left-padded to 32 bytes) as transmitted on the wire.
type Sig struct {
	bytes [rawSigLen]byte
}

// NewSigFromSignature creates a new wire Sig from an ecdsa.Signature.
func NewSigFromSignature(sig *ecdsa.Signature) (Sig, error) {
	if sig == nil {
		return Sig{}, fmt.Errorf("cannot create Sig from nil signature")
	}

	var b [rawSigLen]byte
	rBytes := sig.R().Bytes()
	sBytes := sig.S().Bytes()
	copy(b[32-len(rBytes):32], rBytes)
	copy(b[64-len(sBytes):64], sBytes)

	return Sig{bytes: b}, nil
}

// NewSigFromWireECDSA creates a new wire Sig from a raw 64-byte R||S
// signature, such as the body of a compact recoverable signature with its
// header byte already stripped off.
func NewSigFromWireECDSA(rawSig []byte) (Sig, error) {
	if len(rawSig) != rawSigLen {
		return Sig{}, fmt.Errorf("malformed signature: expected %d "+
			"bytes, got %d", rawSigLen, len(rawSig))
	}

	var b [rawSigLen]byte
	copy(b[:], rawSig)

	return Sig{bytes: b}, nil
}

// ToSignature converts the fixed-size Sig back to an ecdsa.Signature that
// can be used for verification.
func (s Sig) ToSignature() (*ecdsa.Signature, error) {
	var r, sVal btcec.ModNScalar
	r.SetByteSlice(s.bytes[0:32])
	sVal.SetByteSlice(s.bytes[32:64])

	return ecdsa.NewSignature(&r, &sVal), nil
}

// RawBytes returns a copy of the raw bytes backing this Sig.
func (s Sig) RawBytes() []byte {
	b := make([]byte, rawSigLen)
	copy(b, s.bytes[:])
	return b
}

// FailCode identifies the reason an HTLC failed, as described by BOLT 4. Only
// an opaque numeric code is carried across the wire boundary here; the onion
// failure message itself is the router's concern.
type FailCode uint16

// DeliveryAddress is the raw script that coop-close funds should be paid to.
type DeliveryAddress []byte

// deliveryAddressMaxSize is the largest permitted DeliveryAddress script,
// matching the largest witness or legacy script we expect to accept.
const deliveryAddressMaxSize = 34

// OpaqueReason is the opaque, encrypted payload carried in a failure message
// for an HTLC. The router is responsible for constructing and peeling this
// payload; it is never interpreted here.
type OpaqueReason []byte

// ErrorData is the opaque payload carried in an Error message describing the
// specifics of a protocol failure.
type ErrorData []byte

// PingPayload is the arbitrary padding sent along with a Ping message, used
// to exercise bandwidth and keep a connection alive.
type PingPayload []byte

// PongPayload is the arbitrary padding sent in response to a Ping.
type PongPayload []byte

// Musig2Nonce is a 66-byte public nonce used in the musig2 signing protocol
// for taproot channels.
type Musig2Nonce [musig2.PubNonceSize]byte

// Musig2NonceRecordProducer wraps a Musig2Nonce with the TLV type it should
// be encoded under.
type Musig2NonceRecordProducer struct {
	Musig2Nonce
	Type tlv.Type
}

// NewMusig2NonceRecordProducer creates a new Musig2NonceRecordProducer
// for the given TLV type.
func NewMusig2NonceRecordProducer(t tlv.Type) *Musig2NonceRecordProducer {
	return &Musig2NonceRecordProducer{Type: t}
}

// Record returns the tlv.Record for the musig2 nonce.
func (m *Musig2NonceRecordProducer) Record() tlv.Record {
	return tlv.MakeStaticRecord(
		m.Type, &m.Musig2Nonce, musig2.PubNonceSize,
		musig2NonceEncoder, musig2NonceDecoder,
	)
}

func musig2NonceEncoder(w io.Writer, val interface{}, _ *[8]byte) error {
	if v, ok := val.(*Musig2Nonce); ok {
		_, err := w.Write(v[:])
		return err
	}

	return tlv.NewTypeForEncodingErr(val, "lnwire.Musig2Nonce")
}

func musig2NonceDecoder(r io.Reader, val interface{}, _ *[8]byte,
	l uint64) error {

	if v, ok := val.(*Musig2Nonce); ok && l == musig2.PubNonceSize {
		_, err := io.ReadFull(r, v[:])
		return err
	}

	return tlv.NewTypeForDecodingErr(
		val, "lnwire.Musig2Nonce", l, musig2.PubNonceSize,
	)
}

// ShortChannelIDRecordProducer wraps a ShortChannelID with the TLV type it
// should be encoded under.
type ShortChannelIDRecordProducer struct {
	ShortChannelID
	Type tlv.Type
}

// NewShortChannelIDRecordProducer creates a new ShortChannelIDRecordProducer
// for the given TLV type.
func NewShortChannelIDRecordProducer(t tlv.Type) *ShortChannelIDRecordProducer {
	return &ShortChannelIDRecordProducer{Type: t}
}

// Record returns the tlv.Record for the short channel ID.
func (s *ShortChannelIDRecordProducer) Record() tlv.Record {
	return tlv.MakeStaticRecord(
		s.Type, &s.ShortChannelID, 8, EShortChannelID, DShortChannelID,
	)
}

// SizeableMessage is an extension of the base Message interface that also
// allows a type to report its own serialized size without re-encoding twice.
type SizeableMessage interface {
	Message

	// SerializedSize returns the encoded size of the message in bytes.
	SerializedSize() (uint32, error)
}

// LinkUpdater is implemented by messages that reference a specific channel
// and can therefore be routed to the correct per-channel state machine
// without inspecting the rest of the payload.
type LinkUpdater interface {
	Message

	// TargetChanID returns the channel id of the link this message is
	// intended for.
	TargetChanID() ChannelID
}

// MessageSerializedSize returns the number of bytes the message would occupy
// on the wire, not including the 2-byte type prefix.
func MessageSerializedSize(msg Message) (uint32, error) {
	var b bytes.Buffer
	if err := msg.Encode(&b, 0); err != nil {
		return 0, err
	}

	return uint32(b.Len()), nil
}

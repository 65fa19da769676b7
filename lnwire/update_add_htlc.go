package lnwire

import (
	"bytes"
	"io"
)

// OnionPacketSize is the fixed size, in bytes, of the Sphinx onion routing
// packet carried by an UpdateAddHTLC message. Constructing and peeling this
// packet is the responsibility of the onion-routing layer; the channel
// state machine treats it as an opaque blob.
const OnionPacketSize = 1366

// UpdateAddHTLC is sent by either side to offer a new HTLC on the channel.
// Amount, expressed in millisatoshi, is moved from the sender's settled
// balance into a new, pending HTLC added to the sender's update log. The
// HTLC is not enforceable on-chain until it is both committed by the sender
// and acknowledged by the receiver.
type UpdateAddHTLC struct {
	// ChanID identifies which channel this HTLC is being added to.
	ChanID ChannelID

	// ID is the identifier assigned to this HTLC by the sender,
	// monotonically increasing over the lifetime of the channel.
	ID uint64

	// Amount is the number of millisatoshis this HTLC will transfer if
	// settled.
	Amount MilliSatoshi

	// PaymentHash is the payment hash used to settle or fail this HTLC,
	// depending on whether the preimage revealed by the recipient
	// matches.
	PaymentHash [32]byte

	// Expiry is the absolute block height at which this HTLC expires.
	Expiry uint32

	// OnionBlob is an opaque, fixed-size onion routing packet that
	// encodes instructions for forwarding this HTLC to its ultimate
	// destination.
	OnionBlob [OnionPacketSize]byte

	// ExtraData is the set of data that was appended to this message to
	// fill out the full maximum transport message size. These fields can
	// be used to specify optional data such as custom TLV fields.
	ExtraData ExtraOpaqueData
}

// A compile time check to ensure UpdateAddHTLC implements the lnwire.Message
// interface.
var _ Message = (*UpdateAddHTLC)(nil)

// A compile time check to ensure UpdateAddHTLC implements the
// lnwire.LinkUpdater interface.
var _ LinkUpdater = (*UpdateAddHTLC)(nil)

// Decode deserializes the serialized UpdateAddHTLC stored in the passed
// io.Reader into the target UpdateAddHTLC using the deserialization rules
// defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *UpdateAddHTLC) Decode(r io.Reader, pver uint32) error {
	return ReadElements(r,
		&c.ChanID,
		&c.ID,
		&c.Amount,
		c.PaymentHash[:],
		&c.Expiry,
		c.OnionBlob[:],
		&c.ExtraData,
	)
}

// Encode serializes the target UpdateAddHTLC into the passed io.Writer
// implementation. Serialization will observe the rules defined by the
// passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *UpdateAddHTLC) Encode(w *bytes.Buffer, pver uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}
	if err := WriteUint64(w, c.ID); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, c.Amount); err != nil {
		return err
	}
	if err := WriteBytes(w, c.PaymentHash[:]); err != nil {
		return err
	}
	if err := WriteUint32(w, c.Expiry); err != nil {
		return err
	}
	if err := WriteBytes(w, c.OnionBlob[:]); err != nil {
		return err
	}

	return WriteBytes(w, c.ExtraData)
}

// MsgType returns the uint32 code which uniquely identifies this message as
// an UpdateAddHTLC on the wire.
//
// This is part of the lnwire.Message interface.
func (c *UpdateAddHTLC) MsgType() MessageType {
	return MsgUpdateAddHTLC
}

// TargetChanID returns the channel id of the link for which this message is
// intended.
//
// NOTE: Part of the lnwire.LinkUpdater interface.
func (c *UpdateAddHTLC) TargetChanID() ChannelID {
	return c.ChanID
}

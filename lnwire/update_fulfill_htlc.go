package lnwire

import (
	"bytes"
	"io"
)

// UpdateFulfillHTLC is sent by a remote node if it wishes to settle an HTLC
// previously offered by the receiving node. The preimage, once revealed,
// allows the receiving node to claim the transferred value and propagate
// the settlement upstream.
type UpdateFulfillHTLC struct {
	// ChanID identifies which channel the HTLC being settled belongs to.
	ChanID ChannelID

	// ID denotes the exact HTLC being settled, referencing the ID
	// originally set by the UpdateAddHTLC message.
	ID uint64

	// PaymentPreimage is the preimage that, when hashed, yields the
	// payment hash of the HTLC being settled.
	PaymentPreimage [32]byte

	// ExtraData is the set of data that was appended to this message to
	// fill out the full maximum transport message size. These fields can
	// be used to specify optional data such as custom TLV fields.
	ExtraData ExtraOpaqueData
}

// A compile time check to ensure UpdateFulfillHTLC implements the
// lnwire.Message interface.
var _ Message = (*UpdateFulfillHTLC)(nil)

// A compile time check to ensure UpdateFulfillHTLC implements the
// lnwire.LinkUpdater interface.
var _ LinkUpdater = (*UpdateFulfillHTLC)(nil)

// Decode deserializes the serialized UpdateFulfillHTLC stored in the passed
// io.Reader into the target UpdateFulfillHTLC using the deserialization
// rules defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFulfillHTLC) Decode(r io.Reader, pver uint32) error {
	return ReadElements(r,
		&c.ChanID,
		&c.ID,
		c.PaymentPreimage[:],
		&c.ExtraData,
	)
}

// Encode serializes the target UpdateFulfillHTLC into the passed io.Writer
// implementation. Serialization will observe the rules defined by the
// passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFulfillHTLC) Encode(w *bytes.Buffer, pver uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}
	if err := WriteUint64(w, c.ID); err != nil {
		return err
	}
	if err := WriteBytes(w, c.PaymentPreimage[:]); err != nil {
		return err
	}

	return WriteBytes(w, c.ExtraData)
}

// MsgType returns the uint32 code which uniquely identifies this message as
// an UpdateFulfillHTLC on the wire.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFulfillHTLC) MsgType() MessageType {
	return MsgUpdateFulfillHTLC
}

// TargetChanID returns the channel id of the link for which this message is
// intended.
//
// NOTE: Part of the lnwire.LinkUpdater interface.
func (c *UpdateFulfillHTLC) TargetChanID() ChannelID {
	return c.ChanID
}

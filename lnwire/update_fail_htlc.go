package lnwire

import (
	"bytes"
	"io"
)

// UpdateFailHTLC is sent by a remote node if it wishes to cancel an HTLC
// previously offered by the receiving node. The reason field is an
// onion-encrypted blob that is only meaningful to the original sender, who
// peels it one hop at a time as the failure propagates back along the
// route.
type UpdateFailHTLC struct {
	// ChanID identifies which channel the HTLC being failed belongs to.
	ChanID ChannelID

	// ID denotes the exact HTLC being failed, referencing the ID
	// originally set by the UpdateAddHTLC message.
	ID uint64

	// Reason is an opaque, onion-encrypted failure reason. Only the
	// original sender of the HTLC can decrypt and interpret it.
	Reason OpaqueReason

	// ExtraData is the set of data that was appended to this message to
	// fill out the full maximum transport message size. These fields can
	// be used to specify optional data such as custom TLV fields.
	ExtraData ExtraOpaqueData
}

// A compile time check to ensure UpdateFailHTLC implements the
// lnwire.Message interface.
var _ Message = (*UpdateFailHTLC)(nil)

// A compile time check to ensure UpdateFailHTLC implements the
// lnwire.LinkUpdater interface.
var _ LinkUpdater = (*UpdateFailHTLC)(nil)

// Decode deserializes the serialized UpdateFailHTLC stored in the passed
// io.Reader into the target UpdateFailHTLC using the deserialization rules
// defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFailHTLC) Decode(r io.Reader, pver uint32) error {
	return ReadElements(r,
		&c.ChanID,
		&c.ID,
		&c.Reason,
		&c.ExtraData,
	)
}

// Encode serializes the target UpdateFailHTLC into the passed io.Writer
// implementation. Serialization will observe the rules defined by the
// passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFailHTLC) Encode(w *bytes.Buffer, pver uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}
	if err := WriteUint64(w, c.ID); err != nil {
		return err
	}
	if err := WriteOpaqueReason(w, c.Reason); err != nil {
		return err
	}

	return WriteBytes(w, c.ExtraData)
}

// MsgType returns the uint32 code which uniquely identifies this message as
// an UpdateFailHTLC on the wire.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFailHTLC) MsgType() MessageType {
	return MsgUpdateFailHTLC
}

// TargetChanID returns the channel id of the link for which this message is
// intended.
//
// NOTE: Part of the lnwire.LinkUpdater interface.
func (c *UpdateFailHTLC) TargetChanID() ChannelID {
	return c.ChanID
}

package lnwire

import (
	"bytes"
	"io"
)

// UpdateFailMalformedHTLC is sent by a remote node when it is unable to
// parse the onion blob attached to an incoming HTLC, most commonly because
// the shared secret derivation or the per-hop HMAC failed. Unlike
// UpdateFailHTLC, the failure cannot be onion-encrypted since the node was
// never able to decrypt its own onion layer, so the failure is instead
// reported in the clear via FailureCode.
type UpdateFailMalformedHTLC struct {
	// ChanID identifies which channel the HTLC being failed belongs to.
	ChanID ChannelID

	// ID denotes the exact HTLC being failed, referencing the ID
	// originally set by the UpdateAddHTLC message.
	ID uint64

	// ShaOnionBlob is a hash of the onion blob that could not be
	// processed, allowing the sender to determine which node broke the
	// route.
	ShaOnionBlob [32]byte

	// FailureCode specifies the reason the onion blob could not be
	// processed.
	FailureCode FailCode

	// ExtraData is the set of data that was appended to this message to
	// fill out the full maximum transport message size. These fields can
	// be used to specify optional data such as custom TLV fields.
	ExtraData ExtraOpaqueData
}

// A compile time check to ensure UpdateFailMalformedHTLC implements the
// lnwire.Message interface.
var _ Message = (*UpdateFailMalformedHTLC)(nil)

// A compile time check to ensure UpdateFailMalformedHTLC implements the
// lnwire.LinkUpdater interface.
var _ LinkUpdater = (*UpdateFailMalformedHTLC)(nil)

// Decode deserializes the serialized UpdateFailMalformedHTLC stored in the
// passed io.Reader into the target UpdateFailMalformedHTLC using the
// deserialization rules defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFailMalformedHTLC) Decode(r io.Reader, pver uint32) error {
	return ReadElements(r,
		&c.ChanID,
		&c.ID,
		c.ShaOnionBlob[:],
		&c.FailureCode,
		&c.ExtraData,
	)
}

// Encode serializes the target UpdateFailMalformedHTLC into the passed
// io.Writer implementation. Serialization will observe the rules defined
// by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFailMalformedHTLC) Encode(w *bytes.Buffer, pver uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}
	if err := WriteUint64(w, c.ID); err != nil {
		return err
	}
	if err := WriteBytes(w, c.ShaOnionBlob[:]); err != nil {
		return err
	}
	if err := WriteFailCode(w, c.FailureCode); err != nil {
		return err
	}

	return WriteBytes(w, c.ExtraData)
}

// MsgType returns the uint32 code which uniquely identifies this message as
// an UpdateFailMalformedHTLC on the wire.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFailMalformedHTLC) MsgType() MessageType {
	return MsgUpdateFailMalformedHTLC
}

// TargetChanID returns the channel id of the link for which this message is
// intended.
//
// NOTE: Part of the lnwire.LinkUpdater interface.
func (c *UpdateFailMalformedHTLC) TargetChanID() ChannelID {
	return c.ChanID
}

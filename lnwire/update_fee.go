package lnwire

import (
	"bytes"
	"io"
)

// UpdateFee is sent by the channel funder to update the fee rate paid by
// the commitment transaction. Because only the funder pays on-chain fees
// for the commitment transaction, only the funder may send this message.
type UpdateFee struct {
	// ChanID identifies which channel's fee rate is being updated.
	ChanID ChannelID

	// FeePerKw is the new fee rate, expressed in satoshis per
	// 1000-weight-unit, that the sender wants to use for future
	// commitment transactions.
	FeePerKw uint32
}

// NewUpdateFee returns a new UpdateFee message for the given channel and
// fee rate.
func NewUpdateFee(chanID ChannelID, feePerKw uint32) *UpdateFee {
	return &UpdateFee{
		ChanID:   chanID,
		FeePerKw: feePerKw,
	}
}

// A compile time check to ensure UpdateFee implements the lnwire.Message
// interface.
var _ Message = (*UpdateFee)(nil)

// A compile time check to ensure UpdateFee implements the
// lnwire.LinkUpdater interface.
var _ LinkUpdater = (*UpdateFee)(nil)

// Decode deserializes the serialized UpdateFee stored in the passed
// io.Reader into the target UpdateFee using the deserialization rules
// defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFee) Decode(r io.Reader, pver uint32) error {
	return ReadElements(r,
		&c.ChanID,
		&c.FeePerKw,
	)
}

// Encode serializes the target UpdateFee into the passed io.Writer
// implementation. Serialization will observe the rules defined by the
// passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFee) Encode(w *bytes.Buffer, pver uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}

	return WriteUint32(w, c.FeePerKw)
}

// MsgType returns the uint32 code which uniquely identifies this message as
// an UpdateFee on the wire.
//
// This is part of the lnwire.Message interface.
func (c *UpdateFee) MsgType() MessageType {
	return MsgUpdateFee
}

// TargetChanID returns the channel id of the link for which this message is
// intended.
//
// NOTE: Part of the lnwire.LinkUpdater interface.
func (c *UpdateFee) TargetChanID() ChannelID {
	return c.ChanID
}

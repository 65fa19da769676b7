package lnwire

import (
	"bytes"
	"io"
)

// Ping defines a message which is sent by peers periodically to determine
// if a connection is still alive. This message is also used to negotiate
// how many bytes the response (Pong) should contain using the
// NumPongBytes field.
type Ping struct {
	// NumPongBytes is the number of bytes the party responding to this
	// ping message should include in their Pong response.
	NumPongBytes uint16

	// PaddingBytes is a set of padding bytes included in a Ping message,
	// used to test bandwidth use and for future use cases.
	PaddingBytes PingPayload
}

// NewPing returns a new Ping message, requesting the specified number of
// bytes in the Pong response.
func NewPing(numPongBytes uint16, paddingBytes []byte) *Ping {
	return &Ping{
		NumPongBytes: numPongBytes,
		PaddingBytes: PingPayload(paddingBytes),
	}
}

// A compile time check to ensure Ping implements the lnwire.Message
// interface.
var _ Message = (*Ping)(nil)

// Decode deserializes a serialized Ping message stored in the passed
// io.Reader observing the specified protocol version.
//
// This is part of the lnwire.Message interface.
func (p *Ping) Decode(r io.Reader, _ uint32) error {
	return ReadElements(r,
		&p.NumPongBytes,
		&p.PaddingBytes,
	)
}

// Encode serializes the target Ping into the passed io.Writer observing the
// protocol version specified.
//
// This is part of the lnwire.Message interface.
func (p *Ping) Encode(w *bytes.Buffer, _ uint32) error {
	if err := WriteUint16(w, p.NumPongBytes); err != nil {
		return err
	}

	return WritePingPayload(w, p.PaddingBytes)
}

// MsgType returns the integer uniquely identifying this message type on the
// wire.
//
// This is part of the lnwire.Message interface.
func (p *Ping) MsgType() MessageType {
	return MsgPing
}

// Pong defines a message which is the direct response to a received Ping
// message. A Pong reply indicates that a connection is still active. The
// size of a Pong's padding is dictated by the NumPongBytes field of the
// Ping it answers.
type Pong struct {
	// PaddingBytes is the response to a Ping's PaddingBytes, used to
	// satisfy the Ping's requested Pong length.
	PaddingBytes PongPayload
}

// NewPong returns a new Pong message with the given padding.
func NewPong(paddingBytes []byte) *Pong {
	return &Pong{
		PaddingBytes: PongPayload(paddingBytes),
	}
}

// A compile time check to ensure Pong implements the lnwire.Message
// interface.
var _ Message = (*Pong)(nil)

// Decode deserializes a serialized Pong message stored in the passed
// io.Reader observing the specified protocol version.
//
// This is part of the lnwire.Message interface.
func (p *Pong) Decode(r io.Reader, _ uint32) error {
	return ReadElements(r, &p.PaddingBytes)
}

// Encode serializes the target Pong into the passed io.Writer observing the
// protocol version specified.
//
// This is part of the lnwire.Message interface.
func (p *Pong) Encode(w *bytes.Buffer, _ uint32) error {
	return WritePongPayload(w, p.PaddingBytes)
}

// MsgType returns the integer uniquely identifying this message type on the
// wire.
//
// This is part of the lnwire.Message interface.
func (p *Pong) MsgType() MessageType {
	return MsgPong
}

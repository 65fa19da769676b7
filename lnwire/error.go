package lnwire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// typeErrorCode is the TLV type under which an optional CodedError is
// attached to an Error message.
const typeErrorCode tlv.Type = 1

// ExtendedError is implemented by errors that carry a machine-readable code
// in addition to their human-readable string, so a peer can react to the
// failure programmatically instead of pattern-matching the message text.
type ExtendedError interface {
	error
}

// Error represents a generic error bound to a channel. The message may be
// sent in response to a sync error, bad message, or in response to a
// signature that doesn't properly validate. A given Error message may be
// sent in response to a specific protocol message, or may be async in the
// case of a message that is sent asynchronously, outside the usual flow of
// protocol messages.
type Error struct {
	// ChanID references the active channel in which the error occurred
	// within. If the ChanID is all zeros, then this error applies to the
	// entire established connection.
	ChanID ChannelID

	// Data is the attached error data that describes the exact failure
	// which caused the error message to be sent.
	Data ErrorData

	// Code, if set, carries a machine-readable classification of Data,
	// letting a recipient branch on the failure reason without matching
	// against the free-form text in Data.
	Code *CodedError
}

// NewError creates a new Error message.
func NewError() *Error {
	return &Error{}
}

// A compile time check to ensure Error implements the lnwire.Message
// interface.
var _ Message = (*Error)(nil)

// A compile time check to ensure Error implements the lnwire.LinkUpdater
// interface.
var _ LinkUpdater = (*Error)(nil)

// Error returns the string representation to Error.
//
// NOTE: this is part of the error interface.
func (c *Error) Error() string {
	errMsg := "non-ascii data"
	if isASCII(c.Data) {
		errMsg = string(c.Data)
	}

	if c.Code != nil {
		return fmt.Sprintf("chan_id=%v, code=%v, err=%v", c.ChanID,
			c.Code.ErrorCode, errMsg)
	}

	return fmt.Sprintf("chan_id=%v, err=%v", c.ChanID, errMsg)
}

// Decode deserializes a serialized Error message stored in the passed
// io.Reader observing the specified protocol version.
//
// This is part of the lnwire.Message interface.
func (c *Error) Decode(r io.Reader, _ uint32) error {
	if err := ReadElements(r, &c.ChanID, &c.Data); err != nil {
		return err
	}

	var tlvRecords ExtraOpaqueData
	if err := ReadElements(r, &tlvRecords); err != nil {
		return err
	}

	var code CodedError
	typeMap, err := tlvRecords.ExtractRecords(&code)
	if err != nil {
		return err
	}

	if val, ok := typeMap[typeErrorCode]; ok && val == nil {
		c.Code = &code
	}

	return nil
}

// Encode serializes the target Error into the passed io.Writer observing the
// protocol version specified.
//
// This is part of the lnwire.Message interface.
func (c *Error) Encode(w *bytes.Buffer, _ uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}

	if err := WriteErrorData(w, c.Data); err != nil {
		return err
	}

	var tlvRecords ExtraOpaqueData
	if c.Code != nil {
		if err := tlvRecords.PackRecords(c.Code); err != nil {
			return err
		}
	}

	return WriteBytes(w, tlvRecords)
}

// MsgType returns the integer uniquely identifying an Error message on the
// wire.
//
// This is part of the lnwire.Message interface.
func (c *Error) MsgType() MessageType {
	return MsgError
}

// TargetChanID returns the channel id of the link for which this message is
// intended.
//
// NOTE: Part of the lnwire.LinkUpdater interface.
func (c *Error) TargetChanID() ChannelID {
	return c.ChanID
}

// isASCII returns true if the passed byte slice contains only printable
// ASCII characters.
func isASCII(b []byte) bool {
	for _, c := range b {
		if c < 32 || c > 126 {
			return false
		}
	}

	return true
}

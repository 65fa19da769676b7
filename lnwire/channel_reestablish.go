package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ChannelReestablish is sent by both sides when either side comes back
// online after a disconnection, before normal channel traffic is resumed.
// Each side reports its local view of the channel's update log state, plus
// enough information about the prior commitment for the other side to
// detect state loss or a data-loss protection mismatch.
type ChannelReestablish struct {
	// ChanID identifies which channel is being reestablished.
	ChanID ChannelID

	// NextLocalCommitHeight is the next local commitment height that the
	// sending node is expecting to receive a signature for.
	NextLocalCommitHeight uint64

	// RemoteCommitTailHeight is the commitment height of the remote
	// node's commitment that the sending node believes is still valid.
	// This is the highest commitment the sender has sent a revocation
	// for.
	RemoteCommitTailHeight uint64

	// LastRemoteCommitSecret is the last per-commitment secret that the
	// sending node received from the remote party, used to prove to the
	// remote party that the sender has not lost state.
	LastRemoteCommitSecret [32]byte

	// LocalUnrevokedCommitPoint is the sender's current, unrevoked
	// commitment point. If the remote party detects that the sender has
	// lost state, this point can be used to sweep the sender's funds
	// from the commitment the remote party force-closed with.
	LocalUnrevokedCommitPoint *btcec.PublicKey

	// ExtraData is the set of data that was appended to this message to
	// fill out the full maximum transport message size. These fields can
	// be used to specify optional data such as custom TLV fields.
	ExtraData ExtraOpaqueData
}

// A compile time check to ensure ChannelReestablish implements the
// lnwire.Message interface.
var _ Message = (*ChannelReestablish)(nil)

// A compile time check to ensure ChannelReestablish implements the
// lnwire.LinkUpdater interface.
var _ LinkUpdater = (*ChannelReestablish)(nil)

// Decode deserializes the serialized ChannelReestablish stored in the
// passed io.Reader into the target ChannelReestablish using the
// deserialization rules defined by the passed protocol version.
//
// Older peers may not include the data-loss-protection fields at all, so
// the optional tail is read on a best-effort basis and absence is not
// treated as an error.
//
// This is part of the lnwire.Message interface.
func (a *ChannelReestablish) Decode(r io.Reader, pver uint32) error {
	err := ReadElements(r,
		&a.ChanID,
		&a.NextLocalCommitHeight,
		&a.RemoteCommitTailHeight,
	)
	if err != nil {
		return err
	}

	err = ReadElements(r,
		a.LastRemoteCommitSecret[:],
		&a.LocalUnrevokedCommitPoint,
	)
	switch err {
	case nil:
	case io.EOF, io.ErrUnexpectedEOF:
		a.LocalUnrevokedCommitPoint = nil
		return nil
	default:
		return err
	}

	var tlvRecords ExtraOpaqueData
	if err := ReadElements(r, &tlvRecords); err != nil {
		return nil
	}

	if len(tlvRecords) != 0 {
		a.ExtraData = tlvRecords
	}

	return nil
}

// Encode serializes the target ChannelReestablish into the passed
// io.Writer implementation. Serialization will observe the rules defined
// by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (a *ChannelReestablish) Encode(w *bytes.Buffer, pver uint32) error {
	if err := WriteChannelID(w, a.ChanID); err != nil {
		return err
	}
	if err := WriteUint64(w, a.NextLocalCommitHeight); err != nil {
		return err
	}
	if err := WriteUint64(w, a.RemoteCommitTailHeight); err != nil {
		return err
	}

	if a.LocalUnrevokedCommitPoint == nil {
		return nil
	}

	if err := WriteBytes(w, a.LastRemoteCommitSecret[:]); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.LocalUnrevokedCommitPoint); err != nil {
		return err
	}

	return WriteBytes(w, a.ExtraData)
}

// MsgType returns the uint32 code which uniquely identifies this message as
// a ChannelReestablish on the wire.
//
// This is part of the lnwire.Message interface.
func (a *ChannelReestablish) MsgType() MessageType {
	return MsgChannelReestablish
}

// TargetChanID returns the channel id of the link for which this message is
// intended.
//
// NOTE: Part of the lnwire.LinkUpdater interface.
func (a *ChannelReestablish) TargetChanID() ChannelID {
	return a.ChanID
}

package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/tlv"
)

// revocationNextLocalNonceType is the TLV type used to carry the musig2
// nonce the revoking party will use to sign its next commitment, required
// for taproot channels where Schnorr partial signatures depend on fresh
// nonces rather than being deterministic.
const revocationNextLocalNonceType tlv.Type = 4

// RevokeAndAck is sent by either side once it receives a new commitment
// signature for its own commitment transaction. This message serves two
// purposes: first, it irrevocably revokes the prior commitment transaction
// by releasing the per-commitment secret, and second it sends the
// successor per-commitment point that the counterparty should use to
// construct the following commitment.
type RevokeAndAck struct {
	// ChanID uniquely identifies to which currently active channel this
	// message applies to.
	ChanID ChannelID

	// Revocation is the pre-image to the per-commitment secret that the
	// revoking party used to derive all of its keys for the prior
	// commitment state, now irrevocably revoked.
	Revocation [32]byte

	// NextRevocationKey is the next commitment point to be used for the
	// sender's commitment transaction.
	NextRevocationKey *btcec.PublicKey

	// LocalNonce, if non-nil, is the musig2 public nonce the sender will
	// use to generate a partial signature for the counterparty's next
	// commitment transaction, for taproot channels.
	LocalNonce *Musig2Nonce

	// ExtraData is the set of data that was appended to this message to
	// fill out the full maximum transport message size. These fields can
	// be used to specify optional data such as custom TLV fields.
	ExtraData ExtraOpaqueData
}

// A compile time check to ensure RevokeAndAck implements the lnwire.Message
// interface.
var _ Message = (*RevokeAndAck)(nil)

// A compile time check to ensure RevokeAndAck implements the
// lnwire.LinkUpdater interface.
var _ LinkUpdater = (*RevokeAndAck)(nil)

// Decode deserializes the serialized RevokeAndAck stored in the passed
// io.Reader into the target RevokeAndAck using the deserialization rules
// defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *RevokeAndAck) Decode(r io.Reader, pver uint32) error {
	err := ReadElements(r,
		&c.ChanID,
		c.Revocation[:],
		&c.NextRevocationKey,
	)
	if err != nil {
		return err
	}

	var tlvRecords ExtraOpaqueData
	if err := ReadElements(r, &tlvRecords); err != nil {
		return err
	}

	nonce := NewMusig2NonceRecordProducer(revocationNextLocalNonceType)
	typeMap, err := tlvRecords.ExtractRecords(nonce)
	if err != nil {
		return err
	}

	if val, ok := typeMap[revocationNextLocalNonceType]; ok && val == nil {
		localNonce := nonce.Musig2Nonce
		c.LocalNonce = &localNonce
	}

	if len(tlvRecords) != 0 {
		c.ExtraData = tlvRecords
	}

	return nil
}

// Encode serializes the target RevokeAndAck into the passed io.Writer
// implementation. Serialization will observe the rules defined by the
// passed protocol version.
//
// This is part of the lnwire.Message interface.
func (c *RevokeAndAck) Encode(w *bytes.Buffer, pver uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}
	if err := WriteBytes(w, c.Revocation[:]); err != nil {
		return err
	}
	if err := WritePublicKey(w, c.NextRevocationKey); err != nil {
		return err
	}

	recordProducers := make([]tlv.RecordProducer, 0, 1)
	if c.LocalNonce != nil {
		producer := &Musig2NonceRecordProducer{
			Musig2Nonce: *c.LocalNonce,
			Type:        revocationNextLocalNonceType,
		}
		recordProducers = append(recordProducers, producer)
	}
	if err := EncodeMessageExtraData(&c.ExtraData, recordProducers...); err != nil {
		return err
	}

	return WriteBytes(w, c.ExtraData)
}

// MsgType returns the uint32 code which uniquely identifies this message as
// a RevokeAndAck on the wire.
//
// This is part of the lnwire.Message interface.
func (c *RevokeAndAck) MsgType() MessageType {
	return MsgRevokeAndAck
}

// TargetChanID returns the channel id of the link for which this message is
// intended.
//
// NOTE: Part of the lnwire.LinkUpdater interface.
func (c *RevokeAndAck) TargetChanID() ChannelID {
	return c.ChanID
}

package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/tlv"
)

// AcceptChannel is the message Bob sends to Alice in response to the
// OpenChannel message, completing the negotiation of the parameters for the
// to-be-created channel.
type AcceptChannel struct {
	// PendingChannelID echoes back the channel ID from the OpenChannel
	// message that this message is responding to.
	PendingChannelID [32]byte

	// DustLimit is the lower bound, in satoshis, for an output on the
	// commitment transaction to be considered a non-dust output.
	DustLimit btcutil.Amount

	// MaxValueInFlight caps the total millisatoshi value of pending
	// HTLCs the responder will accept at any one time.
	MaxValueInFlight MilliSatoshi

	// ChannelReserve is the minimum balance, in satoshis, that the
	// responder requires the initiator to maintain on their side of the
	// channel.
	ChannelReserve btcutil.Amount

	// HtlcMinimum is the smallest HTLC value, in millisatoshi, that the
	// responder will accept.
	HtlcMinimum MilliSatoshi

	// MinAcceptDepth is the minimum number of confirmations the
	// responder requires before it will consider the funding
	// transaction locked in.
	MinAcceptDepth uint32

	// CsvDelay is the number of blocks the initiator's to_self output
	// must be delayed on a unilateral close.
	CsvDelay uint16

	// MaxAcceptedHTLCs is the maximum number of HTLCs the responder will
	// accept from the initiator at any one time.
	MaxAcceptedHTLCs uint16

	// FundingKey is the responder's key used for the 2-of-2 funding
	// output multisig script.
	FundingKey *btcec.PublicKey

	// RevocationPoint is the base point used to derive the responder's
	// revocation key for each commitment state.
	RevocationPoint *btcec.PublicKey

	// PaymentPoint is the base point used to derive the key of the
	// responder's non-delayed output on the commitment transaction.
	PaymentPoint *btcec.PublicKey

	// DelayedPaymentPoint is the base point used to derive the key of
	// the responder's delayed to_self output.
	DelayedPaymentPoint *btcec.PublicKey

	// HtlcPoint is the base point used to derive the responder's key in
	// HTLC scripts on the commitment transaction.
	HtlcPoint *btcec.PublicKey

	// FirstCommitmentPoint is the per-commitment point for the first
	// commitment transaction, computed from the responder's shachain
	// seed.
	FirstCommitmentPoint *btcec.PublicKey

	// ChannelType, if set, echoes back the explicit channel type agreed
	// upon for this channel.
	ChannelType *ChannelType

	// ExtraData is the set of data that was appended to this message to
	// fill out the full maximum transport message size. These fields can
	// be used to specify optional data such as custom TLV fields.
	ExtraData ExtraOpaqueData
}

// A compile time check to ensure AcceptChannel implements the lnwire.Message
// interface.
var _ Message = (*AcceptChannel)(nil)

// Decode deserializes the serialized AcceptChannel stored in the passed
// io.Reader into the target AcceptChannel using the deserialization rules
// defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (a *AcceptChannel) Decode(r io.Reader, pver uint32) error {
	err := ReadElements(r,
		a.PendingChannelID[:],
		&a.DustLimit,
		&a.MaxValueInFlight,
		&a.ChannelReserve,
		&a.HtlcMinimum,
		&a.MinAcceptDepth,
		&a.CsvDelay,
		&a.MaxAcceptedHTLCs,
		&a.FundingKey,
		&a.RevocationPoint,
		&a.PaymentPoint,
		&a.DelayedPaymentPoint,
		&a.HtlcPoint,
		&a.FirstCommitmentPoint,
	)
	if err != nil {
		return err
	}

	var tlvRecords ExtraOpaqueData
	if err := ReadElements(r, &tlvRecords); err != nil {
		return err
	}

	var chanType ChannelType
	typeMap, err := tlvRecords.ExtractRecords(&chanType)
	if err != nil {
		return err
	}

	if val, ok := typeMap[ChannelTypeRecordType]; ok && val == nil {
		a.ChannelType = &chanType
	}

	if len(tlvRecords) != 0 {
		a.ExtraData = tlvRecords
	}

	return nil
}

// Encode serializes the target AcceptChannel into the passed io.Writer
// implementation. Serialization will observe the rules defined by the
// passed protocol version.
//
// This is part of the lnwire.Message interface.
func (a *AcceptChannel) Encode(w *bytes.Buffer, pver uint32) error {
	if err := WriteBytes(w, a.PendingChannelID[:]); err != nil {
		return err
	}
	if err := WriteSatoshi(w, a.DustLimit); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, a.MaxValueInFlight); err != nil {
		return err
	}
	if err := WriteSatoshi(w, a.ChannelReserve); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, a.HtlcMinimum); err != nil {
		return err
	}
	if err := WriteUint32(w, a.MinAcceptDepth); err != nil {
		return err
	}
	if err := WriteUint16(w, a.CsvDelay); err != nil {
		return err
	}
	if err := WriteUint16(w, a.MaxAcceptedHTLCs); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.FundingKey); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.RevocationPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.PaymentPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.DelayedPaymentPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.HtlcPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.FirstCommitmentPoint); err != nil {
		return err
	}

	recordProducers := make([]tlv.RecordProducer, 0, 1)
	if a.ChannelType != nil {
		chanType := *a.ChannelType
		recordProducers = append(recordProducers, &chanType)
	}
	if err := EncodeMessageExtraData(&a.ExtraData, recordProducers...); err != nil {
		return err
	}

	return WriteBytes(w, a.ExtraData)
}

// MsgType returns the uint32 code which uniquely identifies this message as
// an AcceptChannel on the wire.
//
// This is part of the lnwire.Message interface.
func (a *AcceptChannel) MsgType() MessageType {
	return MsgAcceptChannel
}

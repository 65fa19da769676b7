package lnwire

import (
	"bytes"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/tlv"
)

// FundingFlag represents the possible bit flags that can be used to
// indicate how a particular channel proposal wishes to proceed with the
// funding workflow.
type FundingFlag uint8

const (
	// FFAnnounceChannel indicates that the initiator of the channel
	// wishes to advertise the channel to the rest of the network once it
	// has been fully established.
	FFAnnounceChannel FundingFlag = 1
)

// OpenChannel is sent by the initiator of a channel establishment flow to
// propose the terms of the new channel and make a contribution to the
// funding transaction.
type OpenChannel struct {
	// ChainHash is the hash of the genesis block of the chain that the
	// proposed channel will reside within.
	ChainHash chainhash.Hash

	// PendingChannelID identifies the future channel for the duration of
	// the funding flow, before the funding outpoint is known.
	PendingChannelID [32]byte

	// FundingAmount is the amount the initiator is contributing to the
	// funding output of the channel.
	FundingAmount btcutil.Amount

	// PushAmount is the number of milli-satoshis the initiator wishes to
	// push to the responder as part of the initial channel state.
	PushAmount MilliSatoshi

	// DustLimit is the lower bound, in satoshis, for an output on the
	// commitment transaction to be considered a non-dust output.
	DustLimit btcutil.Amount

	// MaxValueInFlight caps the total millisatoshi value of pending
	// HTLCs the initiator will accept at any one time.
	MaxValueInFlight MilliSatoshi

	// ChannelReserve is the minimum balance, in satoshis, that the
	// initiator requires the responder to maintain on their side of the
	// channel. This package only carries the value; it does not check
	// either side's balance against it.
	ChannelReserve btcutil.Amount

	// HtlcMinimum is the smallest HTLC value, in millisatoshi, that the
	// initiator will accept.
	HtlcMinimum MilliSatoshi

	// FeePerKiloWeight is the fee rate, in satoshi-per-kw, that the
	// initiator wants to pay for the commitment transaction.
	FeePerKiloWeight uint32

	// CsvDelay is the number of blocks the responder's to_self output
	// must be delayed on a unilateral close.
	CsvDelay uint16

	// MaxAcceptedHTLCs is the maximum number of HTLCs the initiator will
	// accept from the responder at any one time.
	MaxAcceptedHTLCs uint16

	// FundingKey is the initiator's key used for the 2-of-2 funding
	// output multisig script.
	FundingKey *btcec.PublicKey

	// RevocationPoint is the base point used to derive the initiator's
	// revocation key for each commitment state.
	RevocationPoint *btcec.PublicKey

	// PaymentPoint is the base point used to derive the key of the
	// initiator's non-delayed output on the commitment transaction.
	PaymentPoint *btcec.PublicKey

	// DelayedPaymentPoint is the base point used to derive the key of
	// the initiator's delayed to_self output.
	DelayedPaymentPoint *btcec.PublicKey

	// HtlcPoint is the base point used to derive the initiator's key in
	// HTLC scripts on the commitment transaction.
	HtlcPoint *btcec.PublicKey

	// FirstCommitmentPoint is the per-commitment point for the first
	// commitment transaction, computed from the initiator's shachain
	// seed.
	FirstCommitmentPoint *btcec.PublicKey

	// ChannelFlags holds the upfront channel parameter bit flags.
	ChannelFlags FundingFlag

	// ChannelType, if set, is the explicit channel type being proposed,
	// overriding the implicit type derived from feature negotiation.
	ChannelType *ChannelType

	// ExtraData is the set of data that was appended to this message to
	// fill out the full maximum transport message size. These fields can
	// be used to specify optional data such as custom TLV fields.
	ExtraData ExtraOpaqueData
}

// A compile time check to ensure OpenChannel implements the lnwire.Message
// interface.
var _ Message = (*OpenChannel)(nil)

// Decode deserializes the serialized OpenChannel stored in the passed
// io.Reader into the target OpenChannel using the deserialization rules
// defined by the passed protocol version.
//
// This is part of the lnwire.Message interface.
func (o *OpenChannel) Decode(r io.Reader, pver uint32) error {
	err := ReadElements(r,
		o.ChainHash[:],
		o.PendingChannelID[:],
		&o.FundingAmount,
		&o.PushAmount,
		&o.DustLimit,
		&o.MaxValueInFlight,
		&o.ChannelReserve,
		&o.HtlcMinimum,
		&o.FeePerKiloWeight,
		&o.CsvDelay,
		&o.MaxAcceptedHTLCs,
		&o.FundingKey,
		&o.RevocationPoint,
		&o.PaymentPoint,
		&o.DelayedPaymentPoint,
		&o.HtlcPoint,
		&o.FirstCommitmentPoint,
	)
	if err != nil {
		return err
	}

	var flags uint8
	if err := ReadElement(r, &flags); err != nil {
		return err
	}
	o.ChannelFlags = FundingFlag(flags)

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
		o.ChannelType = &chanType
	}

	if len(tlvRecords) != 0 {
		o.ExtraData = tlvRecords
	}

	return nil
}

// Encode serializes the target OpenChannel into the passed io.Writer
// implementation. Serialization will observe the rules defined by the
// passed protocol version.
//
// This is part of the lnwire.Message interface.
func (o *OpenChannel) Encode(w *bytes.Buffer, pver uint32) error {
	if err := WriteBytes(w, o.ChainHash[:]); err != nil {
		return err
	}
	if err := WriteBytes(w, o.PendingChannelID[:]); err != nil {
		return err
	}
	if err := WriteSatoshi(w, o.FundingAmount); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, o.PushAmount); err != nil {
		return err
	}
	if err := WriteSatoshi(w, o.DustLimit); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, o.MaxValueInFlight); err != nil {
		return err
	}
	if err := WriteSatoshi(w, o.ChannelReserve); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, o.HtlcMinimum); err != nil {
		return err
	}
	if err := WriteUint32(w, o.FeePerKiloWeight); err != nil {
		return err
	}
	if err := WriteUint16(w, o.CsvDelay); err != nil {
		return err
	}
	if err := WriteUint16(w, o.MaxAcceptedHTLCs); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.FundingKey); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.RevocationPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.PaymentPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.DelayedPaymentPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.HtlcPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.FirstCommitmentPoint); err != nil {
		return err
	}
	if err := WriteUint8(w, uint8(o.ChannelFlags)); err != nil {
		return err
	}

	recordProducers := make([]tlv.RecordProducer, 0, 1)
	if o.ChannelType != nil {
		chanType := *o.ChannelType
		recordProducers = append(recordProducers, &chanType)
	}
	if err := EncodeMessageExtraData(&o.ExtraData, recordProducers...); err != nil {
		return err
	}

	return WriteBytes(w, o.ExtraData)
}

// MsgType returns the uint32 code which uniquely identifies this message as
// an OpenChannel on the wire.
//
// This is part of the lnwire.Message interface.
func (o *OpenChannel) MsgType() MessageType {
	return MsgOpenChannel
}

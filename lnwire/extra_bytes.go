package lnwire

import (
	"bytes"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// ExtraOpaqueData is the set of bytes that appear at the end of a message.
// It is used to allow a message to carry arbitrary TLV data beyond the
// fields strictly defined for it, and also to let an older node forward or
// echo back records added by newer software without understanding them.
type ExtraOpaqueData []byte

// Encode writes the raw bytes of e to w, unmodified.
func (e *ExtraOpaqueData) Encode(w io.Writer) error {
	if len(*e) == 0 {
		return nil
	}

	_, err := w.Write(*e)
	return err
}

// Decode reads all remaining bytes from r into e. ExtraOpaqueData has no
// explicit length prefix on the wire: it occupies whatever is left of the
// message after every other field has been read.
func (e *ExtraOpaqueData) Decode(r io.Reader) error {
	var b bytes.Buffer
	if _, err := b.ReadFrom(r); err != nil {
		return err
	}

	if b.Len() == 0 {
		*e = nil
		return nil
	}

	*e = b.Bytes()

	return nil
}

// rawRecordProducer wraps a raw TLV type/value pair so it can be re-encoded
// without needing to know its semantic meaning. This lets a node preserve
// records it doesn't understand when it re-serializes a message.
type rawRecordProducer struct {
	typ   tlv.Type
	value []byte
}

// Record returns the tlv.Record for the raw, opaque entry.
func (r *rawRecordProducer) Record() tlv.Record {
	return tlv.MakeStaticRecord(
		r.typ, &r.value, uint64(len(r.value)),
		rawRecordEncoder, rawRecordDecoder,
	)
}

func rawRecordEncoder(w io.Writer, val interface{}, _ *[8]byte) error {
	if v, ok := val.(*[]byte); ok {
		_, err := w.Write(*v)
		return err
	}

	return tlv.NewTypeForEncodingErr(val, "lnwire.rawRecordProducer")
}

func rawRecordDecoder(r io.Reader, val interface{}, _ *[8]byte,
	l uint64) error {

	if v, ok := val.(*[]byte); ok {
		*v = make([]byte, l)
		_, err := io.ReadFull(r, *v)
		return err
	}

	return tlv.NewTypeForDecodingErr(val, "lnwire.rawRecordProducer", l, l)
}

// rawProducersFromMap converts a map of raw TLV type/value pairs into a
// slice of record producers suitable for re-packing into a TLV stream.
func rawProducersFromMap(m map[tlv.Type][]byte) []tlv.RecordProducer {
	producers := make([]tlv.RecordProducer, 0, len(m))
	for t, v := range m {
		producers = append(producers, &rawRecordProducer{typ: t, value: v})
	}

	return producers
}

// PackRecords serializes the given set of record producers into a single
// TLV stream and stores the result in e.
func (e *ExtraOpaqueData) PackRecords(producers ...tlv.RecordProducer) error {
	records := make([]tlv.Record, 0, len(producers))
	for _, producer := range producers {
		records = append(records, producer.Record())
	}

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return err
	}

	*e = b.Bytes()

	return nil
}

// RecordProducers parses the raw TLV stream held by e into a slice of
// opaque record producers, one per entry found, preserving any records that
// this node doesn't have a concrete type for.
func (e *ExtraOpaqueData) RecordProducers() ([]tlv.RecordProducer, error) {
	if len(*e) == 0 {
		return nil, nil
	}

	stream, err := tlv.NewStream()
	if err != nil {
		return nil, err
	}

	typeMap, err := stream.DecodeWithParsedTypes(bytes.NewReader(*e))
	if err != nil {
		return nil, err
	}

	raw := make(map[tlv.Type][]byte, len(typeMap))
	for t, v := range typeMap {
		if v == nil {
			continue
		}
		raw[t] = v
	}

	return rawProducersFromMap(raw), nil
}

// ExtractRecords attempts to parse the given set of known record producers
// out of e's TLV stream, returning the set of types that were actually
// present.
func (e *ExtraOpaqueData) ExtractRecords(known ...tlv.RecordProducer) (
	tlv.TypeMap, error) {

	records := make([]tlv.Record, 0, len(known))
	for _, producer := range known {
		records = append(records, producer.Record())
	}

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	return stream.DecodeWithParsedTypes(bytes.NewReader(*e))
}

// ExtractRecordsFromProducers is an alias for ExtractRecords, kept as a
// separate name since both spellings are used across the message set.
func (e *ExtraOpaqueData) ExtractRecordsFromProducers(
	known ...tlv.RecordProducer) (tlv.TypeMap, error) {

	return e.ExtractRecords(known...)
}

// ParseAndExtractExtraData decodes e against the given set of known record
// producers, returning the full type map describing what was found along
// with the remaining (unknown) records re-packed into a fresh
// ExtraOpaqueData.
func ParseAndExtractExtraData(e ExtraOpaqueData,
	known ...tlv.RecordProducer) (tlv.TypeMap, ExtraOpaqueData, error) {

	typeMap, err := e.ExtractRecords(known...)
	if err != nil {
		return nil, nil, err
	}

	leftOver := make(map[tlv.Type][]byte)
	for t, v := range typeMap {
		if v == nil {
			// A nil value means the record was successfully
			// parsed into one of the known producers.
			continue
		}
		leftOver[t] = v
	}

	var rest ExtraOpaqueData
	if err := rest.PackRecords(rawProducersFromMap(leftOver)...); err != nil {
		return nil, nil, err
	}

	return typeMap, rest, nil
}

// ParseAndExtractCustomRecords is like ParseAndExtractExtraData, but
// additionally splits out any records in the custom (application-defined)
// TLV range into a CustomRecords map.
func ParseAndExtractCustomRecords(e ExtraOpaqueData,
	known ...tlv.RecordProducer) (CustomRecords, tlv.TypeMap,
	ExtraOpaqueData, error) {

	typeMap, err := e.ExtractRecords(known...)
	if err != nil {
		return nil, nil, nil, err
	}

	customRecords := make(CustomRecords)
	leftOver := make(map[tlv.Type][]byte)
	for t, v := range typeMap {
		switch {
		case v == nil:
			continue
		case uint64(t) >= MinCustomRecordsTlvType:
			customRecords[uint64(t)] = v
		default:
			leftOver[t] = v
		}
	}

	if err := customRecords.Validate(); err != nil {
		return nil, nil, nil, err
	}

	var rest ExtraOpaqueData
	if err := rest.PackRecords(rawProducersFromMap(leftOver)...); err != nil {
		return nil, nil, nil, err
	}

	return customRecords, typeMap, rest, nil
}

// MergeAndEncode combines a set of known (structured) record producers with
// whatever opaque/unknown records are already present in extraData, along
// with any application-defined custom records, and serializes the union
// into a single ExtraOpaqueData blob ready to be appended to a message.
func MergeAndEncode(known []tlv.RecordProducer, extraData ExtraOpaqueData,
	customRecords CustomRecords) (ExtraOpaqueData, error) {

	existing, err := extraData.RecordProducers()
	if err != nil {
		return nil, err
	}

	all := make(
		[]tlv.RecordProducer, 0,
		len(known)+len(existing)+len(customRecords),
	)
	all = append(all, known...)
	all = append(all, existing...)

	for t, v := range customRecords {
		all = append(all, &rawRecordProducer{typ: tlv.Type(t), value: v})
	}

	var result ExtraOpaqueData
	if err := result.PackRecords(all...); err != nil {
		return nil, err
	}

	return result, nil
}

// EncodeMessageExtraData packs the given set of known record producers
// together with whatever unknown records are already held in e, storing the
// combined TLV stream back into e.
func EncodeMessageExtraData(e *ExtraOpaqueData,
	known ...tlv.RecordProducer) error {

	existing, err := e.RecordProducers()
	if err != nil {
		return err
	}

	all := make([]tlv.RecordProducer, 0, len(known)+len(existing))
	all = append(all, known...)
	all = append(all, existing...)

	return e.PackRecords(all...)
}

package zpay32

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Tagged field types, as defined by BOLT-11. Each tagged field is prefixed
// with its type, followed by a 10-bit length (two base32 groups), followed
// by that many base32 groups of data.
const (
	fieldTypeP = 1
	fieldTypeD = 13
	fieldTypeH = 23
	fieldTypeX = 6
	fieldTypeC = 24
	fieldTypeF = 9
	fieldTypeR = 3
	fieldTypeN = 19
	fieldTypeS = 16
	fieldType9 = 5
	fieldTypeM = 27
)

// base32ToUint64 decodes a base32-encoded (5-bit group) slice into a uint64,
// returning an error if the value would overflow 64 bits.
func base32ToUint64(data []byte) (uint64, error) {
	if len(data) > 13 {
		return 0, fmt.Errorf("base32 data %x overflows uint64", data)
	}

	var num uint64
	for _, b := range data {
		if b >= 32 {
			return 0, fmt.Errorf("invalid base32 group %d", b)
		}
		num = num<<5 | uint64(b)
	}

	return num, nil
}

// parseFallbackAddr decodes a single fallback-address tagged field, whose
// first byte is the witness/legacy version and whose remainder is the
// address's script payload, into a concrete btcutil.Address. A field with an
// unknown version is skipped: it yields a nil address and no error.
func parseFallbackAddr(data []byte, net *chaincfg.Params) (btcutil.Address, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("fallback address field empty")
	}

	version := data[0]
	payload := data[1:]

	switch version {
	case fallbackVersionPubkeyHash:
		return btcutil.NewAddressPubKeyHash(payload, net)

	case fallbackVersionScriptHash:
		return btcutil.NewAddressScriptHash(payload, net)

	case 0, 1:
		switch len(payload) {
		case 20:
			return btcutil.NewAddressWitnessPubKeyHash(payload, net)
		case 32:
			return btcutil.NewAddressWitnessScriptHash(payload, net)
		default:
			return btcutil.NewAddressTaproot(payload, net)
		}

	default:
		return nil, nil
	}
}

// parseHopHints decodes a route-hint tagged field's base256 payload into the
// ordered chain of hop hints it encodes.
func parseHopHints(data []byte) ([]HopHint, error) {
	if len(data)%hopHintLen != 0 {
		return nil, fmt.Errorf("invalid route hint length: %d",
			len(data))
	}

	numHops := len(data) / hopHintLen
	hopHints := make([]HopHint, 0, numHops)
	for i := 0; i < numHops; i++ {
		hopData := data[i*hopHintLen : (i+1)*hopHintLen]

		nodeID, err := btcec.ParsePubKey(hopData[:33])
		if err != nil {
			return nil, fmt.Errorf("unable to parse hop hint "+
				"node id: %w", err)
		}

		hopHints = append(hopHints, HopHint{
			NodeID:    nodeID,
			ChannelID: binary.BigEndian.Uint64(hopData[33:41]),
			FeeBaseMSat: binary.BigEndian.Uint32(
				hopData[41:45],
			),
			FeeProportionalMillionths: binary.BigEndian.Uint32(
				hopData[45:49],
			),
			CLTVExpiryDelta: binary.BigEndian.Uint16(
				hopData[49:51],
			),
		})
	}

	return hopHints, nil
}

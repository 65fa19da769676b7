package channeldb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/blockforge/lnchand/keychain"
	"github.com/blockforge/lnchand/lnwire"
	"github.com/blockforge/lnchand/shachain"
)

// byteOrder is the preferred encoding for every fixed-width integer stored
// in this package, chosen (as in the teacher) so cursor scans over
// integer-suffixed keys iterate in numeric order.
var byteOrder = binary.BigEndian

// serializeBuf is the concrete scratch buffer type pooled by channelBufPool.
type serializeBuf = bytes.Buffer

// channelBufPool amortizes the allocation cost of the scratch buffer used to
// serialize an OpenChannel on every PutOpenChannel call.
var channelBufPool = sync.Pool{
	New: func() interface{} { return new(serializeBuf) },
}

// outpointKey renders a funding outpoint into the fixed-width key used to
// index a channel within its node's channel bucket.
func outpointKey(op wire.OutPoint) ([]byte, error) {
	var b bytes.Buffer
	if err := writeOutpoint(&b, op); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func writeOutpoint(w io.Writer, o wire.OutPoint) error {
	if _, err := w.Write(o.Hash[:]); err != nil {
		return err
	}

	var idx [4]byte
	byteOrder.PutUint32(idx[:], o.Index)
	_, err := w.Write(idx[:])
	return err
}

func readOutpoint(r io.Reader) (wire.OutPoint, error) {
	var op wire.OutPoint

	if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
		return op, err
	}

	var idx [4]byte
	if _, err := io.ReadFull(r, idx[:]); err != nil {
		return op, err
	}
	op.Index = byteOrder.Uint32(idx[:])

	return op, nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	byteOrder.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(b[:]), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	byteOrder.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(b[:]), nil
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	byteOrder.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint16(b[:]), nil
}

func writeVarBytes(w io.Writer, b []byte) error {
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readVarBytes(r io.Reader, maxLen uint32) ([]byte, error) {
	l, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if l > maxLen {
		return nil, fmt.Errorf("var bytes length %d exceeds max %d", l, maxLen)
	}

	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeKeyDescriptor(w io.Writer, k keychain.KeyDescriptor) error {
	if err := writeUint32(w, uint32(k.Family)); err != nil {
		return err
	}
	if err := writeUint32(w, k.Index); err != nil {
		return err
	}

	if k.PubKey == nil {
		return writeVarBytes(w, nil)
	}
	return writeVarBytes(w, k.PubKey.SerializeCompressed())
}

func readKeyDescriptor(r io.Reader) (keychain.KeyDescriptor, error) {
	var k keychain.KeyDescriptor

	fam, err := readUint32(r)
	if err != nil {
		return k, err
	}
	k.Family = keychain.KeyFamily(fam)

	idx, err := readUint32(r)
	if err != nil {
		return k, err
	}
	k.Index = idx

	pubBytes, err := readVarBytes(r, 33)
	if err != nil {
		return k, err
	}
	if len(pubBytes) > 0 {
		pub, err := btcec.ParsePubKey(pubBytes)
		if err != nil {
			return k, err
		}
		k.PubKey = pub
	}

	return k, nil
}

func writeChannelConfig(w io.Writer, c ChannelConfig) error {
	if err := writeUint64(w, uint64(c.DustLimit)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(c.ChanReserve)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(c.MaxPendingAmount)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(c.MinHTLC)); err != nil {
		return err
	}
	if err := writeUint16(w, c.MaxAcceptedHtlcs); err != nil {
		return err
	}
	if err := writeUint16(w, c.CsvDelay); err != nil {
		return err
	}

	for _, kd := range []keychain.KeyDescriptor{
		c.MultiSigKey, c.RevocationBasePoint, c.PaymentBasePoint,
		c.DelayBasePoint, c.HtlcBasePoint,
	} {
		if err := writeKeyDescriptor(w, kd); err != nil {
			return err
		}
	}

	return nil
}

func readChannelConfig(r io.Reader) (ChannelConfig, error) {
	var c ChannelConfig

	dust, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.DustLimit = btcutil.Amount(dust)

	reserve, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.ChanReserve = btcutil.Amount(reserve)

	maxPending, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.MaxPendingAmount = lnwire.MilliSatoshi(maxPending)

	minHtlc, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.MinHTLC = lnwire.MilliSatoshi(minHtlc)

	c.MaxAcceptedHtlcs, err = readUint16(r)
	if err != nil {
		return c, err
	}
	c.CsvDelay, err = readUint16(r)
	if err != nil {
		return c, err
	}

	keys := make([]*keychain.KeyDescriptor, 5)
	for i := range keys {
		kd, err := readKeyDescriptor(r)
		if err != nil {
			return c, err
		}
		keys[i] = &kd
	}
	c.MultiSigKey = *keys[0]
	c.RevocationBasePoint = *keys[1]
	c.PaymentBasePoint = *keys[2]
	c.DelayBasePoint = *keys[3]
	c.HtlcBasePoint = *keys[4]

	return c, nil
}

func writeHtlc(w io.Writer, h HTLC) error {
	var dir [1]byte
	dir[0] = byte(h.Direction)
	if _, err := w.Write(dir[:]); err != nil {
		return err
	}
	if err := writeUint64(w, h.HtlcIndex); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(h.Amt)); err != nil {
		return err
	}
	if _, err := w.Write(h.RHash[:]); err != nil {
		return err
	}
	if err := writeUint32(w, h.RefundTimeout); err != nil {
		return err
	}
	if _, err := w.Write(h.OnionBlob[:]); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(h.OutputIndex)); err != nil {
		return err
	}

	if err := writeUint16(w, uint16(len(h.SecondStageSig))); err != nil {
		return err
	}
	_, err := w.Write(h.SecondStageSig)
	return err
}

func readHtlc(r io.Reader) (HTLC, error) {
	var h HTLC

	var dir [1]byte
	if _, err := io.ReadFull(r, dir[:]); err != nil {
		return h, err
	}
	h.Direction = HtlcDirection(dir[0])

	idx, err := readUint64(r)
	if err != nil {
		return h, err
	}
	h.HtlcIndex = idx

	amt, err := readUint64(r)
	if err != nil {
		return h, err
	}
	h.Amt = lnwire.MilliSatoshi(amt)

	if _, err := io.ReadFull(r, h.RHash[:]); err != nil {
		return h, err
	}

	h.RefundTimeout, err = readUint32(r)
	if err != nil {
		return h, err
	}

	if _, err := io.ReadFull(r, h.OnionBlob[:]); err != nil {
		return h, err
	}

	outIdx, err := readUint32(r)
	if err != nil {
		return h, err
	}
	h.OutputIndex = int32(outIdx)

	sigLen, err := readUint16(r)
	if err != nil {
		return h, err
	}
	if sigLen > 0 {
		h.SecondStageSig = make([]byte, sigLen)
		if _, err := io.ReadFull(r, h.SecondStageSig); err != nil {
			return h, err
		}
	}

	return h, nil
}

func writeCommitment(w io.Writer, c ChannelCommitment) error {
	if err := writeUint64(w, c.CommitHeight); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(c.LocalBalance)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(c.RemoteBalance)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(c.CommitFee)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(c.FeePerKw)); err != nil {
		return err
	}

	var txBuf bytes.Buffer
	if c.CommitTx != nil {
		if err := c.CommitTx.Serialize(&txBuf); err != nil {
			return err
		}
	}
	if err := writeVarBytes(w, txBuf.Bytes()); err != nil {
		return err
	}

	if err := writeVarBytes(w, c.CommitSig); err != nil {
		return err
	}

	if err := writeUint32(w, uint32(len(c.Htlcs))); err != nil {
		return err
	}
	for _, h := range c.Htlcs {
		if err := writeHtlc(w, h); err != nil {
			return err
		}
	}

	return nil
}

func readCommitment(r io.Reader) (ChannelCommitment, error) {
	var c ChannelCommitment

	var err error
	c.CommitHeight, err = readUint64(r)
	if err != nil {
		return c, err
	}

	lb, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.LocalBalance = lnwire.MilliSatoshi(lb)

	rb, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.RemoteBalance = lnwire.MilliSatoshi(rb)

	fee, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.CommitFee = btcutil.Amount(fee)

	feeRate, err := readUint64(r)
	if err != nil {
		return c, err
	}
	c.FeePerKw = btcutil.Amount(feeRate)

	txBytes, err := readVarBytes(r, 1<<20)
	if err != nil {
		return c, err
	}
	if len(txBytes) > 0 {
		tx := wire.NewMsgTx(wire.TxVersion)
		if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
			return c, err
		}
		c.CommitTx = tx
	}

	c.CommitSig, err = readVarBytes(r, 200)
	if err != nil {
		return c, err
	}

	numHtlcs, err := readUint32(r)
	if err != nil {
		return c, err
	}
	c.Htlcs = make([]HTLC, numHtlcs)
	for i := range c.Htlcs {
		h, err := readHtlc(r)
		if err != nil {
			return c, err
		}
		c.Htlcs[i] = h
	}

	return c, nil
}

// serializeOrigin writes the cold form of an Origin. This is the only form
// ever persisted, per §3/§9's hot/cold origin split.
func serializeOrigin(w io.Writer, o Origin) error {
	var kind [1]byte
	kind[0] = byte(o.Kind)
	if _, err := w.Write(kind[:]); err != nil {
		return err
	}

	switch o.Kind {
	case OriginKindLocal:
		idBytes, err := o.PaymentID.MarshalBinary()
		if err != nil {
			return err
		}
		_, err = w.Write(idBytes)
		return err

	case OriginKindRelayed:
		if _, err := w.Write(o.IncomingChanID[:]); err != nil {
			return err
		}
		return writeUint64(w, o.IncomingHtlcID)

	case OriginKindTrampoline:
		if err := writeUint32(w, uint32(len(o.TrampolineHtlcs))); err != nil {
			return err
		}
		for _, ro := range o.TrampolineHtlcs {
			if _, err := w.Write(ro.ChanID[:]); err != nil {
				return err
			}
			if err := writeUint64(w, ro.HtlcID); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown origin kind %d", o.Kind)
	}
}

func deserializeOrigin(r io.Reader) (Origin, error) {
	var o Origin

	var kind [1]byte
	if _, err := io.ReadFull(r, kind[:]); err != nil {
		return o, err
	}
	o.Kind = OriginKind(kind[0])

	switch o.Kind {
	case OriginKindLocal:
		idBytes := make([]byte, 16)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return o, err
		}
		id, err := uuid.FromBytes(idBytes)
		if err != nil {
			return o, err
		}
		o.PaymentID = id

	case OriginKindRelayed:
		if _, err := io.ReadFull(r, o.IncomingChanID[:]); err != nil {
			return o, err
		}
		htlcID, err := readUint64(r)
		if err != nil {
			return o, err
		}
		o.IncomingHtlcID = htlcID

	case OriginKindTrampoline:
		n, err := readUint32(r)
		if err != nil {
			return o, err
		}
		o.TrampolineHtlcs = make([]RelayedOrigin, n)
		for i := range o.TrampolineHtlcs {
			var ro RelayedOrigin
			if _, err := io.ReadFull(r, ro.ChanID[:]); err != nil {
				return o, err
			}
			ro.HtlcID, err = readUint64(r)
			if err != nil {
				return o, err
			}
			o.TrampolineHtlcs[i] = ro
		}

	default:
		return o, fmt.Errorf("unknown origin kind %d", o.Kind)
	}

	return o, nil
}

// serializeOpenChannel writes the complete persisted form of a channel.
func serializeOpenChannel(w io.Writer, c *OpenChannel) error {
	if err := writeUint16(w, uint16(c.ChanType)); err != nil {
		return err
	}
	if _, err := w.Write(c.ChanID[:]); err != nil {
		return err
	}
	if err := writeOutpoint(w, c.FundingOutpoint); err != nil {
		return err
	}
	if err := writeUint64(w, c.ShortChanID.ToUint64()); err != nil {
		return err
	}

	var initiator [1]byte
	if c.IsInitiator {
		initiator[0] = 1
	}
	if _, err := w.Write(initiator[:]); err != nil {
		return err
	}

	var state [1]byte
	state[0] = byte(c.State)
	if _, err := w.Write(state[:]); err != nil {
		return err
	}

	if err := writeUint64(w, uint64(c.Capacity)); err != nil {
		return err
	}
	if _, err := w.Write(c.IdentityPub[:]); err != nil {
		return err
	}

	if err := writeChannelConfig(w, c.LocalChanCfg); err != nil {
		return err
	}
	if err := writeChannelConfig(w, c.RemoteChanCfg); err != nil {
		return err
	}

	if err := writeCommitment(w, c.LocalCommitment); err != nil {
		return err
	}
	if err := writeCommitment(w, c.RemoteCommitment); err != nil {
		return err
	}

	var prodBuf bytes.Buffer
	if err := c.RevocationProducer.Encode(&prodBuf); err != nil {
		return err
	}
	if err := writeVarBytes(w, prodBuf.Bytes()); err != nil {
		return err
	}

	var storeBuf bytes.Buffer
	if err := c.RevocationStore.Encode(&storeBuf); err != nil {
		return err
	}
	if err := writeVarBytes(w, storeBuf.Bytes()); err != nil {
		return err
	}

	if _, err := w.Write(c.RemoteCurrentRevocation[:]); err != nil {
		return err
	}

	nextRev, hasNext := c.RemoteNextRevocation.UnwrapOr([33]byte{}), !c.RemoteNextRevocation.IsNone()
	var hasNextB [1]byte
	if hasNext {
		hasNextB[0] = 1
	}
	if _, err := w.Write(hasNextB[:]); err != nil {
		return err
	}
	if _, err := w.Write(nextRev[:]); err != nil {
		return err
	}

	if err := writeUint16(w, c.NumConfsRequired); err != nil {
		return err
	}

	return writeUint64(w, uint64(c.CreationTime.Unix()))
}

// deserializeOpenChannel reads the persisted form written by
// serializeOpenChannel. The resulting OpenChannel's db field and mutex are
// left zero-valued; callers (fetchOpenChannel) attach the owning DB.
func deserializeOpenChannel(r io.Reader) (*OpenChannel, error) {
	c := &OpenChannel{}

	chanType, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	c.ChanType = lnwire.CommitmentType(chanType)

	if _, err := io.ReadFull(r, c.ChanID[:]); err != nil {
		return nil, err
	}

	c.FundingOutpoint, err = readOutpoint(r)
	if err != nil {
		return nil, err
	}

	scid, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	c.ShortChanID = lnwire.NewShortChanIDFromInt(scid)

	var initiator [1]byte
	if _, err := io.ReadFull(r, initiator[:]); err != nil {
		return nil, err
	}
	c.IsInitiator = initiator[0] == 1

	var state [1]byte
	if _, err := io.ReadFull(r, state[:]); err != nil {
		return nil, err
	}
	c.State = ChannelState(state[0])

	capacity, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	c.Capacity = btcutil.Amount(capacity)

	if _, err := io.ReadFull(r, c.IdentityPub[:]); err != nil {
		return nil, err
	}

	c.LocalChanCfg, err = readChannelConfig(r)
	if err != nil {
		return nil, err
	}
	c.RemoteChanCfg, err = readChannelConfig(r)
	if err != nil {
		return nil, err
	}

	c.LocalCommitment, err = readCommitment(r)
	if err != nil {
		return nil, err
	}
	c.RemoteCommitment, err = readCommitment(r)
	if err != nil {
		return nil, err
	}

	prodBytes, err := readVarBytes(r, 64)
	if err != nil {
		return nil, err
	}
	c.RevocationProducer, err = shachain.NewRevocationProducerFromBytes(
		bytes.NewReader(prodBytes),
	)
	if err != nil {
		return nil, err
	}

	storeBytes, err := readVarBytes(r, 1<<16)
	if err != nil {
		return nil, err
	}
	c.RevocationStore, err = shachain.NewRevocationStoreFromBytes(
		bytes.NewReader(storeBytes),
	)
	if err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(r, c.RemoteCurrentRevocation[:]); err != nil {
		return nil, err
	}

	var hasNext [1]byte
	if _, err := io.ReadFull(r, hasNext[:]); err != nil {
		return nil, err
	}
	var nextRev [33]byte
	if _, err := io.ReadFull(r, nextRev[:]); err != nil {
		return nil, err
	}
	if hasNext[0] == 1 {
		c.RemoteNextRevocation = fn.Some(nextRev)
	} else {
		c.RemoteNextRevocation = fn.None[[33]byte]()
	}

	c.NumConfsRequired, err = readUint16(r)
	if err != nil {
		return nil, err
	}

	createdUnix, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	c.CreationTime = time.Unix(int64(createdUnix), 0)

	return c, nil
}

func serializeCloseSummary(w io.Writer, s *ChannelCloseSummary) error {
	if err := writeOutpoint(w, s.ChanPoint); err != nil {
		return err
	}
	if _, err := w.Write(s.ClosingTXID[:]); err != nil {
		return err
	}
	if err := writeUint32(w, s.CloseHeight); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(s.SettledBalance)); err != nil {
		return err
	}

	var pending [1]byte
	if s.IsPending {
		pending[0] = 1
	}
	_, err := w.Write(pending[:])
	return err
}

func deserializeCloseSummary(r io.Reader) (*ChannelCloseSummary, error) {
	s := &ChannelCloseSummary{}

	var err error
	s.ChanPoint, err = readOutpoint(r)
	if err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(r, s.ClosingTXID[:]); err != nil {
		return nil, err
	}

	s.CloseHeight, err = readUint32(r)
	if err != nil {
		return nil, err
	}

	bal, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	s.SettledBalance = btcutil.Amount(bal)

	var pending [1]byte
	if _, err := io.ReadFull(r, pending[:]); err != nil {
		return nil, err
	}
	s.IsPending = pending[0] == 1

	return s, nil
}


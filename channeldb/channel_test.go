package channeldb

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/blockforge/lnchand/lnwire"
	"github.com/stretchr/testify/require"
)

// TestSerializeOpenChannelRoundTrip asserts that serializeOpenChannel and
// deserializeOpenChannel are exact inverses, across every field of §3's
// Channel/Commitments shape.
func TestSerializeOpenChannelRoundTrip(t *testing.T) {
	t.Parallel()

	cdb := newTestDB(t)
	want := newTestChannel(t, cdb)

	var buf bytes.Buffer
	require.NoError(t, serializeOpenChannel(&buf, want))

	got, err := deserializeOpenChannel(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	require.Equal(t, want.ChanType, got.ChanType)
	require.Equal(t, want.ChanID, got.ChanID)
	require.Equal(t, want.FundingOutpoint, got.FundingOutpoint)
	require.Equal(t, want.ShortChanID, got.ShortChanID)
	require.Equal(t, want.IsInitiator, got.IsInitiator)
	require.Equal(t, want.State, got.State)
	require.Equal(t, want.Capacity, got.Capacity)
	require.Equal(t, want.IdentityPub, got.IdentityPub)
	require.Equal(t, want.NumConfsRequired, got.NumConfsRequired)
	require.Equal(t, want.CreationTime.Unix(), got.CreationTime.Unix())
	require.Equal(t, want.RemoteCurrentRevocation, got.RemoteCurrentRevocation)
	require.Equal(t, want.RemoteNextRevocation.IsSome(), got.RemoteNextRevocation.IsSome())

	require.Equal(t, want.LocalChanCfg.DustLimit, got.LocalChanCfg.DustLimit)
	require.Equal(t, want.LocalChanCfg.MultiSigKey.PubKey.SerializeCompressed(),
		got.LocalChanCfg.MultiSigKey.PubKey.SerializeCompressed())

	require.Equal(t, want.LocalCommitment.CommitHeight, got.LocalCommitment.CommitHeight)
	require.Equal(t, want.LocalCommitment.LocalBalance, got.LocalCommitment.LocalBalance)
	require.Equal(t, want.LocalCommitment.RemoteBalance, got.LocalCommitment.RemoteBalance)
	require.Equal(t, want.LocalCommitment.CommitSig, got.LocalCommitment.CommitSig)

	wantRoot, err := want.RevocationProducer.AtIndex(0)
	require.NoError(t, err)
	gotRoot, err := got.RevocationProducer.AtIndex(0)
	require.NoError(t, err)
	require.Equal(t, wantRoot, gotRoot)
}

// TestSerializeOpenChannelWithHtlcs asserts that in-flight HTLCs on a
// commitment survive the round trip, including a trimmed (dust) HTLC whose
// OutputIndex is -1.
func TestSerializeOpenChannelWithHtlcs(t *testing.T) {
	t.Parallel()

	cdb := newTestDB(t)
	c := newTestChannel(t, cdb)

	c.LocalCommitment.Htlcs = []HTLC{
		{
			Direction:     Outgoing,
			HtlcIndex:     0,
			Amt:           lnwire.MilliSatoshi(5000000),
			RefundTimeout: 500000,
			OutputIndex:   2,
		},
		{
			Direction:     Incoming,
			HtlcIndex:     1,
			Amt:           lnwire.MilliSatoshi(1000),
			RefundTimeout: 500010,
			OutputIndex:   -1,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, serializeOpenChannel(&buf, c))

	got, err := deserializeOpenChannel(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	require.Len(t, got.LocalCommitment.Htlcs, 2)
	require.Equal(t, c.LocalCommitment.Htlcs[0], got.LocalCommitment.Htlcs[0])
	require.Equal(t, c.LocalCommitment.Htlcs[1], got.LocalCommitment.Htlcs[1])
	require.Equal(t, int32(-1), got.LocalCommitment.Htlcs[1].OutputIndex)
}

// TestOriginRoundTrip exercises the cold-form Origin encoding for all three
// shapes named in §3/§9.
func TestOriginRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []Origin{
		{Kind: OriginKindLocal, PaymentID: uuid.New()},
		{
			Kind:           OriginKindRelayed,
			IncomingHtlcID: 42,
		},
		{
			Kind: OriginKindTrampoline,
			TrampolineHtlcs: []RelayedOrigin{
				{HtlcID: 1},
				{HtlcID: 2},
			},
		},
	}

	for _, want := range cases {
		var buf bytes.Buffer
		require.NoError(t, serializeOrigin(&buf, want))

		got, err := deserializeOrigin(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

// TestSnapshot asserts that Snapshot reflects the local commitment's current
// balances and HTLC count.
func TestSnapshot(t *testing.T) {
	t.Parallel()

	cdb := newTestDB(t)
	c := newTestChannel(t, cdb)
	c.LocalCommitment.Htlcs = []HTLC{{Direction: Outgoing, HtlcIndex: 0}}

	snap := c.Snapshot()

	require.Equal(t, c.FundingOutpoint, snap.ChannelPoint)
	require.Equal(t, c.Capacity, snap.Capacity)
	require.Equal(t, c.LocalCommitment.LocalBalance, snap.LocalBalance)
	require.Equal(t, c.LocalCommitment.RemoteBalance, snap.RemoteBalance)
	require.Equal(t, 1, snap.NumHtlcs)
}

// TestPutAndRefreshOpenChannel asserts that PutOpenChannel persists a
// channel and Refresh re-reads the persisted copy over the in-memory one.
func TestPutAndRefreshOpenChannel(t *testing.T) {
	t.Parallel()

	cdb := newTestDB(t)
	c := newTestChannel(t, cdb)
	require.NoError(t, c.PutOpenChannel())

	c.LocalCommitment.CommitHeight = 99

	require.NoError(t, c.Refresh())
	require.Equal(t, uint64(1), c.LocalCommitment.CommitHeight)
}

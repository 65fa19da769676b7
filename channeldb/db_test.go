package channeldb

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/blockforge/lnchand/keychain"
	"github.com/blockforge/lnchand/lnwire"
	"github.com/blockforge/lnchand/shachain"
	"github.com/stretchr/testify/require"
)

// TestOpenWithCreate asserts that opening a channeldb at a path that does
// not yet exist creates it.
func TestOpenWithCreate(t *testing.T) {
	t.Parallel()

	tempDirName := t.TempDir()
	dbPath := filepath.Join(tempDirName, "cdb")

	cdb, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, cdb.Close())

	require.True(t, fileExists(dbPath))
}

// TestWipe asserts that Wipe empties every bucket without leaving the
// database unusable afterwards.
func TestWipe(t *testing.T) {
	t.Parallel()

	cdb := newTestDB(t)

	channel := newTestChannel(t, cdb)
	require.NoError(t, channel.PutOpenChannel())

	require.NoError(t, cdb.Wipe())

	_, err := cdb.FetchAllChannels()
	require.ErrorIs(t, err, ErrNoActiveChannels)
}

// TestFetchOpenChannels asserts that a channel persisted via PutOpenChannel
// can be found again via FetchOpenChannels and FetchAllChannels, and that
// its fields round-trip exactly.
func TestFetchOpenChannels(t *testing.T) {
	t.Parallel()

	cdb := newTestDB(t)
	channel := newTestChannel(t, cdb)

	require.NoError(t, channel.PutOpenChannel())

	nodeKey, err := btcec.ParsePubKey(channel.IdentityPub[:])
	require.NoError(t, err)

	fromNode, err := cdb.FetchOpenChannels(nodeKey)
	require.NoError(t, err)
	require.Len(t, fromNode, 1)
	requireChannelsEqual(t, channel, fromNode[0])

	fromAll, err := cdb.FetchAllChannels()
	require.NoError(t, err)
	require.Len(t, fromAll, 1)
	requireChannelsEqual(t, channel, fromAll[0])
}

// TestCloseChannel asserts that CloseChannel removes the channel from the
// open-channel bucket and records its summary in the closed-channel bucket.
func TestCloseChannel(t *testing.T) {
	t.Parallel()

	cdb := newTestDB(t)
	channel := newTestChannel(t, cdb)
	require.NoError(t, channel.PutOpenChannel())

	summary := &ChannelCloseSummary{
		ChanPoint:      channel.FundingOutpoint,
		CloseHeight:    700000,
		SettledBalance: 50000,
	}
	require.NoError(t, channel.CloseChannel(summary))

	_, err := fetchOpenChannel(cdb, channel.IdentityPub[:], channel.FundingOutpoint)
	require.ErrorIs(t, err, ErrChannelNotFound)

	got, err := cdb.FetchClosedChannel(channel.FundingOutpoint)
	require.NoError(t, err)
	require.Equal(t, summary.CloseHeight, got.CloseHeight)
	require.Equal(t, summary.SettledBalance, got.SettledBalance)
}

func newTestDB(t *testing.T) *DB {
	t.Helper()

	cdb, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cdb.Close() })

	return cdb
}

func newTestChannel(t *testing.T, cdb *DB) *OpenChannel {
	t.Helper()

	_, remotePub := btcec.PrivKeyFromBytes(randBytes(32))

	var fundingHash chainhash.Hash
	rand.Read(fundingHash[:])

	chanCfg := func() ChannelConfig {
		return ChannelConfig{
			ChannelConstraints: ChannelConstraints{
				DustLimit:        btcutil.Amount(354),
				ChanReserve:      btcutil.Amount(10000),
				MaxPendingAmount: lnwire.MilliSatoshi(1000000000),
				MinHTLC:          lnwire.MilliSatoshi(1000),
				MaxAcceptedHtlcs: 483,
				CsvDelay:         144,
			},
			MultiSigKey:         testKeyDesc(0),
			RevocationBasePoint: testKeyDesc(1),
			PaymentBasePoint:    testKeyDesc(2),
			DelayBasePoint:      testKeyDesc(3),
			HtlcBasePoint:       testKeyDesc(4),
		}
	}

	var root chainhash.Hash
	rand.Read(root[:])

	c := &OpenChannel{
		ChanType:        0,
		FundingOutpoint: wire.OutPoint{Hash: fundingHash, Index: 0},
		IsInitiator:     true,
		State:           StateNormal,
		Capacity:        btcutil.Amount(1000000),
		LocalChanCfg:    chanCfg(),
		RemoteChanCfg:   chanCfg(),
		LocalCommitment: ChannelCommitment{
			CommitHeight:  1,
			LocalBalance:  lnwire.MilliSatoshi(900000000),
			RemoteBalance: lnwire.MilliSatoshi(90000000),
			CommitFee:     btcutil.Amount(1000),
			FeePerKw:      btcutil.Amount(253),
			CommitTx:      wire.NewMsgTx(wire.TxVersion),
			CommitSig:     randBytes(64),
		},
		RemoteCommitment: ChannelCommitment{
			CommitHeight:  1,
			LocalBalance:  lnwire.MilliSatoshi(900000000),
			RemoteBalance: lnwire.MilliSatoshi(90000000),
			CommitFee:     btcutil.Amount(1000),
			FeePerKw:      btcutil.Amount(253),
			CommitTx:      wire.NewMsgTx(wire.TxVersion),
			CommitSig:     randBytes(64),
		},
		RevocationProducer:   shachain.NewRevocationProducer(root),
		RevocationStore:      shachain.NewRevocationStore(),
		RemoteNextRevocation: fn.None[[33]byte](),
		NumConfsRequired:     6,
		CreationTime:         time.Unix(1700000000, 0),
	}
	copy(c.IdentityPub[:], remotePub.SerializeCompressed())
	copy(c.RemoteCurrentRevocation[:], remotePub.SerializeCompressed())

	c.db = cdb

	return c
}

func testKeyDesc(index uint32) keychain.KeyDescriptor {
	priv := randBytes(32)
	_, pub := btcec.PrivKeyFromBytes(priv)

	return keychain.KeyDescriptor{
		KeyLocator: keychain.KeyLocator{
			Family: keychain.KeyFamilyMultiSig,
			Index:  index,
		},
		PubKey: pub,
	}
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

func requireChannelsEqual(t *testing.T, want, got *OpenChannel) {
	t.Helper()

	require.Equal(t, want.FundingOutpoint, got.FundingOutpoint)
	require.Equal(t, want.IsInitiator, got.IsInitiator)
	require.Equal(t, want.State, got.State)
	require.Equal(t, want.Capacity, got.Capacity)
	require.Equal(t, want.IdentityPub, got.IdentityPub)
	require.Equal(t, want.LocalCommitment.CommitHeight, got.LocalCommitment.CommitHeight)
	require.Equal(t, want.LocalCommitment.LocalBalance, got.LocalCommitment.LocalBalance)
	require.Equal(t, want.LocalCommitment.RemoteBalance, got.LocalCommitment.RemoteBalance)
	require.Equal(t, want.RemoteCurrentRevocation, got.RemoteCurrentRevocation)
}

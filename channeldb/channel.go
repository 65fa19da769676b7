package channeldb

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/blockforge/lnchand/keychain"
	"github.com/blockforge/lnchand/lnwire"
	"github.com/blockforge/lnchand/shachain"
	"go.etcd.io/bbolt"
)

// ChannelState is the Lifecycle tag persisted alongside every channel (§3).
// It names a coarse phase of the per-channel state machine; the fine-grained
// per-state data lives with the state machine itself, not here.
type ChannelState uint8

const (
	// StateWaitForOpen marks a channel that has not yet completed the
	// BOLT-2 funding handshake.
	StateWaitForOpen ChannelState = iota

	// StateWaitForFunding marks a channel awaiting the funding
	// transaction's on-chain confirmation.
	StateWaitForFunding

	// StateNormal is a fully operational channel capable of adding,
	// settling, and failing HTLCs.
	StateNormal

	// StateOffline is a shadow state preserving a Normal channel's data
	// while its peer connection is down.
	StateOffline

	// StateShutdown marks a channel that has begun cooperative closure
	// negotiation but has not yet agreed on a closing fee.
	StateShutdown

	// StateClosing marks a channel whose closing transaction (mutual or
	// unilateral) has been broadcast but not yet confirmed to the
	// configured depth.
	StateClosing

	// StateClosed is the terminal state: the closing transaction has
	// reached its confirmation depth.
	StateClosed
)

// String returns the human-readable name of a ChannelState.
func (s ChannelState) String() string {
	switch s {
	case StateWaitForOpen:
		return "WaitForOpen"
	case StateWaitForFunding:
		return "WaitForFunding"
	case StateNormal:
		return "Normal"
	case StateOffline:
		return "Offline"
	case StateShutdown:
		return "Shutdown"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("ChannelState(%d)", uint8(s))
	}
}

// ChannelConstraints represent the restrictions on the parameters of a
// channel imposed on one side by its counterparty, as negotiated during the
// funding handshake.
type ChannelConstraints struct {
	// DustLimit is the minimum output value below which an output is
	// trimmed from the commitment transaction entirely.
	DustLimit btcutil.Amount

	// ChanReserve is the minimum balance this side must keep once the
	// channel is past its initial funding, expressed in satoshis.
	ChanReserve btcutil.Amount

	// MaxPendingAmount is the cap on the total value, in millisatoshi, of
	// in-flight HTLCs this side will accept.
	MaxPendingAmount lnwire.MilliSatoshi

	// MinHTLC is the minimum value, in millisatoshi, of any HTLC this
	// side will accept.
	MinHTLC lnwire.MilliSatoshi

	// MaxAcceptedHtlcs caps the number of in-flight HTLCs this side will
	// accept.
	MaxAcceptedHtlcs uint16

	// CsvDelay is the relative CSV delay (to-self-delay) enforced on this
	// side's to_local output.
	CsvDelay uint16
}

// ChannelConfig holds one side's complete set of negotiated channel
// parameters: the base points BOLT-3 tweaks per commitment, plus the
// constraints above.
type ChannelConfig struct {
	ChannelConstraints

	MultiSigKey         keychain.KeyDescriptor
	RevocationBasePoint keychain.KeyDescriptor
	PaymentBasePoint    keychain.KeyDescriptor
	DelayBasePoint      keychain.KeyDescriptor
	HtlcBasePoint       keychain.KeyDescriptor
}

// HtlcDirection identifies which side offered an HTLC.
type HtlcDirection uint8

const (
	// Outgoing marks an HTLC this side offered to the counterparty.
	Outgoing HtlcDirection = iota

	// Incoming marks an HTLC the counterparty offered to this side.
	Incoming
)

// HTLC is the persisted shape of an in-flight HTLC on a commitment: the
// direction, amount, payment hash, CLTV expiry, and opaque onion packet
// named in §3's data model.
type HTLC struct {
	// Direction records who offered the HTLC.
	Direction HtlcDirection

	// HtlcIndex is the per-side, monotone HTLC identifier.
	HtlcIndex uint64

	// Amt is the value of this HTLC in millisatoshi.
	Amt lnwire.MilliSatoshi

	// RHash is the payment hash this HTLC is conditioned on.
	RHash [32]byte

	// RefundTimeout is the CLTV expiry height of this HTLC.
	RefundTimeout uint32

	// OnionBlob is carried opaquely; this module never parses it, since
	// onion construction/peeling belongs to the router (external
	// collaborator, §6).
	OnionBlob [lnwire.OnionPacketSize]byte

	// OutputIndex is the index of this HTLC's output on the commitment
	// transaction it belongs to, or -1 if trimmed as dust.
	OutputIndex int32

	// SecondStageSig is the DER-encoded signature over the HTLC-timeout
	// (if Direction is Outgoing) or HTLC-success (if Incoming)
	// transaction for this output, nil if not yet available. On a
	// LocalCommitment's HTLCs it's the counterparty's signature,
	// received in commit_sig.htlc_signatures; on a RemoteCommitment's
	// HTLCs it's our own signature, persisted when we compute and send
	// it to them. Either way it's what lets whichever party owns that
	// commitment unilaterally claim the HTLC after a force close, since
	// the second-level transaction spends a 2-of-2 covenant output
	// neither party can sign alone.
	SecondStageSig []byte
}

// OriginKind tags which of the three concrete Origin shapes a cold Origin
// record carries.
type OriginKind uint8

const (
	// OriginKindLocal marks an HTLC originated by a local payment.
	OriginKindLocal OriginKind = iota

	// OriginKindRelayed marks an HTLC forwarded from another channel.
	OriginKindRelayed

	// OriginKindTrampoline marks an HTLC aggregated from a trampoline
	// hop's incoming HTLC set.
	OriginKindTrampoline
)

// RelayedOrigin is one element of a trampoline aggregate Origin.
type RelayedOrigin struct {
	ChanID lnwire.ChannelID
	HtlcID uint64
}

// Origin is the cold, persisted form of per-HTLC bookkeeping explaining why
// this node accepted an HTLC (§3, §9 "Hot/cold origins"). The hot form,
// which additionally carries an in-memory reply channel, is never persisted
// — it is reconstructed by the state machine from in-flight command context
// on restart, keyed by the cold form's identifier.
type Origin struct {
	Kind OriginKind

	// PaymentID identifies a locally-originated payment. Valid only when
	// Kind == OriginKindLocal.
	PaymentID uuid.UUID

	// IncomingChanID and IncomingHtlcID identify the upstream HTLC this
	// one relays. Valid only when Kind == OriginKindRelayed.
	IncomingChanID lnwire.ChannelID
	IncomingHtlcID uint64

	// TrampolineHtlcs identifies the set of incoming HTLCs a trampoline
	// hop aggregated into this one. Valid only when
	// Kind == OriginKindTrampoline.
	TrampolineHtlcs []RelayedOrigin
}

// ChannelCommitment is the persisted half of a Commitments record (§3) for
// one side of the channel: its commitment number, balances, committed
// feerate, and the signed transaction plus the HTLC set carried on it.
type ChannelCommitment struct {
	// CommitHeight is this commitment's 48-bit monotone commitment
	// number.
	CommitHeight uint64

	// LocalBalance and RemoteBalance are this commitment's settled
	// balances, in millisatoshi.
	LocalBalance  lnwire.MilliSatoshi
	RemoteBalance lnwire.MilliSatoshi

	// CommitFee is the on-chain fee, in satoshis, reserved for this
	// commitment transaction (weight * feerate / 1000).
	CommitFee btcutil.Amount

	// FeePerKw is the commitment's feerate in satoshi-per-kiloweight.
	FeePerKw btcutil.Amount

	// CommitTx is the fully constructed, BIP-69-sorted commitment
	// transaction for this side.
	CommitTx *wire.MsgTx

	// CommitSig is the counterparty's signature over CommitTx (nil for a
	// side's own unsigned working copy).
	CommitSig []byte

	// Htlcs is the set of HTLCs included on this commitment.
	Htlcs []HTLC
}

// OpenChannel is the complete persisted state of a channel (§3's Channel):
// its identity, the static per-side parameters negotiated at open, the
// synchronized Commitments, and its Lifecycle tag.
type OpenChannel struct {
	// ChanType classifies which BOLT-3 script templates this channel's
	// commitments use (legacy, static_remotekey, or anchors).
	ChanType lnwire.CommitmentType

	// ChanID is the 32-byte channel identifier derived from the funding
	// outpoint.
	ChanID lnwire.ChannelID

	// FundingOutpoint is the outpoint of the 2-of-2 funding transaction.
	FundingOutpoint wire.OutPoint

	// ShortChanID is populated once the funding transaction has reached
	// its confirmation depth.
	ShortChanID lnwire.ShortChannelID

	// IsInitiator is true if the local node funded this channel.
	IsInitiator bool

	// State is this channel's Lifecycle tag.
	State ChannelState

	// Capacity is the total value locked in the funding output.
	Capacity btcutil.Amount

	// IdentityPub is the remote peer's long-term identity key, used as
	// this channel's index key within the database.
	IdentityPub [33]byte

	LocalChanCfg  ChannelConfig
	RemoteChanCfg ChannelConfig

	LocalCommitment  ChannelCommitment
	RemoteCommitment ChannelCommitment

	// RevocationProducer deterministically derives this side's
	// per-commitment secrets from commitment height, grounded on the
	// BIP-32-like derivation spec.md §4.2 mandates.
	RevocationProducer *shachain.RevocationProducer

	// RevocationStore holds every secret the remote party has disclosed
	// by revoking a commitment, from which the closure handler builds
	// penalty transactions against any of those now-revoked states.
	RevocationStore *shachain.RevocationStore

	// RemoteCurrentRevocation is the remote party's current (i.e. for its
	// latest, still-unrevoked commitment) per-commitment point.
	RemoteCurrentRevocation [33]byte

	// RemoteNextRevocation is the remote party's next per-commitment
	// point, disclosed ahead of use so the local side can build the
	// remote party's next commitment immediately upon revocation.
	RemoteNextRevocation fn.Option[[33]byte]

	// NumConfsRequired is the confirmation depth the funding transaction
	// must reach before the channel leaves StateWaitForFunding.
	NumConfsRequired uint16

	CreationTime time.Time

	db *DB

	sync.RWMutex
}

// ChannelSnapshot is a frozen, read-only view of a channel's current state,
// detached from the live OpenChannel that produced it.
type ChannelSnapshot struct {
	ChannelPoint  wire.OutPoint
	Capacity      btcutil.Amount
	LocalBalance  lnwire.MilliSatoshi
	RemoteBalance lnwire.MilliSatoshi
	CommitHeight  uint64
	NumHtlcs      int
}

// Snapshot returns a point-in-time, read-only copy of the channel's local
// commitment state.
func (c *OpenChannel) Snapshot() *ChannelSnapshot {
	c.RLock()
	defer c.RUnlock()

	return &ChannelSnapshot{
		ChannelPoint:  c.FundingOutpoint,
		Capacity:      c.Capacity,
		LocalBalance:  c.LocalCommitment.LocalBalance,
		RemoteBalance: c.LocalCommitment.RemoteBalance,
		CommitHeight:  c.LocalCommitment.CommitHeight,
		NumHtlcs:      len(c.LocalCommitment.Htlcs),
	}
}

// Refresh re-reads this channel's persisted state from the database,
// overwriting the in-memory copy. Used after a transition whose effects were
// computed out-of-line from the OpenChannel value (e.g. by the commitment
// engine) and then persisted directly through PutOpenChannel.
func (c *OpenChannel) Refresh() error {
	c.Lock()
	defer c.Unlock()

	fresh, err := fetchOpenChannel(c.db, c.IdentityPub[:], c.FundingOutpoint)
	if err != nil {
		return err
	}

	fresh.db = c.db

	// Carry over the lock we hold so the deferred Unlock still applies
	// to a locked mutex after the struct is overwritten.
	fresh.RWMutex = c.RWMutex
	*c = *fresh

	return nil
}

// PutOpenChannel persists the full current state of the channel. Per §4.3's
// per-transition contract, callers must complete this call before releasing
// any cryptographic secret (a revocation) or sending any irreversible
// message to the peer.
func (c *OpenChannel) PutOpenChannel() error {
	c.Lock()
	defer c.Unlock()

	return c.db.store.Update(func(tx *bbolt.Tx) error {
		chanBucket, err := fetchOrCreateNodeChanBucket(tx, c.IdentityPub[:])
		if err != nil {
			return err
		}

		chanKey, err := outpointKey(c.FundingOutpoint)
		if err != nil {
			return err
		}

		buf := channelBufPool.Get().(*serializeBuf)
		defer channelBufPool.Put(buf)
		buf.Reset()

		if err := serializeOpenChannel(buf, c); err != nil {
			return err
		}

		return chanBucket.Put(chanKey, buf.Bytes())
	})
}

// CloseChannel removes a channel's live state from the open-channel bucket
// and records a terminal summary in the closed-channel bucket, per §3's
// Lifecycle (a channel is destroyed once CLOSED and past its confirmation
// depth).
func (c *OpenChannel) CloseChannel(closeSummary *ChannelCloseSummary) error {
	c.Lock()
	defer c.Unlock()

	return c.db.store.Update(func(tx *bbolt.Tx) error {
		chanBucket, err := fetchOrCreateNodeChanBucket(tx, c.IdentityPub[:])
		if err != nil {
			return err
		}

		chanKey, err := outpointKey(c.FundingOutpoint)
		if err != nil {
			return err
		}
		if err := chanBucket.Delete(chanKey); err != nil {
			return err
		}

		closedBucket, err := tx.CreateBucketIfNotExists(closedChannelBucket)
		if err != nil {
			return err
		}

		buf := channelBufPool.Get().(*serializeBuf)
		defer channelBufPool.Put(buf)
		buf.Reset()

		if err := serializeCloseSummary(buf, closeSummary); err != nil {
			return err
		}

		return closedBucket.Put(chanKey, buf.Bytes())
	})
}

// ChannelCloseSummary is the terminal record kept for a channel once its
// closing transaction has been confirmed to the required depth.
type ChannelCloseSummary struct {
	ChanPoint      wire.OutPoint
	ClosingTXID    chainHash32
	CloseHeight    uint32
	SettledBalance btcutil.Amount
	IsPending      bool
}

// chainHash32 avoids importing chainhash here solely for a 32-byte array
// alias; codec.go does the real (de)serialization against chainhash.Hash.
type chainHash32 [32]byte

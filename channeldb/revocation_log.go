package channeldb

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"
	"go.etcd.io/bbolt"
)

// revocationLogBucket prefixes, together with the funding outpoint, a
// sub-bucket that sits beside each channel's own key inside
// openChannelBucket/<nodePub>, holding a ChannelCommitment snapshot for
// every remote commitment height we've signed and since revoked. Per §4.4's
// "State ordering invariant," the counterparty could still broadcast any of
// these after the fact, so their HTLC sets must survive past the point the
// live RemoteCommitment field is overwritten by the next height.
var revocationLogBucket = []byte("revocation-log")

// LogRevokedCommitment archives a remote commitment about to be superseded,
// so that a penalty transaction can later reconstruct every output it paid
// — balance and HTLCs alike — if the counterparty ever broadcasts it. Callers
// must call this before advancing past the commitment height being logged,
// per the persist-then-act contract: the secret that makes the entry useless
// to us and useful to no one but a penalty claim must not be released first.
func (c *OpenChannel) LogRevokedCommitment(commit ChannelCommitment) error {
	c.Lock()
	defer c.Unlock()

	return c.db.store.Update(func(tx *bbolt.Tx) error {
		chanBucket, err := fetchOrCreateNodeChanBucket(tx, c.IdentityPub[:])
		if err != nil {
			return err
		}

		logKey, err := revocationLogKey(c.FundingOutpoint)
		if err != nil {
			return err
		}
		logBucket, err := chanBucket.CreateBucketIfNotExists(logKey)
		if err != nil {
			return err
		}

		var height [8]byte
		byteOrder.PutUint64(height[:], commit.CommitHeight)

		var buf bytes.Buffer
		if err := writeCommitment(&buf, commit); err != nil {
			return err
		}

		return logBucket.Put(height[:], buf.Bytes())
	})
}

// FetchRevocationLogEntry returns the archived ChannelCommitment for the
// given height, if one was ever logged.
func (c *OpenChannel) FetchRevocationLogEntry(height uint64) (*ChannelCommitment, error) {
	c.RLock()
	defer c.RUnlock()

	var commit ChannelCommitment

	err := c.db.store.View(func(tx *bbolt.Tx) error {
		rootBucket := tx.Bucket(openChannelBucket)
		if rootBucket == nil {
			return ErrNoChannelsFound
		}
		chanBucket := rootBucket.Bucket(c.IdentityPub[:])
		if chanBucket == nil {
			return ErrChannelNotFound
		}
		logKey, err := revocationLogKey(c.FundingOutpoint)
		if err != nil {
			return err
		}
		logBucket := chanBucket.Bucket(logKey)
		if logBucket == nil {
			return ErrChannelNotFound
		}

		var heightKey [8]byte
		byteOrder.PutUint64(heightKey[:], height)

		raw := logBucket.Get(heightKey[:])
		if raw == nil {
			return ErrChannelNotFound
		}

		c, err := readCommitment(bytes.NewReader(raw))
		if err != nil {
			return err
		}
		commit = c

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &commit, nil
}

// revocationLogKey derives this channel's revocation-log sub-bucket key by
// appending its funding outpoint to revocationLogBucket, keeping every
// channel's log distinct within a shared per-node bucket.
func revocationLogKey(outpoint wire.OutPoint) ([]byte, error) {
	key, err := outpointKey(outpoint)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, revocationLogBucket...), key...), nil
}

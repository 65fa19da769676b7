package channeldb

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"go.etcd.io/bbolt"
)

const (
	dbName           = "channel.db"
	dbFilePermission = 0600

	// dbVersion is the current schema version. There is exactly one
	// version: the §3 Channel/Commitments schema this package has always
	// written. Earlier lnd-era schemas (gossip graph, invoices, payment
	// circuits) never shipped under this module, so there is nothing to
	// migrate from.
	dbVersion uint32 = 1
)

var (
	// openChannelBucket is the root bucket holding one sub-bucket per
	// remote node pubkey, each in turn holding that node's open channels
	// keyed by funding outpoint.
	openChannelBucket = []byte("open-chan")

	// closedChannelBucket holds the terminal ChannelCloseSummary for
	// every channel that has reached StateClosed, keyed by funding
	// outpoint.
	closedChannelBucket = []byte("closed-chan")

	// metaBucket stores the database's own schema version.
	metaBucket = []byte("meta")

	metaVersionKey = []byte("version")
)

// DB is the primary datastore for lnchand: the persisted Channel/Commitments
// state of every channel this node holds open or has closed (§3, §6).
type DB struct {
	store  *bbolt.DB
	dbPath string
	clock  clock.Clock

	dryRun                    bool
	noRevLogAmtData           bool
	storeFinalHtlcResolutions bool
}

// Open opens (creating if necessary) the channel database at dbPath.
func Open(dbPath string, modifiers ...OptionModifier) (*DB, error) {
	opts := DefaultOptions()
	for _, modifier := range modifiers {
		modifier(&opts)
	}

	path := filepath.Join(dbPath, dbName)

	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}

	bdb, err := bbolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	chanDB := &DB{
		store:                     bdb,
		dbPath:                    dbPath,
		clock:                     opts.clock,
		dryRun:                    opts.dryRun,
		noRevLogAmtData:           opts.NoRevLogAmtData,
		storeFinalHtlcResolutions: opts.storeFinalHtlcResolutions,
	}

	if err := chanDB.initBuckets(); err != nil {
		bdb.Close()
		return nil, err
	}

	if !opts.NoMigration {
		if err := chanDB.syncVersion(); err != nil {
			bdb.Close()
			return nil, err
		}
	}

	return chanDB, nil
}

// initBuckets creates every top-level bucket this package uses, if absent.
func (d *DB) initBuckets() error {
	return d.store.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{
			openChannelBucket, closedChannelBucket, metaBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

// syncVersion stamps the schema version into the meta bucket on first open.
// There is only ever one version, so this never runs a migration — it only
// ever records that the current version was, in fact, written by this code.
func (d *DB) syncVersion() error {
	return d.store.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)

		existing := meta.Get(metaVersionKey)
		if len(existing) == 4 && byteOrder.Uint32(existing) == dbVersion {
			return nil
		}

		if d.dryRun {
			return nil
		}

		var v [4]byte
		byteOrder.PutUint32(v[:], dbVersion)
		return meta.Put(metaVersionKey, v[:])
	})
}

// Close releases the underlying bbolt file handle.
func (d *DB) Close() error {
	return d.store.Close()
}

// Wipe completely deletes all persisted channel state. The deletion is done
// in a single transaction, so it is fully atomic.
func (d *DB) Wipe() error {
	return d.store.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{openChannelBucket, closedChannelBucket} {
			err := tx.DeleteBucket(bucket)
			if err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

// fileExists returns true if the given path exists.
func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// fetchOrCreateNodeChanBucket returns (creating if necessary) the bucket
// holding every channel open with the given remote node pubkey.
func fetchOrCreateNodeChanBucket(tx *bbolt.Tx,
	nodePub []byte) (*bbolt.Bucket, error) {

	rootBucket := tx.Bucket(openChannelBucket)
	if rootBucket == nil {
		return nil, ErrNoChannelsFound
	}

	return rootBucket.CreateBucketIfNotExists(nodePub)
}

// fetchOpenChannel looks up a single channel by remote pubkey and funding
// outpoint.
func fetchOpenChannel(d *DB, nodePub []byte,
	outpoint wire.OutPoint) (*OpenChannel, error) {

	var channel *OpenChannel

	err := d.store.View(func(tx *bbolt.Tx) error {
		rootBucket := tx.Bucket(openChannelBucket)
		if rootBucket == nil {
			return ErrNoChannelsFound
		}

		nodeChanBucket := rootBucket.Bucket(nodePub)
		if nodeChanBucket == nil {
			return ErrChannelNotFound
		}

		chanKey, err := outpointKey(outpoint)
		if err != nil {
			return err
		}

		chanBytes := nodeChanBucket.Get(chanKey)
		if chanBytes == nil {
			return ErrChannelNotFound
		}

		c, err := deserializeOpenChannel(bytes.NewReader(chanBytes))
		if err != nil {
			return err
		}

		c.db = d
		channel = c

		return nil
	})
	if err != nil {
		return nil, err
	}

	return channel, nil
}

// FetchOpenChannels returns every open channel recorded for the given
// remote node.
func (d *DB) FetchOpenChannels(nodeID *btcec.PublicKey) ([]*OpenChannel, error) {
	var channels []*OpenChannel

	err := d.store.View(func(tx *bbolt.Tx) error {
		rootBucket := tx.Bucket(openChannelBucket)
		if rootBucket == nil {
			return nil
		}

		nodeChanBucket := rootBucket.Bucket(nodeID.SerializeCompressed())
		if nodeChanBucket == nil {
			return nil
		}

		return nodeChanBucket.ForEach(func(k, v []byte) error {
			if v == nil {
				return nil
			}

			c, err := deserializeOpenChannel(bytes.NewReader(v))
			if err != nil {
				return err
			}
			c.db = d

			channels = append(channels, c)
			return nil
		})
	})

	return channels, err
}

// FetchAllChannels returns every open channel across every remote node this
// node has a channel with. Returns ErrNoActiveChannels if none exist.
func (d *DB) FetchAllChannels() ([]*OpenChannel, error) {
	var channels []*OpenChannel

	err := d.store.View(func(tx *bbolt.Tx) error {
		rootBucket := tx.Bucket(openChannelBucket)
		if rootBucket == nil {
			return ErrNoActiveChannels
		}

		return rootBucket.ForEach(func(nodePub, v []byte) error {
			// Only sub-buckets (one per remote node) live directly
			// under the root; v is nil for those.
			if v != nil {
				return nil
			}

			nodeChanBucket := rootBucket.Bucket(nodePub)
			if nodeChanBucket == nil {
				return nil
			}

			return nodeChanBucket.ForEach(func(k, chanBytes []byte) error {
				if chanBytes == nil {
					return nil
				}

				c, err := deserializeOpenChannel(
					bytes.NewReader(chanBytes),
				)
				if err != nil {
					return err
				}
				c.db = d

				channels = append(channels, c)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	if len(channels) == 0 {
		return nil, ErrNoActiveChannels
	}

	return channels, nil
}

// SaveNewChannel wires a freshly negotiated OpenChannel to this DB and
// persists it for the first time. Every later mutation goes through the
// channel's own PutOpenChannel/CloseChannel, which is why those methods
// take no *DB argument themselves — SaveNewChannel is the one place that
// assignment happens.
func (d *DB) SaveNewChannel(c *OpenChannel) error {
	c.db = d
	return c.PutOpenChannel()
}

// FetchClosedChannel returns the terminal summary recorded for a closed
// channel, if one exists.
func (d *DB) FetchClosedChannel(outpoint wire.OutPoint) (*ChannelCloseSummary, error) {
	var summary *ChannelCloseSummary

	err := d.store.View(func(tx *bbolt.Tx) error {
		closedBucket := tx.Bucket(closedChannelBucket)
		if closedBucket == nil {
			return ErrChannelNotFound
		}

		key, err := outpointKey(outpoint)
		if err != nil {
			return err
		}

		raw := closedBucket.Get(key)
		if raw == nil {
			return ErrChannelNotFound
		}

		s, err := deserializeCloseSummary(bytes.NewReader(raw))
		if err != nil {
			return err
		}
		summary = s

		return nil
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

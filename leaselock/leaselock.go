// Package leaselock implements §5's single-writer lock for the Postgres
// channeldb backend: a row carrying a UUID owner and an expiry, renewed on
// an interval, that only its current holder may write through. Losing the
// lock means some other process now believes it owns this node's state —
// diverging from it risks a double-spend of a commitment output, so the
// only safe response is to stop.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lightningnetwork/lnd/clock"
)

// FailureAction is the disposition a FailureHandler chooses when a lock
// check fails, per §5's "a lock failure handler is consulted on every lock
// check and decides log-and-continue, log-and-throw (default), or exit."
type FailureAction uint8

const (
	// ActionLogAndThrow logs the failure, records it for Locker.Err, and
	// stops the renewal loop, so the lease is not renewed again. This is
	// the default: per §5, diverging from a lock we may no longer hold
	// is worse than a noisy shutdown.
	ActionLogAndThrow FailureAction = iota

	// ActionLogAndContinue logs the failure and otherwise ignores it,
	// leaving the lease as-is for the next scheduled check. Useful only
	// when the caller has its own, stricter staleness check elsewhere —
	// §5 doesn't name a legitimate use, so nothing in this module
	// selects it by default.
	ActionLogAndContinue

	// ActionExit logs the failure and calls the Locker's configured
	// Exit function (process termination), bypassing the caller
	// entirely: for deployments that want the lock check itself to be
	// the last word, not whatever the caller does with a returned
	// error.
	ActionExit
)

// FailureHandler decides what happens when a lock check fails to confirm
// this process still holds the lease. err is the underlying cause: either
// a database error, or ErrLeaseLost if the row names a different owner
// whose lease has not yet expired. A missing row is simply claimed again.
type FailureHandler func(err error) FailureAction

// ErrLeaseLost is returned by Acquire (and so Start), and passed to the
// FailureHandler on a failed renewal, when the lease row names a different
// owner whose lease has not yet expired.
var ErrLeaseLost = errors.New("leaselock: lease held by another owner")

// defaultLeaseDuration and defaultRefreshInterval follow the same ratio
// etcd-based leader election in other lnd deployments uses: the refresh
// interval must comfortably beat the lease duration, or a single missed
// tick (GC pause, slow query) looks indistinguishable from having lost
// the lock.
const (
	defaultLeaseDuration   = 10 * time.Second
	defaultRefreshInterval = 3 * time.Second
)

// Locker is a single row in its configured table, identified by id,
// contended by every process pointed at the same Postgres database under
// that id. Exactly one process at a time may hold it; Acquire fails
// immediately with ErrLeaseLost rather than waiting if someone else
// already holds an unexpired lease — callers wanting retry-until-acquired
// behavior loop on that themselves.
type Locker struct {
	pool  *pgxpool.Pool
	table string

	id       string
	ownerID  uuid.UUID
	duration time.Duration
	interval time.Duration

	clock   clock.Clock
	onFail  FailureHandler
	exit    func()
	log     btclog.Logger

	quit    chan struct{}
	done    chan struct{}
	lastErr error
}

// Config supplies a Locker's tunables. Interval and Duration, OnFailure,
// ExitFunc, and Clock default to sensible values when left zero, per the
// teacher's own OptionModifier-style config structs in channeldb.
type Config struct {
	// Table is the Postgres table backing the lease row, created if it
	// doesn't already exist.
	Table string

	// ID names the specific lease row this Locker contends for — one
	// per logical resource the lease protects; this module always
	// locks a single row, since §5 names exactly one HA-locking
	// requirement (the channel database itself).
	ID string

	Duration time.Duration
	Interval time.Duration
	OnFailure FailureHandler
	ExitFunc  func()
	Clock     clock.Clock
	Log       btclog.Logger
}

// New constructs a Locker against pool. It does not acquire the lease;
// call Acquire for that.
func New(pool *pgxpool.Pool, cfg Config) (*Locker, error) {
	if cfg.Table == "" || cfg.ID == "" {
		return nil, fmt.Errorf("leaselock: table and id are required")
	}

	duration := cfg.Duration
	if duration == 0 {
		duration = defaultLeaseDuration
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultRefreshInterval
	}
	onFail := cfg.OnFailure
	if onFail == nil {
		onFail = func(error) FailureAction { return ActionLogAndThrow }
	}
	exitFunc := cfg.ExitFunc
	if exitFunc == nil {
		exitFunc = func() {}
	}
	cl := cfg.Clock
	if cl == nil {
		cl = clock.NewDefaultClock()
	}
	log := cfg.Log
	if log == nil {
		log = btclog.Disabled
	}

	l := &Locker{
		pool:     pool,
		id:       cfg.ID,
		ownerID:  uuid.New(),
		duration: duration,
		interval: interval,
		clock:    cl,
		onFail:   onFail,
		exit:     exitFunc,
		log:      log,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := l.ensureTable(cfg.Table); err != nil {
		return nil, err
	}

	return l, nil
}

var leaseTableTemplate = `
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	owner_id UUID NOT NULL,
	expiry TIMESTAMPTZ NOT NULL
)`

func (l *Locker) ensureTable(table string) error {
	l.table = table
	_, err := l.pool.Exec(
		context.Background(), fmt.Sprintf(leaseTableTemplate, table),
	)
	return err
}

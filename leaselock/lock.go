package leaselock

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
)

const claimQueryTemplate = `
INSERT INTO %s (id, owner_id, expiry)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET owner_id = $2, expiry = $3
WHERE %s.expiry < now() OR %s.owner_id = $2
`

const ownerQueryTemplate = `SELECT owner_id FROM %s WHERE id = $1`

// tryClaim attempts to become (or remain) the owner of the lease row,
// extending its expiry by l.duration from now. It succeeds whether this
// call is the first acquisition or a routine renewal — both are the same
// conditional upsert, per §5's "only the lease-holder may write" applied
// to the lease row itself.
func (l *Locker) tryClaim(ctx context.Context) error {
	query := fmt.Sprintf(claimQueryTemplate, l.table, l.table, l.table)
	expiry := l.clock.Now().Add(l.duration)

	tag, err := l.pool.Exec(ctx, query, l.id, l.ownerID, expiry)
	if err != nil {
		return fmt.Errorf("leaselock: claim query failed: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var owner string
	row := l.pool.QueryRow(
		ctx, fmt.Sprintf(ownerQueryTemplate, l.table), l.id,
	)
	if scanErr := row.Scan(&owner); scanErr != nil && scanErr != pgx.ErrNoRows {
		return fmt.Errorf("%w: unable to read current owner: %v",
			ErrLeaseLost, scanErr)
	}

	return fmt.Errorf("%w: held by %s", ErrLeaseLost, owner)
}

// Acquire claims the lease, blocking only for the single claim query — it
// does not wait for a competing holder's lease to expire. Callers wanting
// retry-until-acquired behavior should loop on the returned ErrLeaseLost
// themselves, per §5 leaving retry policy to lock's caller rather than
// specifying one.
func (l *Locker) Acquire(ctx context.Context) error {
	return l.tryClaim(ctx)
}

// Release gives up the lease immediately, rather than waiting for it to
// expire. A clean shutdown should always call this: it lets the next
// process start without waiting out a full lease duration for nothing.
func (l *Locker) Release(ctx context.Context) error {
	_, err := l.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND owner_id = $2",
			l.table),
		l.id, l.ownerID,
	)
	return err
}

// Start acquires the lease and launches the background goroutine that
// renews it every Interval until Stop is called or a renewal's
// FailureHandler selects ActionExit or ActionLogAndThrow. It returns once the initial
// acquisition succeeds or fails.
func (l *Locker) Start(ctx context.Context) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}

	go l.renewLoop()

	return nil
}

func (l *Locker) renewLoop() {
	defer close(l.done)

	ticker := l.clock.TickAfter(l.interval)
	for {
		select {
		case <-ticker:
			ticker = l.clock.TickAfter(l.interval)

			err := l.tryClaim(context.Background())
			if err == nil {
				continue
			}

			l.log.Errorf("lease renewal failed: %v", err)

			switch l.onFail(err) {
			case ActionLogAndContinue:
				continue
			case ActionExit:
				l.exit()
				return
			case ActionLogAndThrow:
				l.lastErr = err
				return
			}

		case <-l.quit:
			return
		}
	}
}

// Stop signals the renewal goroutine to exit and waits for it to do so.
// It does not release the lease — call Release first if giving it up
// cleanly is wanted.
func (l *Locker) Stop() {
	close(l.quit)
	<-l.done
}

// Err returns the error that ended the renewal loop via ActionLogAndThrow,
// or nil if the loop is still running or exited through Stop instead.
func (l *Locker) Err() error {
	return l.lastErr
}

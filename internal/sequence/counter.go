// Package sequence issues the NSA (file sequence number) of remittance files.
//
// Issuing is two-phase. PeekNext reserves last+1 without persisting it; the
// caller produces and delivers the file, then calls Commit. A file that fails
// before delivery is released with Abandon and its number is reused. A Commit
// that fails after delivery leaves a file in the operator's hands whose NSA the
// store does not know about, so the counter refuses to issue another number
// until Resolve is called.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/csg33k/remessa-generator/internal/domain"
	"github.com/csg33k/remessa-generator/internal/ports"
)

// MaxNumber is the largest NSA that fits the 6-digit sequence segment.
const MaxNumber = 999_999

type Counter struct {
	mu      sync.Mutex
	store   ports.SequenceStore
	pending *domain.FileSequence
	blocked *domain.SequenceCommitError
}

func New(store ports.SequenceStore) *Counter {
	return &Counter{store: store}
}

// PeekNext reserves the next NSA. Only one reservation may be in flight.
func (c *Counter) PeekNext(ctx context.Context) (domain.FileSequence, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.blocked != nil {
		return domain.FileSequence{}, fmt.Errorf("%w: %s was delivered with NSA %d but the counter was not saved",
			domain.ErrManualIntervention, c.blocked.FileName, c.blocked.Sequence.Number)
	}
	if c.pending != nil {
		return domain.FileSequence{}, fmt.Errorf("%w: NSA %d", domain.ErrSequenceInFlight, c.pending.Number)
	}

	st, err := c.store.LoadSequence(ctx)
	if err != nil {
		return domain.FileSequence{}, fmt.Errorf("load sequence: %w", err)
	}
	next := st.Last + 1
	if next > MaxNumber {
		return domain.FileSequence{}, &domain.FieldOverflowError{
			Record: "header", Field: "NSA", Width: domain.NSAWidth, Value: strconv.FormatInt(next, 10),
		}
	}
	suffix := st.Suffix
	if suffix == "" {
		suffix = domain.DefaultNSASuffix
	}
	seq := domain.FileSequence{Number: next, Suffix: suffix}
	c.pending = &seq
	return seq, nil
}

// Commit persists seq as the last used NSA. seq must be the reservation
// returned by PeekNext. On failure the counter is blocked and the returned
// error is a *domain.SequenceCommitError.
func (c *Counter) Commit(ctx context.Context, seq domain.FileSequence) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || *c.pending != seq {
		return fmt.Errorf("commit NSA %d: no such reservation", seq.Number)
	}
	c.pending = nil
	if err := c.store.SaveSequence(ctx, seq.Number); err != nil {
		c.blocked = &domain.SequenceCommitError{Sequence: seq, FileName: seq.FileName(), Err: err}
		return c.blocked
	}
	return nil
}

// Abandon releases a reservation whose file was never delivered.
func (c *Counter) Abandon(seq domain.FileSequence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && *c.pending == seq {
		c.pending = nil
	}
}

// Resolve records last as the most recent NSA used, as confirmed by the
// operator, and unblocks the counter. The counter never moves backwards.
func (c *Counter) Resolve(ctx context.Context, last int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last < 0 || last > MaxNumber {
		return fmt.Errorf("resolve: NSA %d out of range", last)
	}
	st, err := c.store.LoadSequence(ctx)
	if err != nil {
		return fmt.Errorf("load sequence: %w", err)
	}
	if last < st.Last {
		return fmt.Errorf("resolve: NSA %d is below the stored value %d", last, st.Last)
	}
	if last > st.Last {
		if err := c.store.SaveSequence(ctx, last); err != nil {
			return fmt.Errorf("save sequence: %w", err)
		}
	}
	c.blocked = nil
	c.pending = nil
	return nil
}

// Blocked returns the commit failure the counter is waiting on, or nil.
func (c *Counter) Blocked() *domain.SequenceCommitError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked
}

func (c *Counter) State(ctx context.Context) (domain.SequenceState, error) {
	return c.store.LoadSequence(ctx)
}

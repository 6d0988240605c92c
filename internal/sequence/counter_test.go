package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/csg33k/remessa-generator/internal/domain"
)

// MockSequenceStore is a mock implementation of ports.SequenceStore
type MockSequenceStore struct {
	mock.Mock
}

func (m *MockSequenceStore) LoadSequence(ctx context.Context) (domain.SequenceState, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.SequenceState), args.Error(1)
}

func (m *MockSequenceStore) SaveSequence(ctx context.Context, last int64) error {
	args := m.Called(ctx, last)
	return args.Error(0)
}

// memStore is an in-memory compare-and-set store.
type memStore struct {
	mu   sync.Mutex
	last int64
}

func (s *memStore) LoadSequence(context.Context) (domain.SequenceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SequenceState{Last: s.last, Suffix: domain.DefaultNSASuffix}, nil
}

func (s *memStore) SaveSequence(_ context.Context, last int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last <= s.last {
		return errors.New("stale sequence")
	}
	s.last = last
	return nil
}

func TestPeekNext_DoesNotPersist(t *testing.T) {
	ctx := context.Background()
	store := new(MockSequenceStore)
	store.On("LoadSequence", ctx).Return(domain.SequenceState{Last: 7700, Suffix: "04"}, nil)

	c := New(store)
	seq, err := c.PeekNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7701), seq.Number)
	assert.Equal(t, "00770104", seq.FileID())
	assert.Equal(t, "REMESSA_NSA_7701.txt", seq.FileName())

	store.AssertNotCalled(t, "SaveSequence", mock.Anything, mock.Anything)
}

func TestPeekNext_DefaultSuffix(t *testing.T) {
	ctx := context.Background()
	store := new(MockSequenceStore)
	store.On("LoadSequence", ctx).Return(domain.SequenceState{Last: 0}, nil)

	seq, err := New(store).PeekNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "00000104", seq.FileID())
}

func TestPeekNext_OneReservationInFlight(t *testing.T) {
	ctx := context.Background()
	c := New(&memStore{last: 10})

	first, err := c.PeekNext(ctx)
	require.NoError(t, err)

	_, err = c.PeekNext(ctx)
	assert.ErrorIs(t, err, domain.ErrSequenceInFlight)

	c.Abandon(first)
	again, err := c.PeekNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again, "abandoned number is reissued")
}

func TestCommit_StrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	c := New(store)

	var prev int64
	for i := 0; i < 5; i++ {
		seq, err := c.PeekNext(ctx)
		require.NoError(t, err)
		require.NoError(t, c.Commit(ctx, seq))
		assert.Greater(t, seq.Number, prev)
		prev = seq.Number
	}
	assert.Equal(t, int64(5), store.last)
}

func TestCommit_UnknownReservation(t *testing.T) {
	ctx := context.Background()
	c := New(&memStore{last: 1})

	err := c.Commit(ctx, domain.FileSequence{Number: 2, Suffix: "04"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSequenceCommit)
	assert.Nil(t, c.Blocked())
}

func TestCommit_FailureBlocksCounter(t *testing.T) {
	ctx := context.Background()
	diskFull := errors.New("disk full")
	store := new(MockSequenceStore)
	store.On("LoadSequence", ctx).Return(domain.SequenceState{Last: 7700, Suffix: "04"}, nil)
	store.On("SaveSequence", ctx, int64(7701)).Return(diskFull).Once()

	c := New(store)
	seq, err := c.PeekNext(ctx)
	require.NoError(t, err)

	err = c.Commit(ctx, seq)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSequenceCommit)
	assert.ErrorIs(t, err, diskFull)

	var ce *domain.SequenceCommitError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(7701), ce.Sequence.Number)
	assert.Equal(t, "REMESSA_NSA_7701.txt", ce.FileName)
	assert.Same(t, ce, c.Blocked())

	// No automatic retry with the same or the next number.
	_, err = c.PeekNext(ctx)
	assert.ErrorIs(t, err, domain.ErrManualIntervention)
	store.AssertNumberOfCalls(t, "SaveSequence", 1)
}

func TestResolve_UnblocksCounter(t *testing.T) {
	ctx := context.Background()
	store := new(MockSequenceStore)
	store.On("LoadSequence", ctx).Return(domain.SequenceState{Last: 7700, Suffix: "04"}, nil).Times(3)
	store.On("SaveSequence", ctx, int64(7701)).Return(errors.New("locked")).Once()
	store.On("SaveSequence", ctx, int64(7701)).Return(nil).Once()

	c := New(store)
	seq, err := c.PeekNext(ctx)
	require.NoError(t, err)
	require.Error(t, c.Commit(ctx, seq))

	require.NoError(t, c.Resolve(ctx, 7701))
	assert.Nil(t, c.Blocked())

	store.ExpectedCalls = nil
	store.On("LoadSequence", ctx).Return(domain.SequenceState{Last: 7701, Suffix: "04"}, nil)
	next, err := c.PeekNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7702), next.Number)
}

func TestResolve_NeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	store := &memStore{last: 50}
	c := New(store)

	assert.Error(t, c.Resolve(ctx, 49))
	require.NoError(t, c.Resolve(ctx, 50))
	assert.Equal(t, int64(50), store.last)
	require.NoError(t, c.Resolve(ctx, 60))
	assert.Equal(t, int64(60), store.last)
}

func TestPeekNext_Overflow(t *testing.T) {
	ctx := context.Background()
	c := New(&memStore{last: MaxNumber})

	_, err := c.PeekNext(ctx)
	assert.ErrorIs(t, err, domain.ErrFieldOverflow)

	_, err = c.PeekNext(ctx)
	assert.ErrorIs(t, err, domain.ErrFieldOverflow, "overflow must not leave a reservation behind")
}

func TestCounter_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	c := New(store)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed = map[int64]bool{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				seq, err := c.PeekNext(ctx)
				if errors.Is(err, domain.ErrSequenceInFlight) {
					continue
				}
				if err != nil {
					t.Error(err)
					return
				}
				if err := c.Commit(ctx, seq); err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				committed[seq.Number] = true
				mu.Unlock()
				return
			}
		}()
	}
	wg.Wait()
	assert.Len(t, committed, 20, "no two commits share a number")
	assert.Equal(t, int64(20), store.last)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csg33k/remessa-generator/internal/domain"
)

func TestPreviousPeriod(t *testing.T) {
	assert.Equal(t, "2024_02", PreviousPeriod(day(2024, time.March, 31)))
	assert.Equal(t, "2023_12", PreviousPeriod(day(2024, time.January, 1)))
}

func TestArchiveRemitted(t *testing.T) {
	ctx := context.Background()
	f, a, b := remitted(t)
	pending := f.charge(t, f.ana.ID, 100, day(2024, time.April, 15))
	arc := &memArchive{}
	svc := NewArchiver(f.repo, arc, quietLogger())

	where, n, err := svc.ArchiveRemitted(ctx, "2024_03")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "mem://remessa_2024_03.json", where)

	archived := arc.periods["2024_03"]
	require.Len(t, archived, 2)
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, []int64{archived[0].ID, archived[1].ID})

	left, err := f.repo.ListCharges(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, pending.ID, left[0].ID)

	_, _, err = svc.ArchiveRemitted(ctx, "2024_03")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchiveRemitted_BadPeriod(t *testing.T) {
	f := newFixture(t)
	svc := NewArchiver(f.repo, &memArchive{}, quietLogger())
	_, _, err := svc.ArchiveRemitted(context.Background(), "2024-03")
	assert.Error(t, err)
}

func TestArchiveRemitted_ArchiveFailureKeepsCharges(t *testing.T) {
	ctx := context.Background()
	f, _, _ := remitted(t)
	svc := NewArchiver(f.repo, &memArchive{err: errors.New("read-only file system")}, quietLogger())

	_, _, err := svc.ArchiveRemitted(ctx, "2024_03")
	require.Error(t, err)
	all, err := f.repo.ListCharges(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

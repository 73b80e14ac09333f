// Package storetest is a conformance suite every store.Repo backend runs
// from its own tests.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/store"
)

// Factory returns a fresh, empty repository. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Repo

// Run executes the suite against repositories produced by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, newRepo(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newRepo(t)) })
	t.Run("DuplicateInsert", func(t *testing.T) { testDuplicateInsert(t, newRepo(t)) })
	t.Run("FindDueWindow", func(t *testing.T) { testFindDueWindow(t, newRepo(t)) })
	t.Run("FindDueSkipsClaimed", func(t *testing.T) { testFindDueSkipsClaimed(t, newRepo(t)) })
	t.Run("ClaimOnce", func(t *testing.T) { testClaimOnce(t, newRepo(t)) })
	t.Run("ClaimMissing", func(t *testing.T) { testClaimMissing(t, newRepo(t)) })
	t.Run("ConcurrentClaim", func(t *testing.T) { testConcurrentClaim(t, newRepo(t)) })
	t.Run("UnclaimReadmits", func(t *testing.T) { testUnclaimReadmits(t, newRepo(t)) })
	t.Run("UnclaimMissing", func(t *testing.T) { testUnclaimMissing(t, newRepo(t)) })
}

// Block returns a pending block starting at start, truncated to millisecond
// precision so every backend round-trips it exactly.
func Block(contact string, start time.Time) domain.TimeBlock {
	start = start.UTC().Truncate(time.Millisecond)
	b := domain.NewTimeBlock(contact, start, start.Add(time.Hour))
	b.CreatedAt = b.CreatedAt.Truncate(time.Millisecond)
	b.UpdatedAt = b.CreatedAt
	return b
}

func insert(t *testing.T, r store.Repo, b domain.TimeBlock) domain.TimeBlock {
	t.Helper()
	require.NoError(t, r.InsertBlock(context.Background(), &b))
	return b
}

func ids(blocks []domain.TimeBlock) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.ID)
	}
	return out
}

func testInsertAndGet(t *testing.T, r store.Repo) {
	ctx := context.Background()
	b := insert(t, r, Block("a@example.com", time.Now().Add(10*time.Minute)))

	got, err := r.GetBlock(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "a@example.com", got.OwnerContact)
	assert.True(t, b.StartAt.Equal(got.StartAt), "start %s != %s", b.StartAt, got.StartAt)
	assert.True(t, b.EndAt.Equal(got.EndAt), "end %s != %s", b.EndAt, got.EndAt)
	assert.False(t, got.ReminderSent)
}

func testGetMissing(t *testing.T, r store.Repo) {
	_, err := r.GetBlock(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDuplicateInsert(t *testing.T, r store.Repo) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	b := insert(t, r, Block("dup@example.com", now.Add(10*time.Minute)))

	moved := Block("other@example.com", now.Add(30*time.Minute))
	moved.ID = b.ID
	assert.ErrorIs(t, r.InsertBlock(ctx, &moved), store.ErrDuplicate)

	got, err := r.GetBlock(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "dup@example.com", got.OwnerContact)
	assert.True(t, b.StartAt.Equal(got.StartAt), "start %s != %s", b.StartAt, got.StartAt)

	due, err := r.FindDueCandidates(ctx, now.Add(9*time.Minute), now.Add(11*time.Minute))
	require.NoError(t, err)
	require.Equal(t, []string{b.ID}, ids(due))
	assert.True(t, b.StartAt.Equal(due[0].StartAt))

	due, err = r.FindDueCandidates(ctx, now.Add(29*time.Minute), now.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func testFindDueWindow(t *testing.T, r store.Repo) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	from, to := now.Add(9*time.Minute), now.Add(11*time.Minute)

	atFrom := insert(t, r, Block("from@example.com", from))
	inside := insert(t, r, Block("in@example.com", now.Add(10*time.Minute)))
	atTo := insert(t, r, Block("to@example.com", to))
	insert(t, r, Block("early@example.com", from.Add(-time.Millisecond)))
	insert(t, r, Block("late@example.com", to.Add(time.Millisecond)))
	insert(t, r, Block("far@example.com", now.Add(20*time.Minute)))

	got, err := r.FindDueCandidates(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, []string{atFrom.ID, inside.ID, atTo.ID}, ids(got))
}

func testFindDueSkipsClaimed(t *testing.T, r store.Repo) {
	ctx := context.Background()
	now := time.Now().UTC()
	pending := insert(t, r, Block("p@example.com", now.Add(10*time.Minute)))
	sent := Block("s@example.com", now.Add(10*time.Minute))
	sent.ReminderSent = true
	insert(t, r, sent)

	got, err := r.FindDueCandidates(ctx, now.Add(9*time.Minute), now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{pending.ID}, ids(got))
}

func testClaimOnce(t *testing.T, r store.Repo) {
	ctx := context.Background()
	b := insert(t, r, Block("c@example.com", time.Now().Add(10*time.Minute)))

	claimed, ok, err := r.TryClaim(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b.ID, claimed.ID)
	assert.Equal(t, "c@example.com", claimed.OwnerContact)
	assert.True(t, claimed.ReminderSent)
	assert.True(t, b.StartAt.Equal(claimed.StartAt), "claim must not move start")
	assert.False(t, claimed.UpdatedAt.Before(b.UpdatedAt), "updated_at must advance")

	_, ok, err = r.TryClaim(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must fail the precondition")

	got, err := r.GetBlock(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent)
}

func testClaimMissing(t *testing.T, r store.Repo) {
	_, ok, err := r.TryClaim(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConcurrentClaim(t *testing.T, r store.Repo) {
	ctx := context.Background()
	b := insert(t, r, Block("race@example.com", time.Now().Add(10*time.Minute)))

	const workers = 16
	var (
		wins  atomic.Int32
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, ok, err := r.TryClaim(ctx, b.ID)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one claim must succeed")
}

func testUnclaimReadmits(t *testing.T, r store.Repo) {
	ctx := context.Background()
	now := time.Now().UTC()
	b := insert(t, r, Block("u@example.com", now.Add(10*time.Minute)))

	_, ok, err := r.TryClaim(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, ok)

	due, err := r.FindDueCandidates(ctx, now.Add(9*time.Minute), now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, r.Unclaim(ctx, b.ID))

	got, err := r.GetBlock(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.ReminderSent)

	due, err = r.FindDueCandidates(ctx, now.Add(9*time.Minute), now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(due))

	_, ok, err = r.TryClaim(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok, "unclaimed block must be claimable again")
}

func testUnclaimMissing(t *testing.T, r store.Repo) {
	assert.NoError(t, r.Unclaim(context.Background(), "does-not-exist"))
}

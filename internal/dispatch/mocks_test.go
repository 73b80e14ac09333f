package dispatch_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/store"
)

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, recipient string, b domain.TimeBlock) error {
	args := m.Called(ctx, recipient, b)
	return args.Error(0)
}

// faultyRepo wraps a Repo and injects errors. Unclaim honours ctx so the
// rollback context can be observed.
type faultyRepo struct {
	store.Repo
	findErr    error
	claimErrID string
	claimErr   error
	unclaimErr error
}

func (r *faultyRepo) FindDueCandidates(ctx context.Context, from, to time.Time) ([]domain.TimeBlock, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.Repo.FindDueCandidates(ctx, from, to)
}

func (r *faultyRepo) TryClaim(ctx context.Context, id string) (domain.TimeBlock, bool, error) {
	if r.claimErr != nil && (r.claimErrID == "" || r.claimErrID == id) {
		return domain.TimeBlock{}, false, r.claimErr
	}
	return r.Repo.TryClaim(ctx, id)
}

func (r *faultyRepo) Unclaim(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.unclaimErr != nil {
		return r.unclaimErr
	}
	return r.Repo.Unclaim(ctx, id)
}

// barrierRepo holds every caller of FindDueCandidates until all expected
// callers have fetched, so their claims race on the same snapshot.
type barrierRepo struct {
	store.Repo
	wg *sync.WaitGroup
}

func newBarrierRepo(r store.Repo, workers int) *barrierRepo {
	wg := &sync.WaitGroup{}
	wg.Add(workers)
	return &barrierRepo{Repo: r, wg: wg}
}

func (r *barrierRepo) FindDueCandidates(ctx context.Context, from, to time.Time) ([]domain.TimeBlock, error) {
	res, err := r.Repo.FindDueCandidates(ctx, from, to)
	r.wg.Done()
	r.wg.Wait()
	return res, err
}

//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ashureev/cogcheck/internal/domain"
)

type fakeRepo struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	assessments map[string]*domain.Assessment
	pingErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:       make(map[string]*domain.User),
		assessments: make(map[string]*domain.Assessment),
	}
}

func (f *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	if user == nil {
		return nil, nil
	}
	copy := *user
	return &copy, nil
}

func (f *fakeRepo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *user
	f.users[user.UserID] = &copy
	return nil
}

func (f *fakeRepo) UpdateLastSeen(_ context.Context, _ string, _ time.Time) error { return nil }

func (f *fakeRepo) SaveAssessment(_ context.Context, a *domain.Assessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.assessments[a.AssessmentID]; ok {
		return errors.New("duplicate")
	}
	f.assessments[a.AssessmentID] = a
	return nil
}

func (f *fakeRepo) GetAssessment(_ context.Context, id string) (*domain.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assessments[id], nil
}

func (f *fakeRepo) ListAssessments(_ context.Context, userID string, limit int) ([]*domain.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Assessment
	for _, a := range f.assessments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) CountAssessments(ctx context.Context, userID string) (int, error) {
	list, err := f.ListAssessments(ctx, userID, 0)
	return len(list), err
}

func (f *fakeRepo) DeleteAssessmentsBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return f.pingErr }
func (f *fakeRepo) Close() error                 { return nil }

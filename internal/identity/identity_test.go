package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/cogcheck/internal/domain"
)

type memUsers struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	lastSeen int
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*domain.User{}} }

func (m *memUsers) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) UpsertUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.UserID] = &cp
	return nil
}

func (m *memUsers) UpdateLastSeen(_ context.Context, id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSeen++
	m.users[id].LastSeenAt = t
	return nil
}

func serveParticipant(t *testing.T, repo UserStore, req *http.Request) (*httptest.ResponseRecorder, Participant, string) {
	t.Helper()
	var p Participant
	var sessionID string
	h := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		if p, ok = ParticipantFromContext(r.Context()); !ok {
			t.Error("no participant in context")
		}
		sessionID = SessionIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, p, sessionID
}

func serve(t *testing.T, repo UserStore, req *http.Request) (*httptest.ResponseRecorder, string, string) {
	t.Helper()
	rec, p, sessionID := serveParticipant(t, repo, req)
	return rec, p.UserID, sessionID
}

func TestMiddleware_IssuesCookieAndCreatesUser(t *testing.T) {
	repo := newMemUsers()
	rec, userID, sessionID := serve(t, repo, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if !isValidAnonID(userID) {
		t.Fatalf("user id %q is not a valid anon id", userID)
	}
	if sessionID != "" {
		t.Errorf("session id = %q, want empty", sessionID)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != userID {
		t.Fatalf("cookies = %+v", cookies)
	}
	if u, _ := repo.GetUser(context.Background(), userID); u == nil || u.Username != displayName(userID) {
		t.Errorf("user not persisted: %+v", u)
	}
}

func TestMiddleware_MarksReturningParticipant(t *testing.T) {
	repo := newMemUsers()
	rec, first, _ := serveParticipant(t, repo, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if first.Returning {
		t.Fatalf("first visit marked returning: %+v", first)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	_, second, _ := serveParticipant(t, repo, req)
	if !second.Returning || second.UserID != first.UserID {
		t.Fatalf("second visit = %+v, want returning %s", second, first.UserID)
	}
	if !second.FirstSeenAt.Equal(first.FirstSeenAt) || second.Username != first.Username {
		t.Errorf("second visit = %+v, first = %+v", second, first)
	}
}

func TestMiddleware_ReusesValidCookie(t *testing.T) {
	repo := newMemUsers()
	id := "anon_0123456789abcdef0123456789abcdef"

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	req.Header.Set(SessionHeaderName, "0192d1e4-7c1a-7f00-9a3b-1234567890ab")
	_, userID, sessionID := serve(t, repo, req)

	if userID != id {
		t.Errorf("user id = %q, want %q", userID, id)
	}
	if sessionID != "0192d1e4-7c1a-7f00-9a3b-1234567890ab" {
		t.Errorf("session id = %q", sessionID)
	}
}

func TestMiddleware_RejectsForgedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?session_id=bad%20id", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "admin"})
	_, userID, sessionID := serve(t, newMemUsers(), req)

	if userID == "admin" || !isValidAnonID(userID) {
		t.Errorf("user id = %q", userID)
	}
	if sessionID != "" {
		t.Errorf("invalid session id passed through: %q", sessionID)
	}
}

func TestParseSessionID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"v7", "0192d1e4-7c1a-7f00-9a3b-1234567890ab", "0192d1e4-7c1a-7f00-9a3b-1234567890ab"},
		{"v7 upper with spaces", "  0192D1E4-7C1A-7F00-9A3B-1234567890AB ", "0192d1e4-7c1a-7f00-9a3b-1234567890ab"},
		{"v4", "9b2f7c1e-4d3a-4c8b-9f1e-2a3b4c5d6e7f", ""},
		{"garbage", "../../etc/passwd", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseSessionID(tt.in); got != tt.want {
				t.Errorf("parseSessionID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveParticipant_ThrottlesLastSeen(t *testing.T) {
	repo := newMemUsers()
	now := time.Unix(1_700_000_000, 0)
	ctx := context.Background()

	_, _ = resolveParticipant(ctx, repo, "anon_x", now)
	_, _ = resolveParticipant(ctx, repo, "anon_x", now.Add(10*time.Second))
	if repo.lastSeen != 0 {
		t.Fatalf("last seen updated %d times within throttle", repo.lastSeen)
	}
	_, _ = resolveParticipant(ctx, repo, "anon_x", now.Add(2*time.Minute))
	if repo.lastSeen != 1 {
		t.Fatalf("last seen updated %d times, want 1", repo.lastSeen)
	}
}

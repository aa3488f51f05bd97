package api

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/pidtune/internal/advisory"
	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/identity"
	"github.com/ashureev/pidtune/internal/tuning"
	"github.com/go-chi/chi/v5"
)

type fakeRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	settings map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*domain.User), settings: make(map[string]string)}
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

func (f *fakeRepo) UpdateLastSeen(context.Context, string, time.Time) error { return nil }

func (f *fakeRepo) GetSetting(_ context.Context, userID, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.settings[userID+"/"+key]
	return v, ok, nil
}

func (f *fakeRepo) PutSetting(_ context.Context, userID, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[userID+"/"+key] = value
	return nil
}

func (f *fakeRepo) DeleteSetting(_ context.Context, userID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.settings, userID+"/"+key)
	return nil
}

// valuesFor returns every stored value for key across users.
func (f *fakeRepo) valuesFor(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k, v := range f.settings {
		if strings.HasSuffix(k, "/"+key) {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

type fakeAdvisor struct {
	mu      sync.Mutex
	calls   int
	err     error
	started chan struct{}
	block   chan struct{}
}

func (f *fakeAdvisor) RequestInitial(ctx context.Context, _ advisory.InitialRequest) (string, error) {
	return f.answer(ctx, "Kp = 2.5\nKi = 0.06\nKd = 8.0")
}

func (f *fakeAdvisor) RequestRefinement(ctx context.Context, _ advisory.RefinementRequest) (string, error) {
	return f.answer(ctx, "Kp = 2.2\nKi = 0.08\nKd = 7.5")
}

func (f *fakeAdvisor) answer(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.calls++
	err, started, block := f.err, f.started, f.block
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (f *fakeAdvisor) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// blockCalls makes later calls signal started and wait for release to close.
func (f *fakeAdvisor) blockCalls() (started chan struct{}, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = make(chan struct{}, 1)
	f.block = make(chan struct{})
	return f.started, f.block
}

func (f *fakeAdvisor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	repo   *fakeRepo
	adv    *fakeAdvisor
}

func newTestEnv(t *testing.T, fallback domain.Credentials) *testEnv {
	t.Helper()
	env := &testEnv{repo: newFakeRepo(), adv: &fakeAdvisor{}}

	registry := tuning.NewRegistry(func(string) advisory.Client { return env.adv }, nil, nil)
	base := NewHandler(env.repo, registry, fallback, 1<<20)

	r := chi.NewRouter()
	r.Use(identity.Middleware(env.repo, true))
	NewSessionHandler(base).RegisterRoutes(r)
	NewSettingsHandler(base).RegisterRoutes(r)

	env.srv = httptest.NewServer(r)
	t.Cleanup(env.srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	env.client = &http.Client{Jar: jar}
	return env
}

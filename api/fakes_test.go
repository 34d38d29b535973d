package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linkmage/analyzer"
	"github.com/linkmage/analyzer/groq"
	"github.com/linkmage/analyzer/metrics"
	"github.com/linkmage/analyzer/models"
	"github.com/linkmage/analyzer/storage"
)

// fakeLLM answers completions by operation
type fakeLLM struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   int
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{replies: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeLLM) Complete(_ context.Context, req groq.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[req.Operation]; ok {
		return "", err
	}
	return f.replies[req.Operation], nil
}

// memStore is an in-memory Store that scopes rows by owner
type memStore struct {
	mu       sync.Mutex
	seq      int
	clock    time.Time
	notes    map[string]models.Note
	history  map[string]models.LinkHistory
	settings map[string]models.UserSettings
	profiles map[string]models.Profile
	pingErr  error
	failWith error
}

func newMemStore() *memStore {
	return &memStore{
		clock:    time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC),
		notes:    map[string]models.Note{},
		history:  map[string]models.LinkHistory{},
		settings: map[string]models.UserSettings{},
		profiles: map[string]models.Profile{},
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) nextID() string {
	m.seq++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", m.seq)
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) ListNotes(_ context.Context, userID string) ([]models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []models.Note
	for _, n := range m.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) GetNote(_ context.Context, userID, id string) (*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return nil, models.ErrNotFound
	}
	return &n, nil
}

func (m *memStore) CreateNote(_ context.Context, userID string, in models.NoteInput) (*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	now := m.tick()
	n := models.Note{ID: m.nextID(), UserID: userID, Title: in.Title, Content: in.Content, CreatedAt: now, UpdatedAt: now}
	m.notes[n.ID] = n
	return &n, nil
}

func (m *memStore) UpdateNote(_ context.Context, userID, id string, in models.NoteInput) (*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return nil, models.ErrNotFound
	}
	n.Title, n.Content, n.UpdatedAt = in.Title, in.Content, m.tick()
	m.notes[id] = n
	return &n, nil
}

func (m *memStore) DeleteNote(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return models.ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *memStore) ListHistory(_ context.Context, userID string) ([]models.LinkHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LinkHistory
	for _, h := range m.history {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) GetHistory(_ context.Context, userID, id string) (*models.LinkHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[id]
	if !ok || h.UserID != userID {
		return nil, models.ErrNotFound
	}
	return &h, nil
}

func (m *memStore) AddHistory(_ context.Context, userID string, in models.LinkHistoryInput) (*models.LinkHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := models.LinkHistory{
		ID: m.nextID(), UserID: userID, Link: in.Link, Title: in.Title,
		ContentType: in.ContentType, Summary: in.Summary, AnalysisData: in.AnalysisData, CreatedAt: m.tick(),
	}
	m.history[h.ID] = h
	return &h, nil
}

func (m *memStore) DeleteHistory(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[id]
	if !ok || h.UserID != userID {
		return models.ErrNotFound
	}
	delete(m.history, id)
	return nil
}

func (m *memStore) GetSettings(_ context.Context, userID string) (*models.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		s = models.UserSettings{UserID: userID}
	}
	return &s, nil
}

func (m *memStore) SaveSettings(_ context.Context, userID string, enabled bool) (*models.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := models.UserSettings{UserID: userID, NotificationsEnabled: enabled, UpdatedAt: m.tick()}
	m.settings[userID] = s
	return &s, nil
}

func (m *memStore) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) UpdateProfile(_ context.Context, userID, fullName string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[userID]
	p.ID, p.FullName, p.UpdatedAt = userID, fullName, m.tick()
	m.profiles[userID] = p
	return &p, nil
}

func (m *memStore) SyncProfile(_ context.Context, userID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[userID]
	p.ID, p.Email = userID, email
	m.profiles[userID] = p
	return nil
}

func (m *memStore) NotificationRecipients(context.Context) ([]models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Profile
	for id, s := range m.settings {
		if p, ok := m.profiles[id]; ok && s.NotificationsEnabled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeNotifier records the batch it was asked to send
type fakeNotifier struct {
	profiles []models.Profile
	message  string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, profiles []models.Profile, message string) (int, error) {
	f.profiles, f.message = profiles, message
	if f.err != nil {
		return 0, f.err
	}
	return len(profiles), nil
}

// fakeAuth maps tokens to users
type fakeAuth map[string]*User

func (f fakeAuth) Authenticate(_ context.Context, token string) (*User, error) {
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, errors.New("unknown token")
}

type testEnv struct {
	server   *Server
	llm      *fakeLLM
	store    *memStore
	blob     *storage.Storage
	notifier *fakeNotifier
}

type envOption func(*Config, *Deps)

func withoutStore() envOption {
	return func(_ *Config, d *Deps) { d.Store = nil }
}

func withoutBlob() envOption {
	return func(_ *Config, d *Deps) { d.Blob = nil }
}

func withAuth(auth Authenticator, required bool) envOption {
	return func(c *Config, d *Deps) {
		d.Auth = auth
		c.RequireAuth = required
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		llm:      newFakeLLM(),
		store:    newMemStore(),
		notifier: &fakeNotifier{},
	}
	a, err := analyzer.New(analyzer.DefaultConfig(), env.llm, nil, nil)
	require.NoError(t, err)
	env.blob, err = storage.New(storage.Config{BasePath: t.TempDir()})
	require.NoError(t, err)

	config := DefaultConfig()
	config.Addr = ":0"
	config.StoreName = "memory"
	deps := Deps{
		Analyzer: a,
		Store:    env.store,
		Blob:     env.blob,
		Notifier: env.notifier,
		Metrics:  metrics.New("linkmage"),
	}
	for _, opt := range opts {
		opt(&config, &deps)
	}

	env.server, err = NewServer(config, deps)
	require.NoError(t, err)
	env.server.now = func() time.Time { return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC) }
	return env
}

// do sends a request through the full handler chain
func (e *testEnv) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// servePage serves body as HTML with the given status on every path
func servePage(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

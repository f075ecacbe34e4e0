package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"snote_backend/internal/feature/auth/domain/entity"
)

// memUserRepository is an in-memory UserRepository.
// The email uniqueness check and insert happen under one lock, like a unique index.
type memUserRepository struct {
	mu      sync.Mutex
	byEmail map[string]*entity.User
	byID    map[string]*entity.User

	// CreateFunc, FindByEmailFunc and FindByIDFunc override the in-memory behavior when set.
	CreateFunc      func(ctx context.Context, user *entity.User) error
	FindByEmailFunc func(ctx context.Context, email string) (*entity.User, error)
	FindByIDFunc    func(ctx context.Context, id string) (*entity.User, error)
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{
		byEmail: map[string]*entity.User{},
		byID:    map[string]*entity.User{},
	}
}

func (m *memUserRepository) Create(ctx context.Context, user *entity.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[user.Email]; ok {
		return ErrEmailAlreadyExists
	}
	stored := *user
	m.byEmail[user.Email] = &stored
	m.byID[user.ID] = &stored
	return nil
}

func (m *memUserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// memSessionRepository is an in-memory SessionRepository.
type memSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]entity.Session

	// Err, when set, is returned from every method.
	Err error
	// FindByIDFunc overrides FindByID when set.
	FindByIDFunc func(ctx context.Context, id string) (*entity.Session, error)
	// DeleteExpiredFunc overrides DeleteExpired when set.
	DeleteExpiredFunc func(ctx context.Context, now time.Time) (int64, error)
}

func newMemSessionRepository() *memSessionRepository {
	return &memSessionRepository{sessions: map[string]entity.Session{}}
}

func (m *memSessionRepository) Create(_ context.Context, s *entity.Session) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrSessionConflict
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *memSessionRepository) FindByID(ctx context.Context, id string) (*entity.Session, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *memSessionRepository) Delete(_ context.Context, id string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepository) DeleteAllByUserID(_ context.Context, userID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, now)
	}
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.IsExpiredAt(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessionRepository) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// fakeHasher is a cheap, reversible PasswordHasher for usecase tests.
// Like bcrypt, it only compares the first 72 bytes of the password.
type fakeHasher struct {
	mu          sync.Mutex
	verifyCalls int

	HashErr error
}

func (h *fakeHasher) Hash(_ context.Context, password string) (string, error) {
	if h.HashErr != nil {
		return "", h.HashErr
	}
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(_ context.Context, password, hash string) (bool, error) {
	h.mu.Lock()
	h.verifyCalls++
	h.mu.Unlock()
	stored, ok := strings.CutPrefix(hash, "hashed:")
	return ok && truncate72(stored) == truncate72(password), nil
}

func truncate72(s string) string {
	if len(s) > 72 {
		return s[:72]
	}
	return s
}

func (h *fakeHasher) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifyCalls
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingMetrics captures metric observations.
type recordingMetrics struct {
	mu      sync.Mutex
	signUps []string
	signIns []string
	swept   int64
}

func (r *recordingMetrics) ObserveSignUp(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signUps = append(r.signUps, result)
}

func (r *recordingMetrics) ObserveSignIn(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signIns = append(r.signIns, result)
}

func (r *recordingMetrics) ObserveSessionsSwept(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swept += n
}

// failingReader always fails, simulating an unavailable RNG.
type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

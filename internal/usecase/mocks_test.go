//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/domain/ports/adapter"
	"jsonprompt-saas/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock UserRepository ----

// MockUserRepo is an in-memory UserRepository. Default behavior works off the
// internal map; individual methods can be overridden per test via the Func
// fields.
type MockUserRepo struct {
	mu        sync.Mutex
	users     map[string]*model.User
	processed map[string]bool

	SaveFunc               func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc           func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	MarkEventProcessedFunc func(ctx context.Context, tx repository.Tx, userID, eventID string) (bool, error)
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{
		users:     make(map[string]*model.User),
		processed: make(map[string]bool),
	}
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

// Add stores a copy so tests can compare against the original snapshot.
func (m *MockUserRepo) Add(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

func (m *MockUserRepo) Get(id string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, u)
	}
	m.Add(u)
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	if u := m.Get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) FindByExternalRef(ctx context.Context, tx repository.Tx, provider, ref string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalProvider == provider && u.ExternalRef == ref {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) FindByPendingOrder(ctx context.Context, tx repository.Tx, ref string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.PendingOrderRef == ref && ref != "" {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) MarkEventProcessed(ctx context.Context, tx repository.Tx, userID, eventID string) (bool, error) {
	if m.MarkEventProcessedFunc != nil {
		return m.MarkEventProcessedFunc(ctx, tx, userID, eventID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + eventID
	if m.processed[key] {
		return false, nil
	}
	m.processed[key] = true
	return true, nil
}

func (m *MockUserRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *MockUserRepo) CountByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, u := range m.users {
		out[string(u.Plan)]++
	}
	return out, nil
}

func (m *MockUserRepo) ListResetDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.users {
		cp := *u
		if cp.ResetDailyIfDue(now) || cp.ResetMonthlyIfDue(now) {
			orig := *u
			out = append(out, &orig)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ---- Mock PromptRepository ----

type MockPromptRepo struct {
	mu      sync.Mutex
	records map[string]*model.PromptRecord

	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.PromptRecord) error
}

func NewMockPromptRepo() *MockPromptRepo {
	return &MockPromptRepo{records: make(map[string]*model.PromptRecord)}
}

var _ repository.PromptRepository = (*MockPromptRepo)(nil)

func (m *MockPromptRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromptRecord) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.records[p.ID] = &cp
	return nil
}

func (m *MockPromptRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.records[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockPromptRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.PromptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PromptRecord
	for _, p := range m.records {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockPromptRepo) DeleteExpired(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, p := range m.records {
		if !p.ExpiresAt.After(now) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately with NoTX unless a test overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock Notifier ----

type sentNotification struct {
	Email string
	Kind  adapter.NotificationKind
	Plan  string
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []sentNotification

	SendFunc func(ctx context.Context, email string, kind adapter.NotificationKind, planName string) error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Send(ctx context.Context, email string, kind adapter.NotificationKind, planName string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, email, kind, planName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentNotification{Email: email, Kind: kind, Plan: planName})
	return nil
}

func (m *MockNotifier) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// ---- Mock PromptEnhancer ----

type MockEnhancer struct {
	EnhanceFunc func(ctx context.Context, draft string) (string, error)
	Calls       int
}

var _ adapter.PromptEnhancer = (*MockEnhancer)(nil)

func (m *MockEnhancer) Name() string { return "mock" }

func (m *MockEnhancer) Enhance(ctx context.Context, draft string) (string, error) {
	m.Calls++
	if m.EnhanceFunc != nil {
		return m.EnhanceFunc(ctx, draft)
	}
	return draft, nil
}

// ---- Synchronous AsyncRunner ----

// syncRunner runs submitted tasks inline so tests observe side effects
// without sleeping.
type syncRunner struct{}

func (syncRunner) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

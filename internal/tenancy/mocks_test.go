package tenancy

import (
	"context"
	"errors"
	"sync"
	"time"

	"warrantyhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// fakeHandle stands in for a pgx pool. Exec records statements so tests can
// assert on the DDL and seed SQL a handle received.
type fakeHandle struct {
	name string

	mu      sync.Mutex
	pingErr error
	execErr error
	pings   int
	execs   []string
	closed  bool
}

func (h *fakeHandle) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.execs = append(h.execs, sql)
	if h.execErr != nil {
		return pgconn.NewCommandTag(""), h.execErr
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (h *fakeHandle) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeHandle: Query not supported")
}

func (h *fakeHandle) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (h *fakeHandle) Ping(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pings++
	return h.pingErr
}

func (h *fakeHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func (h *fakeHandle) failPings(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pingErr = err
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) executed() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.execs...)
}

// fakeOpener hands out fakeHandles and counts how often it is dialed.
type fakeOpener struct {
	mu      sync.Mutex
	delay   time.Duration
	err     error
	execErr error
	opens   int
	handles []*fakeHandle
}

func (o *fakeOpener) open(ctx context.Context, dsn string) (Handle, error) {
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	h := &fakeHandle{name: dsn, execErr: o.execErr}
	o.handles = append(o.handles, h)
	return h, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

type MockMappingRepository struct {
	mock.Mock
}

func (m *MockMappingRepository) Create(ctx context.Context, mapping *models.DealerDatabaseMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockMappingRepository) GetByDealerID(ctx context.Context, dealerID uuid.UUID) (*models.DealerDatabaseMapping, error) {
	args := m.Called(ctx, dealerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DealerDatabaseMapping), args.Error(1)
}

func (m *MockMappingRepository) ListActive(ctx context.Context) ([]*models.DealerDatabaseMapping, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DealerDatabaseMapping), args.Error(1)
}

func (m *MockMappingRepository) UpdateStatus(ctx context.Context, dealerID uuid.UUID, status string) error {
	args := m.Called(ctx, dealerID, status)
	return args.Error(0)
}

func (m *MockMappingRepository) DeleteByDealerID(ctx context.Context, dealerID uuid.UUID) error {
	args := m.Called(ctx, dealerID)
	return args.Error(0)
}

type MockDealerRepository struct {
	mock.Mock
}

func (m *MockDealerRepository) Create(ctx context.Context, dealer *models.Dealer) error {
	args := m.Called(ctx, dealer)
	return args.Error(0)
}

func (m *MockDealerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dealer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dealer), args.Error(1)
}

func (m *MockDealerRepository) GetByEmail(ctx context.Context, email string) (*models.Dealer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dealer), args.Error(1)
}

func (m *MockDealerRepository) List(ctx context.Context, limit, offset int) ([]*models.Dealer, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Dealer), args.Error(1)
}

func (m *MockDealerRepository) Update(ctx context.Context, dealer *models.Dealer) error {
	args := m.Called(ctx, dealer)
	return args.Error(0)
}

func (m *MockDealerRepository) SetProvisioned(ctx context.Context, id uuid.UUID, databaseName string, at time.Time) error {
	args := m.Called(ctx, id, databaseName, at)
	return args.Error(0)
}

func (m *MockDealerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDealerRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, subscription *models.Subscription) error {
	args := m.Called(ctx, subscription)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetActiveByDealer(ctx context.Context, dealerID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, dealerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ListByDealer(ctx context.Context, dealerID uuid.UUID) ([]*models.Subscription, error) {
	args := m.Called(ctx, dealerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type MockAdminChannel struct {
	mock.Mock
}

func (m *MockAdminChannel) DatabaseExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdminChannel) CreateDatabase(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockAdminChannel) DropDatabase(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockAdminChannel) Close() {}

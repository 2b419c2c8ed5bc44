package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"warrantyhub/internal/models"
	"warrantyhub/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// scriptedExec is one recorded statement with its bind arguments.
type scriptedExec struct {
	SQL  string
	Args []any
}

// stubRow satisfies pgx.Row with either a fixed error or a scan callback.
type stubRow struct {
	err  error
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.scan != nil {
		return r.scan(dest...)
	}
	return nil
}

// scriptedHandle stands in for one dealer database. Exec records every
// statement so tests can assert on what a partition received; UPDATE
// statements answer with a configurable row count so a dealer can look
// opted-in or not and sweeps can report totals.
type scriptedHandle struct {
	name string

	mu         sync.Mutex
	execErr    error
	updateRows int64
	queryRow   func(sql string, args []any) pgx.Row
	execs      []scriptedExec
	queries    []string
	closed     bool
}

func (h *scriptedHandle) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.execs = append(h.execs, scriptedExec{SQL: sql, Args: args})
	if h.execErr != nil {
		return pgconn.NewCommandTag(""), h.execErr
	}
	if strings.HasPrefix(strings.TrimSpace(sql), "UPDATE") {
		return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", h.updateRows)), nil
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (h *scriptedHandle) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("scriptedHandle: Query not supported")
}

func (h *scriptedHandle) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	h.mu.Lock()
	h.queries = append(h.queries, sql)
	fn := h.queryRow
	h.mu.Unlock()
	if fn != nil {
		return fn(sql, args)
	}
	return stubRow{err: pgx.ErrNoRows}
}

func (h *scriptedHandle) Ping(ctx context.Context) error { return nil }

func (h *scriptedHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func (h *scriptedHandle) failExecs(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.execErr = err
}

func (h *scriptedHandle) executed() []scriptedExec {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]scriptedExec(nil), h.execs...)
}

func (h *scriptedHandle) queried() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.queries...)
}

func (h *scriptedHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// tenantOpener resolves scripted handles by the database name embedded in
// the DSN, standing in for real pool dials.
type tenantOpener struct {
	mu      sync.Mutex
	handles map[string]*scriptedHandle
	refuse  map[string]error
	opens   int
}

func newTenantOpener() *tenantOpener {
	return &tenantOpener{
		handles: make(map[string]*scriptedHandle),
		refuse:  make(map[string]error),
	}
}

func (o *tenantOpener) add(dealerID uuid.UUID, h *scriptedHandle) *scriptedHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handles[tenancy.TenantDatabaseName(dealerID)] = h
	return h
}

func (o *tenantOpener) refuseDealer(dealerID uuid.UUID, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refuse[tenancy.TenantDatabaseName(dealerID)] = err
}

func (o *tenantOpener) open(ctx context.Context, dsn string) (tenancy.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	for name, err := range o.refuse {
		if strings.Contains(dsn, name) {
			return nil, err
		}
	}
	for name, h := range o.handles {
		if strings.Contains(dsn, name) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no scripted handle for %s", dsn)
}

func (o *tenantOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

func activeMappingFor(dealerID uuid.UUID) *models.DealerDatabaseMapping {
	return &models.DealerDatabaseMapping{
		ID:           uuid.New(),
		DealerID:     dealerID,
		DatabaseName: tenancy.TenantDatabaseName(dealerID),
		Status:       string(models.MappingStatusActive),
	}
}

type MockPackageRepository struct {
	mock.Mock
}

func (m *MockPackageRepository) Create(ctx context.Context, pkg *models.WarrantyPackage) error {
	args := m.Called(ctx, pkg)
	return args.Error(0)
}

func (m *MockPackageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WarrantyPackage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WarrantyPackage), args.Error(1)
}

func (m *MockPackageRepository) List(ctx context.Context, limit, offset int) ([]*models.WarrantyPackage, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WarrantyPackage), args.Error(1)
}

func (m *MockPackageRepository) Update(ctx context.Context, pkg *models.WarrantyPackage) error {
	args := m.Called(ctx, pkg)
	return args.Error(0)
}

func (m *MockPackageRepository) ReplaceItems(ctx context.Context, packageID uuid.UUID, items []*models.PackageItem) error {
	args := m.Called(ctx, packageID, items)
	return args.Error(0)
}

func (m *MockPackageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
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

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetPackage(ctx context.Context, packageID uuid.UUID) (*models.WarrantyPackage, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WarrantyPackage), args.Error(1)
}

func (m *MockCacheService) SetPackage(ctx context.Context, pkg *models.WarrantyPackage, ttl time.Duration) error {
	args := m.Called(ctx, pkg, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeletePackage(ctx context.Context, packageID uuid.UUID) error {
	args := m.Called(ctx, packageID)
	return args.Error(0)
}

func (m *MockCacheService) GetDealer(ctx context.Context, dealerID uuid.UUID) (*models.Dealer, error) {
	args := m.Called(ctx, dealerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dealer), args.Error(1)
}

func (m *MockCacheService) SetDealer(ctx context.Context, dealer *models.Dealer, ttl time.Duration) error {
	args := m.Called(ctx, dealer, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteDealer(ctx context.Context, dealerID uuid.UUID) error {
	args := m.Called(ctx, dealerID)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) Close() error {
	args := m.Called()
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

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ListByDealer(ctx context.Context, dealerID uuid.UUID, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, dealerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
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

// stubAdmin satisfies tenancy.AdminChannel for services that carry a
// provisioner but never reach it.
type stubAdmin struct{}

func (stubAdmin) DatabaseExists(ctx context.Context, name string) (bool, error) { return false, nil }
func (stubAdmin) CreateDatabase(ctx context.Context, name string) error         { return nil }
func (stubAdmin) DropDatabase(ctx context.Context, name string) error           { return nil }
func (stubAdmin) Close()                                                        {}

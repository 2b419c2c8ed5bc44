package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"warrantyhub/internal/common"
	"warrantyhub/internal/models"
	"warrantyhub/internal/repositories"
	"warrantyhub/internal/tenancy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrCustomerNotFound is returned when a customer id has no row in the
// routed partition.
var ErrCustomerNotFound = errors.New("customer not found")

// DirectoryService is the cross-dealer customer directory. Single-partition
// operations are routed by a tenancy decision; fleet listings merge every
// partition, and identity search stops at the first partition that knows
// the person.
type DirectoryService interface {
	CreateCustomer(ctx context.Context, d tenancy.Decision, customer *models.Customer) error
	GetCustomer(ctx context.Context, d tenancy.Decision, id uuid.UUID) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, d tenancy.Decision, customer *models.Customer) error
	DeleteCustomer(ctx context.Context, d tenancy.Decision, id uuid.UUID) error
	ListCustomers(ctx context.Context, d tenancy.Decision, filter models.CustomerSearchFilter) ([]*models.Customer, error)
	ListFleet(ctx context.Context, filter models.CustomerSearchFilter) ([]*models.Customer, error)
	FindByContact(ctx context.Context, email, phone string) (*models.Customer, bool, error)
}

type directoryService struct {
	registry *tenancy.Registry
	fanout   *tenancy.FanOut
}

// NewDirectoryService creates a new DirectoryService instance
func NewDirectoryService(registry *tenancy.Registry, fanout *tenancy.FanOut) DirectoryService {
	return &directoryService{
		registry: registry,
		fanout:   fanout,
	}
}

func validateCustomer(customer *models.Customer) error {
	if customer.FirstName == "" || customer.LastName == "" {
		return fmt.Errorf("customer first and last name are required")
	}
	if (customer.Email == nil || *customer.Email == "") && (customer.Phone == nil || *customer.Phone == "") {
		return fmt.Errorf("customer needs an email or a phone number")
	}
	if err := common.SanitizeHTMLField(customer.Address, "address"); err != nil {
		return err
	}
	return nil
}

func (s *directoryService) CreateCustomer(ctx context.Context, d tenancy.Decision, customer *models.Customer) error {
	if err := validateCustomer(customer); err != nil {
		return err
	}
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	// The row carries the partition owner so merged listings can tell
	// dealers apart; master-resident retail customers stay unattached.
	customer.DealerID = d.Owner()
	if err := repositories.NewCustomerRepo(h).Create(ctx, customer); err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (s *directoryService) GetCustomer(ctx context.Context, d tenancy.Decision, id uuid.UUID) (*models.Customer, error) {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return nil, err
	}
	customer, err := repositories.NewCustomerRepo(h).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return customer, nil
}

func (s *directoryService) UpdateCustomer(ctx context.Context, d tenancy.Decision, customer *models.Customer) error {
	if err := validateCustomer(customer); err != nil {
		return err
	}
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}
	repo := repositories.NewCustomerRepo(h)
	if _, err := repo.GetByID(ctx, customer.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("failed to load customer: %w", err)
	}
	if err := repo.Update(ctx, customer); err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

func (s *directoryService) DeleteCustomer(ctx context.Context, d tenancy.Decision, id uuid.UUID) error {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return err
	}
	if err := repositories.NewCustomerRepo(h).Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}

// ListCustomers lists one partition, chosen by the routing decision. The
// same in-memory filter used for fleet listings keeps both views
// consistent.
func (s *directoryService) ListCustomers(ctx context.Context, d tenancy.Decision, filter models.CustomerSearchFilter) ([]*models.Customer, error) {
	h, err := s.registry.HandleFor(ctx, d)
	if err != nil {
		return nil, err
	}
	customers, err := repositories.NewCustomerRepo(h).ListRecent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return pageCustomers(customers, filter)
}

// ListFleet merges the customer lists of the master and every active
// dealer. A partition that cannot be reached contributes nothing and does
// not abort the others. Filtering, ordering and pagination happen after
// the merge; a total order across partitions only exists here.
func (s *directoryService) ListFleet(ctx context.Context, filter models.CustomerSearchFilter) ([]*models.Customer, error) {
	targets, err := s.fanout.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list fan-out targets: %w", err)
	}
	merged := tenancy.Collect(ctx, s.fanout, targets, func(ctx context.Context, src tenancy.Source, h tenancy.Handle) ([]*models.Customer, error) {
		return repositories.NewCustomerRepo(h).ListRecent(ctx)
	})
	return pageCustomers(merged, filter)
}

// FindByContact locates the single partition that owns a person. The
// master is probed first for retail customers with no dealer; a hit there
// ends the search without touching any dealer database. On a miss the
// active dealers are probed one at a time in mapping order, stopping at
// the first hit.
func (s *directoryService) FindByContact(ctx context.Context, email, phone string) (*models.Customer, bool, error) {
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return nil, false, fmt.Errorf("email or phone is required")
	}
	targets, err := s.fanout.Targets(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list fan-out targets: %w", err)
	}
	customer, found := tenancy.First(ctx, s.fanout, targets, func(ctx context.Context, src tenancy.Source, h tenancy.Handle) (*models.Customer, bool, error) {
		repo := repositories.NewCustomerRepo(h)
		var c *models.Customer
		var err error
		if src.IsMaster() {
			c, err = repo.FindUnassignedByContact(ctx, email, phone)
		} else {
			c, err = repo.FindByContact(ctx, email, phone)
		}
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return c, true, nil
	})
	return customer, found, nil
}

// pageCustomers applies the directory filter to an already merged slice:
// substring match across name and contact fields, optional dealer
// restriction, newest first, then one page.
func pageCustomers(customers []*models.Customer, filter models.CustomerSearchFilter) ([]*models.Customer, error) {
	limit, offset, err := common.ValidatePaginationParams(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(common.SanitizeSearchQuery(filter.Query))

	kept := make([]*models.Customer, 0, len(customers))
	for _, c := range customers {
		if filter.DealerID != nil {
			if c.DealerID == nil || *c.DealerID != *filter.DealerID {
				continue
			}
		}
		if query != "" && !customerMatches(c, query) {
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CreatedAt.After(kept[j].CreatedAt)
	})

	if offset >= len(kept) {
		return []*models.Customer{}, nil
	}
	end := offset + limit
	if end > len(kept) {
		end = len(kept)
	}
	return kept[offset:end], nil
}

func customerMatches(c *models.Customer, query string) bool {
	if strings.Contains(strings.ToLower(c.FirstName), query) ||
		strings.Contains(strings.ToLower(c.LastName), query) {
		return true
	}
	if strings.Contains(strings.ToLower(common.SafeString(c.Email)), query) {
		return true
	}
	return strings.Contains(common.SafeString(c.Phone), query)
}

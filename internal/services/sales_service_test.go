package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"warrantyhub/internal/config"
	"warrantyhub/internal/models"
	"warrantyhub/internal/tenancy"
	"warrantyhub/testhelpers"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SalesServiceTestSuite struct {
	suite.Suite
	mappings *MockMappingRepository
	opener   *tenantOpener
	master   *scriptedHandle
	service  SalesService
	dealer   uuid.UUID
	context  context.Context
}

func (suite *SalesServiceTestSuite) SetupTest() {
	suite.mappings = &MockMappingRepository{}
	suite.mappings.Test(suite.T())
	suite.opener = newTenantOpener()
	suite.master = &scriptedHandle{name: "master"}
	suite.dealer = uuid.New()
	suite.context = context.Background()

	dbCfg := config.DBConfig{
		Host: "localhost", Port: "5432", User: "postgres", Password: "postgres", SSLMode: "disable",
	}
	regCfg := config.RegistryConfig{ResolveTimeout: time.Second, ProbeTimeout: time.Second}
	registry := tenancy.NewRegistry(suite.master, suite.mappings, dbCfg, regCfg, suite.opener.open)
	fanout := tenancy.NewFanOut(registry, suite.mappings, config.FanOutConfig{Concurrency: 4, BranchTimeout: time.Second})
	suite.service = NewSalesService(registry, fanout)
}

func (suite *SalesServiceTestSuite) TearDownTest() {
	suite.mappings.AssertExpectations(suite.T())
}

func TestSalesServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SalesServiceTestSuite))
}

func (suite *SalesServiceTestSuite) enroll(dealerID uuid.UUID) *scriptedHandle {
	h := &scriptedHandle{name: tenancy.TenantDatabaseName(dealerID)}
	suite.opener.add(dealerID, h)
	suite.mappings.On("GetByDealerID", mock.Anything, dealerID).Return(activeMappingFor(dealerID), nil).Maybe()
	return h
}

func customerRow(c *models.Customer) pgx.Row {
	return stubRow{scan: func(dest ...any) error {
		*dest[0].(*uuid.UUID) = c.ID
		*dest[1].(**uuid.UUID) = c.DealerID
		*dest[2].(**uuid.UUID) = c.AccountManagerID
		*dest[3].(*string) = c.FirstName
		*dest[4].(*string) = c.LastName
		*dest[5].(**string) = c.Email
		*dest[6].(**string) = c.Phone
		*dest[7].(**string) = c.Address
		*dest[8].(*time.Time) = c.CreatedAt
		*dest[9].(*time.Time) = c.UpdatedAt
		return nil
	}}
}

func vehicleRow(v *models.Vehicle) pgx.Row {
	return stubRow{scan: func(dest ...any) error {
		*dest[0].(*uuid.UUID) = v.ID
		*dest[1].(**uuid.UUID) = v.DealerID
		*dest[2].(*uuid.UUID) = v.CustomerID
		*dest[3].(*string) = v.VIN
		*dest[4].(*string) = v.Make
		*dest[5].(*string) = v.Model
		*dest[6].(*int) = v.Year
		*dest[7].(**int) = v.OdometerKm
		*dest[8].(*time.Time) = v.CreatedAt
		*dest[9].(*time.Time) = v.UpdatedAt
		return nil
	}}
}

func packageRow(p *models.WarrantyPackage) pgx.Row {
	return stubRow{scan: func(dest ...any) error {
		*dest[0].(*uuid.UUID) = p.ID
		*dest[1].(*string) = p.Name
		*dest[2].(**string) = p.Description
		*dest[3].(*int) = p.DurationMonths
		*dest[4].(**int) = p.MaxOdometerKm
		*dest[5].(*float64) = p.DealerCost
		*dest[6].(*float64) = p.RetailPrice
		*dest[7].(*string) = p.Status
		*dest[8].(*time.Time) = p.CreatedAt
		*dest[9].(*time.Time) = p.UpdatedAt
		return nil
	}}
}

func saleRow(s *models.WarrantySale) pgx.Row {
	return stubRow{scan: func(dest ...any) error {
		*dest[0].(*uuid.UUID) = s.ID
		*dest[1].(**uuid.UUID) = s.DealerID
		*dest[2].(*uuid.UUID) = s.CustomerID
		*dest[3].(*uuid.UUID) = s.VehicleID
		*dest[4].(*uuid.UUID) = s.PackageID
		*dest[5].(**uuid.UUID) = s.SoldByUserID
		*dest[6].(*float64) = s.SalePrice
		*dest[7].(*string) = s.Status
		*dest[8].(*time.Time) = s.SoldAt
		*dest[9].(**time.Time) = s.ExpiresAt
		*dest[10].(*time.Time) = s.CreatedAt
		*dest[11].(*time.Time) = s.UpdatedAt
		return nil
	}}
}

// scriptLookups answers the reference lookups CreateSale performs against
// one partition; a nil model stands for a missing row.
func scriptLookups(h *scriptedHandle, customer *models.Customer, vehicle *models.Vehicle, pkg *models.WarrantyPackage) {
	h.queryRow = func(sql string, args []any) pgx.Row {
		switch {
		case strings.Contains(sql, "FROM customers"):
			if customer == nil {
				return stubRow{err: pgx.ErrNoRows}
			}
			return customerRow(customer)
		case strings.Contains(sql, "FROM vehicles"):
			if vehicle == nil {
				return stubRow{err: pgx.ErrNoRows}
			}
			return vehicleRow(vehicle)
		case strings.Contains(sql, "FROM warranty_packages"):
			if pkg == nil {
				return stubRow{err: pgx.ErrNoRows}
			}
			return packageRow(pkg)
		}
		return stubRow{err: pgx.ErrNoRows}
	}
}

func (suite *SalesServiceTestSuite) TestCreateSale_StampsTermAndPartitionOwner() {
	handle := suite.enroll(suite.dealer)

	customer := testhelpers.NewCustomer(&suite.dealer)
	vehicle := testhelpers.NewVehicle(customer.ID)
	pkg := testhelpers.NewPackage()
	scriptLookups(handle, customer, vehicle, pkg)

	soldAt := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	sale := &models.WarrantySale{
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
		PackageID:  pkg.ID,
		SoldAt:     soldAt,
	}

	d := tenancy.Decision{Scope: tenancy.ScopeTenant, DealerID: suite.dealer}
	err := suite.service.CreateSale(suite.context, d, sale)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), string(models.SaleStatusActive), sale.Status)
	assert.Equal(suite.T(), pkg.RetailPrice, sale.SalePrice, "price falls back to the dealer's retail price")
	require.NotNil(suite.T(), sale.ExpiresAt)
	assert.Equal(suite.T(), soldAt.AddDate(0, pkg.DurationMonths, 0), *sale.ExpiresAt)
	require.NotNil(suite.T(), sale.DealerID)
	assert.Equal(suite.T(), suite.dealer, *sale.DealerID)

	execs := handle.executed()
	require.Len(suite.T(), execs, 1)
	assert.Contains(suite.T(), execs[0].SQL, "INSERT INTO warranty_sales")
	assert.Equal(suite.T(), sale.DealerID, execs[0].Args[1], "the row carries the partition owner")
	assert.Empty(suite.T(), suite.master.executed(), "a dealer sale never touches the master")
}

func (suite *SalesServiceTestSuite) TestCreateSale_RetailSaleStaysUnattached() {
	customer := testhelpers.NewCustomer(nil)
	vehicle := testhelpers.NewVehicle(customer.ID)
	pkg := testhelpers.NewPackage()
	scriptLookups(suite.master, customer, vehicle, pkg)

	sale := &models.WarrantySale{
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
		PackageID:  pkg.ID,
		SalePrice:  750,
	}

	err := suite.service.CreateSale(suite.context, tenancy.Decision{Scope: tenancy.ScopeMaster}, sale)
	require.NoError(suite.T(), err)

	assert.Nil(suite.T(), sale.DealerID, "retail rows carry no dealer")
	assert.Equal(suite.T(), 750.0, sale.SalePrice, "an explicit price is kept")
	assert.False(suite.T(), sale.SoldAt.IsZero(), "sold_at defaults to now")
	assert.Zero(suite.T(), suite.opener.openCount(), "no dealer database is dialed")
}

func (suite *SalesServiceTestSuite) TestCreateSale_UnknownCustomer() {
	handle := suite.enroll(suite.dealer)
	scriptLookups(handle, nil, nil, nil)

	sale := &models.WarrantySale{
		CustomerID: uuid.New(),
		VehicleID:  uuid.New(),
		PackageID:  uuid.New(),
	}

	d := tenancy.Decision{Scope: tenancy.ScopeTenant, DealerID: suite.dealer}
	err := suite.service.CreateSale(suite.context, d, sale)
	assert.ErrorIs(suite.T(), err, ErrCustomerNotFound)
	assert.Empty(suite.T(), handle.executed(), "nothing is written on a failed lookup")
}

func (suite *SalesServiceTestSuite) TestCreateSale_VehicleMustBelongToCustomer() {
	handle := suite.enroll(suite.dealer)

	customer := testhelpers.NewCustomer(&suite.dealer)
	vehicle := testhelpers.NewVehicle(uuid.New())
	scriptLookups(handle, customer, vehicle, testhelpers.NewPackage())

	sale := &models.WarrantySale{
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
		PackageID:  uuid.New(),
	}

	d := tenancy.Decision{Scope: tenancy.ScopeTenant, DealerID: suite.dealer}
	err := suite.service.CreateSale(suite.context, d, sale)
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "does not belong")
	assert.Empty(suite.T(), handle.executed())
}

func (suite *SalesServiceTestSuite) TestCreateSale_RetiredPackageRejected() {
	handle := suite.enroll(suite.dealer)

	customer := testhelpers.NewCustomer(&suite.dealer)
	vehicle := testhelpers.NewVehicle(customer.ID)
	pkg := testhelpers.NewPackage()
	pkg.Status = string(models.PackageStatusRetired)
	scriptLookups(handle, customer, vehicle, pkg)

	sale := &models.WarrantySale{
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
		PackageID:  pkg.ID,
	}

	d := tenancy.Decision{Scope: tenancy.ScopeTenant, DealerID: suite.dealer}
	err := suite.service.CreateSale(suite.context, d, sale)
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "retired")
	assert.Empty(suite.T(), handle.executed())
}

func (suite *SalesServiceTestSuite) TestCreateSale_ValidatesBeforeRouting() {
	sale := &models.WarrantySale{
		VehicleID: uuid.New(),
		PackageID: uuid.New(),
	}
	err := suite.service.CreateSale(suite.context, tenancy.Decision{Scope: tenancy.ScopeMaster}, sale)
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "customer_id is required")

	sale = &models.WarrantySale{
		CustomerID: uuid.New(),
		VehicleID:  uuid.New(),
		PackageID:  uuid.New(),
		SalePrice:  -1,
	}
	err = suite.service.CreateSale(suite.context, tenancy.Decision{Scope: tenancy.ScopeMaster}, sale)
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "sale_price cannot be negative")

	assert.Empty(suite.T(), suite.master.queried(), "validation failures never reach the database")
}

func (suite *SalesServiceTestSuite) TestCancelSale_FlipsActiveSale() {
	handle := suite.enroll(suite.dealer)

	sale := testhelpers.NewSale(uuid.New(), uuid.New(), uuid.New())
	handle.queryRow = func(sql string, args []any) pgx.Row {
		return saleRow(sale)
	}

	d := tenancy.Decision{Scope: tenancy.ScopeTenant, DealerID: suite.dealer}
	err := suite.service.CancelSale(suite.context, d, sale.ID)
	require.NoError(suite.T(), err)

	execs := handle.executed()
	require.Len(suite.T(), execs, 1)
	assert.Contains(suite.T(), execs[0].SQL, "UPDATE warranty_sales")
	assert.Equal(suite.T(), string(models.SaleStatusCancelled), execs[0].Args[0])
}

func (suite *SalesServiceTestSuite) TestCancelSale_RejectsNonActiveSale() {
	handle := suite.enroll(suite.dealer)

	sale := testhelpers.NewSale(uuid.New(), uuid.New(), uuid.New())
	sale.Status = string(models.SaleStatusCancelled)
	handle.queryRow = func(sql string, args []any) pgx.Row {
		return saleRow(sale)
	}

	d := tenancy.Decision{Scope: tenancy.ScopeTenant, DealerID: suite.dealer}
	err := suite.service.CancelSale(suite.context, d, sale.ID)
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "only active sales")
	assert.Empty(suite.T(), handle.executed())
}

func (suite *SalesServiceTestSuite) TestGetSale_Missing() {
	suite.enroll(suite.dealer)

	d := tenancy.Decision{Scope: tenancy.ScopeTenant, DealerID: suite.dealer}
	_, err := suite.service.GetSale(suite.context, d, uuid.New())
	assert.ErrorIs(suite.T(), err, ErrSaleNotFound)
}

func soldSale(dealerID *uuid.UUID, status string, soldAt time.Time) *models.WarrantySale {
	sale := testhelpers.NewSale(uuid.New(), uuid.New(), uuid.New())
	sale.DealerID = dealerID
	sale.Status = status
	sale.SoldAt = soldAt
	return sale
}

func TestPageSalesOrdersNewestFirstAcrossPartitions(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	dealer := uuid.New()

	oldest := soldSale(nil, string(models.SaleStatusActive), base)
	middle := soldSale(&dealer, string(models.SaleStatusActive), base.Add(time.Hour))
	newest := soldSale(&dealer, string(models.SaleStatusActive), base.Add(2*time.Hour))

	merged := []*models.WarrantySale{oldest, newest, middle}

	page, err := pageSales(merged, models.SaleSearchFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, newest.ID, page[0].ID)
	assert.Equal(t, middle.ID, page[1].ID)

	rest, err := pageSales(merged, models.SaleSearchFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, oldest.ID, rest[0].ID)
}

func TestPageSalesFiltersByStatusPackageAndDealer(t *testing.T) {
	now := time.Now().UTC()
	dealerA := uuid.New()
	dealerB := uuid.New()

	match := soldSale(&dealerA, string(models.SaleStatusActive), now)
	wrongStatus := soldSale(&dealerA, string(models.SaleStatusCancelled), now)
	wrongDealer := soldSale(&dealerB, string(models.SaleStatusActive), now)
	retail := soldSale(nil, string(models.SaleStatusActive), now)

	merged := []*models.WarrantySale{match, wrongStatus, wrongDealer, retail}

	active := string(models.SaleStatusActive)
	page, err := pageSales(merged, models.SaleSearchFilter{Status: &active, DealerID: &dealerA})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, match.ID, page[0].ID)

	byPackage, err := pageSales(merged, models.SaleSearchFilter{PackageID: &match.PackageID})
	require.NoError(t, err)
	require.Len(t, byPackage, 1)
	assert.Equal(t, match.ID, byPackage[0].ID)
}

func TestPageSalesDateWindowIsInclusive(t *testing.T) {
	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)

	onFrom := soldSale(nil, string(models.SaleStatusActive), from)
	onTo := soldSale(nil, string(models.SaleStatusActive), to)
	before := soldSale(nil, string(models.SaleStatusActive), from.Add(-time.Second))
	after := soldSale(nil, string(models.SaleStatusActive), to.Add(time.Second))

	merged := []*models.WarrantySale{onFrom, onTo, before, after}

	page, err := pageSales(merged, models.SaleSearchFilter{SoldFrom: &from, SoldTo: &to})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, onTo.ID, page[0].ID)
	assert.Equal(t, onFrom.ID, page[1].ID)
}

func TestPageSalesOffsetPastEndIsEmpty(t *testing.T) {
	merged := []*models.WarrantySale{
		soldSale(nil, string(models.SaleStatusActive), time.Now().UTC()),
	}

	page, err := pageSales(merged, models.SaleSearchFilter{Offset: 10})
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}

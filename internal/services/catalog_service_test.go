package services

import (
	"context"
	"errors"
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

type CatalogServiceTestSuite struct {
	suite.Suite
	packages *MockPackageRepository
	mappings *MockMappingRepository
	cache    *MockCacheService
	opener   *tenantOpener
	master   *scriptedHandle
	service  CatalogService
	dealerA  uuid.UUID
	dealerB  uuid.UUID
	dealerC  uuid.UUID
	context  context.Context
}

func (suite *CatalogServiceTestSuite) SetupTest() {
	suite.packages = &MockPackageRepository{}
	suite.packages.Test(suite.T())
	suite.mappings = &MockMappingRepository{}
	suite.mappings.Test(suite.T())
	suite.cache = &MockCacheService{}
	suite.cache.Test(suite.T())
	suite.opener = newTenantOpener()
	suite.master = &scriptedHandle{name: "master"}
	suite.dealerA = uuid.New()
	suite.dealerB = uuid.New()
	suite.dealerC = uuid.New()
	suite.context = context.Background()

	dbCfg := config.DBConfig{
		Host: "localhost", Port: "5432", User: "postgres", Password: "postgres", SSLMode: "disable",
	}
	regCfg := config.RegistryConfig{ResolveTimeout: time.Second, ProbeTimeout: time.Second}
	registry := tenancy.NewRegistry(suite.master, suite.mappings, dbCfg, regCfg, suite.opener.open)
	fanout := tenancy.NewFanOut(registry, suite.mappings, config.FanOutConfig{Concurrency: 4, BranchTimeout: time.Second})
	suite.service = NewCatalogService(suite.packages, registry, fanout, suite.cache)

	// The cache is incidental here: always miss, accept every write.
	suite.cache.On("GetPackage", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	suite.cache.On("SetPackage", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	suite.cache.On("DeletePackage", mock.Anything, mock.Anything).Return(nil).Maybe()
}

func (suite *CatalogServiceTestSuite) TearDownTest() {
	suite.packages.AssertExpectations(suite.T())
	suite.mappings.AssertExpectations(suite.T())
	suite.cache.AssertExpectations(suite.T())
}

func TestCatalogServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceTestSuite))
}

// enroll wires one dealer into the fleet: a scripted handle behind the
// opener plus a mapping lookup. updateRows is what the dealer's copy
// update reports, 0 meaning the dealer never opted into the package.
func (suite *CatalogServiceTestSuite) enroll(dealerID uuid.UUID, updateRows int64) *scriptedHandle {
	h := &scriptedHandle{name: tenancy.TenantDatabaseName(dealerID), updateRows: updateRows}
	suite.opener.add(dealerID, h)
	suite.mappings.On("GetByDealerID", mock.Anything, dealerID).Return(activeMappingFor(dealerID), nil).Maybe()
	return h
}

func (suite *CatalogServiceTestSuite) activeFleet(dealerIDs ...uuid.UUID) {
	ms := make([]*models.DealerDatabaseMapping, 0, len(dealerIDs))
	for _, id := range dealerIDs {
		ms = append(ms, activeMappingFor(id))
	}
	suite.mappings.On("ListActive", mock.Anything).Return(ms, nil).Once()
}

// existsRow scripts the single-column EXISTS probe.
func existsRow(exists bool) func(sql string, args []any) pgx.Row {
	return func(sql string, args []any) pgx.Row {
		return stubRow{scan: func(dest ...any) error {
			if b, ok := dest[0].(*bool); ok {
				*b = exists
			}
			return nil
		}}
	}
}

func (suite *CatalogServiceTestSuite) TestUpdatePackage_PushesOnlyToOptedInDealers() {
	pkg := testhelpers.NewPackage()
	handleA := suite.enroll(suite.dealerA, 1)
	handleB := suite.enroll(suite.dealerB, 0)
	suite.activeFleet(suite.dealerA, suite.dealerB)

	suite.packages.On("GetByID", mock.Anything, pkg.ID).Return(pkg, nil).Once()
	suite.packages.On("Update", mock.Anything, pkg).Return(nil).Once()

	report, err := suite.service.UpdatePackage(suite.context, pkg)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, report.Updated)
	assert.Equal(suite.T(), 1, report.Skipped)
	assert.Equal(suite.T(), 0, report.Failed)

	// Both dealers were probed with the copy update; only A had a copy.
	assert.Len(suite.T(), handleA.executed(), 1)
	assert.Len(suite.T(), handleB.executed(), 1)
}

func (suite *CatalogServiceTestSuite) TestUpdatePackage_NeverTouchesDealerPricing() {
	pkg := testhelpers.NewPackage()
	handleA := suite.enroll(suite.dealerA, 1)
	suite.activeFleet(suite.dealerA)

	suite.packages.On("GetByID", mock.Anything, pkg.ID).Return(pkg, nil).Once()
	suite.packages.On("Update", mock.Anything, pkg).Return(nil).Once()

	_, err := suite.service.UpdatePackage(suite.context, pkg)
	require.NoError(suite.T(), err)

	execs := handleA.executed()
	require.Len(suite.T(), execs, 1)
	assert.Contains(suite.T(), execs[0].SQL, "UPDATE warranty_packages")
	assert.NotContains(suite.T(), execs[0].SQL, "dealer_cost")
	assert.NotContains(suite.T(), execs[0].SQL, "retail_price")
}

func (suite *CatalogServiceTestSuite) TestUpdatePackage_NilItemsLeaveDealerItemsAlone() {
	pkg := testhelpers.NewPackage()
	handleA := suite.enroll(suite.dealerA, 1)
	suite.activeFleet(suite.dealerA)

	suite.packages.On("GetByID", mock.Anything, pkg.ID).Return(pkg, nil).Once()
	suite.packages.On("Update", mock.Anything, pkg).Return(nil).Once()

	report, err := suite.service.UpdatePackage(suite.context, pkg)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, report.Updated)

	for _, ex := range handleA.executed() {
		assert.NotContains(suite.T(), ex.SQL, "package_items")
	}
	suite.packages.AssertNotCalled(suite.T(), "ReplaceItems", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *CatalogServiceTestSuite) TestUpdatePackage_SuppliedItemsReplaceOptedInCopies() {
	limit := 5000.0
	pkg := testhelpers.NewPackage()
	pkg.Items = []*models.PackageItem{
		{Name: "Engine", CoverageLimit: &limit},
		{Name: "Transmission"},
	}
	handleA := suite.enroll(suite.dealerA, 1)
	handleB := suite.enroll(suite.dealerB, 0)
	suite.activeFleet(suite.dealerA, suite.dealerB)

	suite.packages.On("GetByID", mock.Anything, pkg.ID).Return(pkg, nil).Once()
	suite.packages.On("Update", mock.Anything, pkg).Return(nil).Once()
	suite.packages.On("ReplaceItems", mock.Anything, pkg.ID, pkg.Items).Return(nil).Once()

	report, err := suite.service.UpdatePackage(suite.context, pkg)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, report.Updated)
	assert.Equal(suite.T(), 1, report.Skipped)

	var deletes, inserts int
	for _, ex := range handleA.executed() {
		if strings.Contains(ex.SQL, "DELETE FROM package_items") {
			deletes++
		}
		if strings.Contains(ex.SQL, "INSERT INTO package_items") {
			inserts++
		}
	}
	assert.Equal(suite.T(), 1, deletes)
	assert.Equal(suite.T(), 2, inserts)

	// The dealer without a copy keeps its item table untouched.
	for _, ex := range handleB.executed() {
		assert.NotContains(suite.T(), ex.SQL, "package_items")
	}
}

func (suite *CatalogServiceTestSuite) TestUpdatePackage_FailedDealerNeverBlocksSiblings() {
	pkg := testhelpers.NewPackage()
	handleA := suite.enroll(suite.dealerA, 1)
	handleB := suite.enroll(suite.dealerB, 1)
	handleB.failExecs(errors.New("write refused"))
	handleC := suite.enroll(suite.dealerC, 1)
	suite.activeFleet(suite.dealerA, suite.dealerB, suite.dealerC)

	suite.packages.On("GetByID", mock.Anything, pkg.ID).Return(pkg, nil).Once()
	suite.packages.On("Update", mock.Anything, pkg).Return(nil).Once()

	report, err := suite.service.UpdatePackage(suite.context, pkg)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, report.Updated)
	assert.Equal(suite.T(), 0, report.Skipped)
	assert.Equal(suite.T(), 1, report.Failed)

	assert.NotEmpty(suite.T(), handleA.executed())
	assert.NotEmpty(suite.T(), handleC.executed())
}

func (suite *CatalogServiceTestSuite) TestUpdatePackage_UnreachableDealerCountsAsFailed() {
	pkg := testhelpers.NewPackage()
	handleA := suite.enroll(suite.dealerA, 1)
	suite.opener.refuseDealer(suite.dealerB, errors.New("connection refused"))
	suite.mappings.On("GetByDealerID", mock.Anything, suite.dealerB).Return(activeMappingFor(suite.dealerB), nil).Maybe()
	suite.activeFleet(suite.dealerA, suite.dealerB)

	suite.packages.On("GetByID", mock.Anything, pkg.ID).Return(pkg, nil).Once()
	suite.packages.On("Update", mock.Anything, pkg).Return(nil).Once()

	report, err := suite.service.UpdatePackage(suite.context, pkg)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, report.Updated)
	assert.Equal(suite.T(), 1, report.Failed)
	assert.NotEmpty(suite.T(), handleA.executed())
}

func (suite *CatalogServiceTestSuite) TestUpdatePackage_UnknownPackage() {
	pkg := testhelpers.NewPackage()
	suite.packages.On("GetByID", mock.Anything, pkg.ID).Return(nil, pgx.ErrNoRows).Once()

	report, err := suite.service.UpdatePackage(suite.context, pkg)
	assert.ErrorIs(suite.T(), err, ErrPackageNotFound)
	assert.Nil(suite.T(), report)
}

func (suite *CatalogServiceTestSuite) TestRetirePackage_FlipsStatusEverywhere() {
	pkg := testhelpers.NewPackage()
	handleA := suite.enroll(suite.dealerA, 1)
	suite.activeFleet(suite.dealerA)

	suite.packages.On("GetByID", mock.Anything, pkg.ID).Return(pkg, nil).Once()
	suite.packages.On("Update", mock.Anything, mock.MatchedBy(func(p *models.WarrantyPackage) bool {
		return p.ID == pkg.ID && p.Status == string(models.PackageStatusRetired)
	})).Return(nil).Once()

	report, err := suite.service.RetirePackage(suite.context, pkg.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, report.Updated)
	assert.Len(suite.T(), handleA.executed(), 1)
}

func (suite *CatalogServiceTestSuite) TestAssignToDealer_CopiesWithNegotiatedPricing() {
	limit := 4000.0
	pkg := testhelpers.NewPackage()
	creator := uuid.New()
	pkg.CreatedBy = &creator
	pkg.Items = []*models.PackageItem{
		{Name: "Engine", CoverageLimit: &limit},
		{Name: "Transmission"},
	}

	handle := suite.enroll(suite.dealerA, 0)
	handle.queryRow = existsRow(false)
	suite.packages.On("GetByID", mock.Anything, pkg.ID).Return(pkg, nil).Once()

	err := suite.service.AssignToDealer(suite.context, suite.dealerA, pkg.ID, 500, 999)
	require.NoError(suite.T(), err)

	execs := handle.executed()
	var copyInsert *scriptedExec
	var itemInserts int
	for i := range execs {
		if strings.Contains(execs[i].SQL, "INSERT INTO warranty_packages") {
			copyInsert = &execs[i]
		}
		if strings.Contains(execs[i].SQL, "INSERT INTO package_items") {
			itemInserts++
		}
	}
	require.NotNil(suite.T(), copyInsert, "dealer copy was never inserted")
	assert.Equal(suite.T(), pkg.ID, copyInsert.Args[0])
	assert.Equal(suite.T(), 500.0, copyInsert.Args[5])
	assert.Equal(suite.T(), 999.0, copyInsert.Args[6])
	assert.Equal(suite.T(), 2, itemInserts)
}

func (suite *CatalogServiceTestSuite) TestAssignToDealer_RejectsSecondAssignment() {
	pkg := testhelpers.NewPackage()
	handle := suite.enroll(suite.dealerA, 0)
	handle.queryRow = existsRow(true)
	suite.packages.On("GetByID", mock.Anything, pkg.ID).Return(pkg, nil).Once()

	err := suite.service.AssignToDealer(suite.context, suite.dealerA, pkg.ID, 500, 999)
	assert.ErrorIs(suite.T(), err, ErrPackageAssigned)
	assert.Empty(suite.T(), handle.executed())
}

func (suite *CatalogServiceTestSuite) TestSetLocalPricing_WritesOnlyPricingColumns() {
	handle := suite.enroll(suite.dealerA, 0)
	handle.queryRow = existsRow(true)

	d := tenancy.Decision{Scope: tenancy.ScopeTenant, DealerID: suite.dealerA}
	err := suite.service.SetLocalPricing(suite.context, d, uuid.New(), 500, 999)
	require.NoError(suite.T(), err)

	execs := handle.executed()
	require.Len(suite.T(), execs, 1)
	assert.Contains(suite.T(), execs[0].SQL, "dealer_cost")
	assert.Contains(suite.T(), execs[0].SQL, "retail_price")
}

func (suite *CatalogServiceTestSuite) TestSetLocalPricing_MasterScopeRejected() {
	err := suite.service.SetLocalPricing(suite.context, tenancy.Decision{Scope: tenancy.ScopeMaster}, uuid.New(), 500, 999)
	assert.Error(suite.T(), err)
}

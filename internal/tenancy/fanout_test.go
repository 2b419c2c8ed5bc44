package tenancy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"warrantyhub/internal/config"
	"warrantyhub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type FanOutTestSuite struct {
	suite.Suite
	mappings *MockMappingRepository
	opener   *fakeOpener
	master   *fakeHandle
	registry *Registry
	fanout   *FanOut
	dealerA  uuid.UUID
	dealerB  uuid.UUID
	context  context.Context
}

func (suite *FanOutTestSuite) SetupTest() {
	suite.mappings = &MockMappingRepository{}
	suite.mappings.Test(suite.T())
	suite.opener = &fakeOpener{}
	suite.master = &fakeHandle{name: "master"}
	suite.dealerA = uuid.New()
	suite.dealerB = uuid.New()
	suite.context = context.Background()

	dbCfg := config.DBConfig{
		Host: "localhost", Port: "5432", User: "postgres", Password: "postgres", SSLMode: "disable",
	}
	regCfg := config.RegistryConfig{ResolveTimeout: time.Second, ProbeTimeout: time.Second}
	suite.registry = NewRegistry(suite.master, suite.mappings, dbCfg, regCfg, suite.opener.open)
	suite.fanout = NewFanOut(suite.registry, suite.mappings, config.FanOutConfig{Concurrency: 4, BranchTimeout: time.Second})
}

func (suite *FanOutTestSuite) TearDownTest() {
	suite.mappings.AssertExpectations(suite.T())
}

func TestFanOutTestSuite(t *testing.T) {
	suite.Run(t, new(FanOutTestSuite))
}

func (suite *FanOutTestSuite) mappingFor(dealerID uuid.UUID) *models.DealerDatabaseMapping {
	return &models.DealerDatabaseMapping{
		ID:           uuid.New(),
		DealerID:     dealerID,
		DatabaseName: TenantDatabaseName(dealerID),
		Status:       string(models.MappingStatusActive),
	}
}

func (suite *FanOutTestSuite) allowResolves() {
	suite.mappings.On("GetByDealerID", mock.Anything, suite.dealerA).Return(suite.mappingFor(suite.dealerA), nil).Maybe()
	suite.mappings.On("GetByDealerID", mock.Anything, suite.dealerB).Return(suite.mappingFor(suite.dealerB), nil).Maybe()
}

func (suite *FanOutTestSuite) sources() []Source {
	return []Source{MasterSource, {DealerID: suite.dealerA}, {DealerID: suite.dealerB}}
}

func (suite *FanOutTestSuite) TestTargets_MasterFirstThenActiveMappings() {
	suite.mappings.On("ListActive", mock.Anything).Return([]*models.DealerDatabaseMapping{
		suite.mappingFor(suite.dealerA),
		suite.mappingFor(suite.dealerB),
	}, nil).Once()

	targets, err := suite.fanout.Targets(suite.context)
	assert.NoError(suite.T(), err)
	if assert.Len(suite.T(), targets, 3) {
		assert.True(suite.T(), targets[0].IsMaster())
		assert.Equal(suite.T(), suite.dealerA, targets[1].DealerID)
		assert.Equal(suite.T(), suite.dealerB, targets[2].DealerID)
	}
}

func (suite *FanOutTestSuite) TestTenantTargets_ExcludesMaster() {
	suite.mappings.On("ListActive", mock.Anything).Return([]*models.DealerDatabaseMapping{
		suite.mappingFor(suite.dealerA),
	}, nil).Once()

	targets, err := suite.fanout.TenantTargets(suite.context)
	assert.NoError(suite.T(), err)
	if assert.Len(suite.T(), targets, 1) {
		assert.False(suite.T(), targets[0].IsMaster())
	}
}

func (suite *FanOutTestSuite) TestCollect_MergesInSourceOrderAndToleratesFailure() {
	suite.allowResolves()

	got := Collect(suite.context, suite.fanout, suite.sources(), func(ctx context.Context, src Source, h Handle) ([]string, error) {
		switch {
		case src.IsMaster():
			return []string{"master-1"}, nil
		case src.DealerID == suite.dealerA:
			return nil, errors.New("connection reset by peer")
		default:
			return []string{"b-1", "b-2"}, nil
		}
	})

	assert.Equal(suite.T(), []string{"master-1", "b-1", "b-2"}, got)
}

func (suite *FanOutTestSuite) TestCollect_HonorsConcurrencyBound() {
	fan := NewFanOut(suite.registry, suite.mappings, config.FanOutConfig{Concurrency: 2, BranchTimeout: time.Second})

	// All-master sources keep the test free of tenant resolution.
	sources := make([]Source, 6)

	var inflight, peak int32
	Collect(suite.context, fan, sources, func(ctx context.Context, src Source, h Handle) ([]int, error) {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return nil, nil
	})

	assert.LessOrEqual(suite.T(), atomic.LoadInt32(&peak), int32(2))
}

func (suite *FanOutTestSuite) TestEach_CountsOutcomes() {
	suite.allowResolves()

	report := suite.fanout.Each(suite.context, suite.sources(), func(ctx context.Context, src Source, h Handle) error {
		if src.DealerID == suite.dealerA {
			return errors.New("deadlock detected")
		}
		return nil
	})

	assert.Equal(suite.T(), Report{Succeeded: 2, Failed: 1}, report)
}

func (suite *FanOutTestSuite) TestEach_PanicNeverKillsSiblings() {
	suite.allowResolves()

	report := suite.fanout.Each(suite.context, suite.sources(), func(ctx context.Context, src Source, h Handle) error {
		if src.DealerID == suite.dealerB {
			panic("nil row")
		}
		return nil
	})

	assert.Equal(suite.T(), Report{Succeeded: 2, Failed: 1}, report)
}

func (suite *FanOutTestSuite) TestEach_UnreachableTenantIsCountedNotFatal() {
	suite.mappings.On("GetByDealerID", mock.Anything, suite.dealerA).Return(nil, errors.New("mapping query timeout")).Once()
	suite.mappings.On("GetByDealerID", mock.Anything, suite.dealerB).Return(suite.mappingFor(suite.dealerB), nil).Once()

	var touched int32
	report := suite.fanout.Each(suite.context, suite.sources(), func(ctx context.Context, src Source, h Handle) error {
		atomic.AddInt32(&touched, 1)
		return nil
	})

	assert.Equal(suite.T(), Report{Succeeded: 2, Failed: 1}, report)
	assert.Equal(suite.T(), int32(2), atomic.LoadInt32(&touched), "the broken branch never reaches fn")
}

func (suite *FanOutTestSuite) TestFirst_StopsAtFirstHit() {
	suite.allowResolves()

	var mu sync.Mutex
	var visited []string
	out, found := First(suite.context, suite.fanout, suite.sources(), func(ctx context.Context, src Source, h Handle) (string, bool, error) {
		mu.Lock()
		visited = append(visited, src.String())
		mu.Unlock()
		if src.DealerID == suite.dealerA {
			return "customer-in-a", true, nil
		}
		return "", false, nil
	})

	assert.True(suite.T(), found)
	assert.Equal(suite.T(), "customer-in-a", out)
	assert.Equal(suite.T(), []string{"master", suite.dealerA.String()}, visited, "the scan must stop at the hit")
}

func (suite *FanOutTestSuite) TestFirst_MasterHitNeverScansTenants() {
	var mu sync.Mutex
	var visited []string
	out, found := First(suite.context, suite.fanout, suite.sources(), func(ctx context.Context, src Source, h Handle) (string, bool, error) {
		mu.Lock()
		visited = append(visited, src.String())
		mu.Unlock()
		return "unassigned-customer", src.IsMaster(), nil
	})

	assert.True(suite.T(), found)
	assert.Equal(suite.T(), "unassigned-customer", out)
	assert.Equal(suite.T(), []string{"master"}, visited)
	assert.Equal(suite.T(), 0, suite.opener.openCount(), "no tenant pool may be dialed after a master hit")
}

func (suite *FanOutTestSuite) TestFirst_SkipsFailingPartitionAndKeepsScanning() {
	suite.allowResolves()

	out, found := First(suite.context, suite.fanout, suite.sources(), func(ctx context.Context, src Source, h Handle) (string, bool, error) {
		switch {
		case src.IsMaster():
			return "", false, errors.New("statement timeout")
		case src.DealerID == suite.dealerB:
			return "customer-in-b", true, nil
		default:
			return "", false, nil
		}
	})

	assert.True(suite.T(), found)
	assert.Equal(suite.T(), "customer-in-b", out)
}

func (suite *FanOutTestSuite) TestFirst_MissEverywhere() {
	suite.allowResolves()

	_, found := First(suite.context, suite.fanout, suite.sources(), func(ctx context.Context, src Source, h Handle) (string, bool, error) {
		return "", false, nil
	})

	assert.False(suite.T(), found)
}

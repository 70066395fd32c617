package services

import (
	"context"
	"testing"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectFromOrders_SplitsByProjectPercentages(t *testing.T) {
	project := &models.Project{ID: 1, PctPrograma: 70, PctConcurrente: 30}
	activities := []models.Activity{{ID: 10, StageID: 1}}
	orders := []models.PurchaseOrder{
		{ID: 1, ProjectID: 1, ActivityID: uintPtr(10), RubroID: uintPtr(100),
			Status: models.PurchaseStatusDone, Currency: "MXN", Amount: 1000},
		{ID: 2, ProjectID: 1, ActivityID: uintPtr(10), RubroID: uintPtr(100),
			Status: models.PurchaseStatusPurchase, Currency: "MXN", Amount: 500},
	}

	data := CollectFromOrders(project, activities, orders, "MXN")

	assert.InDelta(t, 1050.0, data.Project.Programa, 0.001)
	assert.InDelta(t, 450.0, data.Project.Concurrente, 0.001)
	assert.InDelta(t, 1500.0, data.Project.Total, 0.001)

	line := data.Line[LineKey{ActivityID: 10, RubroID: 100}]
	assert.InDelta(t, 1050.0, line.Programa, 0.001)
	assert.InDelta(t, 450.0, line.Concurrente, 0.001)

	assert.InDelta(t, 1500.0, data.Activity[10].Total, 0.001)
	assert.InDelta(t, 1500.0, data.Stage[1].Total, 0.001)
}

func TestCollectFromOrders_OnlyConfirmedStatesCount(t *testing.T) {
	project := &models.Project{ID: 1, PctPrograma: 50, PctConcurrente: 50}
	orders := []models.PurchaseOrder{
		{ID: 1, ProjectID: 1, Status: models.PurchaseStatusDraft, Currency: "MXN", Amount: 100},
		{ID: 2, ProjectID: 1, Status: models.PurchaseStatusSent, Currency: "MXN", Amount: 100},
		{ID: 3, ProjectID: 1, Status: models.PurchaseStatusCancelled, Currency: "MXN", Amount: 100},
		{ID: 4, ProjectID: 1, Status: models.PurchaseStatusDone, Currency: "MXN", Amount: 100},
	}

	data := CollectFromOrders(project, nil, orders, "MXN")

	assert.InDelta(t, 100.0, data.Project.Total, 0.001)
}

func TestCollectFromOrders_ForeignCurrencyNeedsMXNAmount(t *testing.T) {
	project := &models.Project{ID: 1, PctPrograma: 50, PctConcurrente: 50}
	orders := []models.PurchaseOrder{
		// No MXN equivalent registered yet, excluded from execution.
		{ID: 1, ProjectID: 1, Status: models.PurchaseStatusDone, Currency: "USD", Amount: 100},
		{ID: 2, ProjectID: 1, Status: models.PurchaseStatusDone, Currency: "USD", Amount: 100, AmountMXN: 1800},
	}

	data := CollectFromOrders(project, nil, orders, "MXN")

	assert.InDelta(t, 1800.0, data.Project.Total, 0.001)
}

func TestCollectFromOrders_StageFallsBackToActivity(t *testing.T) {
	project := &models.Project{ID: 1, PctPrograma: 60, PctConcurrente: 40}
	activities := []models.Activity{{ID: 10, StageID: 3}}
	orders := []models.PurchaseOrder{
		{ID: 1, ProjectID: 1, ActivityID: uintPtr(10),
			Status: models.PurchaseStatusDone, Currency: "MXN", Amount: 200},
	}

	data := CollectFromOrders(project, activities, orders, "MXN")

	assert.InDelta(t, 200.0, data.Stage[3].Total, 0.001)

	// An explicit stage on the order wins over the activity's stage.
	orders[0].StageID = uintPtr(7)
	data = CollectFromOrders(project, activities, orders, "MXN")
	assert.InDelta(t, 200.0, data.Stage[7].Total, 0.001)
	assert.InDelta(t, 0.0, data.Stage[3].Total, 0.001)
}

func TestCollectFromOrders_RubroWithoutActivityHasNoLineBucket(t *testing.T) {
	project := &models.Project{ID: 1, PctPrograma: 50, PctConcurrente: 50}
	orders := []models.PurchaseOrder{
		{ID: 1, ProjectID: 1, StageID: uintPtr(1), RubroID: uintPtr(100),
			Status: models.PurchaseStatusDone, Currency: "MXN", Amount: 300},
	}

	data := CollectFromOrders(project, nil, orders, "MXN")

	assert.InDelta(t, 300.0, data.Project.Total, 0.001)
	assert.InDelta(t, 300.0, data.Stage[1].Total, 0.001)
	assert.Empty(t, data.Line)
	assert.Empty(t, data.Activity)
}

// Recording fakes capturing what SyncProject persists per level.

type syncProjectRepo struct {
	repository.ProjectRepository
	project models.Project
	saved   *models.Project
}

func (m *syncProjectRepo) FindByID(ctx context.Context, id uint) (*models.Project, error) {
	p := m.project
	return &p, nil
}

func (m *syncProjectRepo) Update(ctx context.Context, project *models.Project) error {
	saved := *project
	m.saved = &saved
	return nil
}

type syncStageRepo struct {
	repository.StageRepository
	stages []models.Stage
	saved  map[uint]models.Stage
}

func (m *syncStageRepo) FindByProject(ctx context.Context, projectID uint) ([]models.Stage, error) {
	return m.stages, nil
}

func (m *syncStageRepo) Update(ctx context.Context, stage *models.Stage) error {
	m.saved[stage.ID] = *stage
	return nil
}

type syncActivityRepo struct {
	repository.ActivityRepository
	activities []models.Activity
	saved      map[uint]models.Activity
}

func (m *syncActivityRepo) FindByProject(ctx context.Context, projectID uint) ([]models.Activity, error) {
	return m.activities, nil
}

func (m *syncActivityRepo) Update(ctx context.Context, activity *models.Activity) error {
	m.saved[activity.ID] = *activity
	return nil
}

type syncLineRepo struct {
	repository.BudgetLineRepository
	lines []models.BudgetLine
	saved map[uint]models.BudgetLine
}

func (m *syncLineRepo) FindByProject(ctx context.Context, projectID uint) ([]models.BudgetLine, error) {
	return m.lines, nil
}

func (m *syncLineRepo) Update(ctx context.Context, line *models.BudgetLine) error {
	m.saved[line.ID] = *line
	return nil
}

func TestSyncProject_BinaryLightsAboveLineLevel(t *testing.T) {
	logger.Setup("test")

	projectRepo := &syncProjectRepo{project: models.Project{
		ID: 1, Code: "PROJ-001", Currency: "MXN",
		PctPrograma: 50, PctConcurrente: 50,
		AssignedPrograma: 400, AssignedConcurrente: 400, AssignedTotal: 800,
	}}
	stageRepo := &syncStageRepo{
		stages: []models.Stage{{
			ID: 1, ProjectID: 1, Name: "Etapa 1",
			AssignedPrograma: 500, AssignedConcurrente: 500, AssignedTotal: 1000,
		}},
		saved: map[uint]models.Stage{},
	}
	activityRepo := &syncActivityRepo{
		activities: []models.Activity{{ID: 10, StageID: 1}},
		saved:      map[uint]models.Activity{},
	}
	lineRepo := &syncLineRepo{
		lines: []models.BudgetLine{
			{ID: 1, ActivityID: 10, RubroID: 100, StageID: 1,
				Rubro: models.Rubro{ID: 100, Name: "Equipo"}},
			{ID: 2, ActivityID: 10, RubroID: 200, StageID: 1,
				AssignedPrograma: 500, AssignedConcurrente: 500, AssignedTotal: 1000,
				Rubro: models.Rubro{ID: 200, Name: "Materiales"}},
		},
		saved: map[uint]models.BudgetLine{},
	}
	orderRepo := &fakeOrderRepo{orders: []models.PurchaseOrder{
		{ID: 1, ProjectID: 1, ActivityID: uintPtr(10), RubroID: uintPtr(100),
			Status: models.PurchaseStatusDone, Currency: "MXN", Amount: 50},
	}}

	svc := NewExecutionService(projectRepo, stageRepo, activityRepo, lineRepo,
		orderRepo, &fakeTransferRepo{}, nil, "MXN")

	require.NoError(t, svc.SyncProject(context.Background(), 1))

	// The unallocated line spent money, so it alone goes orange.
	assert.Equal(t, models.TrafficLightOrange, lineRepo.saved[1].TrafficLight)
	assert.Equal(t, models.TrafficLightGreen, lineRepo.saved[2].TrafficLight)

	// Above line level the comparison is aggregated execution against
	// aggregated allocation, so the activity stays green.
	activity := activityRepo.saved[10]
	assert.Equal(t, models.TrafficLightGreen, activity.TrafficLight)
	assert.InDelta(t, 1000.0, activity.AssignedTotal, 0.001)
	assert.InDelta(t, 50.0, activity.ExecutedTotal, 0.001)

	// Stage allocation is an input, never recomputed from children.
	stage := stageRepo.saved[1]
	assert.Equal(t, models.TrafficLightGreen, stage.TrafficLight)
	assert.InDelta(t, 1000.0, stage.AssignedTotal, 0.001)
	assert.Empty(t, stage.InconsistencyMsg)

	// Stages exceed the project total, which warns without blocking.
	project := projectRepo.saved
	require.NotNil(t, project)
	assert.Equal(t, models.TrafficLightGreen, project.TrafficLight)
	assert.InDelta(t, 800.0, project.AssignedTotal, 0.001)
	assert.NotEmpty(t, project.InconsistencyMsg)
}

func TestSyncProject_AggregateOverExecutionGoesOrange(t *testing.T) {
	logger.Setup("test")

	projectRepo := &syncProjectRepo{project: models.Project{
		ID: 1, Code: "PROJ-001", Currency: "MXN",
		PctPrograma: 50, PctConcurrente: 50,
		AssignedPrograma: 50, AssignedConcurrente: 50, AssignedTotal: 100,
	}}
	stageRepo := &syncStageRepo{
		stages: []models.Stage{{
			ID: 1, ProjectID: 1, Name: "Etapa 1",
			AssignedPrograma: 50, AssignedConcurrente: 50, AssignedTotal: 100,
		}},
		saved: map[uint]models.Stage{},
	}
	activityRepo := &syncActivityRepo{
		activities: []models.Activity{{ID: 10, StageID: 1}},
		saved:      map[uint]models.Activity{},
	}
	lineRepo := &syncLineRepo{
		lines: []models.BudgetLine{
			{ID: 1, ActivityID: 10, RubroID: 100, StageID: 1,
				AssignedPrograma: 50, AssignedConcurrente: 50, AssignedTotal: 100,
				Rubro: models.Rubro{ID: 100, Name: "Equipo"}},
		},
		saved: map[uint]models.BudgetLine{},
	}
	orderRepo := &fakeOrderRepo{orders: []models.PurchaseOrder{
		{ID: 1, ProjectID: 1, ActivityID: uintPtr(10), RubroID: uintPtr(100),
			Status: models.PurchaseStatusDone, Currency: "MXN", Amount: 150},
	}}

	svc := NewExecutionService(projectRepo, stageRepo, activityRepo, lineRepo,
		orderRepo, &fakeTransferRepo{}, nil, "MXN")

	require.NoError(t, svc.SyncProject(context.Background(), 1))

	assert.Equal(t, models.TrafficLightOrange, activityRepo.saved[10].TrafficLight)
	assert.Equal(t, models.TrafficLightOrange, stageRepo.saved[1].TrafficLight)
	assert.Equal(t, models.TrafficLightOrange, projectRepo.saved.TrafficLight)
}

func TestCollectFromOrders_IgnoresOtherProjects(t *testing.T) {
	project := &models.Project{ID: 1, PctPrograma: 50, PctConcurrente: 50}
	orders := []models.PurchaseOrder{
		{ID: 1, ProjectID: 2, Status: models.PurchaseStatusDone, Currency: "MXN", Amount: 999},
	}

	data := CollectFromOrders(project, nil, orders, "MXN")

	assert.InDelta(t, 0.0, data.Project.Total, 0.001)
}

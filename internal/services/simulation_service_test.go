package services

import (
	"context"
	"errors"
	"testing"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSimulationRepo struct {
	repository.SimulationRepository
	sims        map[uint]*models.Simulation
	expenses    map[uint]*models.PlannedExpense
	allocations map[uint]*models.SimulationAllocation
	nextID      uint
}

func newFakeSimulationRepo() *fakeSimulationRepo {
	return &fakeSimulationRepo{
		sims:        map[uint]*models.Simulation{},
		expenses:    map[uint]*models.PlannedExpense{},
		allocations: map[uint]*models.SimulationAllocation{},
	}
}

func (m *fakeSimulationRepo) FindByID(ctx context.Context, id uint) (*models.Simulation, error) {
	sim, ok := m.sims[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return sim, nil
}

func (m *fakeSimulationRepo) Create(ctx context.Context, sim *models.Simulation) error {
	m.nextID++
	sim.ID = m.nextID
	m.sims[sim.ID] = sim
	return nil
}

func (m *fakeSimulationRepo) Update(ctx context.Context, sim *models.Simulation) error { return nil }

func (m *fakeSimulationRepo) CreateExpense(ctx context.Context, expense *models.PlannedExpense) error {
	m.nextID++
	expense.ID = m.nextID
	m.expenses[expense.ID] = expense
	return nil
}

func (m *fakeSimulationRepo) FindExpenseByID(ctx context.Context, id uint) (*models.PlannedExpense, error) {
	e, ok := m.expenses[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return e, nil
}

func (m *fakeSimulationRepo) UpdateExpense(ctx context.Context, expense *models.PlannedExpense) error {
	return nil
}

func (m *fakeSimulationRepo) CreateAllocation(ctx context.Context, alloc *models.SimulationAllocation) error {
	m.nextID++
	alloc.ID = m.nextID
	m.allocations[alloc.ID] = alloc
	return nil
}

func (m *fakeSimulationRepo) FindAllocationByID(ctx context.Context, id uint) (*models.SimulationAllocation, error) {
	a, ok := m.allocations[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return a, nil
}

func (m *fakeSimulationRepo) DeleteAllocation(ctx context.Context, id uint) error {
	delete(m.allocations, id)
	return nil
}

func (m *fakeSimulationRepo) AllocatedByExpense(ctx context.Context, expenseID uint) (float64, error) {
	var total float64
	for _, a := range m.allocations {
		if a.PlannedExpenseID == expenseID {
			total += a.Amount
		}
	}
	return total, nil
}

func (m *fakeSimulationRepo) PlannedByLine(ctx context.Context, simulationID uint) (map[uint]float64, error) {
	planned := map[uint]float64{}
	for _, a := range m.allocations {
		if e, ok := m.expenses[a.PlannedExpenseID]; ok && e.SimulationID == simulationID {
			planned[a.BudgetLineID] += a.Amount
		}
	}
	return planned, nil
}

func newSimulationFixture() (*SimulationService, *fakeSimulationRepo) {
	repo := newFakeSimulationRepo()
	project := &models.Project{ID: 1, Code: "PROJ-001", PctPrograma: 70, PctConcurrente: 30}
	line := &models.BudgetLine{
		ID: 1, ActivityID: 10, RubroID: 100, StageID: 1,
		Rubro:         models.Rubro{ID: 100, Name: "Materiales"},
		AssignedTotal: 500, ExecutedTotal: 400,
	}
	lineRepo := &fakeLineRepo{lines: map[uint]*models.BudgetLine{1: line}}
	svc := NewSimulationService(repo, &fakeProjectRepo{project: project}, lineRepo, nil)
	return svc, repo
}

func TestSimulationService_AllocationStatusProgression(t *testing.T) {
	svc, _ := newSimulationFixture()
	ctx := context.Background()

	sim, err := svc.Create(ctx, &models.Simulation{ProjectID: 1, Name: "Plan Q4"}, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SimulationStatusDraft, sim.Status)

	expense, err := svc.AddExpense(ctx, &models.PlannedExpense{SimulationID: sim.ID, Name: "Reactivos", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, models.AllocationStatusNone, expense.AllocationStatus)

	expense, err = svc.Allocate(ctx, expense.ID, 1, 40)
	require.NoError(t, err)
	assert.Equal(t, models.AllocationStatusPartial, expense.AllocationStatus)

	expense, err = svc.Allocate(ctx, expense.ID, 1, 60)
	require.NoError(t, err)
	assert.Equal(t, models.AllocationStatusFull, expense.AllocationStatus)

	expense, err = svc.Allocate(ctx, expense.ID, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, models.AllocationStatusOver, expense.AllocationStatus)
}

func TestSimulationService_OverviewSurfacesOverAllocation(t *testing.T) {
	svc, _ := newSimulationFixture()
	ctx := context.Background()

	sim, err := svc.Create(ctx, &models.Simulation{ProjectID: 1, Name: "Plan Q4"}, 1)
	require.NoError(t, err)

	expense, err := svc.AddExpense(ctx, &models.PlannedExpense{SimulationID: sim.ID, Name: "Reactivos", Amount: 150})
	require.NoError(t, err)

	// The line only has 100 remaining; planning past it is allowed.
	_, err = svc.Allocate(ctx, expense.ID, 1, 150)
	require.NoError(t, err)

	plans, err := svc.Overview(ctx, sim.ID)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	plan := plans[0]
	assert.Equal(t, uint(1), plan.BudgetLineID)
	assert.InDelta(t, 100.0, plan.Remaining, 0.001)
	assert.InDelta(t, 150.0, plan.Planned, 0.001)
	assert.InDelta(t, -50.0, plan.AfterPlanning, 0.001)
	assert.True(t, plan.OverAllocated)
}

func TestSimulationService_ClosedSimulationRejectsChanges(t *testing.T) {
	svc, repo := newSimulationFixture()
	ctx := context.Background()

	sim, err := svc.Create(ctx, &models.Simulation{ProjectID: 1, Name: "Plan Q4"}, 1)
	require.NoError(t, err)
	repo.sims[sim.ID].Status = models.SimulationStatusClosed

	_, err = svc.AddExpense(ctx, &models.PlannedExpense{SimulationID: sim.ID, Name: "Reactivos", Amount: 100})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.Update(ctx, sim.ID, "Otro nombre", "", 1)
	require.ErrorAs(t, err, &verr)
}

func TestSimulationService_SetStatusValidation(t *testing.T) {
	svc, _ := newSimulationFixture()
	ctx := context.Background()

	sim, err := svc.Create(ctx, &models.Simulation{ProjectID: 1, Name: "Plan Q4"}, 1)
	require.NoError(t, err)

	updated, err := svc.SetStatus(ctx, sim.ID, models.SimulationStatusActive, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SimulationStatusActive, updated.Status)

	_, err = svc.SetStatus(ctx, sim.ID, "archived", 1)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

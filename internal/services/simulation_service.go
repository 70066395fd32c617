package services

import (
	"context"
	"fmt"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
)

// SimulationService runs the planning sandbox. Simulations read the
// live remaining balances but never write back to budget lines.
type SimulationService struct {
	repo        repository.SimulationRepository
	projectRepo repository.ProjectRepository
	lineRepo    repository.BudgetLineRepository
	auditSvc    *AuditService
}

// NewSimulationService creates a new simulation service
func NewSimulationService(
	repo repository.SimulationRepository,
	projectRepo repository.ProjectRepository,
	lineRepo repository.BudgetLineRepository,
	auditSvc *AuditService,
) *SimulationService {
	return &SimulationService{
		repo:        repo,
		projectRepo: projectRepo,
		lineRepo:    lineRepo,
		auditSvc:    auditSvc,
	}
}

func (s *SimulationService) FindByID(ctx context.Context, id uint) (*models.Simulation, error) {
	sim, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return sim, nil
}

func (s *SimulationService) FindByProject(ctx context.Context, projectID uint) ([]models.Simulation, error) {
	return s.repo.FindByProject(ctx, projectID)
}

func (s *SimulationService) Create(ctx context.Context, sim *models.Simulation, actorID uint) (*models.Simulation, error) {
	if _, err := s.projectRepo.FindByID(ctx, sim.ProjectID); err != nil {
		return nil, NewValidationError("el proyecto indicado no existe")
	}
	if sim.Name == "" {
		return nil, NewValidationError("el nombre de la simulación es obligatorio")
	}
	sim.Status = models.SimulationStatusDraft
	if actorID != 0 {
		sim.CreatedByID = &actorID
	}
	if err := s.repo.Create(ctx, sim); err != nil {
		return nil, err
	}
	s.auditSvc.Log(ctx, actorID, "CREATE", "Simulation", sim.ID,
		fmt.Sprintf("Simulación %s creada para el proyecto %d", sim.Name, sim.ProjectID), "", "")
	return sim, nil
}

func (s *SimulationService) Update(ctx context.Context, id uint, name, description string, actorID uint) (*models.Simulation, error) {
	sim, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if sim.Status == models.SimulationStatusClosed {
		return nil, NewValidationError("la simulación está cerrada")
	}
	if name != "" {
		sim.Name = name
	}
	sim.Description = description
	if err := s.repo.Update(ctx, sim); err != nil {
		return nil, err
	}
	return sim, nil
}

// SetStatus moves a simulation between draft, active and closed.
func (s *SimulationService) SetStatus(ctx context.Context, id uint, status string, actorID uint) (*models.Simulation, error) {
	switch status {
	case models.SimulationStatusDraft, models.SimulationStatusActive, models.SimulationStatusClosed:
	default:
		return nil, NewValidationError("estado de simulación inválido: %s", status)
	}
	sim, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	sim.Status = status
	if err := s.repo.Update(ctx, sim); err != nil {
		return nil, err
	}
	s.auditSvc.Log(ctx, actorID, "UPDATE", "Simulation", sim.ID,
		fmt.Sprintf("Simulación %s cambió a estado %s", sim.Name, status), "", "")
	return sim, nil
}

func (s *SimulationService) Delete(ctx context.Context, id uint, actorID uint) error {
	sim, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "DELETE", "Simulation", id,
		fmt.Sprintf("Simulación %s eliminada", sim.Name), "", "")
	return nil
}

func (s *SimulationService) AddExpense(ctx context.Context, expense *models.PlannedExpense) (*models.PlannedExpense, error) {
	sim, err := s.repo.FindByID(ctx, expense.SimulationID)
	if err != nil {
		return nil, ErrNotFound
	}
	if sim.Status == models.SimulationStatusClosed {
		return nil, NewValidationError("la simulación está cerrada")
	}
	if expense.Name == "" {
		return nil, NewValidationError("el nombre del gasto planeado es obligatorio")
	}
	if expense.Amount < 0 {
		return nil, NewValidationError("el monto del gasto planeado no puede ser negativo")
	}
	expense.AllocationStatus = models.AllocationStatusNone
	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

func (s *SimulationService) UpdateExpense(ctx context.Context, id uint, name string, amount float64, expectedDate *string) (*models.PlannedExpense, error) {
	expense, err := s.repo.FindExpenseByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if amount < 0 {
		return nil, NewValidationError("el monto del gasto planeado no puede ser negativo")
	}
	if name != "" {
		expense.Name = name
	}
	expense.Amount = amount
	expense.ExpectedDate = expectedDate
	if err := s.repo.UpdateExpense(ctx, expense); err != nil {
		return nil, err
	}
	return s.refreshExpenseStatus(ctx, expense.ID)
}

func (s *SimulationService) DeleteExpense(ctx context.Context, id uint) error {
	if _, err := s.repo.FindExpenseByID(ctx, id); err != nil {
		return ErrNotFound
	}
	return s.repo.DeleteExpense(ctx, id)
}

// AllowOverAllocation is the planning policy for amounts past a line's
// remaining balance: they are accepted, never blocked. The overview
// marks the affected rows instead.
func AllowOverAllocation(line *models.BudgetLine, planned float64) error {
	return nil
}

// Allocate places part of a planned expense against a budget line.
// Going past the expense amount or the line's remaining balance is
// allowed; the status and the overview surface it.
func (s *SimulationService) Allocate(ctx context.Context, expenseID, lineID uint, amount float64) (*models.PlannedExpense, error) {
	expense, err := s.repo.FindExpenseByID(ctx, expenseID)
	if err != nil {
		return nil, ErrNotFound
	}
	line, err := s.lineRepo.FindByID(ctx, lineID)
	if err != nil {
		return nil, NewValidationError("la línea presupuestal indicada no existe")
	}
	if amount <= 0 {
		return nil, NewValidationError("el monto asignado debe ser mayor a cero")
	}
	if err := AllowOverAllocation(line, amount); err != nil {
		return nil, err
	}

	alloc := &models.SimulationAllocation{
		PlannedExpenseID: expense.ID,
		BudgetLineID:     line.ID,
		Amount:           amount,
	}
	if err := s.repo.CreateAllocation(ctx, alloc); err != nil {
		return nil, err
	}
	return s.refreshExpenseStatus(ctx, expense.ID)
}

func (s *SimulationService) UpdateAllocation(ctx context.Context, id uint, amount float64) (*models.PlannedExpense, error) {
	alloc, err := s.repo.FindAllocationByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if amount <= 0 {
		return nil, NewValidationError("el monto asignado debe ser mayor a cero")
	}
	line, err := s.lineRepo.FindByID(ctx, alloc.BudgetLineID)
	if err != nil {
		return nil, NewValidationError("la línea presupuestal indicada no existe")
	}
	if err := AllowOverAllocation(line, amount); err != nil {
		return nil, err
	}
	alloc.Amount = amount
	if err := s.repo.UpdateAllocation(ctx, alloc); err != nil {
		return nil, err
	}
	return s.refreshExpenseStatus(ctx, alloc.PlannedExpenseID)
}

func (s *SimulationService) RemoveAllocation(ctx context.Context, id uint) (*models.PlannedExpense, error) {
	alloc, err := s.repo.FindAllocationByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if err := s.repo.DeleteAllocation(ctx, id); err != nil {
		return nil, err
	}
	return s.refreshExpenseStatus(ctx, alloc.PlannedExpenseID)
}

// LinePlan is one row of the remaining-balance overview.
type LinePlan struct {
	BudgetLineID  uint    `json:"budget_line_id"`
	RubroName     string  `json:"rubro_name"`
	ActivityID    uint    `json:"activity_id"`
	Assigned      float64 `json:"assigned"`
	Executed      float64 `json:"executed"`
	Remaining     float64 `json:"remaining"`
	Planned       float64 `json:"planned"`
	AfterPlanning float64 `json:"after_planning"`
	OverAllocated bool    `json:"over_allocated"`
}

// Overview compares a simulation's planned allocations against the
// live remaining balances of the project's budget lines. Read only.
func (s *SimulationService) Overview(ctx context.Context, simulationID uint) ([]LinePlan, error) {
	sim, err := s.repo.FindByID(ctx, simulationID)
	if err != nil {
		return nil, ErrNotFound
	}
	lines, err := s.lineRepo.FindByProject(ctx, sim.ProjectID)
	if err != nil {
		return nil, err
	}
	planned, err := s.repo.PlannedByLine(ctx, simulationID)
	if err != nil {
		return nil, err
	}

	plans := make([]LinePlan, 0, len(lines))
	for _, line := range lines {
		p := planned[line.ID]
		remaining := line.RemainingTotal()
		plans = append(plans, LinePlan{
			BudgetLineID:  line.ID,
			RubroName:     line.Rubro.Name,
			ActivityID:    line.ActivityID,
			Assigned:      line.AssignedTotal,
			Executed:      line.ExecutedTotal,
			Remaining:     remaining,
			Planned:       p,
			AfterPlanning: remaining - p,
			OverAllocated: p > remaining+models.SplitTolerance,
		})
	}
	return plans, nil
}

func (s *SimulationService) refreshExpenseStatus(ctx context.Context, expenseID uint) (*models.PlannedExpense, error) {
	expense, err := s.repo.FindExpenseByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	allocated, err := s.repo.AllocatedByExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	status := expense.ComputeAllocationStatus(allocated)
	if status != expense.AllocationStatus {
		expense.AllocationStatus = status
		if err := s.repo.UpdateExpense(ctx, expense); err != nil {
			return nil, err
		}
	}
	return expense, nil
}

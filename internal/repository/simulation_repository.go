package repository

import (
	"context"

	"github.com/secihti/budget-api/internal/models"
	"gorm.io/gorm"
)

// SimulationRepository defines the interface for planning data access
type SimulationRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Simulation, error)
	FindByProject(ctx context.Context, projectID uint) ([]models.Simulation, error)
	Create(ctx context.Context, sim *models.Simulation) error
	Update(ctx context.Context, sim *models.Simulation) error
	Delete(ctx context.Context, id uint) error

	FindExpenseByID(ctx context.Context, id uint) (*models.PlannedExpense, error)
	CreateExpense(ctx context.Context, expense *models.PlannedExpense) error
	UpdateExpense(ctx context.Context, expense *models.PlannedExpense) error
	DeleteExpense(ctx context.Context, id uint) error

	FindAllocationByID(ctx context.Context, id uint) (*models.SimulationAllocation, error)
	CreateAllocation(ctx context.Context, alloc *models.SimulationAllocation) error
	UpdateAllocation(ctx context.Context, alloc *models.SimulationAllocation) error
	DeleteAllocation(ctx context.Context, id uint) error
	AllocatedByExpense(ctx context.Context, expenseID uint) (float64, error)
	PlannedByLine(ctx context.Context, simulationID uint) (map[uint]float64, error)
}

type simulationRepository struct {
	db *gorm.DB
}

// NewSimulationRepository creates a new simulation repository
func NewSimulationRepository(db *gorm.DB) SimulationRepository {
	return &simulationRepository{db: db}
}

func (r *simulationRepository) FindByID(ctx context.Context, id uint) (*models.Simulation, error) {
	var sim models.Simulation
	err := r.db.WithContext(ctx).
		Preload("PlannedExpenses", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("PlannedExpenses.Allocations").
		Preload("PlannedExpenses.Allocations.BudgetLine.Rubro").
		First(&sim, id).Error
	if err != nil {
		return nil, err
	}
	return &sim, nil
}

func (r *simulationRepository) FindByProject(ctx context.Context, projectID uint) ([]models.Simulation, error) {
	var sims []models.Simulation
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&sims).Error
	return sims, err
}

func (r *simulationRepository) Create(ctx context.Context, sim *models.Simulation) error {
	return r.db.WithContext(ctx).Create(sim).Error
}

func (r *simulationRepository) Update(ctx context.Context, sim *models.Simulation) error {
	return r.db.WithContext(ctx).Save(sim).Error
}

func (r *simulationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Select("PlannedExpenses", "PlannedExpenses.Allocations").
		Delete(&models.Simulation{ID: id}).Error
}

func (r *simulationRepository) FindExpenseByID(ctx context.Context, id uint) (*models.PlannedExpense, error) {
	var expense models.PlannedExpense
	err := r.db.WithContext(ctx).
		Preload("Allocations").
		Preload("Allocations.BudgetLine.Rubro").
		First(&expense, id).Error
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *simulationRepository) CreateExpense(ctx context.Context, expense *models.PlannedExpense) error {
	return r.db.WithContext(ctx).Create(expense).Error
}

func (r *simulationRepository) UpdateExpense(ctx context.Context, expense *models.PlannedExpense) error {
	return r.db.WithContext(ctx).Save(expense).Error
}

func (r *simulationRepository) DeleteExpense(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Select("Allocations").
		Delete(&models.PlannedExpense{ID: id}).Error
}

func (r *simulationRepository) FindAllocationByID(ctx context.Context, id uint) (*models.SimulationAllocation, error) {
	var alloc models.SimulationAllocation
	err := r.db.WithContext(ctx).
		Preload("BudgetLine").
		First(&alloc, id).Error
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}

func (r *simulationRepository) CreateAllocation(ctx context.Context, alloc *models.SimulationAllocation) error {
	return r.db.WithContext(ctx).Create(alloc).Error
}

func (r *simulationRepository) UpdateAllocation(ctx context.Context, alloc *models.SimulationAllocation) error {
	return r.db.WithContext(ctx).Save(alloc).Error
}

func (r *simulationRepository) DeleteAllocation(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.SimulationAllocation{}, id).Error
}

func (r *simulationRepository) AllocatedByExpense(ctx context.Context, expenseID uint) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&models.SimulationAllocation{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("planned_expense_id = ?", expenseID).
		Scan(&total).Error
	return total, err
}

// PlannedByLine sums planned allocations per budget line across a
// simulation, for the remaining-balance overview.
func (r *simulationRepository) PlannedByLine(ctx context.Context, simulationID uint) (map[uint]float64, error) {
	type row struct {
		BudgetLineID uint
		Total        float64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.SimulationAllocation{}).
		Select("budget_line_id, COALESCE(SUM(amount), 0) AS total").
		Joins("JOIN planned_expenses ON planned_expenses.id = simulation_allocations.planned_expense_id").
		Where("planned_expenses.simulation_id = ?", simulationID).
		Group("budget_line_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	planned := make(map[uint]float64, len(rows))
	for _, r := range rows {
		planned[r.BudgetLineID] = r.Total
	}
	return planned, nil
}

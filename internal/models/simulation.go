package models

import (
	"time"
)

// Simulation status constants
const (
	SimulationStatusDraft  = "draft"
	SimulationStatusActive = "active"
	SimulationStatusClosed = "closed"
)

// Allocation status constants
const (
	AllocationStatusNone    = "not_allocated"
	AllocationStatusPartial = "partially_allocated"
	AllocationStatusFull    = "fully_allocated"
	AllocationStatusOver    = "over_allocated"
)

// Simulation is a planning sandbox over a project's budget. It reads
// remaining balances but never writes back to them.
type Simulation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   uint      `gorm:"not null;index" json:"project_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Status      string    `gorm:"default:draft;index" json:"status"`
	CreatedByID *uint     `gorm:"index" json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Associations
	Project         Project          `gorm:"foreignKey:ProjectID" json:"-"`
	CreatedBy       *User            `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	PlannedExpenses []PlannedExpense `gorm:"foreignKey:SimulationID" json:"planned_expenses,omitempty"`
}

// TableName specifies the table name for Simulation
func (Simulation) TableName() string {
	return "budget_simulations"
}

// PlannedExpense is a projected spend inside a simulation
type PlannedExpense struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SimulationID     uint      `gorm:"not null;index" json:"simulation_id"`
	Name             string    `gorm:"not null" json:"name"`
	Amount           float64   `gorm:"type:decimal(14,2);default:0" json:"amount"`
	ExpectedDate     *string   `gorm:"type:date" json:"expected_date"`
	AllocationStatus string    `gorm:"default:not_allocated" json:"allocation_status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Associations
	Simulation  Simulation             `gorm:"foreignKey:SimulationID" json:"-"`
	Allocations []SimulationAllocation `gorm:"foreignKey:PlannedExpenseID" json:"allocations,omitempty"`
}

// TableName specifies the table name for PlannedExpense
func (PlannedExpense) TableName() string {
	return "planned_expenses"
}

// AllocatedAmount sums the loaded allocations.
func (e *PlannedExpense) AllocatedAmount() float64 {
	var total float64
	for _, a := range e.Allocations {
		total += a.Amount
	}
	return total
}

// ComputeAllocationStatus classifies the expense by how much of it has
// been placed against budget lines.
func (e *PlannedExpense) ComputeAllocationStatus(allocated float64) string {
	switch {
	case allocated <= 0:
		return AllocationStatusNone
	case allocated < e.Amount-SplitTolerance:
		return AllocationStatusPartial
	case allocated <= e.Amount+SplitTolerance:
		return AllocationStatusFull
	default:
		return AllocationStatusOver
	}
}

// SimulationAllocation places part of a planned expense against a
// budget line. Over-allocating past the line's remaining balance is
// allowed, the planner surfaces it instead of blocking it.
type SimulationAllocation struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	PlannedExpenseID uint      `gorm:"not null;index" json:"planned_expense_id"`
	BudgetLineID     uint      `gorm:"not null;index" json:"budget_line_id"`
	Amount           float64   `gorm:"type:decimal(14,2);default:0" json:"amount"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Associations
	PlannedExpense PlannedExpense `gorm:"foreignKey:PlannedExpenseID" json:"-"`
	BudgetLine     BudgetLine     `gorm:"foreignKey:BudgetLineID" json:"budget_line,omitempty"`
}

// TableName specifies the table name for SimulationAllocation
func (SimulationAllocation) TableName() string {
	return "simulation_allocations"
}

// PlannedExpenseResponse is the JSON response format for planned expenses
type PlannedExpenseResponse struct {
	ID               uint    `json:"id"`
	SimulationID     uint    `json:"simulation_id"`
	Name             string  `json:"name"`
	Amount           float64 `json:"amount"`
	AllocatedAmount  float64 `json:"allocated_amount"`
	ExpectedDate     *string `json:"expected_date"`
	AllocationStatus string  `json:"allocation_status"`
}

// ToResponse converts PlannedExpense to PlannedExpenseResponse
func (e *PlannedExpense) ToResponse() PlannedExpenseResponse {
	return PlannedExpenseResponse{
		ID:               e.ID,
		SimulationID:     e.SimulationID,
		Name:             e.Name,
		Amount:           e.Amount,
		AllocatedAmount:  e.AllocatedAmount(),
		ExpectedDate:     e.ExpectedDate,
		AllocationStatus: e.AllocationStatus,
	}
}

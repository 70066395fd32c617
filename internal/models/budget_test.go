package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectSplitValid(t *testing.T) {
	p := &Project{PctPrograma: 70, PctConcurrente: 30}
	assert.True(t, p.SplitValid())

	p = &Project{PctPrograma: 33.335, PctConcurrente: 66.66}
	assert.True(t, p.SplitValid(), "drift within tolerance is accepted")

	p = &Project{PctPrograma: 70, PctConcurrente: 40}
	assert.False(t, p.SplitValid())
}

func TestProjectSplitAmountAddsBackExactly(t *testing.T) {
	p := &Project{PctPrograma: 33.33, PctConcurrente: 66.67}

	programa, concurrente := p.SplitAmount(1000)

	assert.InDelta(t, 333.30, programa, 0.001)
	assert.Equal(t, 1000.0, programa+concurrente)
}

func TestSplitTotal(t *testing.T) {
	programa, concurrente := SplitTotal(500, 80)

	assert.InDelta(t, 400.0, programa, 0.001)
	assert.InDelta(t, 100.0, concurrente, 0.001)
}

func TestApplySplitFromTotalKeepsManualAmounts(t *testing.T) {
	line := &BudgetLine{}
	assert.True(t, line.ApplySplitFromTotal(1000, 75))
	assert.InDelta(t, 750.0, line.AssignedPrograma, 0.001)
	assert.InDelta(t, 250.0, line.AssignedConcurrente, 0.001)
	assert.InDelta(t, 1000.0, line.AssignedTotal, 0.001)

	manual := &BudgetLine{AssignedPrograma: 600, AssignedConcurrente: 400}
	assert.False(t, manual.ApplySplitFromTotal(2000, 75))
	assert.InDelta(t, 600.0, manual.AssignedPrograma, 0.001)
}

func TestBudgetLineOverExecuted(t *testing.T) {
	line := &BudgetLine{AssignedTotal: 100, ExecutedTotal: 100}
	assert.False(t, line.OverExecuted())

	line.ExecutedTotal = 100.005
	assert.False(t, line.OverExecuted(), "within tolerance")

	line.ExecutedTotal = 100.02
	assert.True(t, line.OverExecuted())

	// A component overrun inside an unchanged total is not over-execution.
	skewed := &BudgetLine{
		AssignedPrograma: 50, AssignedConcurrente: 50, AssignedTotal: 100,
		ExecutedPrograma: 80, ExecutedConcurrente: 20, ExecutedTotal: 100,
	}
	assert.False(t, skewed.OverExecuted())
}

func TestEvaluateTrafficLightPrecedence(t *testing.T) {
	line := &BudgetLine{AssignedTotal: 100, ExecutedTotal: 150}

	// Transfer-touched wins even when the line is over-executed.
	assert.Equal(t, TrafficLightAmber, line.EvaluateTrafficLight(true))
	assert.Equal(t, TrafficLightOrange, line.EvaluateTrafficLight(false))

	healthy := &BudgetLine{AssignedTotal: 100, ExecutedTotal: 50}
	assert.Equal(t, TrafficLightGreen, healthy.EvaluateTrafficLight(false))
}

func TestAggregateTrafficLight(t *testing.T) {
	assert.Equal(t, TrafficLightGreen, AggregateTrafficLight(1000, 0))
	assert.Equal(t, TrafficLightGreen, AggregateTrafficLight(1000, 1000))
	assert.Equal(t, TrafficLightGreen, AggregateTrafficLight(1000, 1000.005), "within tolerance")
	assert.Equal(t, TrafficLightOrange, AggregateTrafficLight(1000, 1000.02))
	assert.Equal(t, TrafficLightOrange, AggregateTrafficLight(0, 50))
}

func TestStageSplitMatches(t *testing.T) {
	stage := &Stage{AssignedPrograma: 750, AssignedConcurrente: 250}
	assert.True(t, stage.SplitMatches(75))
	assert.False(t, stage.SplitMatches(60))

	empty := &Stage{}
	assert.False(t, empty.SplitMatches(75), "a stage needs an allocation")
}

func TestComputeAllocationStatus(t *testing.T) {
	expense := &PlannedExpense{Amount: 100}

	assert.Equal(t, AllocationStatusNone, expense.ComputeAllocationStatus(0))
	assert.Equal(t, AllocationStatusPartial, expense.ComputeAllocationStatus(50))
	assert.Equal(t, AllocationStatusFull, expense.ComputeAllocationStatus(100))
	assert.Equal(t, AllocationStatusFull, expense.ComputeAllocationStatus(100.005))
	assert.Equal(t, AllocationStatusOver, expense.ComputeAllocationStatus(120))
}

func TestPurchaseOrderQualifies(t *testing.T) {
	done := &PurchaseOrder{Status: PurchaseStatusDone, Currency: "MXN", Amount: 100}
	assert.True(t, done.Qualifies("MXN"))

	draft := &PurchaseOrder{Status: PurchaseStatusDraft, Currency: "MXN", Amount: 100}
	assert.False(t, draft.Qualifies("MXN"))

	foreign := &PurchaseOrder{Status: PurchaseStatusDone, Currency: "USD", Amount: 100}
	assert.False(t, foreign.Qualifies("MXN"), "no MXN equivalent registered")

	foreign.AmountMXN = 1800
	assert.True(t, foreign.Qualifies("MXN"))
}

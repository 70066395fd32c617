package services

import (
	"github.com/secihti/budget-api/internal/models"
)

// Co-funding component names used in balance errors.
const (
	ComponentPrograma    = "programa"
	ComponentConcurrente = "concurrente"
)

// validateTransferShape checks the structural rules of a transfer:
// distinct lines, both inside the given stage, non-negative amounts
// with at least one positive component.
func validateTransferShape(from, to *models.BudgetLine, stageID uint, programa, concurrente float64) error {
	if from.ID == to.ID {
		return NewValidationError("la línea origen y destino no pueden ser la misma")
	}
	if from.StageID != stageID || to.StageID != stageID {
		return NewValidationError("ambas líneas deben pertenecer a la etapa de la transferencia")
	}
	if programa < 0 || concurrente < 0 {
		return NewValidationError("los montos de la transferencia no pueden ser negativos")
	}
	if programa <= 0 && concurrente <= 0 {
		return NewValidationError("la transferencia debe mover un monto mayor a cero")
	}
	return nil
}

// checkTransferCapacity verifies that the source line can give up the
// requested amounts. Capacity is allocated minus executed, computed per
// component against fresh execution figures.
func checkTransferCapacity(src *models.BudgetLine, executed ExecutionAmounts, programa, concurrente float64) error {
	availPrograma := src.AssignedPrograma - executed.Programa
	if programa > availPrograma+models.SplitTolerance {
		return &InsufficientBalanceError{
			Component: ComponentPrograma,
			Available: availPrograma,
			Requested: programa,
		}
	}
	availConcurrente := src.AssignedConcurrente - executed.Concurrente
	if concurrente > availConcurrente+models.SplitTolerance {
		return &InsufficientBalanceError{
			Component: ComponentConcurrente,
			Available: availConcurrente,
			Requested: concurrente,
		}
	}
	return nil
}

// applyTransfer moves allocation from src to dst and re-checks that
// neither line dropped below its executed spend. The re-check runs
// after mutation so both sides roll back together when it fires inside
// a transaction.
func applyTransfer(src, dst *models.BudgetLine, srcExec, dstExec ExecutionAmounts, programa, concurrente float64) error {
	src.AssignedPrograma -= programa
	src.AssignedConcurrente -= concurrente
	src.AssignedTotal = src.AssignedPrograma + src.AssignedConcurrente

	dst.AssignedPrograma += programa
	dst.AssignedConcurrente += concurrente
	dst.AssignedTotal = dst.AssignedPrograma + dst.AssignedConcurrente

	if err := checkExecutedFloor(src, srcExec); err != nil {
		return err
	}
	return checkExecutedFloor(dst, dstExec)
}

// reverseTransfer undoes a previously applied movement, giving the
// amounts back to src. The destination loses money here, so it gets
// the same floor guard against spend already executed on it.
func reverseTransfer(src, dst *models.BudgetLine, srcExec, dstExec ExecutionAmounts, programa, concurrente float64) error {
	dst.AssignedPrograma -= programa
	dst.AssignedConcurrente -= concurrente
	dst.AssignedTotal = dst.AssignedPrograma + dst.AssignedConcurrente

	src.AssignedPrograma += programa
	src.AssignedConcurrente += concurrente
	src.AssignedTotal = src.AssignedPrograma + src.AssignedConcurrente

	if err := checkExecutedFloor(dst, dstExec); err != nil {
		return err
	}
	return checkExecutedFloor(src, srcExec)
}

// checkExecutedFloor rejects a line whose allocation fell below the
// money already spent on it. Executed amounts are never negative, so
// this also catches allocations going below zero.
func checkExecutedFloor(line *models.BudgetLine, executed ExecutionAmounts) error {
	if line.AssignedPrograma < executed.Programa-models.SplitTolerance {
		return &NegativeResultError{Component: ComponentPrograma, LineID: line.ID, Result: line.AssignedPrograma - executed.Programa}
	}
	if line.AssignedConcurrente < executed.Concurrente-models.SplitTolerance {
		return &NegativeResultError{Component: ComponentConcurrente, LineID: line.ID, Result: line.AssignedConcurrente - executed.Concurrente}
	}
	if line.AssignedTotal < executed.Total-models.SplitTolerance {
		return &NegativeResultError{Component: "total", LineID: line.ID, Result: line.AssignedTotal - executed.Total}
	}
	return nil
}

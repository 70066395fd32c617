package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/secihti/budget-api/internal/models"
)

// TransferFSM wraps a budget transfer with its state machine
type TransferFSM struct {
	transfer *models.BudgetTransfer
	fsm      *fsm.FSM
}

// NewTransferFSM creates a new transfer state machine
func NewTransferFSM(transfer *models.BudgetTransfer) *TransferFSM {
	tfsm := &TransferFSM{
		transfer: transfer,
	}

	tfsm.fsm = fsm.NewFSM(
		transfer.Status,
		fsm.Events{
			// draft → confirmed
			{Name: "confirm", Src: []string{models.TransferStatusDraft}, Dst: models.TransferStatusConfirmed},

			// confirmed → draft (reversal before delete or amend)
			{Name: "revert", Src: []string{models.TransferStatusConfirmed}, Dst: models.TransferStatusDraft},
		},
		fsm.Callbacks{},
	)

	return tfsm
}

// Confirm transitions the transfer to confirmed state
func (t *TransferFSM) Confirm(ctx context.Context) error {
	if !t.transfer.MayConfirm() {
		return fmt.Errorf("transfer cannot be confirmed in current state: %s", t.transfer.Status)
	}

	if err := t.fsm.Event(ctx, "confirm"); err != nil {
		return fmt.Errorf("failed to confirm transfer: %w", err)
	}

	t.transfer.Status = t.fsm.Current()
	return nil
}

// Revert transitions the transfer back to draft after its balance
// movement has been undone
func (t *TransferFSM) Revert(ctx context.Context) error {
	if !t.transfer.IsConfirmed() {
		return fmt.Errorf("transfer cannot be reverted in current state: %s", t.transfer.Status)
	}

	if err := t.fsm.Event(ctx, "revert"); err != nil {
		return fmt.Errorf("failed to revert transfer: %w", err)
	}

	t.transfer.Status = t.fsm.Current()
	return nil
}

// Current returns the current state
func (t *TransferFSM) Current() string {
	return t.fsm.Current()
}

// Can checks if a transition is possible
func (t *TransferFSM) Can(event string) bool {
	return t.fsm.Can(event)
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/internal/statemachine"
	"github.com/secihti/budget-api/pkg/logger"
)

// TransferService moves allocation between budget lines of the same
// stage. Confirmed transfers mutate both lines atomically under row
// locks; reversal and amendment reuse the same transactional path.
type TransferService struct {
	repo            repository.TransferRepository
	lineRepo        repository.BudgetLineRepository
	stageRepo       repository.StageRepository
	execSvc         *ExecutionService
	notificationSvc *NotificationService
	auditSvc        auditLogger
	companyCurrency string
}

// auditLogger is the slice of AuditService the transfer flow writes to.
type auditLogger interface {
	Log(ctx context.Context, userID uint, action, entity string, entityID uint, details, ip, userAgent string) error
}

// NewTransferService creates a new transfer service
func NewTransferService(
	repo repository.TransferRepository,
	lineRepo repository.BudgetLineRepository,
	stageRepo repository.StageRepository,
	execSvc *ExecutionService,
	notificationSvc *NotificationService,
	auditSvc *AuditService,
	companyCurrency string,
) *TransferService {
	return &TransferService{
		repo:            repo,
		lineRepo:        lineRepo,
		stageRepo:       stageRepo,
		execSvc:         execSvc,
		notificationSvc: notificationSvc,
		auditSvc:        auditSvc,
		companyCurrency: companyCurrency,
	}
}

// TransferInput carries the transfer fields coming from the API.
// When MontoTotal is set and both components are zero, the total is
// back-split using the project percentages.
type TransferInput struct {
	StageID          uint
	LineFromID       uint
	LineToID         uint
	MontoPrograma    float64
	MontoConcurrente float64
	MontoTotal       float64
	Justificacion    string
}

func (s *TransferService) FindByID(ctx context.Context, id uint) (*models.BudgetTransfer, error) {
	return s.repo.FindByIDWithLines(ctx, id)
}

func (s *TransferService) List(ctx context.Context, query *repository.TransferQuery) ([]models.BudgetTransfer, int64, error) {
	return s.repo.List(ctx, query)
}

// Create registers a draft transfer. Balances are untouched until the
// transfer is confirmed.
func (s *TransferService) Create(ctx context.Context, input *TransferInput, userID uint) (*models.BudgetTransfer, error) {
	stage, err := s.stageRepo.FindByID(ctx, input.StageID)
	if err != nil {
		return nil, ErrNotFound
	}
	from, err := s.lineRepo.FindByID(ctx, input.LineFromID)
	if err != nil {
		return nil, NewValidationError("la línea origen no existe")
	}
	to, err := s.lineRepo.FindByID(ctx, input.LineToID)
	if err != nil {
		return nil, NewValidationError("la línea destino no existe")
	}

	programa, concurrente := input.MontoPrograma, input.MontoConcurrente
	if input.MontoTotal > 0 && programa == 0 && concurrente == 0 {
		programa, concurrente = models.SplitTotal(input.MontoTotal, stage.Project.PctPrograma)
	}

	if err := validateTransferShape(from, to, stage.ID, programa, concurrente); err != nil {
		return nil, err
	}

	transfer := &models.BudgetTransfer{
		ProjectID:        stage.ProjectID,
		StageID:          stage.ID,
		LineFromID:       from.ID,
		LineToID:         to.ID,
		MontoPrograma:    programa,
		MontoConcurrente: concurrente,
		Status:           models.TransferStatusDraft,
		Justificacion:    input.Justificacion,
		CreatedByID:      &userID,
	}
	transfer.SyncTotal()

	if err := s.repo.Create(ctx, transfer); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, userID, "CREATE", "BudgetTransfer", transfer.ID,
		fmt.Sprintf("Transferencia %s creada en borrador por %.2f", transfer.Folio, transfer.MontoTotal), "", "")

	return transfer, nil
}

// Confirm applies a draft transfer to both lines. Capacity is checked
// against execution recomputed inside the same transaction, and both
// lines are locked in id order before any mutation.
func (s *TransferService) Confirm(ctx context.Context, id, userID uint) (*models.BudgetTransfer, error) {
	var confirmed *models.BudgetTransfer

	err := s.repo.InTransaction(ctx, func(store repository.TransferStore) error {
		transfer, err := store.FindTransfer(id)
		if err != nil {
			return ErrNotFound
		}

		fsm := statemachine.NewTransferFSM(transfer)
		if err := fsm.Confirm(ctx); err != nil {
			return NewValidationError("solo una transferencia en borrador puede confirmarse")
		}

		src, dst, err := lockPair(store, transfer.LineFromID, transfer.LineToID)
		if err != nil {
			return err
		}

		executed, err := freshLineExecution(store, transfer.ProjectID, s.companyCurrency)
		if err != nil {
			return err
		}

		srcExec := executed[LineKey{ActivityID: src.ActivityID, RubroID: src.RubroID}]
		dstExec := executed[LineKey{ActivityID: dst.ActivityID, RubroID: dst.RubroID}]
		if err := checkTransferCapacity(src, srcExec, transfer.MontoPrograma, transfer.MontoConcurrente); err != nil {
			return err
		}

		if err := applyTransfer(src, dst, srcExec, dstExec, transfer.MontoPrograma, transfer.MontoConcurrente); err != nil {
			return err
		}

		now := time.Now()
		transfer.ConfirmedAt = &now

		if err := store.SaveLine(src); err != nil {
			return err
		}
		if err := store.SaveLine(dst); err != nil {
			return err
		}
		if err := store.SaveTransfer(transfer); err != nil {
			return err
		}

		confirmed = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterBalanceChange(ctx, confirmed.ProjectID)

	s.auditSvc.Log(ctx, userID, "CONFIRM", "BudgetTransfer", confirmed.ID,
		fmt.Sprintf("Transferencia %s confirmada: %.2f programa, %.2f concurrente",
			confirmed.Folio, confirmed.MontoPrograma, confirmed.MontoConcurrente), "", "")
	s.auditLinePair(ctx, userID, confirmed, confirmed.LineFromID, confirmed.LineToID)

	if err := s.notificationSvc.NotifyAdmins(ctx, "Transferencia confirmada",
		fmt.Sprintf("La transferencia %s movió %.2f entre rubros", confirmed.Folio, confirmed.MontoTotal),
		models.NotificationTypeTransferConfirmed); err != nil {
		logger.Log.Error("failed to notify transfer confirmation", "transfer_id", confirmed.ID, "error", err)
	}

	return confirmed, nil
}

// Update edits a transfer. Drafts accept any change. On a confirmed
// transfer the amounts and lines are frozen, only the justification can
// change; amounts go through Amend instead.
func (s *TransferService) Update(ctx context.Context, id uint, input *TransferInput, userID uint) (*models.BudgetTransfer, error) {
	transfer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	if transfer.IsConfirmed() {
		if input.LineFromID != transfer.LineFromID || input.LineToID != transfer.LineToID ||
			amountChanged(transfer, input) {
			return nil, NewValidationError("no es posible modificar montos o líneas de una transferencia confirmada; use la operación de rectificación")
		}
		transfer.Justificacion = input.Justificacion
		if err := s.repo.Update(ctx, transfer); err != nil {
			return nil, err
		}
		return transfer, nil
	}

	stage, err := s.stageRepo.FindByID(ctx, transfer.StageID)
	if err != nil {
		return nil, ErrNotFound
	}
	from, err := s.lineRepo.FindByID(ctx, input.LineFromID)
	if err != nil {
		return nil, NewValidationError("la línea origen no existe")
	}
	to, err := s.lineRepo.FindByID(ctx, input.LineToID)
	if err != nil {
		return nil, NewValidationError("la línea destino no existe")
	}

	programa, concurrente := input.MontoPrograma, input.MontoConcurrente
	if input.MontoTotal > 0 && programa == 0 && concurrente == 0 {
		programa, concurrente = models.SplitTotal(input.MontoTotal, stage.Project.PctPrograma)
	}

	if err := validateTransferShape(from, to, stage.ID, programa, concurrente); err != nil {
		return nil, err
	}

	transfer.LineFromID = from.ID
	transfer.LineToID = to.ID
	transfer.MontoPrograma = programa
	transfer.MontoConcurrente = concurrente
	transfer.Justificacion = input.Justificacion
	transfer.SyncTotal()

	if err := s.repo.Update(ctx, transfer); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, userID, "UPDATE", "BudgetTransfer", transfer.ID,
		fmt.Sprintf("Transferencia %s actualizada en borrador", transfer.Folio), "", "")

	return transfer, nil
}

// Amend rewrites the amounts of a confirmed transfer: the old movement
// is reversed, the new amounts re-validated against fresh execution and
// re-applied, all in one transaction.
func (s *TransferService) Amend(ctx context.Context, id uint, input *TransferInput, userID uint) (*models.BudgetTransfer, error) {
	var amended *models.BudgetTransfer

	err := s.repo.InTransaction(ctx, func(store repository.TransferStore) error {
		transfer, err := store.FindTransfer(id)
		if err != nil {
			return ErrNotFound
		}
		if !transfer.MayAmend() {
			return NewValidationError("solo una transferencia confirmada puede rectificarse")
		}

		src, dst, err := lockPair(store, transfer.LineFromID, transfer.LineToID)
		if err != nil {
			return err
		}

		executed, err := freshLineExecution(store, transfer.ProjectID, s.companyCurrency)
		if err != nil {
			return err
		}
		srcExec := executed[LineKey{ActivityID: src.ActivityID, RubroID: src.RubroID}]
		dstExec := executed[LineKey{ActivityID: dst.ActivityID, RubroID: dst.RubroID}]

		if err := reverseTransfer(src, dst, srcExec, dstExec, transfer.MontoPrograma, transfer.MontoConcurrente); err != nil {
			return err
		}

		project, err := store.FindProject(transfer.ProjectID)
		if err != nil {
			return err
		}

		programa, concurrente := input.MontoPrograma, input.MontoConcurrente
		if input.MontoTotal > 0 && programa == 0 && concurrente == 0 {
			programa, concurrente = models.SplitTotal(input.MontoTotal, project.PctPrograma)
		}
		if err := validateTransferShape(src, dst, transfer.StageID, programa, concurrente); err != nil {
			return err
		}

		if err := checkTransferCapacity(src, srcExec, programa, concurrente); err != nil {
			return err
		}

		if err := applyTransfer(src, dst, srcExec, dstExec, programa, concurrente); err != nil {
			return err
		}

		transfer.MontoPrograma = programa
		transfer.MontoConcurrente = concurrente
		if input.Justificacion != "" {
			transfer.Justificacion = input.Justificacion
		}
		transfer.SyncTotal()

		if err := store.SaveLine(src); err != nil {
			return err
		}
		if err := store.SaveLine(dst); err != nil {
			return err
		}
		if err := store.SaveTransfer(transfer); err != nil {
			return err
		}

		amended = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterBalanceChange(ctx, amended.ProjectID)

	s.auditSvc.Log(ctx, userID, "AMEND", "BudgetTransfer", amended.ID,
		fmt.Sprintf("Transferencia %s rectificada a %.2f", amended.Folio, amended.MontoTotal), "", "")
	s.auditLinePair(ctx, userID, amended, amended.LineFromID, amended.LineToID)

	if err := s.notificationSvc.NotifyAdmins(ctx, "Transferencia rectificada",
		fmt.Sprintf("La transferencia %s fue rectificada a %.2f", amended.Folio, amended.MontoTotal),
		models.NotificationTypeTransferAmended); err != nil {
		logger.Log.Error("failed to notify transfer amendment", "transfer_id", amended.ID, "error", err)
	}

	return amended, nil
}

// Delete removes a transfer. A confirmed transfer is reversed first so
// both lines return to their prior balances, then the row goes away.
func (s *TransferService) Delete(ctx context.Context, id, userID uint) error {
	transfer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}

	if !transfer.IsConfirmed() {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		s.auditSvc.Log(ctx, userID, "DELETE", "BudgetTransfer", id,
			fmt.Sprintf("Transferencia %s eliminada en borrador", transfer.Folio), "", "")
		return nil
	}

	err = s.repo.InTransaction(ctx, func(store repository.TransferStore) error {
		locked, err := store.FindTransfer(id)
		if err != nil {
			return ErrNotFound
		}

		src, dst, err := lockPair(store, locked.LineFromID, locked.LineToID)
		if err != nil {
			return err
		}

		executed, err := freshLineExecution(store, locked.ProjectID, s.companyCurrency)
		if err != nil {
			return err
		}
		srcExec := executed[LineKey{ActivityID: src.ActivityID, RubroID: src.RubroID}]
		dstExec := executed[LineKey{ActivityID: dst.ActivityID, RubroID: dst.RubroID}]

		if err := reverseTransfer(src, dst, srcExec, dstExec, locked.MontoPrograma, locked.MontoConcurrente); err != nil {
			return err
		}

		if err := store.SaveLine(src); err != nil {
			return err
		}
		if err := store.SaveLine(dst); err != nil {
			return err
		}
		return store.DeleteTransfer(locked.ID)
	})
	if err != nil {
		return err
	}

	s.afterBalanceChange(ctx, transfer.ProjectID)

	s.auditSvc.Log(ctx, userID, "DELETE", "BudgetTransfer", id,
		fmt.Sprintf("Transferencia %s revertida y eliminada", transfer.Folio), "", "")
	// The reversal gives the money back, so the audit directions swap.
	s.auditLinePair(ctx, userID, transfer, transfer.LineToID, transfer.LineFromID)

	if err := s.notificationSvc.NotifyAdmins(ctx, "Transferencia revertida",
		fmt.Sprintf("La transferencia %s fue revertida; los saldos regresaron a su estado anterior", transfer.Folio),
		models.NotificationTypeTransferReversed); err != nil {
		logger.Log.Error("failed to notify transfer reversal", "transfer_id", id, "error", err)
	}

	return nil
}

// RemainingBalance exposes the read-only balance contract used by the
// planning module: allocated minus executed per component.
type RemainingBalance struct {
	LineID               uint    `json:"line_id"`
	RubroName            string  `json:"rubro_name"`
	RemainingPrograma    float64 `json:"remaining_programa"`
	RemainingConcurrente float64 `json:"remaining_concurrente"`
	RemainingTotal       float64 `json:"remaining_total"`
}

func (s *TransferService) RemainingBalance(ctx context.Context, lineID uint) (*RemainingBalance, error) {
	line, err := s.lineRepo.FindByID(ctx, lineID)
	if err != nil {
		return nil, ErrNotFound
	}
	return &RemainingBalance{
		LineID:               line.ID,
		RubroName:            line.Rubro.Name,
		RemainingPrograma:    line.RemainingPrograma(),
		RemainingConcurrente: line.RemainingConcurrente(),
		RemainingTotal:       line.RemainingTotal(),
	}, nil
}

// auditLinePair records the movement on both budget lines, one outgoing
// and one incoming row, each referencing the transfer folio and amounts.
func (s *TransferService) auditLinePair(ctx context.Context, userID uint, t *models.BudgetTransfer, outLineID, inLineID uint) {
	s.auditSvc.Log(ctx, userID, "TRANSFER_OUT", "BudgetLine", outLineID,
		fmt.Sprintf("Transferencia %s: salida de %.2f programa y %.2f concurrente",
			t.Folio, t.MontoPrograma, t.MontoConcurrente), "", "")
	s.auditSvc.Log(ctx, userID, "TRANSFER_IN", "BudgetLine", inLineID,
		fmt.Sprintf("Transferencia %s: entrada de %.2f programa y %.2f concurrente",
			t.Folio, t.MontoPrograma, t.MontoConcurrente), "", "")
}

// afterBalanceChange resyncs the whole hierarchy once a transfer has
// moved allocation around.
func (s *TransferService) afterBalanceChange(ctx context.Context, projectID uint) {
	if err := s.execSvc.SyncProject(ctx, projectID); err != nil {
		logger.Log.Error("post-transfer sync failed", "project_id", projectID, "error", err)
	}
}

// lockPair locks both lines in ascending id order so two concurrent
// transfers over the same pair cannot deadlock.
func lockPair(store repository.TransferStore, fromID, toID uint) (src, dst *models.BudgetLine, err error) {
	firstID, secondID := fromID, toID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := store.LockLine(firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := store.LockLine(secondID)
	if err != nil {
		return nil, nil, err
	}

	if first.ID == fromID {
		return first, second, nil
	}
	return second, first, nil
}

// freshLineExecution recomputes executed amounts per line inside the
// current transaction, so capacity checks never rely on stale columns.
func freshLineExecution(store repository.TransferStore, projectID uint, companyCurrency string) (map[LineKey]ExecutionAmounts, error) {
	project, err := store.FindProject(projectID)
	if err != nil {
		return nil, err
	}
	activities, err := store.ActivitiesByProject(projectID)
	if err != nil {
		return nil, err
	}
	orders, err := store.OrdersByProject(projectID)
	if err != nil {
		return nil, err
	}
	data := CollectFromOrders(project, activities, orders, companyCurrency)
	return data.Line, nil
}

func amountChanged(t *models.BudgetTransfer, input *TransferInput) bool {
	if input.MontoPrograma != t.MontoPrograma || input.MontoConcurrente != t.MontoConcurrente {
		return true
	}
	return input.MontoTotal != 0 && input.MontoTotal != t.MontoTotal
}

package services

import (
	"context"
	"fmt"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/pkg/logger"
)

type ActivityService struct {
	repo      repository.ActivityRepository
	stageRepo repository.StageRepository
	auditSvc  *AuditService
}

func NewActivityService(repo repository.ActivityRepository, stageRepo repository.StageRepository, auditSvc *AuditService) *ActivityService {
	return &ActivityService{repo: repo, stageRepo: stageRepo, auditSvc: auditSvc}
}

func (s *ActivityService) FindByID(ctx context.Context, id uint) (*models.Activity, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ActivityService) FindByStage(ctx context.Context, stageID uint) ([]models.Activity, error) {
	return s.repo.FindByStage(ctx, stageID)
}

func (s *ActivityService) Create(ctx context.Context, activity *models.Activity, actorID uint) error {
	if _, err := s.stageRepo.FindByID(ctx, activity.StageID); err != nil {
		return NewValidationError("la etapa indicada no existe")
	}
	if err := s.repo.Create(ctx, activity); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "CREATE", "Activity", activity.ID,
		fmt.Sprintf("Actividad %s creada", activity.Name), "", "")
	return nil
}

func (s *ActivityService) Update(ctx context.Context, activity *models.Activity, actorID uint) error {
	if err := s.repo.Update(ctx, activity); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "UPDATE", "Activity", activity.ID,
		fmt.Sprintf("Actividad %s actualizada", activity.Name), "", "")
	return nil
}

func (s *ActivityService) Delete(ctx context.Context, id uint, actorID uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "DELETE", "Activity", id, "Actividad eliminada", "", "")
	return nil
}

type RubroService struct {
	repo     repository.RubroRepository
	auditSvc *AuditService
}

func NewRubroService(repo repository.RubroRepository, auditSvc *AuditService) *RubroService {
	return &RubroService{repo: repo, auditSvc: auditSvc}
}

func (s *RubroService) FindByID(ctx context.Context, id uint) (*models.Rubro, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *RubroService) FindAll(ctx context.Context, activeOnly bool) ([]models.Rubro, error) {
	return s.repo.FindAll(ctx, activeOnly)
}

func (s *RubroService) Create(ctx context.Context, rubro *models.Rubro, actorID uint) error {
	if !models.ValidTipoGasto(rubro.TipoGasto) {
		return NewValidationError("tipo de gasto inválido: %s", rubro.TipoGasto)
	}
	rubro.Active = true
	if err := s.repo.Create(ctx, rubro); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "CREATE", "Rubro", rubro.ID,
		fmt.Sprintf("Rubro %s creado (%s)", rubro.Name, rubro.TipoGasto), "", "")
	return nil
}

func (s *RubroService) Update(ctx context.Context, rubro *models.Rubro, actorID uint) error {
	if !models.ValidTipoGasto(rubro.TipoGasto) {
		return NewValidationError("tipo de gasto inválido: %s", rubro.TipoGasto)
	}
	if err := s.repo.Update(ctx, rubro); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "UPDATE", "Rubro", rubro.ID,
		fmt.Sprintf("Rubro %s actualizado", rubro.Name), "", "")
	return nil
}

// Delete removes a rubro from the catalog. Rubros referenced by any
// budget line cannot be deleted, only deactivated.
func (s *RubroService) Delete(ctx context.Context, id uint, actorID uint) error {
	inUse, err := s.repo.InUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return NewValidationError("el rubro está en uso por líneas presupuestales; desactívelo en su lugar")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "DELETE", "Rubro", id, "Rubro eliminado", "", "")
	return nil
}

type BudgetLineService struct {
	repo            repository.BudgetLineRepository
	activityRepo    repository.ActivityRepository
	transferRepo    repository.TransferRepository
	rubroRepo       repository.RubroRepository
	execSvc         *ExecutionService
	notificationSvc *NotificationService
	auditSvc        *AuditService
}

func NewBudgetLineService(
	repo repository.BudgetLineRepository,
	activityRepo repository.ActivityRepository,
	transferRepo repository.TransferRepository,
	rubroRepo repository.RubroRepository,
	execSvc *ExecutionService,
	notificationSvc *NotificationService,
	auditSvc *AuditService,
) *BudgetLineService {
	return &BudgetLineService{
		repo:            repo,
		activityRepo:    activityRepo,
		transferRepo:    transferRepo,
		rubroRepo:       rubroRepo,
		execSvc:         execSvc,
		notificationSvc: notificationSvc,
		auditSvc:        auditSvc,
	}
}

func (s *BudgetLineService) FindByID(ctx context.Context, id uint) (*models.BudgetLine, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *BudgetLineService) List(ctx context.Context, query *repository.ListQuery) ([]models.BudgetLine, int64, error) {
	return s.repo.List(ctx, query)
}

func (s *BudgetLineService) FindByActivity(ctx context.Context, activityID uint) ([]models.BudgetLine, error) {
	return s.repo.FindByActivity(ctx, activityID)
}

// Create adds a budget line to an activity. A total with empty
// components gets split by the project percentages; the line inherits
// the activity's stage.
func (s *BudgetLineService) Create(ctx context.Context, line *models.BudgetLine, actorID uint) error {
	activity, err := s.activityRepo.FindByID(ctx, line.ActivityID)
	if err != nil {
		return NewValidationError("la actividad indicada no existe")
	}
	if _, err := s.rubroRepo.FindByID(ctx, line.RubroID); err != nil {
		return NewValidationError("el rubro indicado no existe")
	}
	if existing, err := s.repo.FindByActivityRubro(ctx, line.ActivityID, line.RubroID); err != nil {
		return err
	} else if existing != nil {
		return NewValidationError("ya existe una línea para este rubro en la actividad")
	}

	line.StageID = activity.StageID
	if line.AssignedTotal > 0 && line.AssignedPrograma == 0 && line.AssignedConcurrente == 0 {
		line.ApplySplitFromTotal(line.AssignedTotal, activity.Stage.Project.PctPrograma)
	} else {
		line.AssignedTotal = line.AssignedPrograma + line.AssignedConcurrente
	}

	if err := s.repo.Create(ctx, line); err != nil {
		return err
	}

	s.resync(ctx, activity.Stage.ProjectID)
	s.auditSvc.Log(ctx, actorID, "CREATE", "BudgetLine", line.ID,
		fmt.Sprintf("Línea presupuestal creada por %.2f", line.AssignedTotal), "", "")
	return nil
}

// Update edits the allocation of a line. Component amounts given
// explicitly win over the total split.
func (s *BudgetLineService) Update(ctx context.Context, line *models.BudgetLine, actorID uint) error {
	activity, err := s.activityRepo.FindByID(ctx, line.ActivityID)
	if err != nil {
		return NewValidationError("la actividad indicada no existe")
	}

	line.StageID = activity.StageID
	line.AssignedTotal = line.AssignedPrograma + line.AssignedConcurrente

	if err := s.repo.Update(ctx, line); err != nil {
		return err
	}

	s.resync(ctx, activity.Stage.ProjectID)
	s.auditSvc.Log(ctx, actorID, "UPDATE", "BudgetLine", line.ID,
		fmt.Sprintf("Línea presupuestal actualizada a %.2f", line.AssignedTotal), "", "")
	return nil
}

// Delete removes a line unless a confirmed transfer references it.
func (s *BudgetLineService) Delete(ctx context.Context, id uint, actorID uint) error {
	line, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	activity, err := s.activityRepo.FindByID(ctx, line.ActivityID)
	if err != nil {
		return err
	}

	touched, err := s.transferRepo.TouchedLineIDs(ctx, activity.Stage.ProjectID)
	if err != nil {
		return err
	}
	if touched[line.ID] {
		return NewValidationError("la línea tiene transferencias confirmadas; revierta las transferencias primero")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.resync(ctx, activity.Stage.ProjectID)
	s.auditSvc.Log(ctx, actorID, "DELETE", "BudgetLine", id, "Línea presupuestal eliminada", "", "")
	return nil
}

// EnsureForActivityRubro returns the line for an (activity, rubro)
// pair, creating a zero-allocation line when none exists. Used when a
// purchase order charges a pair that was never budgeted.
func (s *BudgetLineService) EnsureForActivityRubro(ctx context.Context, activityID, rubroID uint) (*models.BudgetLine, error) {
	existing, err := s.repo.FindByActivityRubro(ctx, activityID, rubroID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	activity, err := s.activityRepo.FindByID(ctx, activityID)
	if err != nil {
		return nil, err
	}

	line := &models.BudgetLine{
		ActivityID: activityID,
		RubroID:    rubroID,
		StageID:    activity.StageID,
	}
	if err := s.repo.Create(ctx, line); err != nil {
		return nil, err
	}

	if err := s.notificationSvc.NotifyAdmins(ctx, "Línea presupuestal generada",
		fmt.Sprintf("Se creó una línea sin asignación para la actividad %s al recibir una orden de compra", activity.Name),
		models.NotificationTypeLineAutoCreated); err != nil {
		logger.Log.Error("failed to notify auto-created line", "line_id", line.ID, "error", err)
	}

	return line, nil
}

// RubroSummary returns the per-(stage, rubro) dashboard rows of a project.
func (s *BudgetLineService) RubroSummary(ctx context.Context, projectID uint) ([]repository.RubroStageSummary, error) {
	return s.repo.RubroSummaryByStage(ctx, projectID)
}

func (s *BudgetLineService) resync(ctx context.Context, projectID uint) {
	if err := s.execSvc.SyncProject(ctx, projectID); err != nil {
		logger.Log.Error("budget line sync failed", "project_id", projectID, "error", err)
	}
}

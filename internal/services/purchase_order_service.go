package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/internal/storage"
	"github.com/secihti/budget-api/pkg/logger"
)

// PurchaseOrderService ingests the execution feed. Confirmed orders
// drive executed amounts, so every mutation ends with a hierarchy
// resync of the owning project.
type PurchaseOrderService struct {
	repo            repository.PurchaseOrderRepository
	projectRepo     repository.ProjectRepository
	activityRepo    repository.ActivityRepository
	rubroRepo       repository.RubroRepository
	lineSvc         *BudgetLineService
	execSvc         *ExecutionService
	notificationSvc *NotificationService
	auditSvc        *AuditService
	storage         *storage.LocalStorage
	companyCurrency string
}

// NewPurchaseOrderService creates a new purchase order service
func NewPurchaseOrderService(
	repo repository.PurchaseOrderRepository,
	projectRepo repository.ProjectRepository,
	activityRepo repository.ActivityRepository,
	rubroRepo repository.RubroRepository,
	lineSvc *BudgetLineService,
	execSvc *ExecutionService,
	notificationSvc *NotificationService,
	auditSvc *AuditService,
	store *storage.LocalStorage,
	companyCurrency string,
) *PurchaseOrderService {
	return &PurchaseOrderService{
		repo:            repo,
		projectRepo:     projectRepo,
		activityRepo:    activityRepo,
		rubroRepo:       rubroRepo,
		lineSvc:         lineSvc,
		execSvc:         execSvc,
		notificationSvc: notificationSvc,
		auditSvc:        auditSvc,
		storage:         store,
		companyCurrency: companyCurrency,
	}
}

func (s *PurchaseOrderService) FindByID(ctx context.Context, id uint) (*models.PurchaseOrder, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *PurchaseOrderService) List(ctx context.Context, query *repository.ListQuery) ([]models.PurchaseOrder, int64, error) {
	return s.repo.List(ctx, query)
}

// Ingest registers or updates an order coming from the procurement
// feed, keyed by order_ref so re-sends are idempotent.
func (s *PurchaseOrderService) Ingest(ctx context.Context, order *models.PurchaseOrder, actorID uint) (*models.PurchaseOrder, error) {
	if _, err := s.projectRepo.FindByID(ctx, order.ProjectID); err != nil {
		return nil, NewValidationError("el proyecto indicado no existe")
	}
	if order.ActivityID != nil {
		if _, err := s.activityRepo.FindByID(ctx, *order.ActivityID); err != nil {
			return nil, NewValidationError("la actividad indicada no existe")
		}
	}
	if order.RubroID != nil {
		if _, err := s.rubroRepo.FindByID(ctx, *order.RubroID); err != nil {
			return nil, NewValidationError("el rubro indicado no existe")
		}
	}

	s.mirrorMXN(ctx, order)

	existing, err := s.repo.FindByRef(ctx, order.OrderRef)
	if err == nil {
		order.ID = existing.ID
		order.CreatedAt = existing.CreatedAt
		if err := s.repo.Update(ctx, order); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.Create(ctx, order); err != nil {
			return nil, err
		}
	}

	if err := s.afterIngest(ctx, order); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actorID, "INGEST", "PurchaseOrder", order.ID,
		fmt.Sprintf("Orden %s registrada en estado %s por %.2f %s", order.OrderRef, order.Status, order.Amount, order.Currency), "", "")

	return order, nil
}

// SetStatus moves an order through its procurement lifecycle and
// recomputes execution when the move crosses the confirmed boundary.
func (s *PurchaseOrderService) SetStatus(ctx context.Context, id uint, status string, actorID uint) (*models.PurchaseOrder, error) {
	switch status {
	case models.PurchaseStatusDraft, models.PurchaseStatusSent,
		models.PurchaseStatusPurchase, models.PurchaseStatusDone,
		models.PurchaseStatusCancelled:
	default:
		return nil, NewValidationError("estado de orden inválido: %s", status)
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	order.Status = status
	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}

	if err := s.afterIngest(ctx, order); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actorID, "UPDATE", "PurchaseOrder", order.ID,
		fmt.Sprintf("Orden %s cambió a estado %s", order.OrderRef, status), "", "")

	return order, nil
}

// SetAmountMXN resolves a pending conversion for a foreign currency
// order.
func (s *PurchaseOrderService) SetAmountMXN(ctx context.Context, id uint, amountMXN float64, actorID uint) (*models.PurchaseOrder, error) {
	if amountMXN <= 0 {
		return nil, NewValidationError("el monto en moneda nacional debe ser mayor a cero")
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	order.AmountMXN = amountMXN
	order.MXNPending = false
	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}

	if err := s.afterIngest(ctx, order); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actorID, "UPDATE", "PurchaseOrder", order.ID,
		fmt.Sprintf("Orden %s valuada en %.2f MXN", order.OrderRef, amountMXN), "", "")

	return order, nil
}

func (s *PurchaseOrderService) Delete(ctx context.Context, id uint, actorID uint) error {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.resync(ctx, order.ProjectID)
	s.auditSvc.Log(ctx, actorID, "DELETE", "PurchaseOrder", id,
		fmt.Sprintf("Orden %s eliminada", order.OrderRef), "", "")
	return nil
}

// UploadAttachment stores a supporting document next to the order.
func (s *PurchaseOrderService) UploadAttachment(ctx context.Context, orderID uint, file multipart.File, header *multipart.FileHeader) (*models.PurchaseOrderAttachment, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, ErrNotFound
	}

	contentType := header.Header.Get("Content-Type")
	if !storage.IsValidContentType(contentType) {
		return nil, NewValidationError("tipo de archivo no permitido: %s", contentType)
	}
	if header.Size > storage.MaxFileSize() {
		return nil, NewValidationError("el archivo excede el tamaño máximo permitido")
	}

	path, err := s.storage.Upload(file, header, "orders")
	if err != nil {
		return nil, err
	}

	att := &models.PurchaseOrderAttachment{
		PurchaseOrderID: order.ID,
		FileName:        header.Filename,
		FilePath:        path,
		ContentType:     contentType,
		SizeBytes:       header.Size,
	}
	if err := s.repo.AddAttachment(ctx, att); err != nil {
		return nil, err
	}
	return att, nil
}

func (s *PurchaseOrderService) FindMXNPending(ctx context.Context) ([]models.PurchaseOrder, error) {
	return s.repo.FindMXNPending(ctx)
}

// mirrorMXN keeps the company currency amount coherent. Orders in the
// company currency mirror their own amount; foreign orders without a
// converted amount are flagged pending and surfaced to finance.
func (s *PurchaseOrderService) mirrorMXN(ctx context.Context, order *models.PurchaseOrder) {
	if order.Currency == s.companyCurrency {
		order.AmountMXN = order.Amount
		order.MXNPending = false
		return
	}
	if order.AmountMXN <= 0 {
		order.MXNPending = true
		if err := s.notificationSvc.NotifyAdmins(ctx, "Conversión pendiente",
			fmt.Sprintf("La orden %s en %s requiere captura de monto en moneda nacional", order.OrderRef, order.Currency),
			models.NotificationTypeMXNPending); err != nil {
			logger.Log.Error("failed to notify pending conversion", "order_ref", order.OrderRef, "error", err)
		}
		return
	}
	order.MXNPending = false
}

// afterIngest guarantees a budget line exists for a confirmed order
// charging an (activity, rubro) pair and refreshes the hierarchy.
func (s *PurchaseOrderService) afterIngest(ctx context.Context, order *models.PurchaseOrder) error {
	if order.Qualifies(s.companyCurrency) && order.ActivityID != nil && order.RubroID != nil {
		if _, err := s.lineSvc.EnsureForActivityRubro(ctx, *order.ActivityID, *order.RubroID); err != nil {
			return err
		}
	}
	s.resync(ctx, order.ProjectID)
	return nil
}

func (s *PurchaseOrderService) resync(ctx context.Context, projectID uint) {
	if err := s.execSvc.SyncProject(ctx, projectID); err != nil {
		logger.Log.Error("post-order sync failed", "project_id", projectID, "error", err)
	}
}

package repository

import (
	"context"
	"fmt"

	"github.com/secihti/budget-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransferStore is the transactional view used while applying or
// reversing a transfer. All reads and writes happen inside a single
// database transaction, with row locks on the lines involved.
type TransferStore interface {
	FindTransfer(id uint) (*models.BudgetTransfer, error)
	LockLine(id uint) (*models.BudgetLine, error)
	SaveLine(line *models.BudgetLine) error
	SaveTransfer(t *models.BudgetTransfer) error
	DeleteTransfer(id uint) error
	FindProject(id uint) (*models.Project, error)
	ActivitiesByProject(projectID uint) ([]models.Activity, error)
	OrdersByProject(projectID uint) ([]models.PurchaseOrder, error)
}

// TransferQuery extends ListQuery with transfer-specific filters
type TransferQuery struct {
	*ListQuery
	ProjectID uint
	StageID   uint
	Status    string
}

// TransferRepository defines the interface for budget transfer data access
type TransferRepository interface {
	FindByID(ctx context.Context, id uint) (*models.BudgetTransfer, error)
	FindByIDWithLines(ctx context.Context, id uint) (*models.BudgetTransfer, error)
	List(ctx context.Context, query *TransferQuery) ([]models.BudgetTransfer, int64, error)
	FindConfirmedByProject(ctx context.Context, projectID uint) ([]models.BudgetTransfer, error)
	Create(ctx context.Context, t *models.BudgetTransfer) error
	Update(ctx context.Context, t *models.BudgetTransfer) error
	Delete(ctx context.Context, id uint) error
	TouchedLineIDs(ctx context.Context, projectID uint) (map[uint]bool, error)
	InTransaction(ctx context.Context, fn func(store TransferStore) error) error
}

type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *gorm.DB) TransferRepository {
	return &transferRepository{db: db}
}

func (r *transferRepository) FindByID(ctx context.Context, id uint) (*models.BudgetTransfer, error) {
	var t models.BudgetTransfer
	err := r.db.WithContext(ctx).First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transferRepository) FindByIDWithLines(ctx context.Context, id uint) (*models.BudgetTransfer, error) {
	var t models.BudgetTransfer
	err := r.db.WithContext(ctx).
		Preload("LineFrom.Rubro").
		Preload("LineFrom.Activity").
		Preload("LineTo.Rubro").
		Preload("LineTo.Activity").
		Preload("CreatedBy").
		First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transferRepository) List(ctx context.Context, query *TransferQuery) ([]models.BudgetTransfer, int64, error) {
	var transfers []models.BudgetTransfer
	var total int64

	db := r.db.WithContext(ctx).Model(&models.BudgetTransfer{})

	if query.ProjectID > 0 {
		db = db.Where("budget_transfers.project_id = ?", query.ProjectID)
	}
	if query.StageID > 0 {
		db = db.Where("budget_transfers.stage_id = ?", query.StageID)
	}
	if query.Status != "" {
		db = db.Where("budget_transfers.status = ?", query.Status)
	}
	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("budget_transfers.folio ILIKE ? OR budget_transfers.justificacion ILIKE ?", search, search)
	}

	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if query.SortBy != "" {
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("budget_transfers.created_at DESC")
	}

	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.
		Preload("LineFrom.Rubro").
		Preload("LineTo.Rubro").
		Find(&transfers).Error
	return transfers, total, err
}

func (r *transferRepository) FindConfirmedByProject(ctx context.Context, projectID uint) ([]models.BudgetTransfer, error) {
	var transfers []models.BudgetTransfer
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, models.TransferStatusConfirmed).
		Preload("LineFrom.Rubro").
		Preload("LineTo.Rubro").
		Order("confirmed_at ASC").
		Find(&transfers).Error
	return transfers, err
}

// Create inserts the transfer and assigns its folio from the generated
// id in the same transaction.
func (r *transferRepository) Create(ctx context.Context, t *models.BudgetTransfer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		t.Folio = fmt.Sprintf("TRF-%06d", t.ID)
		return tx.Model(t).Update("folio", t.Folio).Error
	})
}

func (r *transferRepository) Update(ctx context.Context, t *models.BudgetTransfer) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *transferRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.BudgetTransfer{}, id).Error
}

// TouchedLineIDs returns the ids of lines referenced by any confirmed
// transfer of the project, on either end.
func (r *transferRepository) TouchedLineIDs(ctx context.Context, projectID uint) (map[uint]bool, error) {
	var transfers []models.BudgetTransfer
	err := r.db.WithContext(ctx).
		Select("line_from_id", "line_to_id").
		Where("project_id = ? AND status = ?", projectID, models.TransferStatusConfirmed).
		Find(&transfers).Error
	if err != nil {
		return nil, err
	}
	touched := make(map[uint]bool, len(transfers)*2)
	for _, t := range transfers {
		touched[t.LineFromID] = true
		touched[t.LineToID] = true
	}
	return touched, nil
}

func (r *transferRepository) InTransaction(ctx context.Context, fn func(store TransferStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&transferStore{tx: tx})
	})
}

type transferStore struct {
	tx *gorm.DB
}

func (s *transferStore) FindTransfer(id uint) (*models.BudgetTransfer, error) {
	var t models.BudgetTransfer
	err := s.tx.First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LockLine loads a budget line under SELECT ... FOR UPDATE so
// concurrent transfers against the same line serialize.
func (s *transferStore) LockLine(id uint) (*models.BudgetLine, error) {
	var line models.BudgetLine
	err := s.tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&line, id).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (s *transferStore) SaveLine(line *models.BudgetLine) error {
	return s.tx.Save(line).Error
}

func (s *transferStore) SaveTransfer(t *models.BudgetTransfer) error {
	return s.tx.Save(t).Error
}

func (s *transferStore) DeleteTransfer(id uint) error {
	return s.tx.Delete(&models.BudgetTransfer{}, id).Error
}

func (s *transferStore) FindProject(id uint) (*models.Project, error) {
	var project models.Project
	err := s.tx.First(&project, id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *transferStore) ActivitiesByProject(projectID uint) ([]models.Activity, error) {
	var activities []models.Activity
	err := s.tx.
		Joins("JOIN project_stages ON project_stages.id = project_activities.stage_id").
		Where("project_stages.project_id = ?", projectID).
		Find(&activities).Error
	return activities, err
}

func (s *transferStore) OrdersByProject(projectID uint) ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	err := s.tx.
		Where("project_id = ?", projectID).
		Find(&orders).Error
	return orders, err
}

package repository

import (
	"context"

	"github.com/secihti/budget-api/internal/models"
	"gorm.io/gorm"
)

// PurchaseOrderRepository defines the interface for purchase order data access
type PurchaseOrderRepository interface {
	FindByID(ctx context.Context, id uint) (*models.PurchaseOrder, error)
	FindByRef(ctx context.Context, orderRef string) (*models.PurchaseOrder, error)
	FindByProject(ctx context.Context, projectID uint) ([]models.PurchaseOrder, error)
	FindMXNPending(ctx context.Context) ([]models.PurchaseOrder, error)
	Create(ctx context.Context, order *models.PurchaseOrder) error
	Update(ctx context.Context, order *models.PurchaseOrder) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, query *ListQuery) ([]models.PurchaseOrder, int64, error)
	AddAttachment(ctx context.Context, att *models.PurchaseOrderAttachment) error
	FindAttachment(ctx context.Context, id uint) (*models.PurchaseOrderAttachment, error)
	FindAttachmentsByProject(ctx context.Context, projectID uint) ([]models.PurchaseOrderAttachment, error)
}

type purchaseOrderRepository struct {
	db *gorm.DB
}

// NewPurchaseOrderRepository creates a new purchase order repository
func NewPurchaseOrderRepository(db *gorm.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

func (r *purchaseOrderRepository) FindByID(ctx context.Context, id uint) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Activity").
		Preload("Rubro").
		Preload("Attachments").
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *purchaseOrderRepository) FindByRef(ctx context.Context, orderRef string) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *purchaseOrderRepository) FindByProject(ctx context.Context, projectID uint) ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *purchaseOrderRepository) FindMXNPending(ctx context.Context) ([]models.PurchaseOrder, error) {
	var orders []models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Where("mxn_pending = ? AND status IN ?", true,
			[]string{models.PurchaseStatusPurchase, models.PurchaseStatusDone}).
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *purchaseOrderRepository) Create(ctx context.Context, order *models.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *purchaseOrderRepository) Update(ctx context.Context, order *models.PurchaseOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *purchaseOrderRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.PurchaseOrder{}, id).Error
}

func (r *purchaseOrderRepository) List(ctx context.Context, query *ListQuery) ([]models.PurchaseOrder, int64, error) {
	var orders []models.PurchaseOrder
	var total int64

	db := r.db.WithContext(ctx).Model(&models.PurchaseOrder{})

	if query.Filters["project_id"] != "" {
		db = db.Where("purchase_orders.project_id = ?", query.Filters["project_id"])
	}
	if query.Filters["status"] != "" {
		db = db.Where("purchase_orders.status = ?", query.Filters["status"])
	}
	if query.Filters["mxn_pending"] == "true" {
		db = db.Where("purchase_orders.mxn_pending = ?", true)
	}

	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("purchase_orders.order_ref ILIKE ? OR purchase_orders.supplier ILIKE ?", search, search)
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
		db = db.Order("purchase_orders.created_at DESC")
	}

	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.Preload("Rubro").Find(&orders).Error
	return orders, total, err
}

func (r *purchaseOrderRepository) AddAttachment(ctx context.Context, att *models.PurchaseOrderAttachment) error {
	return r.db.WithContext(ctx).Create(att).Error
}

func (r *purchaseOrderRepository) FindAttachment(ctx context.Context, id uint) (*models.PurchaseOrderAttachment, error) {
	var att models.PurchaseOrderAttachment
	err := r.db.WithContext(ctx).First(&att, id).Error
	if err != nil {
		return nil, err
	}
	return &att, nil
}

func (r *purchaseOrderRepository) FindAttachmentsByProject(ctx context.Context, projectID uint) ([]models.PurchaseOrderAttachment, error) {
	var attachments []models.PurchaseOrderAttachment
	err := r.db.WithContext(ctx).
		Joins("JOIN purchase_orders ON purchase_orders.id = purchase_order_attachments.purchase_order_id").
		Where("purchase_orders.project_id = ?", projectID).
		Order("purchase_order_attachments.id ASC").
		Find(&attachments).Error
	return attachments, err
}

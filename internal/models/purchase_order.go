package models

import (
	"time"
)

// Purchase order status constants
const (
	PurchaseStatusDraft     = "draft"
	PurchaseStatusSent      = "sent"
	PurchaseStatusPurchase  = "purchase"
	PurchaseStatusDone      = "done"
	PurchaseStatusCancelled = "cancel"
)

// PurchaseOrder is the execution feed. Confirmed orders in company
// currency drive the executed amounts of the budget hierarchy.
type PurchaseOrder struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderRef   string    `gorm:"uniqueIndex;not null" json:"order_ref"`
	ProjectID  uint      `gorm:"not null;index" json:"project_id"`
	StageID    *uint     `gorm:"index" json:"stage_id"`
	ActivityID *uint     `gorm:"index" json:"activity_id"`
	RubroID    *uint     `gorm:"index" json:"rubro_id"`
	Supplier   string    `json:"supplier"`
	Status     string    `gorm:"default:draft;index" json:"status"`
	Currency   string    `gorm:"default:MXN;not null" json:"currency"`
	Amount     float64   `gorm:"type:decimal(14,2);default:0" json:"amount"`
	AmountMXN  float64   `gorm:"type:decimal(14,2);default:0" json:"amount_mxn"`
	MXNPending bool      `gorm:"default:false" json:"mxn_pending"`
	OrderDate  *string   `gorm:"type:date" json:"order_date"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Associations
	Project     Project                   `gorm:"foreignKey:ProjectID" json:"-"`
	Stage       *Stage                    `gorm:"foreignKey:StageID" json:"-"`
	Activity    *Activity                 `gorm:"foreignKey:ActivityID" json:"-"`
	Rubro       *Rubro                    `gorm:"foreignKey:RubroID" json:"-"`
	Attachments []PurchaseOrderAttachment `gorm:"foreignKey:PurchaseOrderID" json:"attachments,omitempty"`
}

// TableName specifies the table name for PurchaseOrder
func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// EffectiveMXN returns the amount in company currency. Orders already
// denominated in the company currency mirror their own amount.
func (o *PurchaseOrder) EffectiveMXN(companyCurrency string) float64 {
	if o.Currency == companyCurrency {
		return o.Amount
	}
	return o.AmountMXN
}

// Qualifies reports whether the order contributes to executed amounts:
// confirmed state and a positive company currency amount.
func (o *PurchaseOrder) Qualifies(companyCurrency string) bool {
	if o.Status != PurchaseStatusPurchase && o.Status != PurchaseStatusDone {
		return false
	}
	return o.EffectiveMXN(companyCurrency) > 0
}

// EffectiveStageID resolves the stage the order charges against,
// falling back to the linked activity's stage when the order has none.
func (o *PurchaseOrder) EffectiveStageID(activity *Activity) uint {
	if o.StageID != nil {
		return *o.StageID
	}
	if activity != nil {
		return activity.StageID
	}
	return 0
}

// PurchaseOrderAttachment stores a document attached to an order
type PurchaseOrderAttachment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PurchaseOrderID uint      `gorm:"not null;index" json:"purchase_order_id"`
	FileName        string    `gorm:"not null" json:"file_name"`
	FilePath        string    `gorm:"not null" json:"-"`
	ContentType     string    `json:"content_type"`
	SizeBytes       int64     `json:"size_bytes"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for PurchaseOrderAttachment
func (PurchaseOrderAttachment) TableName() string {
	return "purchase_order_attachments"
}

// PurchaseOrderResponse is the JSON response format for purchase orders
type PurchaseOrderResponse struct {
	ID         uint    `json:"id"`
	OrderRef   string  `json:"order_ref"`
	ProjectID  uint    `json:"project_id"`
	StageID    *uint   `json:"stage_id"`
	ActivityID *uint   `json:"activity_id"`
	RubroID    *uint   `json:"rubro_id"`
	Supplier   string  `json:"supplier"`
	Status     string  `json:"status"`
	Currency   string  `json:"currency"`
	Amount     float64 `json:"amount"`
	AmountMXN  float64 `json:"amount_mxn"`
	MXNPending bool    `json:"mxn_pending"`
	OrderDate  *string `json:"order_date"`
}

// ToResponse converts PurchaseOrder to PurchaseOrderResponse
func (o *PurchaseOrder) ToResponse() PurchaseOrderResponse {
	return PurchaseOrderResponse{
		ID:         o.ID,
		OrderRef:   o.OrderRef,
		ProjectID:  o.ProjectID,
		StageID:    o.StageID,
		ActivityID: o.ActivityID,
		RubroID:    o.RubroID,
		Supplier:   o.Supplier,
		Status:     o.Status,
		Currency:   o.Currency,
		Amount:     o.Amount,
		AmountMXN:  o.AmountMXN,
		MXNPending: o.MXNPending,
		OrderDate:  o.OrderDate,
	}
}

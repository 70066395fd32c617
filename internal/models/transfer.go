package models

import (
	"time"
)

// Transfer status constants
const (
	TransferStatusDraft     = "draft"
	TransferStatusConfirmed = "confirmed"
)

// BudgetTransfer moves allocation between two budget lines of the same
// stage. Amounts are tracked per co-funding component.
type BudgetTransfer struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Folio            string     `gorm:"uniqueIndex;not null" json:"folio"`
	ProjectID        uint       `gorm:"not null;index" json:"project_id"`
	StageID          uint       `gorm:"not null;index" json:"stage_id"`
	LineFromID       uint       `gorm:"not null;index" json:"line_from_id"`
	LineToID         uint       `gorm:"not null;index" json:"line_to_id"`
	MontoPrograma    float64    `gorm:"type:decimal(14,2);default:0" json:"monto_programa"`
	MontoConcurrente float64    `gorm:"type:decimal(14,2);default:0" json:"monto_concurrente"`
	MontoTotal       float64    `gorm:"type:decimal(14,2);default:0" json:"monto_total"`
	Status           string     `gorm:"default:draft;index" json:"status"`
	Justificacion    string     `gorm:"type:text" json:"justificacion"`
	CreatedByID      *uint      `gorm:"index" json:"created_by_id"`
	ConfirmedAt      *time.Time `json:"confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Associations
	Project   Project    `gorm:"foreignKey:ProjectID" json:"-"`
	Stage     Stage      `gorm:"foreignKey:StageID" json:"-"`
	LineFrom  BudgetLine `gorm:"foreignKey:LineFromID" json:"line_from,omitempty"`
	LineTo    BudgetLine `gorm:"foreignKey:LineToID" json:"line_to,omitempty"`
	CreatedBy *User      `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}

// TableName specifies the table name for BudgetTransfer
func (BudgetTransfer) TableName() string {
	return "budget_transfers"
}

// MayConfirm returns true if the transfer can be confirmed
func (t *BudgetTransfer) MayConfirm() bool {
	return t.Status == TransferStatusDraft
}

// MayAmend returns true if the transfer amounts can be amended in place
func (t *BudgetTransfer) MayAmend() bool {
	return t.Status == TransferStatusConfirmed
}

// IsConfirmed returns true once the transfer has been applied to balances
func (t *BudgetTransfer) IsConfirmed() bool {
	return t.Status == TransferStatusConfirmed
}

// ApplyTotal back-splits a new total into components using the programa
// percentage, deriving concurrente by subtraction.
func (t *BudgetTransfer) ApplyTotal(total, pctPrograma float64) {
	t.MontoPrograma, t.MontoConcurrente = SplitTotal(total, pctPrograma)
	t.MontoTotal = total
}

// SyncTotal recomputes the total from the components.
func (t *BudgetTransfer) SyncTotal() {
	t.MontoTotal = t.MontoPrograma + t.MontoConcurrente
}

// BudgetTransferResponse is the JSON response format for transfers
type BudgetTransferResponse struct {
	ID               uint       `json:"id"`
	Folio            string     `json:"folio"`
	ProjectID        uint       `json:"project_id"`
	StageID          uint       `json:"stage_id"`
	LineFromID       uint       `json:"line_from_id"`
	LineFromRubro    string     `json:"line_from_rubro"`
	LineToID         uint       `json:"line_to_id"`
	LineToRubro      string     `json:"line_to_rubro"`
	MontoPrograma    float64    `json:"monto_programa"`
	MontoConcurrente float64    `json:"monto_concurrente"`
	MontoTotal       float64    `json:"monto_total"`
	Status           string     `json:"status"`
	Justificacion    string     `json:"justificacion"`
	ConfirmedAt      *time.Time `json:"confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ToResponse converts BudgetTransfer to BudgetTransferResponse
func (t *BudgetTransfer) ToResponse() BudgetTransferResponse {
	return BudgetTransferResponse{
		ID:               t.ID,
		Folio:            t.Folio,
		ProjectID:        t.ProjectID,
		StageID:          t.StageID,
		LineFromID:       t.LineFromID,
		LineFromRubro:    t.LineFrom.Rubro.Name,
		LineToID:         t.LineToID,
		LineToRubro:      t.LineTo.Rubro.Name,
		MontoPrograma:    t.MontoPrograma,
		MontoConcurrente: t.MontoConcurrente,
		MontoTotal:       t.MontoTotal,
		Status:           t.Status,
		Justificacion:    t.Justificacion,
		ConfirmedAt:      t.ConfirmedAt,
		CreatedAt:        t.CreatedAt,
	}
}

package models

import (
	"time"
)

// BudgetLine allocates a rubro inside an activity. A line is unique per
// (activity, rubro) pair and carries both co-funding components.
type BudgetLine struct {
	ID                      uint      `gorm:"primaryKey" json:"id"`
	ActivityID              uint      `gorm:"not null;index:idx_budget_lines_activity_rubro,unique" json:"activity_id"`
	RubroID                 uint      `gorm:"not null;index:idx_budget_lines_activity_rubro,unique" json:"rubro_id"`
	StageID                 uint      `gorm:"not null;index" json:"stage_id"`
	JustificacionEspecifica string    `gorm:"type:text" json:"justificacion_especifica"`
	AssignedPrograma        float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_programa"`
	AssignedConcurrente     float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_concurrente"`
	AssignedTotal           float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_total"`
	ExecutedPrograma        float64   `gorm:"type:decimal(14,2);default:0" json:"executed_programa"`
	ExecutedConcurrente     float64   `gorm:"type:decimal(14,2);default:0" json:"executed_concurrente"`
	ExecutedTotal           float64   `gorm:"type:decimal(14,2);default:0" json:"executed_total"`
	TrafficLight            string    `gorm:"default:green" json:"traffic_light"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`

	// Associations
	Activity Activity `gorm:"foreignKey:ActivityID" json:"activity,omitempty"`
	Rubro    Rubro    `gorm:"foreignKey:RubroID" json:"rubro,omitempty"`
	Stage    Stage    `gorm:"foreignKey:StageID" json:"-"`
}

// TableName specifies the table name for BudgetLine
func (BudgetLine) TableName() string {
	return "budget_lines"
}

// SplitTotal divides a total between components using the programa
// percentage. Concurrente is derived by subtraction so the two parts
// always add back to the total exactly.
func SplitTotal(total, pctPrograma float64) (programa, concurrente float64) {
	programa = total * (pctPrograma / 100.0)
	concurrente = total - programa
	return programa, concurrente
}

// ApplySplitFromTotal fills both assigned components from a total using
// the given percentage. It only acts when both components are zero,
// otherwise manual per-component amounts are kept untouched.
func (l *BudgetLine) ApplySplitFromTotal(total, pctPrograma float64) bool {
	if l.AssignedPrograma != 0 || l.AssignedConcurrente != 0 {
		return false
	}
	l.AssignedPrograma, l.AssignedConcurrente = SplitTotal(total, pctPrograma)
	l.AssignedTotal = total
	return true
}

// RemainingPrograma returns the programa balance still available.
func (l *BudgetLine) RemainingPrograma() float64 {
	return l.AssignedPrograma - l.ExecutedPrograma
}

// RemainingConcurrente returns the concurrente balance still available.
func (l *BudgetLine) RemainingConcurrente() float64 {
	return l.AssignedConcurrente - l.ExecutedConcurrente
}

// RemainingTotal returns the total balance still available.
func (l *BudgetLine) RemainingTotal() float64 {
	return l.AssignedTotal - l.ExecutedTotal
}

// OverExecuted reports whether total execution exceeds the total
// allocation beyond SplitTolerance.
func (l *BudgetLine) OverExecuted() bool {
	return l.ExecutedTotal > l.AssignedTotal+SplitTolerance
}

// EvaluateTrafficLight returns the line status color. A line touched by
// a confirmed transfer wins over an over-executed one.
func (l *BudgetLine) EvaluateTrafficLight(transferTouched bool) string {
	if transferTouched {
		return TrafficLightAmber
	}
	if l.OverExecuted() {
		return TrafficLightOrange
	}
	return TrafficLightGreen
}

// AggregateTrafficLight is the binary status used above line level:
// orange when aggregated execution exceeds the aggregated allocation,
// green otherwise. Amber exists only on lines.
func AggregateTrafficLight(assignedTotal, executedTotal float64) string {
	if executedTotal > assignedTotal+SplitTolerance {
		return TrafficLightOrange
	}
	return TrafficLightGreen
}

// BudgetLineResponse is the JSON response format for budget lines
type BudgetLineResponse struct {
	ID                      uint    `json:"id"`
	ActivityID              uint    `json:"activity_id"`
	ActivityName            string  `json:"activity_name"`
	StageID                 uint    `json:"stage_id"`
	RubroID                 uint    `json:"rubro_id"`
	RubroName               string  `json:"rubro_name"`
	TipoGasto               string  `json:"tipo_gasto"`
	JustificacionEspecifica string  `json:"justificacion_especifica"`
	AssignedPrograma        float64 `json:"assigned_programa"`
	AssignedConcurrente     float64 `json:"assigned_concurrente"`
	AssignedTotal           float64 `json:"assigned_total"`
	ExecutedPrograma        float64 `json:"executed_programa"`
	ExecutedConcurrente     float64 `json:"executed_concurrente"`
	ExecutedTotal           float64 `json:"executed_total"`
	RemainingPrograma       float64 `json:"remaining_programa"`
	RemainingConcurrente    float64 `json:"remaining_concurrente"`
	RemainingTotal          float64 `json:"remaining_total"`
	TrafficLight            string  `json:"traffic_light"`
}

// ToResponse converts BudgetLine to BudgetLineResponse
func (l *BudgetLine) ToResponse() BudgetLineResponse {
	return BudgetLineResponse{
		ID:                      l.ID,
		ActivityID:              l.ActivityID,
		ActivityName:            l.Activity.Name,
		StageID:                 l.StageID,
		RubroID:                 l.RubroID,
		RubroName:               l.Rubro.Name,
		TipoGasto:               l.Rubro.TipoGasto,
		JustificacionEspecifica: l.JustificacionEspecifica,
		AssignedPrograma:        l.AssignedPrograma,
		AssignedConcurrente:     l.AssignedConcurrente,
		AssignedTotal:           l.AssignedTotal,
		ExecutedPrograma:        l.ExecutedPrograma,
		ExecutedConcurrente:     l.ExecutedConcurrente,
		ExecutedTotal:           l.ExecutedTotal,
		RemainingPrograma:       l.RemainingPrograma(),
		RemainingConcurrente:    l.RemainingConcurrente(),
		RemainingTotal:          l.RemainingTotal(),
		TrafficLight:            l.TrafficLight,
	}
}

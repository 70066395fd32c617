package models

import (
	"math"
	"time"
)

// SplitTolerance is the accepted drift when validating co-funding percentages
// and when comparing monetary components.
const SplitTolerance = 0.01

// Traffic light constants
const (
	TrafficLightGreen  = "green"
	TrafficLightOrange = "orange"
	TrafficLightAmber  = "amber"
)

// Project represents a grant-funded project with a Programa/Concurrente
// co-funding split
type Project struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"not null" json:"name"`
	Code                string    `gorm:"uniqueIndex;not null" json:"code"`
	Convocatoria        string    `json:"convocatoria"`
	Description         string    `gorm:"type:text" json:"description"`
	ResponsibleID       *uint     `gorm:"index" json:"responsible_id"`
	Currency            string    `gorm:"default:MXN;not null" json:"currency"`
	PctPrograma         float64   `gorm:"type:decimal(5,2);not null" json:"pct_programa"`
	PctConcurrente      float64   `gorm:"type:decimal(5,2);not null" json:"pct_concurrente"`
	DateStart           *string   `gorm:"type:date" json:"date_start"`
	DateEnd             *string   `gorm:"type:date" json:"date_end"`
	AssignedPrograma    float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_programa"`
	AssignedConcurrente float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_concurrente"`
	AssignedTotal       float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_total"`
	ExecutedPrograma    float64   `gorm:"type:decimal(14,2);default:0" json:"executed_programa"`
	ExecutedConcurrente float64   `gorm:"type:decimal(14,2);default:0" json:"executed_concurrente"`
	ExecutedTotal       float64   `gorm:"type:decimal(14,2);default:0" json:"executed_total"`
	TrafficLight        string    `gorm:"default:green" json:"traffic_light"`
	InconsistencyMsg    string    `gorm:"type:text" json:"inconsistency_msg,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	// Associations
	Responsible *User   `gorm:"foreignKey:ResponsibleID" json:"responsible,omitempty"`
	Stages      []Stage `gorm:"foreignKey:ProjectID" json:"stages,omitempty"`
}

// TableName specifies the table name for Project
func (Project) TableName() string {
	return "projects"
}

// SplitValid returns true when the co-funding percentages sum to 100
// within SplitTolerance.
func (p *Project) SplitValid() bool {
	return math.Abs(p.PctPrograma+p.PctConcurrente-100.0) <= SplitTolerance
}

// SplitAmount divides an amount between components using the project
// percentages. Concurrente is derived by subtraction so the parts always
// add back to the original amount.
func (p *Project) SplitAmount(amount float64) (programa, concurrente float64) {
	programa = amount * (p.PctPrograma / 100.0)
	concurrente = amount - programa
	return programa, concurrente
}

// ProjectResponse is the JSON response format for projects
type ProjectResponse struct {
	ID                  uint      `json:"id"`
	Name                string    `json:"name"`
	Code                string    `json:"code"`
	Convocatoria        string    `json:"convocatoria"`
	Description         string    `json:"description"`
	Currency            string    `json:"currency"`
	PctPrograma         float64   `json:"pct_programa"`
	PctConcurrente      float64   `json:"pct_concurrente"`
	DateStart           *string   `json:"date_start"`
	DateEnd             *string   `json:"date_end"`
	AssignedPrograma    float64   `json:"assigned_programa"`
	AssignedConcurrente float64   `json:"assigned_concurrente"`
	AssignedTotal       float64   `json:"assigned_total"`
	ExecutedPrograma    float64   `json:"executed_programa"`
	ExecutedConcurrente float64   `json:"executed_concurrente"`
	ExecutedTotal       float64   `json:"executed_total"`
	TrafficLight        string    `json:"traffic_light"`
	InconsistencyMsg    string    `json:"inconsistency_msg,omitempty"`
	StageCount          int       `json:"stage_count"`
	CreatedAt           time.Time `json:"created_at"`
}

// ToResponse converts Project to ProjectResponse
func (p *Project) ToResponse() ProjectResponse {
	return ProjectResponse{
		ID:                  p.ID,
		Name:                p.Name,
		Code:                p.Code,
		Convocatoria:        p.Convocatoria,
		Description:         p.Description,
		Currency:            p.Currency,
		PctPrograma:         p.PctPrograma,
		PctConcurrente:      p.PctConcurrente,
		DateStart:           p.DateStart,
		DateEnd:             p.DateEnd,
		AssignedPrograma:    p.AssignedPrograma,
		AssignedConcurrente: p.AssignedConcurrente,
		AssignedTotal:       p.AssignedTotal,
		ExecutedPrograma:    p.ExecutedPrograma,
		ExecutedConcurrente: p.ExecutedConcurrente,
		ExecutedTotal:       p.ExecutedTotal,
		TrafficLight:        p.TrafficLight,
		InconsistencyMsg:    p.InconsistencyMsg,
		StageCount:          len(p.Stages),
		CreatedAt:           p.CreatedAt,
	}
}

// Stage represents an execution stage (etapa) inside a project
type Stage struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	ProjectID           uint      `gorm:"not null;index" json:"project_id"`
	Name                string    `gorm:"not null" json:"name"`
	Sequence            int       `gorm:"default:10" json:"sequence"`
	DateStart           *string   `gorm:"type:date" json:"date_start"`
	DateEnd             *string   `gorm:"type:date" json:"date_end"`
	AssignedPrograma    float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_programa"`
	AssignedConcurrente float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_concurrente"`
	AssignedTotal       float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_total"`
	ExecutedPrograma    float64   `gorm:"type:decimal(14,2);default:0" json:"executed_programa"`
	ExecutedConcurrente float64   `gorm:"type:decimal(14,2);default:0" json:"executed_concurrente"`
	ExecutedTotal       float64   `gorm:"type:decimal(14,2);default:0" json:"executed_total"`
	TrafficLight        string    `gorm:"default:green" json:"traffic_light"`
	InconsistencyMsg    string    `gorm:"type:text" json:"inconsistency_msg,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	// Associations
	Project    Project    `gorm:"foreignKey:ProjectID" json:"-"`
	Activities []Activity `gorm:"foreignKey:StageID" json:"activities,omitempty"`
}

// TableName specifies the table name for Stage
func (Stage) TableName() string {
	return "project_stages"
}

// SplitMatches reports whether the stage's component ratio matches the
// given programa percentage within SplitTolerance. A stage without an
// allocation never matches.
func (s *Stage) SplitMatches(pctPrograma float64) bool {
	total := s.AssignedPrograma + s.AssignedConcurrente
	if total <= 0 {
		return false
	}
	return math.Abs(s.AssignedPrograma/total*100.0-pctPrograma) <= SplitTolerance
}

// Activity represents a budgeted activity inside a stage
type Activity struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	StageID             uint      `gorm:"not null;index" json:"stage_id"`
	Name                string    `gorm:"not null" json:"name"`
	Responsible         string    `json:"responsible"`
	Description         string    `gorm:"type:text" json:"description"`
	AssignedPrograma    float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_programa"`
	AssignedConcurrente float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_concurrente"`
	AssignedTotal       float64   `gorm:"type:decimal(14,2);default:0" json:"assigned_total"`
	ExecutedPrograma    float64   `gorm:"type:decimal(14,2);default:0" json:"executed_programa"`
	ExecutedConcurrente float64   `gorm:"type:decimal(14,2);default:0" json:"executed_concurrente"`
	ExecutedTotal       float64   `gorm:"type:decimal(14,2);default:0" json:"executed_total"`
	TrafficLight        string    `gorm:"default:green" json:"traffic_light"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	// Associations
	Stage       Stage        `gorm:"foreignKey:StageID" json:"-"`
	BudgetLines []BudgetLine `gorm:"foreignKey:ActivityID" json:"budget_lines,omitempty"`
}

// TableName specifies the table name for Activity
func (Activity) TableName() string {
	return "project_activities"
}

// Tipo de gasto constants
const (
	TipoGastoInversion = "inversion"
	TipoGastoCorriente = "corriente"
)

// Rubro represents an expense concept from the funding agency catalog
type Rubro struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Code      string    `json:"code"`
	TipoGasto string    `gorm:"default:corriente;not null" json:"tipo_gasto"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Rubro
func (Rubro) TableName() string {
	return "rubros"
}

// ValidTipoGasto reports whether the expense type is one of the
// catalog values.
func ValidTipoGasto(t string) bool {
	return t == TipoGastoInversion || t == TipoGastoCorriente
}

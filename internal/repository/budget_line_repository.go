package repository

import (
	"context"
	"errors"

	"github.com/secihti/budget-api/internal/models"
	"gorm.io/gorm"
)

// RubroStageSummary is one row of the per-rubro dashboard, grouped by
// stage and rubro across a project.
type RubroStageSummary struct {
	StageID             uint    `json:"stage_id"`
	StageName           string  `json:"stage_name"`
	RubroID             uint    `json:"rubro_id"`
	RubroName           string  `json:"rubro_name"`
	TipoGasto           string  `json:"tipo_gasto"`
	AssignedPrograma    float64 `json:"assigned_programa"`
	AssignedConcurrente float64 `json:"assigned_concurrente"`
	AssignedTotal       float64 `json:"assigned_total"`
	ExecutedPrograma    float64 `json:"executed_programa"`
	ExecutedConcurrente float64 `json:"executed_concurrente"`
	ExecutedTotal       float64 `json:"executed_total"`
}

// BudgetLineRepository defines the interface for budget line data access
type BudgetLineRepository interface {
	FindByID(ctx context.Context, id uint) (*models.BudgetLine, error)
	FindByActivity(ctx context.Context, activityID uint) ([]models.BudgetLine, error)
	FindByStage(ctx context.Context, stageID uint) ([]models.BudgetLine, error)
	FindByProject(ctx context.Context, projectID uint) ([]models.BudgetLine, error)
	FindByActivityRubro(ctx context.Context, activityID, rubroID uint) (*models.BudgetLine, error)
	Create(ctx context.Context, line *models.BudgetLine) error
	Update(ctx context.Context, line *models.BudgetLine) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, query *ListQuery) ([]models.BudgetLine, int64, error)
	RubroSummaryByStage(ctx context.Context, projectID uint) ([]RubroStageSummary, error)
}

type budgetLineRepository struct {
	db *gorm.DB
}

// NewBudgetLineRepository creates a new budget line repository
func NewBudgetLineRepository(db *gorm.DB) BudgetLineRepository {
	return &budgetLineRepository{db: db}
}

func (r *budgetLineRepository) FindByID(ctx context.Context, id uint) (*models.BudgetLine, error) {
	var line models.BudgetLine
	err := r.db.WithContext(ctx).
		Preload("Activity").
		Preload("Rubro").
		First(&line, id).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *budgetLineRepository) FindByActivity(ctx context.Context, activityID uint) ([]models.BudgetLine, error) {
	var lines []models.BudgetLine
	err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Preload("Rubro").
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *budgetLineRepository) FindByStage(ctx context.Context, stageID uint) ([]models.BudgetLine, error) {
	var lines []models.BudgetLine
	err := r.db.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Preload("Activity").
		Preload("Rubro").
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *budgetLineRepository) FindByProject(ctx context.Context, projectID uint) ([]models.BudgetLine, error) {
	var lines []models.BudgetLine
	err := r.db.WithContext(ctx).
		Joins("JOIN project_stages ON project_stages.id = budget_lines.stage_id").
		Where("project_stages.project_id = ?", projectID).
		Preload("Activity").
		Preload("Rubro").
		Order("budget_lines.id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *budgetLineRepository) FindByActivityRubro(ctx context.Context, activityID, rubroID uint) (*models.BudgetLine, error) {
	var line models.BudgetLine
	err := r.db.WithContext(ctx).
		Where("activity_id = ? AND rubro_id = ?", activityID, rubroID).
		First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *budgetLineRepository) Create(ctx context.Context, line *models.BudgetLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

func (r *budgetLineRepository) Update(ctx context.Context, line *models.BudgetLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

func (r *budgetLineRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.BudgetLine{}, id).Error
}

func (r *budgetLineRepository) List(ctx context.Context, query *ListQuery) ([]models.BudgetLine, int64, error) {
	var lines []models.BudgetLine
	var total int64

	db := r.db.WithContext(ctx).Model(&models.BudgetLine{})

	if query.Filters["stage_id"] != "" {
		db = db.Where("budget_lines.stage_id = ?", query.Filters["stage_id"])
	}
	if query.Filters["activity_id"] != "" {
		db = db.Where("budget_lines.activity_id = ?", query.Filters["activity_id"])
	}
	if query.Filters["traffic_light"] != "" {
		db = db.Where("budget_lines.traffic_light = ?", query.Filters["traffic_light"])
	}

	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Joins("JOIN rubros ON rubros.id = budget_lines.rubro_id").
			Joins("JOIN project_activities ON project_activities.id = budget_lines.activity_id").
			Where("rubros.name ILIKE ? OR project_activities.name ILIKE ?", search, search)
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
		db = db.Order("budget_lines.id ASC")
	}

	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.
		Select("budget_lines.*").
		Preload("Activity").
		Preload("Rubro").
		Find(&lines).Error
	return lines, total, err
}

// RubroSummaryByStage aggregates budget lines per (stage, rubro) for a
// whole project in a single query.
func (r *budgetLineRepository) RubroSummaryByStage(ctx context.Context, projectID uint) ([]RubroStageSummary, error) {
	var rows []RubroStageSummary
	err := r.db.WithContext(ctx).Raw(`
		SELECT ps.id AS stage_id,
		       ps.name AS stage_name,
		       rb.id AS rubro_id,
		       rb.name AS rubro_name,
		       rb.tipo_gasto AS tipo_gasto,
		       COALESCE(SUM(bl.assigned_programa), 0) AS assigned_programa,
		       COALESCE(SUM(bl.assigned_concurrente), 0) AS assigned_concurrente,
		       COALESCE(SUM(bl.assigned_total), 0) AS assigned_total,
		       COALESCE(SUM(bl.executed_programa), 0) AS executed_programa,
		       COALESCE(SUM(bl.executed_concurrente), 0) AS executed_concurrente,
		       COALESCE(SUM(bl.executed_total), 0) AS executed_total
		FROM budget_lines bl
		JOIN project_stages ps ON ps.id = bl.stage_id
		JOIN rubros rb ON rb.id = bl.rubro_id
		WHERE ps.project_id = ?
		GROUP BY ps.id, ps.name, rb.id, rb.name, rb.tipo_gasto
		ORDER BY ps.id, rb.name`, projectID).
		Scan(&rows).Error
	return rows, err
}

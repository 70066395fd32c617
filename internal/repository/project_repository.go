package repository

import (
	"context"

	"github.com/secihti/budget-api/internal/models"
	"gorm.io/gorm"
)

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Project, error)
	FindByIDWithHierarchy(ctx context.Context, id uint) (*models.Project, error)
	FindByCode(ctx context.Context, code string) (*models.Project, error)
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, query *ListQuery) ([]models.Project, int64, error)
	FindAll(ctx context.Context) ([]models.Project, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) FindByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence ASC")
	}).First(&project, id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) FindByIDWithHierarchy(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Stages.Activities").
		Preload("Stages.Activities.BudgetLines").
		Preload("Stages.Activities.BudgetLines.Rubro").
		First(&project, id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) FindByCode(ctx context.Context, code string) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *projectRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Project{}, id).Error
}

func (r *projectRepository) List(ctx context.Context, query *ListQuery) ([]models.Project, int64, error) {
	var projects []models.Project
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Project{})

	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("name ILIKE ? OR code ILIKE ? OR convocatoria ILIKE ?", search, search, search)
	}

	if query.Filters["traffic_light"] != "" {
		db = db.Where("traffic_light = ?", query.Filters["traffic_light"])
	}

	db.Count(&total)

	if query.SortBy != "" {
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("created_at DESC")
	}

	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.Preload("Stages").Find(&projects).Error
	return projects, total, err
}

func (r *projectRepository) FindAll(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.WithContext(ctx).Find(&projects).Error
	return projects, err
}

// StageRepository defines the interface for stage data access
type StageRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Stage, error)
	FindByProject(ctx context.Context, projectID uint) ([]models.Stage, error)
	Create(ctx context.Context, stage *models.Stage) error
	Update(ctx context.Context, stage *models.Stage) error
	Delete(ctx context.Context, id uint) error
}

type stageRepository struct {
	db *gorm.DB
}

// NewStageRepository creates a new stage repository
func NewStageRepository(db *gorm.DB) StageRepository {
	return &stageRepository{db: db}
}

func (r *stageRepository) FindByID(ctx context.Context, id uint) (*models.Stage, error) {
	var stage models.Stage
	err := r.db.WithContext(ctx).Preload("Project").First(&stage, id).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *stageRepository) FindByProject(ctx context.Context, projectID uint) ([]models.Stage, error) {
	var stages []models.Stage
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sequence ASC").
		Find(&stages).Error
	return stages, err
}

func (r *stageRepository) Create(ctx context.Context, stage *models.Stage) error {
	return r.db.WithContext(ctx).Create(stage).Error
}

func (r *stageRepository) Update(ctx context.Context, stage *models.Stage) error {
	return r.db.WithContext(ctx).Save(stage).Error
}

func (r *stageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Stage{}, id).Error
}

// ActivityRepository defines the interface for activity data access
type ActivityRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Activity, error)
	FindByStage(ctx context.Context, stageID uint) ([]models.Activity, error)
	FindByProject(ctx context.Context, projectID uint) ([]models.Activity, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id uint) error
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) FindByID(ctx context.Context, id uint) (*models.Activity, error) {
	var activity models.Activity
	err := r.db.WithContext(ctx).
		Preload("Stage.Project").
		Preload("BudgetLines.Rubro").
		First(&activity, id).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *activityRepository) FindByStage(ctx context.Context, stageID uint) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.WithContext(ctx).
		Where("stage_id = ?", stageID).
		Order("id ASC").
		Find(&activities).Error
	return activities, err
}

func (r *activityRepository) FindByProject(ctx context.Context, projectID uint) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.WithContext(ctx).
		Joins("JOIN project_stages ON project_stages.id = project_activities.stage_id").
		Where("project_stages.project_id = ?", projectID).
		Order("project_activities.id ASC").
		Find(&activities).Error
	return activities, err
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *activityRepository) Update(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Save(activity).Error
}

func (r *activityRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Activity{}, id).Error
}

// RubroRepository defines the interface for rubro catalog access
type RubroRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Rubro, error)
	FindByName(ctx context.Context, name string) (*models.Rubro, error)
	FindAll(ctx context.Context, activeOnly bool) ([]models.Rubro, error)
	Create(ctx context.Context, rubro *models.Rubro) error
	Update(ctx context.Context, rubro *models.Rubro) error
	Delete(ctx context.Context, id uint) error
	InUse(ctx context.Context, id uint) (bool, error)
}

type rubroRepository struct {
	db *gorm.DB
}

// NewRubroRepository creates a new rubro repository
func NewRubroRepository(db *gorm.DB) RubroRepository {
	return &rubroRepository{db: db}
}

func (r *rubroRepository) FindByID(ctx context.Context, id uint) (*models.Rubro, error) {
	var rubro models.Rubro
	err := r.db.WithContext(ctx).First(&rubro, id).Error
	if err != nil {
		return nil, err
	}
	return &rubro, nil
}

func (r *rubroRepository) FindByName(ctx context.Context, name string) (*models.Rubro, error) {
	var rubro models.Rubro
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		First(&rubro).Error
	if err != nil {
		return nil, err
	}
	return &rubro, nil
}

func (r *rubroRepository) FindAll(ctx context.Context, activeOnly bool) ([]models.Rubro, error) {
	var rubros []models.Rubro
	db := r.db.WithContext(ctx)
	if activeOnly {
		db = db.Where("active = ?", true)
	}
	err := db.Order("name ASC").Find(&rubros).Error
	return rubros, err
}

func (r *rubroRepository) Create(ctx context.Context, rubro *models.Rubro) error {
	return r.db.WithContext(ctx).Create(rubro).Error
}

func (r *rubroRepository) Update(ctx context.Context, rubro *models.Rubro) error {
	return r.db.WithContext(ctx).Save(rubro).Error
}

func (r *rubroRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Rubro{}, id).Error
}

func (r *rubroRepository) InUse(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BudgetLine{}).
		Where("rubro_id = ?", id).
		Count(&count).Error
	return count > 0, err
}

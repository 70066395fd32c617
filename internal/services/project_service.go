package services

import (
	"context"
	"fmt"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
)

type ProjectService struct {
	repo      repository.ProjectRepository
	stageRepo repository.StageRepository
	auditSvc  *AuditService
}

func NewProjectService(repo repository.ProjectRepository, stageRepo repository.StageRepository, auditSvc *AuditService) *ProjectService {
	return &ProjectService{repo: repo, stageRepo: stageRepo, auditSvc: auditSvc}
}

func (s *ProjectService) FindByID(ctx context.Context, id uint) (*models.Project, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ProjectService) FindByIDWithHierarchy(ctx context.Context, id uint) (*models.Project, error) {
	return s.repo.FindByIDWithHierarchy(ctx, id)
}

func (s *ProjectService) List(ctx context.Context, query *repository.ListQuery) ([]models.Project, int64, error) {
	return s.repo.List(ctx, query)
}

// Create registers a project. The co-funding percentages must sum to
// 100 within tolerance; concurrente defaults to the complement when
// only programa is given.
func (s *ProjectService) Create(ctx context.Context, project *models.Project, actorID uint) error {
	if project.PctConcurrente == 0 && project.PctPrograma > 0 {
		project.PctConcurrente = 100.0 - project.PctPrograma
	}
	if err := validateProjectSplit(project); err != nil {
		return err
	}
	if project.Currency == "" {
		project.Currency = "MXN"
	}
	project.AssignedTotal = project.AssignedPrograma + project.AssignedConcurrente

	if err := s.repo.Create(ctx, project); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actorID, "CREATE", "Project", project.ID,
		fmt.Sprintf("Proyecto %s creado con división %.2f/%.2f", project.Code, project.PctPrograma, project.PctConcurrente), "", "")
	return nil
}

func (s *ProjectService) Update(ctx context.Context, project *models.Project, actorID uint) error {
	if err := validateProjectSplit(project); err != nil {
		return err
	}
	project.AssignedTotal = project.AssignedPrograma + project.AssignedConcurrente
	if err := s.repo.Update(ctx, project); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "UPDATE", "Project", project.ID,
		fmt.Sprintf("Proyecto %s actualizado", project.Code), "", "")
	return nil
}

func (s *ProjectService) Delete(ctx context.Context, id uint, actorID uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "DELETE", "Project", id, "Proyecto eliminado", "", "")
	return nil
}

func validateProjectSplit(project *models.Project) error {
	if project.PctPrograma < 0 || project.PctPrograma > 100 ||
		project.PctConcurrente < 0 || project.PctConcurrente > 100 {
		return NewValidationError("los porcentajes deben estar entre 0 y 100")
	}
	if !project.SplitValid() {
		return NewValidationError("los porcentajes Programa y Concurrente deben sumar 100 (suma actual: %.2f)",
			project.PctPrograma+project.PctConcurrente)
	}
	return nil
}

type StageService struct {
	repo        repository.StageRepository
	projectRepo repository.ProjectRepository
	auditSvc    *AuditService
}

func NewStageService(repo repository.StageRepository, projectRepo repository.ProjectRepository, auditSvc *AuditService) *StageService {
	return &StageService{repo: repo, projectRepo: projectRepo, auditSvc: auditSvc}
}

func (s *StageService) FindByID(ctx context.Context, id uint) (*models.Stage, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *StageService) FindByProject(ctx context.Context, projectID uint) ([]models.Stage, error) {
	return s.repo.FindByProject(ctx, projectID)
}

func (s *StageService) Create(ctx context.Context, stage *models.Stage, actorID uint) error {
	project, err := s.projectRepo.FindByID(ctx, stage.ProjectID)
	if err != nil {
		return NewValidationError("el proyecto indicado no existe")
	}
	if err := validateStageSplit(project, stage); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, stage); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "CREATE", "Stage", stage.ID,
		fmt.Sprintf("Etapa %s creada con asignación %.2f", stage.Name, stage.AssignedTotal), "", "")
	return nil
}

func (s *StageService) Update(ctx context.Context, stage *models.Stage, actorID uint) error {
	project, err := s.projectRepo.FindByID(ctx, stage.ProjectID)
	if err != nil {
		return NewValidationError("el proyecto indicado no existe")
	}
	if err := validateStageSplit(project, stage); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, stage); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "UPDATE", "Stage", stage.ID,
		fmt.Sprintf("Etapa %s actualizada", stage.Name), "", "")
	return nil
}

// validateStageSplit enforces the stage allocation contract: both
// components non-negative, a positive sum, and a component ratio
// matching the project percentages within tolerance. The total is
// derived here, never taken from the caller.
func validateStageSplit(project *models.Project, stage *models.Stage) error {
	if stage.AssignedPrograma < 0 || stage.AssignedConcurrente < 0 {
		return NewValidationError("los montos de la etapa no pueden ser negativos")
	}
	if stage.AssignedPrograma+stage.AssignedConcurrente <= 0 {
		return NewValidationError("la etapa debe tener un monto asignado mayor a cero")
	}
	if !stage.SplitMatches(project.PctPrograma) {
		return NewValidationError("la división de la etapa no coincide con los porcentajes del proyecto (%.2f/%.2f)",
			project.PctPrograma, project.PctConcurrente)
	}
	stage.AssignedTotal = stage.AssignedPrograma + stage.AssignedConcurrente
	return nil
}

func (s *StageService) Delete(ctx context.Context, id uint, actorID uint) error {
	stage, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.auditSvc.Log(ctx, actorID, "DELETE", "Stage", id,
		fmt.Sprintf("Etapa %s eliminada", stage.Name), "", "")
	return nil
}

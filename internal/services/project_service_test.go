package services

import (
	"context"
	"testing"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type crudProjectRepo struct {
	repository.ProjectRepository
	project *models.Project
	nextID  uint
}

func (m *crudProjectRepo) FindByID(ctx context.Context, id uint) (*models.Project, error) {
	return m.project, nil
}

func (m *crudProjectRepo) Create(ctx context.Context, project *models.Project) error {
	m.nextID++
	project.ID = m.nextID
	m.project = project
	return nil
}

func (m *crudProjectRepo) Update(ctx context.Context, project *models.Project) error {
	m.project = project
	return nil
}

func TestProjectService_Create_NormalizesTotals(t *testing.T) {
	repo := &crudProjectRepo{}
	svc := NewProjectService(repo, nil, nil)

	project := &models.Project{
		Code:                "PROJ-001",
		PctPrograma:         75,
		AssignedPrograma:    600,
		AssignedConcurrente: 200,
	}
	require.NoError(t, svc.Create(context.Background(), project, 1))

	assert.InDelta(t, 25.0, project.PctConcurrente, 0.001, "complement is filled in")
	assert.InDelta(t, 800.0, project.AssignedTotal, 0.001, "total derives from the components")
	assert.Equal(t, "MXN", project.Currency)
}

func TestProjectService_Create_RejectsBrokenSplit(t *testing.T) {
	svc := NewProjectService(&crudProjectRepo{}, nil, nil)

	err := svc.Create(context.Background(), &models.Project{
		Code: "PROJ-002", PctPrograma: 70, PctConcurrente: 40,
	}, 1)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func newStageFixture() (*StageService, *importStageRepo) {
	project := &models.Project{ID: 1, Code: "PROJ-001", PctPrograma: 75, PctConcurrente: 25}
	stageRepo := &importStageRepo{}
	svc := NewStageService(stageRepo, &crudProjectRepo{project: project}, nil)
	return svc, stageRepo
}

func TestStageService_Create_RequiresPositiveAllocation(t *testing.T) {
	svc, _ := newStageFixture()

	err := svc.Create(context.Background(), &models.Stage{
		ProjectID: 1, Name: "Etapa 1",
	}, 1)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestStageService_Create_EnforcesProjectRatio(t *testing.T) {
	svc, repo := newStageFixture()

	// 60/40 against a 75/25 project is off by far more than tolerance.
	err := svc.Create(context.Background(), &models.Stage{
		ProjectID: 1, Name: "Etapa 1",
		AssignedPrograma: 600, AssignedConcurrente: 400,
	}, 1)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	stage := &models.Stage{
		ProjectID: 1, Name: "Etapa 1",
		AssignedPrograma: 750, AssignedConcurrente: 250,
	}
	require.NoError(t, svc.Create(context.Background(), stage, 1))
	assert.InDelta(t, 1000.0, stage.AssignedTotal, 0.001)
	assert.Len(t, repo.stages, 1)
}

func TestStageService_Update_RevalidatesAllocation(t *testing.T) {
	svc, _ := newStageFixture()

	stage := &models.Stage{
		ProjectID: 1, Name: "Etapa 1",
		AssignedPrograma: 750, AssignedConcurrente: 250,
	}
	require.NoError(t, svc.Create(context.Background(), stage, 1))

	stage.AssignedPrograma = 100
	stage.AssignedConcurrente = 900
	err := svc.Update(context.Background(), stage, 1)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

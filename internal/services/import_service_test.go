package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type importStageRepo struct {
	repository.StageRepository
	stages []models.Stage
	nextID uint
}

func (m *importStageRepo) FindByProject(ctx context.Context, projectID uint) ([]models.Stage, error) {
	return m.stages, nil
}

func (m *importStageRepo) Create(ctx context.Context, stage *models.Stage) error {
	m.nextID++
	stage.ID = m.nextID
	m.stages = append(m.stages, *stage)
	return nil
}

func (m *importStageRepo) Update(ctx context.Context, stage *models.Stage) error { return nil }

type importActivityRepo struct {
	repository.ActivityRepository
	activities []models.Activity
	nextID     uint
}

func (m *importActivityRepo) FindByProject(ctx context.Context, projectID uint) ([]models.Activity, error) {
	return m.activities, nil
}

func (m *importActivityRepo) Create(ctx context.Context, activity *models.Activity) error {
	m.nextID++
	activity.ID = m.nextID
	m.activities = append(m.activities, *activity)
	return nil
}

func (m *importActivityRepo) Update(ctx context.Context, activity *models.Activity) error {
	return nil
}

type importRubroRepo struct {
	repository.RubroRepository
	rubros map[string]*models.Rubro
}

func (m *importRubroRepo) FindByName(ctx context.Context, name string) (*models.Rubro, error) {
	r, ok := m.rubros[name]
	if !ok {
		return nil, errors.New("record not found")
	}
	return r, nil
}

type importLineRepo struct {
	repository.BudgetLineRepository
	lines  []*models.BudgetLine
	nextID uint
}

func (m *importLineRepo) FindByActivityRubro(ctx context.Context, activityID, rubroID uint) (*models.BudgetLine, error) {
	for _, l := range m.lines {
		if l.ActivityID == activityID && l.RubroID == rubroID {
			return l, nil
		}
	}
	return nil, nil
}

func (m *importLineRepo) FindByProject(ctx context.Context, projectID uint) ([]models.BudgetLine, error) {
	var out []models.BudgetLine
	for _, l := range m.lines {
		out = append(out, *l)
	}
	return out, nil
}

func (m *importLineRepo) Create(ctx context.Context, line *models.BudgetLine) error {
	m.nextID++
	line.ID = m.nextID
	m.lines = append(m.lines, line)
	return nil
}

func (m *importLineRepo) Update(ctx context.Context, line *models.BudgetLine) error { return nil }

func newImportFixture() (*ImportService, *importLineRepo) {
	logger.Setup("test")

	project := &models.Project{ID: 1, Code: "PROJ-001", PctPrograma: 70, PctConcurrente: 30}
	projectRepo := &fakeProjectRepo{project: project}
	stageRepo := &importStageRepo{}
	activityRepo := &importActivityRepo{}
	rubroRepo := &importRubroRepo{rubros: map[string]*models.Rubro{
		"Materiales": {ID: 100, Name: "Materiales", TipoGasto: "corriente"},
		"Equipo":     {ID: 200, Name: "Equipo", TipoGasto: "inversion"},
	}}
	lineRepo := &importLineRepo{}

	execSvc := NewExecutionService(
		projectRepo,
		stageRepo,
		activityRepo,
		lineRepo,
		&fakeOrderRepo{},
		&fakeTransferRepo{},
		nil,
		"MXN",
	)

	svc := NewImportService(projectRepo, stageRepo, activityRepo, rubroRepo, lineRepo, execSvc, nil)
	return svc, lineRepo
}

func TestImportService_CreatesHierarchyFromCSV(t *testing.T) {
	svc, lineRepo := newImportFixture()

	input := strings.Join([]string{
		"Etapa,Actividad,Concepto,Tipo de Gasto,Total,Monto Programa,Monto Concurrente",
		"Etapa 1,Adquisición de insumos,Materiales,corriente,1000,700,300",
		"Etapa 1,Adquisición de insumos,Equipo,inversion,500,350,150",
		"Etapa 2,Difusión,Materiales,corriente,200,140,60",
	}, "\n")

	result, err := svc.ImportActivitiesCSV(context.Background(), 1, strings.NewReader(input), 1)
	require.NoError(t, err)

	assert.Equal(t, 3, result.RowsProcessed)
	assert.Equal(t, 2, result.StagesCreated)
	assert.Equal(t, 2, result.ActivitiesCreated)
	assert.Equal(t, 3, result.LinesCreated)
	assert.Equal(t, 0, result.LinesUpdated)
	assert.Empty(t, result.Warnings)

	first := lineRepo.lines[0]
	assert.InDelta(t, 700.0, first.AssignedPrograma, 0.001)
	assert.InDelta(t, 300.0, first.AssignedConcurrente, 0.001)
	assert.InDelta(t, 1000.0, first.AssignedTotal, 0.001)
}

func TestImportService_ResplitsInconsistentComponents(t *testing.T) {
	svc, lineRepo := newImportFixture()

	// 600+300 does not add back to 1000, the project split takes over.
	input := strings.Join([]string{
		"Etapa,Actividad,Concepto,Tipo de Gasto,Total,Monto Programa,Monto Concurrente",
		"Etapa 1,Adquisición de insumos,Materiales,corriente,1000,600,300",
	}, "\n")

	_, err := svc.ImportActivitiesCSV(context.Background(), 1, strings.NewReader(input), 1)
	require.NoError(t, err)

	line := lineRepo.lines[0]
	assert.InDelta(t, 700.0, line.AssignedPrograma, 0.001)
	assert.InDelta(t, 300.0, line.AssignedConcurrente, 0.001)
}

func TestImportService_UnknownRubroAborts(t *testing.T) {
	svc, lineRepo := newImportFixture()

	input := strings.Join([]string{
		"Etapa,Actividad,Concepto,Tipo de Gasto,Total,Monto Programa,Monto Concurrente",
		"Etapa 1,Adquisición de insumos,Papelería,corriente,100,70,30",
	}, "\n")

	_, err := svc.ImportActivitiesCSV(context.Background(), 1, strings.NewReader(input), 1)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "Papelería")
	assert.Empty(t, lineRepo.lines)
}

func TestImportService_MissingColumnRejected(t *testing.T) {
	svc, _ := newImportFixture()

	input := "Etapa,Actividad,Concepto,Total\nEtapa 1,A,Materiales,100"

	_, err := svc.ImportActivitiesCSV(context.Background(), 1, strings.NewReader(input), 1)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestImportService_UpdatesExistingLine(t *testing.T) {
	svc, lineRepo := newImportFixture()

	input := strings.Join([]string{
		"Etapa,Actividad,Concepto,Tipo de Gasto,Total,Monto Programa,Monto Concurrente",
		"Etapa 1,Adquisición de insumos,Materiales,corriente,1000,700,300",
	}, "\n")
	_, err := svc.ImportActivitiesCSV(context.Background(), 1, strings.NewReader(input), 1)
	require.NoError(t, err)

	update := strings.Join([]string{
		"Etapa,Actividad,Concepto,Tipo de Gasto,Total,Monto Programa,Monto Concurrente",
		"Etapa 1,Adquisición de insumos,Materiales,corriente,2000,1400,600",
	}, "\n")
	result, err := svc.ImportActivitiesCSV(context.Background(), 1, strings.NewReader(update), 1)
	require.NoError(t, err)

	assert.Equal(t, 0, result.LinesCreated)
	assert.Equal(t, 1, result.LinesUpdated)
	require.Len(t, lineRepo.lines, 1)
	assert.InDelta(t, 1400.0, lineRepo.lines[0].AssignedPrograma, 0.001)
}

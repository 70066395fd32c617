package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportTransferRepo struct {
	repository.TransferRepository
	confirmed []models.BudgetTransfer
}

func (m *reportTransferRepo) FindConfirmedByProject(ctx context.Context, projectID uint) ([]models.BudgetTransfer, error) {
	return m.confirmed, nil
}

func newExportFixture() *ExportService {
	project := &models.Project{
		ID: 1, Code: "PROJ-001", PctPrograma: 75, PctConcurrente: 25,
		Stages: []models.Stage{{ID: 1, Name: "Etapa 1"}},
	}

	materiales := models.Rubro{ID: 100, Name: "Materiales"}
	equipo := models.Rubro{ID: 200, Name: "Equipo"}
	viaticos := models.Rubro{ID: 300, Name: "Viáticos"}

	lineFrom := models.BudgetLine{
		ID: 1, ActivityID: 10, RubroID: 100, StageID: 1, Rubro: materiales,
		AssignedPrograma: 525, AssignedConcurrente: 175,
	}
	lineTo := models.BudgetLine{
		ID: 2, ActivityID: 10, RubroID: 200, StageID: 1, Rubro: equipo,
		AssignedPrograma: 225, AssignedConcurrente: 75,
	}
	// Never touched by a transfer, must not produce a row.
	untouched := models.BudgetLine{
		ID: 3, ActivityID: 10, RubroID: 300, StageID: 1, Rubro: viaticos,
		AssignedPrograma: 100, AssignedConcurrente: 100,
	}

	lineRepo := &fakeLineRepo{lines: map[uint]*models.BudgetLine{
		1: &lineFrom, 2: &lineTo, 3: &untouched,
	}}
	transferRepo := &reportTransferRepo{confirmed: []models.BudgetTransfer{
		{
			ID: 1, ProjectID: 1, StageID: 1,
			LineFromID: 1, LineToID: 2,
			MontoPrograma: 225, MontoConcurrente: 75,
			Status:   models.TransferStatusConfirmed,
			LineFrom: lineFrom, LineTo: lineTo,
		},
	}}

	return NewExportService(
		&fakeProjectRepo{project: project},
		&fakeStageRepo{},
		lineRepo,
		transferRepo,
		nil,
		nil,
	)
}

func TestExportService_ModificationRows(t *testing.T) {
	svc := newExportFixture()

	rows, err := svc.ModificationRows(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Sorted by stage then rubro name.
	equipo := rows[0]
	assert.Equal(t, "Equipo", equipo.Rubro)
	assert.Equal(t, "Ampliación", equipo.Movimiento)
	assert.Equal(t, "Etapa 1", equipo.Etapa)
	assert.InDelta(t, 0.0, equipo.AutorizadoPrograma, 0.001)
	assert.InDelta(t, 225.0, equipo.ModificacionPrograma, 0.001)
	assert.InDelta(t, 75.0, equipo.ModificacionConcurrente, 0.001)
	assert.InDelta(t, 225.0, equipo.ActualizadoPrograma, 0.001)
	assert.InDelta(t, 75.0, equipo.ActualizadoConcurrente, 0.001)

	materiales := rows[1]
	assert.Equal(t, "Materiales", materiales.Rubro)
	assert.Equal(t, "Reducción", materiales.Movimiento)
	assert.InDelta(t, 750.0, materiales.AutorizadoPrograma, 0.001)
	assert.InDelta(t, 250.0, materiales.AutorizadoConcurrente, 0.001)
	assert.InDelta(t, -225.0, materiales.ModificacionPrograma, 0.001)
	assert.InDelta(t, -75.0, materiales.ModificacionConcurrente, 0.001)
	assert.InDelta(t, 525.0, materiales.ActualizadoPrograma, 0.001)
	assert.InDelta(t, 175.0, materiales.ActualizadoConcurrente, 0.001)
}

func TestExportService_ModificationsCSVLayout(t *testing.T) {
	svc := newExportFixture()

	data, filename, err := svc.ExportModificationsCSV(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, filename, "modificaciones_1_")

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"Rubro", "Movimiento", "Etapa",
		"Monto autorizado PP F003", "Monto Autorizado Concurrente",
		"Modificacion Solicitada PP F003", "Modificacion Solicitada Concurrente",
		"Monto Actualizado PP F003", "Monto Actualizado Concurrente",
	}, records[0])

	assert.Equal(t, []string{
		"Equipo", "Ampliación", "Etapa 1",
		"0.00", "0.00", "225.00", "75.00", "225.00", "75.00",
	}, records[1])
	assert.Equal(t, []string{
		"Materiales", "Reducción", "Etapa 1",
		"750.00", "250.00", "-225.00", "-75.00", "525.00", "175.00",
	}, records[2])
}

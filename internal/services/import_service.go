package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/pkg/logger"
)

// ImportService loads a project's budget structure from the CSV layout
// used by the funding agency workbooks. Stages, activities and lines
// are created or updated in place.
type ImportService struct {
	projectRepo  repository.ProjectRepository
	stageRepo    repository.StageRepository
	activityRepo repository.ActivityRepository
	rubroRepo    repository.RubroRepository
	lineRepo     repository.BudgetLineRepository
	execSvc      *ExecutionService
	auditSvc     *AuditService
}

func NewImportService(
	projectRepo repository.ProjectRepository,
	stageRepo repository.StageRepository,
	activityRepo repository.ActivityRepository,
	rubroRepo repository.RubroRepository,
	lineRepo repository.BudgetLineRepository,
	execSvc *ExecutionService,
	auditSvc *AuditService,
) *ImportService {
	return &ImportService{
		projectRepo:  projectRepo,
		stageRepo:    stageRepo,
		activityRepo: activityRepo,
		rubroRepo:    rubroRepo,
		lineRepo:     lineRepo,
		execSvc:      execSvc,
		auditSvc:     auditSvc,
	}
}

// ImportResult summarizes what an import touched.
type ImportResult struct {
	RowsProcessed     int      `json:"rows_processed"`
	StagesCreated     int      `json:"stages_created"`
	ActivitiesCreated int      `json:"activities_created"`
	LinesCreated      int      `json:"lines_created"`
	LinesUpdated      int      `json:"lines_updated"`
	Warnings          []string `json:"warnings,omitempty"`
}

var importColumns = []string{
	"etapa", "actividad", "concepto", "tipo de gasto",
	"total", "monto programa", "monto concurrente",
}

// ImportActivitiesCSV reads the agency workbook export and merges it
// into the project hierarchy. Unknown rubros abort the import with a
// row-numbered error; component amounts that disagree with the total
// are re-split using the project percentages.
func (s *ImportService) ImportActivitiesCSV(ctx context.Context, projectID uint, r io.Reader, actorID uint) (*ImportResult, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, ErrNotFound
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, NewValidationError("no fue posible leer el encabezado del archivo")
	}
	cols, err := mapImportHeader(header)
	if err != nil {
		return nil, err
	}

	stages, err := s.stageRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	stageByName := make(map[string]*models.Stage, len(stages))
	for i := range stages {
		stageByName[normalizeKey(stages[i].Name)] = &stages[i]
	}

	activities, err := s.activityRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	activityByKey := make(map[string]*models.Activity, len(activities))
	for i := range activities {
		k := activityKey(activities[i].StageID, activities[i].Name)
		activityByKey[k] = &activities[i]
	}

	result := &ImportResult{}
	rowNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewValidationError("fila %d: formato CSV inválido", rowNum+1)
		}
		rowNum++

		stageName := strings.TrimSpace(record[cols["etapa"]])
		activityName := strings.TrimSpace(record[cols["actividad"]])
		rubroName := strings.TrimSpace(record[cols["concepto"]])
		if stageName == "" || activityName == "" || rubroName == "" {
			return nil, NewValidationError("fila %d: etapa, actividad y concepto son obligatorios", rowNum)
		}

		total, err := parseAmount(record[cols["total"]])
		if err != nil {
			return nil, NewValidationError("fila %d: total inválido", rowNum)
		}
		programa, err := parseAmount(record[cols["monto programa"]])
		if err != nil {
			return nil, NewValidationError("fila %d: monto programa inválido", rowNum)
		}
		concurrente, err := parseAmount(record[cols["monto concurrente"]])
		if err != nil {
			return nil, NewValidationError("fila %d: monto concurrente inválido", rowNum)
		}

		rubro, err := s.rubroRepo.FindByName(ctx, rubroName)
		if err != nil {
			return nil, NewValidationError("fila %d: el rubro %q no existe en el catálogo", rowNum, rubroName)
		}
		if tipo := strings.TrimSpace(record[cols["tipo de gasto"]]); tipo != "" {
			if normalizeKey(tipo) != normalizeKey(rubro.TipoGasto) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("fila %d: tipo de gasto %q difiere del catálogo (%s)", rowNum, tipo, rubro.TipoGasto))
			}
		}

		stage, ok := stageByName[normalizeKey(stageName)]
		if !ok {
			stage = &models.Stage{
				ProjectID: projectID,
				Name:      stageName,
				Sequence:  (len(stageByName) + 1) * 10,
			}
			if err := s.stageRepo.Create(ctx, stage); err != nil {
				return nil, err
			}
			stageByName[normalizeKey(stageName)] = stage
			result.StagesCreated++
		}

		activity, ok := activityByKey[activityKey(stage.ID, activityName)]
		if !ok {
			activity = &models.Activity{
				StageID: stage.ID,
				Name:    activityName,
			}
			if err := s.activityRepo.Create(ctx, activity); err != nil {
				return nil, err
			}
			activityByKey[activityKey(stage.ID, activityName)] = activity
			result.ActivitiesCreated++
		}

		// Components that do not add back to the total are re-split
		// using the project percentages.
		if math.Abs(programa+concurrente-total) > models.SplitTolerance {
			programa, concurrente = project.SplitAmount(total)
		}

		line, err := s.lineRepo.FindByActivityRubro(ctx, activity.ID, rubro.ID)
		if err != nil {
			return nil, err
		}
		just := ""
		if idx, ok := cols["justificacion especifica"]; ok && idx < len(record) {
			just = strings.TrimSpace(record[idx])
		}

		if line == nil {
			line = &models.BudgetLine{
				ActivityID:              activity.ID,
				RubroID:                 rubro.ID,
				StageID:                 stage.ID,
				JustificacionEspecifica: just,
				AssignedPrograma:        programa,
				AssignedConcurrente:     concurrente,
				AssignedTotal:           programa + concurrente,
			}
			if err := s.lineRepo.Create(ctx, line); err != nil {
				return nil, err
			}
			result.LinesCreated++
		} else {
			line.AssignedPrograma = programa
			line.AssignedConcurrente = concurrente
			line.AssignedTotal = programa + concurrente
			if just != "" {
				line.JustificacionEspecifica = just
			}
			if err := s.lineRepo.Update(ctx, line); err != nil {
				return nil, err
			}
			result.LinesUpdated++
		}
		result.RowsProcessed++
	}

	if err := s.execSvc.SyncProject(ctx, projectID); err != nil {
		logger.Log.Error("post-import sync failed", "project_id", projectID, "error", err)
	}

	s.auditSvc.Log(ctx, actorID, "IMPORT", "Project", projectID,
		fmt.Sprintf("Importación de presupuesto: %d filas, %d líneas nuevas, %d actualizadas",
			result.RowsProcessed, result.LinesCreated, result.LinesUpdated), "", "")

	return result, nil
}

func mapImportHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeKey(h)] = i
	}
	for _, required := range importColumns {
		if _, ok := cols[required]; !ok {
			return nil, NewValidationError("el archivo no contiene la columna %q", required)
		}
	}
	return cols, nil
}

// normalizeKey lowers the text and strips the accents used in the
// workbook headers so lookups survive inconsistent capitalization.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n",
	)
	return replacer.Replace(s)
}

func activityKey(stageID uint, name string) string {
	return fmt.Sprintf("%d|%s", stageID, normalizeKey(name))
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	return strconv.ParseFloat(s, 64)
}

package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/internal/storage"
)

// ExportService formats the aggregated budget view for external
// consumers. Everything here is read only.
type ExportService struct {
	projectRepo  repository.ProjectRepository
	stageRepo    repository.StageRepository
	lineRepo     repository.BudgetLineRepository
	transferRepo repository.TransferRepository
	orderRepo    repository.PurchaseOrderRepository
	storage      *storage.LocalStorage
}

func NewExportService(
	projectRepo repository.ProjectRepository,
	stageRepo repository.StageRepository,
	lineRepo repository.BudgetLineRepository,
	transferRepo repository.TransferRepository,
	orderRepo repository.PurchaseOrderRepository,
	store *storage.LocalStorage,
) *ExportService {
	return &ExportService{
		projectRepo:  projectRepo,
		stageRepo:    stageRepo,
		lineRepo:     lineRepo,
		transferRepo: transferRepo,
		orderRepo:    orderRepo,
		storage:      store,
	}
}

// ModificationRow is one line of the per-rubro modification report:
// what was originally authorized, what confirmed transfers moved, and
// the resulting amounts, split by funding component.
type ModificationRow struct {
	Rubro                   string  `json:"rubro"`
	Movimiento              string  `json:"movimiento"`
	Etapa                   string  `json:"etapa"`
	AutorizadoPrograma      float64 `json:"autorizado_programa"`
	AutorizadoConcurrente   float64 `json:"autorizado_concurrente"`
	ModificacionPrograma    float64 `json:"modificacion_programa"`
	ModificacionConcurrente float64 `json:"modificacion_concurrente"`
	ActualizadoPrograma     float64 `json:"actualizado_programa"`
	ActualizadoConcurrente  float64 `json:"actualizado_concurrente"`
}

type rubroStageKey struct {
	StageID uint
	Rubro   string
}

// ModificationRows computes the per-rubro modification report for a
// project. Current assigned amounts come from the budget lines; the
// modification column is the net delta of confirmed transfers, so the
// authorized column is recovered by subtraction. Only rubros actually
// moved by a transfer produce a row.
func (s *ExportService) ModificationRows(ctx context.Context, projectID uint) ([]ModificationRow, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, ErrNotFound
	}

	stageNames := make(map[uint]string, len(project.Stages))
	for _, st := range project.Stages {
		stageNames[st.ID] = st.Name
	}

	lines, err := s.lineRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	transfers, err := s.transferRepo.FindConfirmedByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		assignedPrograma    float64
		assignedConcurrente float64
		deltaPrograma       float64
		deltaConcurrente    float64
	}
	buckets := make(map[rubroStageKey]*bucket)
	get := func(stageID uint, rubro string) *bucket {
		k := rubroStageKey{StageID: stageID, Rubro: rubro}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		return b
	}

	for _, line := range lines {
		b := get(line.StageID, line.Rubro.Name)
		b.assignedPrograma += line.AssignedPrograma
		b.assignedConcurrente += line.AssignedConcurrente
	}
	for _, t := range transfers {
		src := get(t.StageID, t.LineFrom.Rubro.Name)
		src.deltaPrograma -= t.MontoPrograma
		src.deltaConcurrente -= t.MontoConcurrente

		dst := get(t.StageID, t.LineTo.Rubro.Name)
		dst.deltaPrograma += t.MontoPrograma
		dst.deltaConcurrente += t.MontoConcurrente
	}

	keys := make([]rubroStageKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].StageID != keys[j].StageID {
			return keys[i].StageID < keys[j].StageID
		}
		return keys[i].Rubro < keys[j].Rubro
	})

	var rows []ModificationRow
	for _, k := range keys {
		b := buckets[k]
		if b.deltaPrograma == 0 && b.deltaConcurrente == 0 {
			continue
		}
		rows = append(rows, ModificationRow{
			Rubro:                   k.Rubro,
			Movimiento:              movementLabel(b.deltaPrograma + b.deltaConcurrente),
			Etapa:                   stageNames[k.StageID],
			AutorizadoPrograma:      b.assignedPrograma - b.deltaPrograma,
			AutorizadoConcurrente:   b.assignedConcurrente - b.deltaConcurrente,
			ModificacionPrograma:    b.deltaPrograma,
			ModificacionConcurrente: b.deltaConcurrente,
			ActualizadoPrograma:     b.assignedPrograma,
			ActualizadoConcurrente:  b.assignedConcurrente,
		})
	}
	return rows, nil
}

func movementLabel(delta float64) string {
	switch {
	case delta > 0:
		return "Ampliación"
	case delta < 0:
		return "Reducción"
	default:
		return "Compensación"
	}
}

// ExportModificationsCSV renders the per-rubro modification report in
// the fixed column layout expected by the funding agency.
func (s *ExportService) ExportModificationsCSV(ctx context.Context, projectID uint) ([]byte, string, error) {
	rows, err := s.ModificationRows(ctx, projectID)
	if err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	header := []string{
		"Rubro", "Movimiento", "Etapa",
		"Monto autorizado PP F003", "Monto Autorizado Concurrente",
		"Modificacion Solicitada PP F003", "Modificacion Solicitada Concurrente",
		"Monto Actualizado PP F003", "Monto Actualizado Concurrente",
	}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}

	for _, r := range rows {
		record := []string{
			r.Rubro,
			r.Movimiento,
			r.Etapa,
			fmt.Sprintf("%.2f", r.AutorizadoPrograma),
			fmt.Sprintf("%.2f", r.AutorizadoConcurrente),
			fmt.Sprintf("%.2f", r.ModificacionPrograma),
			fmt.Sprintf("%.2f", r.ModificacionConcurrente),
			fmt.Sprintf("%.2f", r.ActualizadoPrograma),
			fmt.Sprintf("%.2f", r.ActualizadoConcurrente),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("modificaciones_%d_%s.csv", projectID, time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// ExportBudgetXLSX builds a workbook with a Detalle sheet listing every
// budget line and a Resumen sheet aggregated per stage and rubro.
func (s *ExportService) ExportBudgetXLSX(ctx context.Context, projectID uint) ([]byte, string, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, "", ErrNotFound
	}
	lines, err := s.lineRepo.FindByProject(ctx, projectID)
	if err != nil {
		return nil, "", err
	}
	summary, err := s.lineRepo.RubroSummaryByStage(ctx, projectID)
	if err != nil {
		return nil, "", err
	}

	stageNames := make(map[uint]string, len(project.Stages))
	for _, st := range project.Stages {
		stageNames[st.ID] = st.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	detalle := "Detalle"
	_ = f.SetSheetName("Sheet1", detalle)

	detHeader := []string{
		"Etapa", "Actividad", "Rubro", "Tipo de Gasto",
		"Asignado Programa", "Asignado Concurrente", "Asignado Total",
		"Ejecutado Programa", "Ejecutado Concurrente", "Ejecutado Total",
		"Restante Total", "Semáforo",
	}
	for i, h := range detHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(detalle, cell, h)
		_ = f.SetCellStyle(detalle, cell, cell, headerStyle)
	}
	for i, line := range lines {
		row := i + 2
		values := []interface{}{
			stageNames[line.StageID],
			line.Activity.Name,
			line.Rubro.Name,
			line.Rubro.TipoGasto,
			line.AssignedPrograma,
			line.AssignedConcurrente,
			line.AssignedTotal,
			line.ExecutedPrograma,
			line.ExecutedConcurrente,
			line.ExecutedTotal,
			line.RemainingTotal(),
			line.TrafficLight,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(detalle, cell, v)
		}
	}

	resumen := "Resumen"
	_, _ = f.NewSheet(resumen)

	resHeader := []string{
		"Etapa", "Rubro", "Tipo de Gasto",
		"Asignado Programa", "Asignado Concurrente", "Asignado Total",
		"Ejecutado Programa", "Ejecutado Concurrente", "Ejecutado Total",
	}
	for i, h := range resHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(resumen, cell, h)
		_ = f.SetCellStyle(resumen, cell, cell, headerStyle)
	}
	for i, r := range summary {
		row := i + 2
		values := []interface{}{
			r.StageName,
			r.RubroName,
			r.TipoGasto,
			r.AssignedPrograma,
			r.AssignedConcurrente,
			r.AssignedTotal,
			r.ExecutedPrograma,
			r.ExecutedConcurrente,
			r.ExecutedTotal,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(resumen, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("presupuesto_%s_%s.xlsx", project.Code, time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// ExportBudgetPDF renders a compact project summary.
func (s *ExportService) ExportBudgetPDF(ctx context.Context, projectID uint) ([]byte, string, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, "", ErrNotFound
	}
	summary, err := s.lineRepo.RubroSummaryByStage(ctx, projectID)
	if err != nil {
		return nil, "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Resumen Presupuestal")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(40, 8, fmt.Sprintf("Proyecto: %s - %s", project.Code, project.Name))
	pdf.Ln(6)
	pdf.Cell(40, 8, fmt.Sprintf("Split: %.2f%% Programa / %.2f%% Concurrente", project.PctPrograma, project.PctConcurrente))
	pdf.Ln(6)
	pdf.Cell(40, 8, fmt.Sprintf("Asignado: %.2f %s  Ejecutado: %.2f %s",
		project.AssignedTotal, project.Currency, project.ExecutedTotal, project.Currency))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 8, "Etapa", "1", 0, "L", false, 0, "")
	pdf.CellFormat(55, 8, "Rubro", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, "Asignado", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Ejecutado", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Restante", "1", 0, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, r := range summary {
		pdf.CellFormat(40, 7, r.StageName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(55, 7, r.RubroName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", r.AssignedTotal), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", r.ExecutedTotal), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", r.AssignedTotal-r.ExecutedTotal), "1", 0, "R", false, 0, "")
		pdf.Ln(7)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("presupuesto_%s_%s.pdf", project.Code, time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// ExportAttachmentsZIP bundles every order attachment of a project for
// an audit handoff.
func (s *ExportService) ExportAttachmentsZIP(ctx context.Context, projectID uint) ([]byte, string, error) {
	attachments, err := s.orderRepo.FindAttachmentsByProject(ctx, projectID)
	if err != nil {
		return nil, "", err
	}
	if len(attachments) == 0 {
		return nil, "", NewValidationError("el proyecto no tiene documentos adjuntos")
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	for _, att := range attachments {
		src, err := s.storage.Download(att.FilePath)
		if err != nil {
			continue
		}
		name := fmt.Sprintf("orden_%d/%s", att.PurchaseOrderID, att.FileName)
		dst, err := zw.Create(name)
		if err != nil {
			src.Close()
			zw.Close()
			return nil, "", err
		}
		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			zw.Close()
			return nil, "", err
		}
		src.Close()
	}

	if err := zw.Close(); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("adjuntos_%d_%s.zip", projectID, time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

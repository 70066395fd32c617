package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/secihti/budget-api/internal/middleware"
	"github.com/secihti/budget-api/internal/services"
)

type ExportHandler struct {
	exportService *services.ExportService
	importService *services.ImportService
}

func NewExportHandler(exportService *services.ExportService, importService *services.ImportService) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
		importService: importService,
	}
}

// @Summary Modifications Report
// @Description Per-rubro view of confirmed transfer modifications
// @Tags Exports
// @Accept json
// @Produce json
// @Param project_id path int true "Project ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /projects/{project_id}/exports/modifications [get]
func (h *ExportHandler) Modifications(c *gin.Context) {
	projectID, _ := strconv.ParseUint(c.Param("project_id"), 10, 32)
	rows, err := h.exportService.ModificationRows(c.Request.Context(), uint(projectID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modifications": rows})
}

// @Summary Modifications CSV
// @Description Download the per-rubro modifications report as CSV
// @Tags Exports
// @Produce text/csv
// @Param project_id path int true "Project ID"
// @Success 200 {file} file "modificaciones.csv"
// @Security BearerAuth
// @Router /projects/{project_id}/exports/modifications_csv [get]
func (h *ExportHandler) ModificationsCSV(c *gin.Context) {
	projectID, _ := strconv.ParseUint(c.Param("project_id"), 10, 32)
	data, filename, err := h.exportService.ExportModificationsCSV(c.Request.Context(), uint(projectID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

// @Summary Budget XLSX
// @Description Download the full budget breakdown as an Excel workbook
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param project_id path int true "Project ID"
// @Success 200 {file} file "presupuesto.xlsx"
// @Security BearerAuth
// @Router /projects/{project_id}/exports/budget_xlsx [get]
func (h *ExportHandler) BudgetXLSX(c *gin.Context) {
	projectID, _ := strconv.ParseUint(c.Param("project_id"), 10, 32)
	data, filename, err := h.exportService.ExportBudgetXLSX(c.Request.Context(), uint(projectID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// @Summary Budget PDF
// @Description Download the budget summary as PDF
// @Tags Exports
// @Produce application/pdf
// @Param project_id path int true "Project ID"
// @Success 200 {file} file "presupuesto.pdf"
// @Security BearerAuth
// @Router /projects/{project_id}/exports/budget_pdf [get]
func (h *ExportHandler) BudgetPDF(c *gin.Context) {
	projectID, _ := strconv.ParseUint(c.Param("project_id"), 10, 32)
	data, filename, err := h.exportService.ExportBudgetPDF(c.Request.Context(), uint(projectID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

// @Summary Order Attachments ZIP
// @Description Download all purchase order documents of a project as a ZIP archive
// @Tags Exports
// @Produce application/zip
// @Param project_id path int true "Project ID"
// @Success 200 {file} file "documentos.zip"
// @Security BearerAuth
// @Router /projects/{project_id}/exports/attachments_zip [get]
func (h *ExportHandler) AttachmentsZIP(c *gin.Context) {
	projectID, _ := strconv.ParseUint(c.Param("project_id"), 10, 32)
	data, filename, err := h.exportService.ExportAttachmentsZIP(c.Request.Context(), uint(projectID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/zip", data)
}

// @Summary Import Activities CSV
// @Description Bulk load stages, activities and budget lines from a CSV file
// @Tags Exports
// @Accept multipart/form-data
// @Produce json
// @Param project_id path int true "Project ID"
// @Param file formData file true "CSV file"
// @Success 200 {object} services.ImportResult
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /projects/{project_id}/imports/activities_csv [post]
func (h *ExportHandler) ImportActivitiesCSV(c *gin.Context) {
	projectID, _ := strconv.ParseUint(c.Param("project_id"), 10, 32)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Archivo CSV requerido"})
		return
	}
	defer file.Close()

	actorID := middleware.GetUserID(c)
	result, err := h.importService.ImportActivitiesCSV(c.Request.Context(), uint(projectID), file, actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result, "message": "Importación completada"})
}

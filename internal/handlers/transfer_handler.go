package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/secihti/budget-api/internal/middleware"
	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/internal/services"
)

type TransferHandler struct {
	transferService *services.TransferService
}

func NewTransferHandler(transferService *services.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

type TransferRequest struct {
	StageID          uint    `json:"stage_id" binding:"required"`
	LineFromID       uint    `json:"line_from_id" binding:"required"`
	LineToID         uint    `json:"line_to_id" binding:"required"`
	MontoPrograma    float64 `json:"monto_programa"`
	MontoConcurrente float64 `json:"monto_concurrente"`
	MontoTotal       float64 `json:"monto_total"`
	Justificacion    string  `json:"justificacion" binding:"required"`
}

func (r *TransferRequest) toInput() *services.TransferInput {
	return &services.TransferInput{
		StageID:          r.StageID,
		LineFromID:       r.LineFromID,
		LineToID:         r.LineToID,
		MontoPrograma:    r.MontoPrograma,
		MontoConcurrente: r.MontoConcurrente,
		MontoTotal:       r.MontoTotal,
		Justificacion:    r.Justificacion,
	}
}

// @Summary List Transfers
// @Description Get a paginated list of budget transfers
// @Tags Transfers
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param project_id query int false "Filter by project"
// @Param stage_id query int false "Filter by stage"
// @Param status query string false "Filter by status (draft, confirmed)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /transfers [get]
func (h *TransferHandler) Index(c *gin.Context) {
	listQuery := repository.NewListQuery()
	listQuery.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	listQuery.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))

	projectID, _ := strconv.ParseUint(c.Query("project_id"), 10, 32)
	stageID, _ := strconv.ParseUint(c.Query("stage_id"), 10, 32)

	query := &repository.TransferQuery{
		ListQuery: listQuery,
		ProjectID: uint(projectID),
		StageID:   uint(stageID),
		Status:    c.Query("status"),
	}

	transfers, total, err := h.transferService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []models.BudgetTransferResponse
	for _, t := range transfers {
		responses = append(responses, t.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"transfers": responses, "pagination": gin.H{"total": total}})
}

// @Summary Get Transfer
// @Description Get a budget transfer by ID
// @Tags Transfers
// @Accept json
// @Produce json
// @Param transfer_id path int true "Transfer ID"
// @Success 200 {object} models.BudgetTransferResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /transfers/{transfer_id} [get]
func (h *TransferHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("transfer_id"), 10, 32)
	transfer, err := h.transferService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transferencia no encontrada"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfer": transfer.ToResponse()})
}

// @Summary Create Transfer
// @Description Create a draft budget transfer between two lines
// @Tags Transfers
// @Accept json
// @Produce json
// @Param request body TransferRequest true "Transfer Data"
// @Success 201 {object} models.BudgetTransferResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /transfers [post]
func (h *TransferHandler) Create(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	transfer, err := h.transferService.Create(c.Request.Context(), req.toInput(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transfer": transfer.ToResponse()})
}

// @Summary Update Transfer
// @Description Update a draft transfer before confirmation
// @Tags Transfers
// @Accept json
// @Produce json
// @Param transfer_id path int true "Transfer ID"
// @Param request body TransferRequest true "Transfer Data"
// @Success 200 {object} models.BudgetTransferResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /transfers/{transfer_id} [put]
func (h *TransferHandler) Update(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("transfer_id"), 10, 32)
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	transfer, err := h.transferService.Update(c.Request.Context(), uint(id), req.toInput(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfer": transfer.ToResponse()})
}

// @Summary Confirm Transfer
// @Description Confirm a draft transfer and apply the balance movement
// @Tags Transfers
// @Accept json
// @Produce json
// @Param transfer_id path int true "Transfer ID"
// @Success 200 {object} models.BudgetTransferResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /transfers/{transfer_id}/confirm [post]
func (h *TransferHandler) Confirm(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("transfer_id"), 10, 32)
	userID := middleware.GetUserID(c)
	transfer, err := h.transferService.Confirm(c.Request.Context(), uint(id), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfer": transfer.ToResponse(), "message": "Transferencia confirmada"})
}

// @Summary Amend Transfer
// @Description Reverse a confirmed transfer, revalidate and reapply with new amounts
// @Tags Transfers
// @Accept json
// @Produce json
// @Param transfer_id path int true "Transfer ID"
// @Param request body TransferRequest true "New Transfer Data"
// @Success 200 {object} models.BudgetTransferResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /transfers/{transfer_id}/amend [post]
func (h *TransferHandler) Amend(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("transfer_id"), 10, 32)
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	transfer, err := h.transferService.Amend(c.Request.Context(), uint(id), req.toInput(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfer": transfer.ToResponse(), "message": "Transferencia modificada"})
}

// @Summary Delete Transfer
// @Description Delete a transfer, reversing its movement if confirmed
// @Tags Transfers
// @Accept json
// @Produce json
// @Param transfer_id path int true "Transfer ID"
// @Success 200 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /transfers/{transfer_id} [delete]
func (h *TransferHandler) Delete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("transfer_id"), 10, 32)
	userID := middleware.GetUserID(c)
	if err := h.transferService.Delete(c.Request.Context(), uint(id), userID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transferencia eliminada"})
}

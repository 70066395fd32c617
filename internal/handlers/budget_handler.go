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

type BudgetHandler struct {
	activityService *services.ActivityService
	rubroService    *services.RubroService
	lineService     *services.BudgetLineService
	transferService *services.TransferService
}

func NewBudgetHandler(
	activityService *services.ActivityService,
	rubroService *services.RubroService,
	lineService *services.BudgetLineService,
	transferService *services.TransferService,
) *BudgetHandler {
	return &BudgetHandler{
		activityService: activityService,
		rubroService:    rubroService,
		lineService:     lineService,
		transferService: transferService,
	}
}

// @Summary List Activities
// @Description Get all activities of a stage
// @Tags Activities
// @Accept json
// @Produce json
// @Param stage_id path int true "Stage ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /stages/{stage_id}/activities [get]
func (h *BudgetHandler) Activities(c *gin.Context) {
	stageID, _ := strconv.ParseUint(c.Param("stage_id"), 10, 32)
	activities, err := h.activityService.FindByStage(c.Request.Context(), uint(stageID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

// @Summary Get Activity
// @Description Get an activity by ID
// @Tags Activities
// @Accept json
// @Produce json
// @Param activity_id path int true "Activity ID"
// @Success 200 {object} models.Activity
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /activities/{activity_id} [get]
func (h *BudgetHandler) ShowActivity(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("activity_id"), 10, 32)
	activity, err := h.activityService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Actividad no encontrada"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": activity})
}

// @Summary Create Activity
// @Description Create a new activity in a stage
// @Tags Activities
// @Accept json
// @Produce json
// @Param stage_id path int true "Stage ID"
// @Param request body models.Activity true "Activity Data"
// @Success 201 {object} models.Activity
// @Security BearerAuth
// @Router /stages/{stage_id}/activities [post]
func (h *BudgetHandler) CreateActivity(c *gin.Context) {
	stageID, _ := strconv.ParseUint(c.Param("stage_id"), 10, 32)
	var activity models.Activity
	if err := c.ShouldBindJSON(&activity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	activity.StageID = uint(stageID)

	actorID := middleware.GetUserID(c)
	if err := h.activityService.Create(c.Request.Context(), &activity, actorID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"activity": activity})
}

// @Summary Update Activity
// @Description Update an existing activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param activity_id path int true "Activity ID"
// @Param request body models.Activity true "Activity Data"
// @Success 200 {object} models.Activity
// @Security BearerAuth
// @Router /activities/{activity_id} [put]
func (h *BudgetHandler) UpdateActivity(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("activity_id"), 10, 32)
	activity, err := h.activityService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Actividad no encontrada"})
		return
	}

	var req models.Activity
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	activity.Name = req.Name
	activity.Responsible = req.Responsible
	activity.Description = req.Description

	actorID := middleware.GetUserID(c)
	if err := h.activityService.Update(c.Request.Context(), activity, actorID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": activity})
}

// @Summary Delete Activity
// @Description Delete an activity without budget lines
// @Tags Activities
// @Accept json
// @Produce json
// @Param activity_id path int true "Activity ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /activities/{activity_id} [delete]
func (h *BudgetHandler) DeleteActivity(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("activity_id"), 10, 32)
	actorID := middleware.GetUserID(c)
	if err := h.activityService.Delete(c.Request.Context(), uint(id), actorID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Actividad eliminada"})
}

// @Summary List Rubros
// @Description Get the rubro catalog
// @Tags Rubros
// @Accept json
// @Produce json
// @Param active query bool false "Only active rubros" default(true)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /rubros [get]
func (h *BudgetHandler) Rubros(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "true") == "true"
	rubros, err := h.rubroService.FindAll(c.Request.Context(), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rubros": rubros})
}

// @Summary Create Rubro
// @Description Add a rubro to the catalog
// @Tags Rubros
// @Accept json
// @Produce json
// @Param request body models.Rubro true "Rubro Data"
// @Success 201 {object} models.Rubro
// @Security BearerAuth
// @Router /rubros [post]
func (h *BudgetHandler) CreateRubro(c *gin.Context) {
	var rubro models.Rubro
	if err := c.ShouldBindJSON(&rubro); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := middleware.GetUserID(c)
	if err := h.rubroService.Create(c.Request.Context(), &rubro, actorID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"rubro": rubro})
}

// @Summary Update Rubro
// @Description Update a catalog rubro
// @Tags Rubros
// @Accept json
// @Produce json
// @Param rubro_id path int true "Rubro ID"
// @Param request body models.Rubro true "Rubro Data"
// @Success 200 {object} models.Rubro
// @Security BearerAuth
// @Router /rubros/{rubro_id} [put]
func (h *BudgetHandler) UpdateRubro(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("rubro_id"), 10, 32)
	var rubro models.Rubro
	if err := c.ShouldBindJSON(&rubro); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rubro.ID = uint(id)

	actorID := middleware.GetUserID(c)
	if err := h.rubroService.Update(c.Request.Context(), &rubro, actorID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rubro": rubro})
}

// @Summary Delete Rubro
// @Description Remove an unused rubro from the catalog
// @Tags Rubros
// @Accept json
// @Produce json
// @Param rubro_id path int true "Rubro ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /rubros/{rubro_id} [delete]
func (h *BudgetHandler) DeleteRubro(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("rubro_id"), 10, 32)
	actorID := middleware.GetUserID(c)
	if err := h.rubroService.Delete(c.Request.Context(), uint(id), actorID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rubro eliminado"})
}

// @Summary List Budget Lines
// @Description Get a paginated list of budget lines
// @Tags BudgetLines
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param activity_id query int false "Filter by activity"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /budget_lines [get]
func (h *BudgetHandler) Lines(c *gin.Context) {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Filters["activity_id"] = c.Query("activity_id")

	lines, total, err := h.lineService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []models.BudgetLineResponse
	for _, l := range lines {
		responses = append(responses, l.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"budget_lines": responses, "pagination": gin.H{"total": total}})
}

// @Summary Get Budget Line
// @Description Get a budget line by ID
// @Tags BudgetLines
// @Accept json
// @Produce json
// @Param line_id path int true "Budget Line ID"
// @Success 200 {object} models.BudgetLineResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /budget_lines/{line_id} [get]
func (h *BudgetHandler) ShowLine(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("line_id"), 10, 32)
	line, err := h.lineService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Partida no encontrada"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget_line": line.ToResponse()})
}

type BudgetLineRequest struct {
	ActivityID              uint    `json:"activity_id" binding:"required"`
	RubroID                 uint    `json:"rubro_id" binding:"required"`
	AssignedTotal           float64 `json:"assigned_total"`
	AssignedPrograma        float64 `json:"assigned_programa"`
	AssignedConcurrente     float64 `json:"assigned_concurrente"`
	JustificacionEspecifica string  `json:"justificacion_especifica"`
}

// @Summary Create Budget Line
// @Description Create a budget line for an activity and rubro
// @Tags BudgetLines
// @Accept json
// @Produce json
// @Param request body BudgetLineRequest true "Budget Line Data"
// @Success 201 {object} models.BudgetLineResponse
// @Security BearerAuth
// @Router /budget_lines [post]
func (h *BudgetHandler) CreateLine(c *gin.Context) {
	var req BudgetLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	line := &models.BudgetLine{
		ActivityID:              req.ActivityID,
		RubroID:                 req.RubroID,
		AssignedTotal:           req.AssignedTotal,
		AssignedPrograma:        req.AssignedPrograma,
		AssignedConcurrente:     req.AssignedConcurrente,
		JustificacionEspecifica: req.JustificacionEspecifica,
	}

	actorID := middleware.GetUserID(c)
	if err := h.lineService.Create(c.Request.Context(), line, actorID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"budget_line": line.ToResponse()})
}

// @Summary Update Budget Line
// @Description Update the assigned amounts of a budget line
// @Tags BudgetLines
// @Accept json
// @Produce json
// @Param line_id path int true "Budget Line ID"
// @Param request body BudgetLineRequest true "Budget Line Data"
// @Success 200 {object} models.BudgetLineResponse
// @Security BearerAuth
// @Router /budget_lines/{line_id} [put]
func (h *BudgetHandler) UpdateLine(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("line_id"), 10, 32)
	line, err := h.lineService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Partida no encontrada"})
		return
	}

	var req BudgetLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	line.AssignedTotal = req.AssignedTotal
	line.AssignedPrograma = req.AssignedPrograma
	line.AssignedConcurrente = req.AssignedConcurrente
	line.JustificacionEspecifica = req.JustificacionEspecifica

	actorID := middleware.GetUserID(c)
	if err := h.lineService.Update(c.Request.Context(), line, actorID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget_line": line.ToResponse()})
}

// @Summary Delete Budget Line
// @Description Delete a budget line without movements
// @Tags BudgetLines
// @Accept json
// @Produce json
// @Param line_id path int true "Budget Line ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /budget_lines/{line_id} [delete]
func (h *BudgetHandler) DeleteLine(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("line_id"), 10, 32)
	actorID := middleware.GetUserID(c)
	if err := h.lineService.Delete(c.Request.Context(), uint(id), actorID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Partida eliminada"})
}

// @Summary Remaining Balance
// @Description Get the transferable balance of a budget line
// @Tags BudgetLines
// @Accept json
// @Produce json
// @Param line_id path int true "Budget Line ID"
// @Success 200 {object} services.RemainingBalance
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /budget_lines/{line_id}/remaining_balance [get]
func (h *BudgetHandler) RemainingBalance(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("line_id"), 10, 32)
	balance, err := h.transferService.RemainingBalance(c.Request.Context(), uint(id))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// @Summary Rubro Dashboard
// @Description Get assigned and executed amounts grouped by rubro and stage
// @Tags BudgetLines
// @Accept json
// @Produce json
// @Param project_id path int true "Project ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /projects/{project_id}/rubro_summary [get]
func (h *BudgetHandler) RubroSummary(c *gin.Context) {
	projectID, _ := strconv.ParseUint(c.Param("project_id"), 10, 32)
	rows, err := h.lineService.RubroSummary(c.Request.Context(), uint(projectID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": rows})
}

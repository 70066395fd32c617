package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/secihti/budget-api/internal/middleware"
	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/services"
)

type SimulationHandler struct {
	simulationService *services.SimulationService
}

func NewSimulationHandler(simulationService *services.SimulationService) *SimulationHandler {
	return &SimulationHandler{simulationService: simulationService}
}

// @Summary List Simulations
// @Description Get the planning simulations of a project
// @Tags Simulations
// @Accept json
// @Produce json
// @Param project_id path int true "Project ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /projects/{project_id}/simulations [get]
func (h *SimulationHandler) Index(c *gin.Context) {
	projectID, _ := strconv.ParseUint(c.Param("project_id"), 10, 32)
	simulations, err := h.simulationService.FindByProject(c.Request.Context(), uint(projectID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"simulations": simulations})
}

// @Summary Get Simulation
// @Description Get a simulation with its planned expenses and allocations
// @Tags Simulations
// @Accept json
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Success 200 {object} models.Simulation
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /simulations/{simulation_id} [get]
func (h *SimulationHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("simulation_id"), 10, 32)
	simulation, err := h.simulationService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Simulación no encontrada"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"simulation": simulation})
}

type SimulationRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// @Summary Create Simulation
// @Description Create a planning simulation for a project
// @Tags Simulations
// @Accept json
// @Produce json
// @Param project_id path int true "Project ID"
// @Param request body SimulationRequest true "Simulation Data"
// @Success 201 {object} models.Simulation
// @Security BearerAuth
// @Router /projects/{project_id}/simulations [post]
func (h *SimulationHandler) Create(c *gin.Context) {
	projectID, _ := strconv.ParseUint(c.Param("project_id"), 10, 32)
	var req SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sim := &models.Simulation{
		ProjectID:   uint(projectID),
		Name:        req.Name,
		Description: req.Description,
	}

	actorID := middleware.GetUserID(c)
	saved, err := h.simulationService.Create(c.Request.Context(), sim, actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"simulation": saved})
}

// @Summary Update Simulation
// @Description Rename or describe a simulation
// @Tags Simulations
// @Accept json
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Param request body SimulationRequest true "Simulation Data"
// @Success 200 {object} models.Simulation
// @Security BearerAuth
// @Router /simulations/{simulation_id} [put]
func (h *SimulationHandler) Update(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("simulation_id"), 10, 32)
	var req SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := middleware.GetUserID(c)
	sim, err := h.simulationService.Update(c.Request.Context(), uint(id), req.Name, req.Description, actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"simulation": sim})
}

type SimulationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// @Summary Update Simulation Status
// @Description Move a simulation between draft, active and closed
// @Tags Simulations
// @Accept json
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Param request body SimulationStatusRequest true "New Status"
// @Success 200 {object} models.Simulation
// @Security BearerAuth
// @Router /simulations/{simulation_id}/status [put]
func (h *SimulationHandler) SetStatus(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("simulation_id"), 10, 32)
	var req SimulationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := middleware.GetUserID(c)
	sim, err := h.simulationService.SetStatus(c.Request.Context(), uint(id), req.Status, actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"simulation": sim})
}

// @Summary Delete Simulation
// @Description Delete a simulation and all its planning data
// @Tags Simulations
// @Accept json
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /simulations/{simulation_id} [delete]
func (h *SimulationHandler) Delete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("simulation_id"), 10, 32)
	actorID := middleware.GetUserID(c)
	if err := h.simulationService.Delete(c.Request.Context(), uint(id), actorID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Simulación eliminada"})
}

type PlannedExpenseRequest struct {
	Name         string  `json:"name" binding:"required"`
	Amount       float64 `json:"amount" binding:"required"`
	ExpectedDate *string `json:"expected_date"`
}

// @Summary Add Planned Expense
// @Description Add a projected spend to a simulation
// @Tags Simulations
// @Accept json
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Param request body PlannedExpenseRequest true "Expense Data"
// @Success 201 {object} models.PlannedExpenseResponse
// @Security BearerAuth
// @Router /simulations/{simulation_id}/expenses [post]
func (h *SimulationHandler) AddExpense(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("simulation_id"), 10, 32)
	var req PlannedExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expense := &models.PlannedExpense{
		SimulationID: uint(id),
		Name:         req.Name,
		Amount:       req.Amount,
		ExpectedDate: req.ExpectedDate,
	}

	saved, err := h.simulationService.AddExpense(c.Request.Context(), expense)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"expense": saved.ToResponse()})
}

// @Summary Update Planned Expense
// @Description Update a projected spend
// @Tags Simulations
// @Accept json
// @Produce json
// @Param expense_id path int true "Planned Expense ID"
// @Param request body PlannedExpenseRequest true "Expense Data"
// @Success 200 {object} models.PlannedExpenseResponse
// @Security BearerAuth
// @Router /planned_expenses/{expense_id} [put]
func (h *SimulationHandler) UpdateExpense(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("expense_id"), 10, 32)
	var req PlannedExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expense, err := h.simulationService.UpdateExpense(c.Request.Context(), uint(id), req.Name, req.Amount, req.ExpectedDate)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expense": expense.ToResponse()})
}

// @Summary Delete Planned Expense
// @Description Remove a projected spend and its allocations
// @Tags Simulations
// @Accept json
// @Produce json
// @Param expense_id path int true "Planned Expense ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /planned_expenses/{expense_id} [delete]
func (h *SimulationHandler) DeleteExpense(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("expense_id"), 10, 32)
	if err := h.simulationService.DeleteExpense(c.Request.Context(), uint(id)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Gasto planeado eliminado"})
}

type AllocationRequest struct {
	BudgetLineID uint    `json:"budget_line_id" binding:"required"`
	Amount       float64 `json:"amount" binding:"required"`
}

// @Summary Allocate Expense
// @Description Place part of a planned expense against a budget line
// @Tags Simulations
// @Accept json
// @Produce json
// @Param expense_id path int true "Planned Expense ID"
// @Param request body AllocationRequest true "Allocation Data"
// @Success 201 {object} models.PlannedExpenseResponse
// @Security BearerAuth
// @Router /planned_expenses/{expense_id}/allocations [post]
func (h *SimulationHandler) Allocate(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("expense_id"), 10, 32)
	var req AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expense, err := h.simulationService.Allocate(c.Request.Context(), uint(id), req.BudgetLineID, req.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"expense": expense.ToResponse()})
}

type AllocationAmountRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// @Summary Update Allocation
// @Description Change the amount of an allocation
// @Tags Simulations
// @Accept json
// @Produce json
// @Param allocation_id path int true "Allocation ID"
// @Param request body AllocationAmountRequest true "New Amount"
// @Success 200 {object} models.PlannedExpenseResponse
// @Security BearerAuth
// @Router /simulation_allocations/{allocation_id} [put]
func (h *SimulationHandler) UpdateAllocation(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("allocation_id"), 10, 32)
	var req AllocationAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expense, err := h.simulationService.UpdateAllocation(c.Request.Context(), uint(id), req.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expense": expense.ToResponse()})
}

// @Summary Remove Allocation
// @Description Remove an allocation from a planned expense
// @Tags Simulations
// @Accept json
// @Produce json
// @Param allocation_id path int true "Allocation ID"
// @Success 200 {object} models.PlannedExpenseResponse
// @Security BearerAuth
// @Router /simulation_allocations/{allocation_id} [delete]
func (h *SimulationHandler) RemoveAllocation(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("allocation_id"), 10, 32)
	expense, err := h.simulationService.RemoveAllocation(c.Request.Context(), uint(id))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": expense.ToResponse()})
}

// @Summary Simulation Overview
// @Description Per-line view of remaining balance against planned amounts
// @Tags Simulations
// @Accept json
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /simulations/{simulation_id}/overview [get]
func (h *SimulationHandler) Overview(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("simulation_id"), 10, 32)
	plans, err := h.simulationService.Overview(c.Request.Context(), uint(id))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overview": plans})
}

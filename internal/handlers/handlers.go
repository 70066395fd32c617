package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/secihti/budget-api/internal/services"
	"github.com/secihti/budget-api/internal/storage"
)

// Handlers holds all handler instances
type Handlers struct {
	Health        *HealthHandler
	Auth          *AuthHandler
	User          *UserHandler
	Project       *ProjectHandler
	Budget        *BudgetHandler
	Transfer      *TransferHandler
	PurchaseOrder *PurchaseOrderHandler
	Simulation    *SimulationHandler
	Export        *ExportHandler
	Notification  *NotificationHandler
	Audit         *AuditHandler
	Job           *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, storage *storage.LocalStorage) *Handlers {
	return &Handlers{
		Health:        NewHealthHandler(),
		Auth:          NewAuthHandler(svcs.Auth),
		User:          NewUserHandler(svcs.User),
		Project:       NewProjectHandler(svcs.Project, svcs.Stage),
		Budget:        NewBudgetHandler(svcs.Activity, svcs.Rubro, svcs.BudgetLine, svcs.Transfer),
		Transfer:      NewTransferHandler(svcs.Transfer),
		PurchaseOrder: NewPurchaseOrderHandler(svcs.PurchaseOrder, storage),
		Simulation:    NewSimulationHandler(svcs.Simulation),
		Export:        NewExportHandler(svcs.Export, svcs.Import),
		Notification:  NewNotificationHandler(svcs.Notification),
		Audit:         NewAuditHandler(svcs.Audit),
		Job:           NewJobHandler(svcs.Job),
	}
}

// respondServiceError maps service layer errors onto HTTP status codes.
func respondServiceError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var balanceErr *services.InsufficientBalanceError
	var negativeErr *services.NegativeResultError

	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &balanceErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &negativeErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

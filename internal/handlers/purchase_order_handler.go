package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/secihti/budget-api/internal/middleware"
	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/internal/services"
	"github.com/secihti/budget-api/internal/storage"
)

type PurchaseOrderHandler struct {
	orderService *services.PurchaseOrderService
	storage      *storage.LocalStorage
}

func NewPurchaseOrderHandler(orderService *services.PurchaseOrderService, storage *storage.LocalStorage) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		orderService: orderService,
		storage:      storage,
	}
}

type IngestOrderRequest struct {
	OrderRef   string  `json:"order_ref" binding:"required"`
	ProjectID  uint    `json:"project_id" binding:"required"`
	StageID    *uint   `json:"stage_id"`
	ActivityID *uint   `json:"activity_id"`
	RubroID    *uint   `json:"rubro_id"`
	Supplier   string  `json:"supplier"`
	Status     string  `json:"status"`
	Currency   string  `json:"currency"`
	Amount     float64 `json:"amount" binding:"required"`
	AmountMXN  float64 `json:"amount_mxn"`
	OrderDate  *string `json:"order_date"`
}

// @Summary List Purchase Orders
// @Description Get a paginated list of purchase orders
// @Tags PurchaseOrders
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param project_id query int false "Filter by project"
// @Param status query string false "Filter by status"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /purchase_orders [get]
func (h *PurchaseOrderHandler) Index(c *gin.Context) {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")
	query.Filters["project_id"] = c.Query("project_id")
	query.Filters["status"] = c.Query("status")

	orders, total, err := h.orderService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []models.PurchaseOrderResponse
	for _, o := range orders {
		responses = append(responses, o.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"purchase_orders": responses, "pagination": gin.H{"total": total}})
}

// @Summary Get Purchase Order
// @Description Get a purchase order by ID
// @Tags PurchaseOrders
// @Accept json
// @Produce json
// @Param order_id path int true "Purchase Order ID"
// @Success 200 {object} models.PurchaseOrderResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /purchase_orders/{order_id} [get]
func (h *PurchaseOrderHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("order_id"), 10, 32)
	order, err := h.orderService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Orden de compra no encontrada"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase_order": order.ToResponse()})
}

// @Summary Ingest Purchase Order
// @Description Create or update a purchase order by its external reference
// @Tags PurchaseOrders
// @Accept json
// @Produce json
// @Param request body IngestOrderRequest true "Order Data"
// @Success 201 {object} models.PurchaseOrderResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /purchase_orders [post]
func (h *PurchaseOrderHandler) Ingest(c *gin.Context) {
	var req IngestOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order := &models.PurchaseOrder{
		OrderRef:   req.OrderRef,
		ProjectID:  req.ProjectID,
		StageID:    req.StageID,
		ActivityID: req.ActivityID,
		RubroID:    req.RubroID,
		Supplier:   req.Supplier,
		Status:     req.Status,
		Currency:   req.Currency,
		Amount:     req.Amount,
		AmountMXN:  req.AmountMXN,
		OrderDate:  req.OrderDate,
	}

	actorID := middleware.GetUserID(c)
	saved, err := h.orderService.Ingest(c.Request.Context(), order, actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"purchase_order": saved.ToResponse()})
}

type OrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// @Summary Update Order Status
// @Description Move a purchase order through its lifecycle
// @Tags PurchaseOrders
// @Accept json
// @Produce json
// @Param order_id path int true "Purchase Order ID"
// @Param request body OrderStatusRequest true "New Status"
// @Success 200 {object} models.PurchaseOrderResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /purchase_orders/{order_id}/status [put]
func (h *PurchaseOrderHandler) SetStatus(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("order_id"), 10, 32)
	var req OrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := middleware.GetUserID(c)
	order, err := h.orderService.SetStatus(c.Request.Context(), uint(id), req.Status, actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchase_order": order.ToResponse()})
}

type OrderAmountMXNRequest struct {
	AmountMXN float64 `json:"amount_mxn" binding:"required"`
}

// @Summary Set Order MXN Amount
// @Description Register the company currency amount of a foreign currency order
// @Tags PurchaseOrders
// @Accept json
// @Produce json
// @Param order_id path int true "Purchase Order ID"
// @Param request body OrderAmountMXNRequest true "MXN Amount"
// @Success 200 {object} models.PurchaseOrderResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /purchase_orders/{order_id}/amount_mxn [put]
func (h *PurchaseOrderHandler) SetAmountMXN(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("order_id"), 10, 32)
	var req OrderAmountMXNRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := middleware.GetUserID(c)
	order, err := h.orderService.SetAmountMXN(c.Request.Context(), uint(id), req.AmountMXN, actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchase_order": order.ToResponse()})
}

// @Summary Delete Purchase Order
// @Description Delete a purchase order and resync executed amounts
// @Tags PurchaseOrders
// @Accept json
// @Produce json
// @Param order_id path int true "Purchase Order ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /purchase_orders/{order_id} [delete]
func (h *PurchaseOrderHandler) Delete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("order_id"), 10, 32)
	actorID := middleware.GetUserID(c)
	if err := h.orderService.Delete(c.Request.Context(), uint(id), actorID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Orden de compra eliminada"})
}

// @Summary Upload Order Attachment
// @Description Attach a document (PDF, XML or image) to a purchase order
// @Tags PurchaseOrders
// @Accept multipart/form-data
// @Produce json
// @Param order_id path int true "Purchase Order ID"
// @Param file formData file true "Document"
// @Success 201 {object} models.PurchaseOrderAttachment
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /purchase_orders/{order_id}/attachments [post]
func (h *PurchaseOrderHandler) UploadAttachment(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("order_id"), 10, 32)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Archivo requerido"})
		return
	}
	defer file.Close()

	attachment, err := h.orderService.UploadAttachment(c.Request.Context(), uint(id), file, header)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"attachment": attachment})
}

// @Summary Pending MXN Orders
// @Description List foreign currency orders waiting for their MXN amount
// @Tags PurchaseOrders
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /purchase_orders/mxn_pending [get]
func (h *PurchaseOrderHandler) MXNPending(c *gin.Context) {
	orders, err := h.orderService.FindMXNPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []models.PurchaseOrderResponse
	for _, o := range orders {
		responses = append(responses, o.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"purchase_orders": responses})
}

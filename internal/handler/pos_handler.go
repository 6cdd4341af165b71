package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sellerHeader    = "X-User-ID"
	anonymousSeller = "anonymous"
)

type POSHandler struct {
	posService *service.POSService
	logger     *zap.Logger
}

func NewPOSHandler(posService *service.POSService, logger *zap.Logger) *POSHandler {
	return &POSHandler{
		posService: posService,
		logger:     logger,
	}
}

// Register mounts the POS routes on rg.
func (h *POSHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.OpenSession)
	rg.GET("/sessions/:id", h.GetSession)
	rg.DELETE("/sessions/:id", h.CloseSession)

	rg.POST("/sessions/:id/cart", h.AddToCart)
	rg.PUT("/sessions/:id/cart/:product_id", h.SetQuantity)
	rg.DELETE("/sessions/:id/cart/:product_id", h.RemoveFromCart)

	rg.POST("/sessions/:id/patient", h.BindPatient)
	rg.DELETE("/sessions/:id/patient", h.ClearPatient)

	rg.POST("/sessions/:id/checkout", h.Checkout)
	rg.GET("/sessions/:id/alerts", h.RecentDispensationAlert)

	rg.GET("/products", h.ListProducts)
	rg.POST("/products/refresh", h.RefreshProducts)

	rg.GET("/patients/:id/dispensations", h.DispensationHistory)
	rg.GET("/sales/:id", h.GetSale)
}

func (h *POSHandler) OpenSession(c *gin.Context) {
	c.JSON(http.StatusCreated, h.posService.OpenSession())
}

func (h *POSHandler) GetSession(c *gin.Context) {
	view, err := h.posService.GetSession(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *POSHandler) CloseSession(c *gin.Context) {
	if err := h.posService.CloseSession(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *POSHandler) AddToCart(c *gin.Context) {
	var req domain.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	view, err := h.posService.AddToCart(c.Param("id"), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *POSHandler) SetQuantity(c *gin.Context) {
	productID, ok := h.productIDParam(c)
	if !ok {
		return
	}

	var req domain.SetQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	view, err := h.posService.SetQuantity(c.Param("id"), productID, *req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *POSHandler) RemoveFromCart(c *gin.Context) {
	productID, ok := h.productIDParam(c)
	if !ok {
		return
	}

	view, err := h.posService.RemoveFromCart(c.Param("id"), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *POSHandler) BindPatient(c *gin.Context) {
	var req domain.BindPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	patient, err := h.posService.BindPatient(c.Request.Context(), c.Param("id"), req.RUT)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.NewPatientResponse(*patient))
}

func (h *POSHandler) ClearPatient(c *gin.Context) {
	if err := h.posService.ClearPatient(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Checkout always answers with the transaction result. The status code
// tells whether every line was dispensed.
func (h *POSHandler) Checkout(c *gin.Context) {
	sessionID := c.Param("id")
	seller := c.GetHeader(sellerHeader)
	if seller == "" {
		seller = anonymousSeller
	}

	res, err := h.posService.Checkout(c.Request.Context(), sessionID, seller)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := domain.CheckoutResponse{
		Transaction: domain.NewTransactionResponse(res.Transaction),
	}
	if res.ReconciliationErr != nil {
		resp.ReconciliationError = res.ReconciliationErr.Error()
	}
	if view, err := h.posService.GetSession(sessionID); err == nil {
		resp.Session = view
	}

	c.JSON(checkoutStatus(res.Transaction), resp)
}

func (h *POSHandler) RecentDispensationAlert(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Query("product_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "product_id query parameter is required",
		})
		return
	}

	alert, err := h.posService.RecentDispensationAlert(c.Request.Context(), c.Param("id"), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *POSHandler) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, h.posService.Snapshot())
}

// RefreshProducts reloads the snapshot. On failure the last snapshot is
// still returned, marked stale.
func (h *POSHandler) RefreshProducts(c *gin.Context) {
	if _, err := h.posService.RefreshSnapshot(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    err.Error(),
			"snapshot": h.posService.Snapshot(),
		})
		return
	}
	c.JSON(http.StatusOK, h.posService.Snapshot())
}

func (h *POSHandler) DispensationHistory(c *gin.Context) {
	patientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid patient id",
		})
		return
	}

	records, err := h.posService.DispensationHistory(c.Request.Context(), patientID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *POSHandler) GetSale(c *gin.Context) {
	sale, err := h.posService.Sale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *POSHandler) productIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid product id",
		})
		return 0, false
	}
	return id, true
}

func checkoutStatus(r *domain.TransactionResult) int {
	switch {
	case r.FullyCommitted:
		return http.StatusOK
	case errors.Is(r.Err, domain.ErrPreconditionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(r.Err, domain.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	}

	var lce *domain.LineCommitError
	if errors.As(r.Err, &lce) {
		switch lce.Kind {
		case domain.RejectionInsufficientStock:
			return http.StatusConflict
		case domain.RejectionValidation, domain.RejectionNotFound:
			return http.StatusUnprocessableEntity
		case domain.RejectionAuthorization:
			return http.StatusUnauthorized
		}
	}
	return http.StatusBadGateway
}

func (h *POSHandler) writeError(c *gin.Context, err error) {
	var stock *domain.StockExceededError
	var rej *domain.RejectionError

	switch {
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{
			"error":        "Insufficient stock",
			"product_id":   stock.ProductID,
			"requested":    stock.Requested,
			"in_cart":      stock.Current,
			"available":    stock.Ceiling,
			"max_addition": stock.MaxAddition,
		})
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrPatientNotFound),
		errors.Is(err, domain.ErrLineNotFound),
		errors.Is(err, domain.ErrSaleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrCommitInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPreconditionFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAuthenticationFailed):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSnapshotUnavailable), errors.As(err, &rej):
		h.logger.Warn("Collaborator call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}

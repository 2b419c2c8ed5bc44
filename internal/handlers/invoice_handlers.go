package handlers

import (
	"net/http"
	"time"

	"warrantyhub/internal/common"
	"warrantyhub/internal/models"
	"warrantyhub/internal/services"

	"github.com/labstack/echo/v4"
)

// InvoiceHandlers handles HTTP requests for invoices
type InvoiceHandlers struct {
	invoiceService services.InvoiceService
}

// NewInvoiceHandlers creates a new invoice handlers instance
func NewInvoiceHandlers(invoiceService services.InvoiceService) *InvoiceHandlers {
	return &InvoiceHandlers{invoiceService: invoiceService}
}

// CreateInvoice handles POST /v1/invoices
func (h *InvoiceHandlers) CreateInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		SaleID      string     `json:"sale_id"`
		TotalAmount float64    `json:"total_amount"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	saleID, err := common.ValidateUUID(req.SaleID, "sale_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	if req.TotalAmount < 0 {
		return common.SendValidationError(c, "total_amount", "total_amount cannot be negative")
	}

	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	invoice := &models.Invoice{
		SaleID:      saleID,
		TotalAmount: req.TotalAmount,
	}
	if req.DueDate != nil {
		invoice.DueDate = *req.DueDate
	}
	if err := h.invoiceService.CreateInvoice(ctx, d, invoice); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, invoice)
}

// ListInvoices handles GET /v1/invoices?status=
func (h *InvoiceHandlers) ListInvoices(c echo.Context) error {
	ctx := c.Request().Context()

	status := c.QueryParam("status")
	if status != "" {
		if err := common.ValidateInvoiceStatus(status); err != nil {
			return common.SendValidationError(c, "status", err.Error())
		}
	}

	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	invoices, err := h.invoiceService.ListInvoices(ctx, d, status)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"count":    len(invoices),
	})
}

// GetInvoice handles GET /v1/invoices/:id
func (h *InvoiceHandlers) GetInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	invoice, err := h.invoiceService.GetInvoice(ctx, d, invoiceID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, invoice)
}

// PayInvoice handles POST /v1/invoices/:id/pay
func (h *InvoiceHandlers) PayInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	if err := h.invoiceService.MarkPaid(ctx, d, invoiceID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Invoice paid",
	})
}

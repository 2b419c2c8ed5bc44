package testhelpers

import (
	"net/http/httptest"
	"strings"
	"time"

	"warrantyhub/internal/common"
	"warrantyhub/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// NewJSONContext builds an echo context around a JSON request and returns
// it with the recorder capturing the response.
func NewJSONContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// Authenticate attaches an identity to the context's request, standing in
// for the JWT middleware.
func Authenticate(c echo.Context, identity common.Identity) {
	ctx := common.WithIdentity(c.Request().Context(), identity)
	c.SetRequest(c.Request().WithContext(ctx))
}

// AdminIdentity returns a platform operator identity.
func AdminIdentity() common.Identity {
	return common.Identity{
		UserID: uuid.New(),
		Role:   common.RoleAdmin,
	}
}

// DealerIdentity returns an identity confined to one dealer.
func DealerIdentity(dealerID uuid.UUID) common.Identity {
	return common.Identity{
		UserID:   uuid.New(),
		Role:     common.RoleDealerUser,
		DealerID: &dealerID,
	}
}

// NewDealer returns a valid active dealer.
func NewDealer() *models.Dealer {
	return &models.Dealer{
		ID:        uuid.New(),
		Name:      "Hilltop Motors",
		Email:     "owner@hilltopmotors.test",
		Status:    string(models.DealerStatusActive),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

// NewPackage returns a valid active catalog package without items.
func NewPackage() *models.WarrantyPackage {
	return &models.WarrantyPackage{
		ID:             uuid.New(),
		Name:           "Powertrain Plus",
		DurationMonths: 36,
		DealerCost:     450,
		RetailPrice:    899,
		Status:         string(models.PackageStatusActive),
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}

// NewCustomer returns a customer bound to the given dealer; pass nil for a
// master-partition retail customer.
func NewCustomer(dealerID *uuid.UUID) *models.Customer {
	email := "pat.doyle@example.test"
	return &models.Customer{
		ID:        uuid.New(),
		DealerID:  dealerID,
		FirstName: "Pat",
		LastName:  "Doyle",
		Email:     &email,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

// NewVehicle returns a vehicle owned by the given customer.
func NewVehicle(customerID uuid.UUID) *models.Vehicle {
	return &models.Vehicle{
		ID:         uuid.New(),
		CustomerID: customerID,
		VIN:        "1HGCM82633A004352",
		Make:       "Honda",
		Model:      "Accord",
		Year:       2022,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

// NewSale returns an active warranty sale linking the given customer,
// vehicle and package.
func NewSale(customerID, vehicleID, packageID uuid.UUID) *models.WarrantySale {
	soldAt := time.Now().UTC()
	expires := soldAt.AddDate(3, 0, 0)
	return &models.WarrantySale{
		ID:         uuid.New(),
		CustomerID: customerID,
		VehicleID:  vehicleID,
		PackageID:  packageID,
		SalePrice:  899,
		Status:     string(models.SaleStatusActive),
		SoldAt:     soldAt,
		ExpiresAt:  &expires,
		CreatedAt:  soldAt,
		UpdatedAt:  soldAt,
	}
}

// NewInvoice returns a pending invoice for the given sale.
func NewInvoice(saleID uuid.UUID) *models.Invoice {
	issued := time.Now().UTC()
	return &models.Invoice{
		ID:            uuid.New(),
		SaleID:        saleID,
		InvoiceNumber: "INV-20260801-0001",
		TotalAmount:   899,
		Status:        string(models.InvoiceStatusPending),
		IssuedDate:    issued,
		DueDate:       issued.AddDate(0, 0, 30),
		CreatedAt:     issued,
		UpdatedAt:     issued,
	}
}

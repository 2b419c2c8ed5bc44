package server

import (
	"github.com/labstack/echo/v4"

	"warrantyhub/internal/handlers"
	"warrantyhub/internal/middleware"
)

type apiHandlers struct {
	dealers       *handlers.DealerHandlers
	packages      *handlers.PackageHandlers
	customers     *handlers.CustomerHandlers
	vehicles      *handlers.VehicleHandlers
	sales         *handlers.SaleHandlers
	invoices      *handlers.InvoiceHandlers
	subscriptions *handlers.SubscriptionHandlers
	analytics     *handlers.AnalyticsHandlers
	health        *handlers.HealthHandlers
}

// registerRoutes mounts the /v1 API. Dealer lifecycle, catalog mutations
// and fleet analytics require an elevated role; routed tenant CRUD is open
// to every authenticated role and scoped by the context router.
func registerRoutes(v1 *echo.Group, h apiHandlers) {
	elevated := middleware.RequireElevated()

	// Dealer lifecycle and catalog assignment.
	v1.POST("/dealers", h.dealers.CreateDealer, elevated)
	v1.GET("/dealers", h.dealers.ListDealers, elevated)
	v1.GET("/dealers/:id", h.dealers.GetDealer, elevated)
	v1.POST("/dealers/:id/suspend", h.dealers.SuspendDealer, elevated)
	v1.POST("/dealers/:id/reactivate", h.dealers.ReactivateDealer, elevated)
	v1.POST("/dealers/:id/packages/:packageId", h.dealers.AssignPackage, elevated)

	// Subscriptions.
	v1.GET("/dealers/:id/subscriptions", h.subscriptions.ListDealerSubscriptions, elevated)
	v1.POST("/dealers/:id/subscriptions/renew", h.subscriptions.RenewSubscription, elevated)
	v1.POST("/subscriptions/:id/cancel", h.subscriptions.CancelSubscription, elevated)
	v1.GET("/subscriptions/plans", h.subscriptions.ListPlans)

	// Master catalog. Updates propagate to every opted-in tenant; pricing
	// is the tenant-local exception.
	v1.GET("/packages", h.packages.ListPackages)
	v1.GET("/packages/:id", h.packages.GetPackage)
	v1.POST("/packages", h.packages.CreatePackage, elevated)
	v1.PUT("/packages/:id", h.packages.UpdatePackage, elevated)
	v1.POST("/packages/:id/retire", h.packages.RetirePackage, elevated)
	v1.PUT("/packages/:id/pricing", h.packages.SetPricing)

	// Routed customer directory.
	v1.POST("/customers", h.customers.CreateCustomer)
	v1.GET("/customers", h.customers.ListCustomers)
	v1.GET("/customers/search", h.customers.SearchCustomer)
	v1.GET("/customers/:id", h.customers.GetCustomer)
	v1.PUT("/customers/:id", h.customers.UpdateCustomer)
	v1.DELETE("/customers/:id", h.customers.DeleteCustomer)
	v1.GET("/customers/:id/vehicles", h.vehicles.ListCustomerVehicles)

	// Routed vehicles.
	v1.POST("/vehicles", h.vehicles.CreateVehicle)
	v1.GET("/vehicles/:id", h.vehicles.GetVehicle)
	v1.PUT("/vehicles/:id", h.vehicles.UpdateVehicle)
	v1.DELETE("/vehicles/:id", h.vehicles.DeleteVehicle)

	// Routed warranty sales.
	v1.POST("/sales", h.sales.CreateSale)
	v1.GET("/sales", h.sales.ListSales)
	v1.GET("/sales/:id", h.sales.GetSale)
	v1.POST("/sales/:id/cancel", h.sales.CancelSale)

	// Routed invoices.
	v1.POST("/invoices", h.invoices.CreateInvoice)
	v1.GET("/invoices", h.invoices.ListInvoices)
	v1.GET("/invoices/:id", h.invoices.GetInvoice)
	v1.POST("/invoices/:id/pay", h.invoices.PayInvoice)

	// Fleet-wide analytics.
	v1.GET("/analytics/fleet", h.analytics.FleetOverview, elevated)
}

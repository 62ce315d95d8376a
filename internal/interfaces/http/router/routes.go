package router

import (
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/interfaces/http/handler"
	"github.com/leorit/backend/internal/interfaces/http/middleware"
)

// OrderRoutes maps the order lifecycle onto /orders. Role checks happen in
// the order service, which also scopes reads to the actor.
func OrderRoutes(h *handler.OrderHandler) *DomainGroup {
	orders := NewDomainGroup("orders", "/orders")
	orders.POST("", h.Create)
	orders.GET("", h.List)
	orders.GET("/by-number/:number", h.GetByOrderNumber)
	orders.GET("/intents/:intent/path", h.AllowedPath)
	orders.GET("/:id", h.GetByID)
	orders.PUT("/:id", h.UpdateDraft)
	orders.GET("/:id/history", h.History)

	orders.POST("/:id/submit", h.Submit)
	orders.POST("/:id/approve", h.Approve)
	orders.POST("/:id/assign", h.AssignManufacturer)
	orders.POST("/:id/decline", h.DeclineAssignment)

	payment := orders.Group("payment", "/:id/payment")
	payment.POST("/request", h.RequestPayment)
	payment.POST("/confirm", h.ConfirmPayment)
	payment.POST("/releasable", h.MarkPaymentReleasable)
	payment.POST("/release", h.ReleaseFinalPayment)
	payment.POST("/refund", h.RefundPayment)

	orders.POST("/:id/production/start", h.StartProduction)
	orders.POST("/:id/bulk/unlock", h.UnlockBulk)
	orders.POST("/:id/bulk/start", h.StartBulk)

	qc := orders.Group("qc", "/:id/qc")
	qc.GET("", h.ListQCRecords)
	qc.POST("", h.UploadQC)
	qc.POST("/upload-url", h.CreateQCUploadURL)
	qc.POST("/:qcId/decision", h.DecideQC)

	orders.POST("/:id/dispatch", h.Dispatch)
	orders.POST("/:id/delivery", h.ConfirmDelivery)
	return orders
}

// ManufacturerRoutes maps the manufacturer directory onto /manufacturers
func ManufacturerRoutes(h *handler.ManufacturerHandler, policy shared.PolicyProvider) *DomainGroup {
	view := middleware.RequirePermission(policy, shared.ActionViewManufacturers)
	manage := middleware.RequirePermission(policy, shared.ActionManageManufacturers)

	mf := NewDomainGroup("manufacturers", "/manufacturers")
	mf.GET("", view, h.List)
	mf.GET("/:id", view, h.GetByID)
	mf.POST("", manage, h.Create)
	mf.PUT("/:id", manage, h.Update)
	mf.POST("/:id/verify", manage, h.Verify)
	mf.POST("/:id/activate", manage, h.Activate)
	mf.POST("/:id/deactivate", manage, h.Deactivate)
	return mf
}

// AdminRoutes exposes the notification outbox to admins
func AdminRoutes(h *handler.OutboxHandler, policy shared.PolicyProvider) *DomainGroup {
	admin := NewDomainGroup("admin", "/admin")
	admin.Use(middleware.RequirePermission(policy, shared.ActionManageOutbox))

	outbox := admin.Group("outbox", "/outbox")
	outbox.GET("/stats", h.GetStats)
	outbox.GET("/dead", h.ListDead)
	outbox.POST("/dead/retry-all", h.RetryAllDeadEntries)
	outbox.GET("/:id", h.GetEntry)
	outbox.POST("/:id/retry", h.RetryDeadEntry)
	return admin
}

// SystemRoutes exposes the versioned health probe and build information
func SystemRoutes(h *handler.HealthHandler) *DomainGroup {
	system := NewDomainGroup("system", "")
	system.GET("/health", h.Health)
	system.GET("/system/info", h.GetSystemInfo)
	return system
}

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	eventapp "github.com/leorit/backend/internal/application/event"
	orderapp "github.com/leorit/backend/internal/application/order"
	partnerapp "github.com/leorit/backend/internal/application/partner"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/leorit/backend/internal/infrastructure/event"
	"github.com/leorit/backend/internal/infrastructure/persistence"
	"github.com/leorit/backend/internal/infrastructure/policy"
	"github.com/leorit/backend/internal/interfaces/http/dto"
	"github.com/leorit/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testActorHeader = "X-Test-Actor"

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

// apiEnv is the order API over an in-memory sqlite database
type apiEnv struct {
	t        *testing.T
	db       *gorm.DB
	engine   *gin.Engine
	outbox   *event.GormOutboxRepository
	actors   map[string]shared.Actor
	admin    shared.Actor
	buyer    shared.Actor
	orders   *OrderHandler
	mfs      *ManufacturerHandler
	outboxes *OutboxHandler
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	db, err := persistence.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), nil, "silent")
	require.NoError(t, err)
	require.NoError(t, persistence.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	publisher := event.NewOutboxPublisher(serializer)

	pol, err := policy.NewConfigPolicy(config.PolicyConfig{})
	require.NoError(t, err)

	mfRepo := persistence.NewGormManufacturerRepository(db, publisher)
	orderSvc := orderapp.NewOrderService(
		persistence.NewGormOrderRepository(db, publisher),
		orderapp.NewPartnerDirectory(mfRepo),
		pol,
		nil,
	)
	outboxRepo := event.NewGormOutboxRepository(db)

	env := &apiEnv{
		t:        t,
		db:       db,
		outbox:   outboxRepo,
		actors:   make(map[string]shared.Actor),
		admin:    shared.NewActor(uuid.New(), shared.RoleAdmin),
		buyer:    shared.NewActor(uuid.New(), shared.RoleBuyer),
		orders:   NewOrderHandler(orderSvc),
		mfs:      NewManufacturerHandler(partnerapp.NewManufacturerService(mfRepo, nil)),
		outboxes: NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, nil)),
	}

	r := gin.New()
	r.Use(middleware.RequestID(), env.authenticate)
	api := r.Group("/api/v1")

	o := api.Group("/orders")
	o.POST("", env.orders.Create)
	o.GET("", env.orders.List)
	o.GET("/by-number/:number", env.orders.GetByOrderNumber)
	o.GET("/intents/:intent/path", env.orders.AllowedPath)
	o.GET("/:id", env.orders.GetByID)
	o.PUT("/:id", env.orders.UpdateDraft)
	o.GET("/:id/history", env.orders.History)
	o.POST("/:id/submit", env.orders.Submit)
	o.POST("/:id/approve", env.orders.Approve)
	o.POST("/:id/assign", env.orders.AssignManufacturer)
	o.POST("/:id/decline", env.orders.DeclineAssignment)
	o.POST("/:id/payment/request", env.orders.RequestPayment)
	o.POST("/:id/payment/confirm", env.orders.ConfirmPayment)
	o.POST("/:id/payment/releasable", env.orders.MarkPaymentReleasable)
	o.POST("/:id/payment/release", env.orders.ReleaseFinalPayment)
	o.POST("/:id/payment/refund", env.orders.RefundPayment)
	o.POST("/:id/production/start", env.orders.StartProduction)
	o.POST("/:id/bulk/unlock", env.orders.UnlockBulk)
	o.POST("/:id/bulk/start", env.orders.StartBulk)
	o.GET("/:id/qc", env.orders.ListQCRecords)
	o.POST("/:id/qc", env.orders.UploadQC)
	o.POST("/:id/qc/upload-url", env.orders.CreateQCUploadURL)
	o.POST("/:id/qc/:qcId/decision", env.orders.DecideQC)
	o.POST("/:id/dispatch", env.orders.Dispatch)
	o.POST("/:id/delivery", env.orders.ConfirmDelivery)

	m := api.Group("/manufacturers")
	m.POST("", env.mfs.Create)
	m.GET("", env.mfs.List)
	m.GET("/:id", env.mfs.GetByID)
	m.PUT("/:id", env.mfs.Update)
	m.POST("/:id/verify", env.mfs.Verify)
	m.POST("/:id/activate", env.mfs.Activate)
	m.POST("/:id/deactivate", env.mfs.Deactivate)

	ob := api.Group("/admin/outbox")
	ob.GET("/stats", env.outboxes.GetStats)
	ob.GET("/dead", env.outboxes.ListDead)
	ob.POST("/dead/retry-all", env.outboxes.RetryAllDeadEntries)
	ob.GET("/:id", env.outboxes.GetEntry)
	ob.POST("/:id/retry", env.outboxes.RetryDeadEntry)

	env.engine = r
	return env
}

// authenticate stands in for the JWT middleware: the test header names a
// registered actor
func (e *apiEnv) authenticate(c *gin.Context) {
	if key := c.GetHeader(testActorHeader); key != "" {
		if actor, ok := e.actors[key]; ok {
			c.Set(middleware.ActorKey, actor)
		}
	}
	c.Next()
}

// do sends body as JSON on behalf of actor; a zero actor is anonymous
func (e *apiEnv) do(actor shared.Actor, method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor.ID != uuid.Nil {
		key := actor.ID.String()
		e.actors[key] = actor
		req.Header.Set(testActorHeader, key)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

// ok asserts a 2xx envelope and decodes its data into out
func (e *apiEnv) ok(w *httptest.ResponseRecorder, out any) {
	e.t.Helper()
	require.Less(e.t, w.Code, 300, "unexpected status %d: %s", w.Code, w.Body.String())
	if out == nil {
		return
	}
	var env APIResponse[json.RawMessage]
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(e.t, env.Success)
	require.NoError(e.t, json.Unmarshal(env.Data, out))
}

// fail asserts an error envelope with status and code
func (e *apiEnv) fail(w *httptest.ResponseRecorder, status int, code string) dto.ErrorInfo {
	e.t.Helper()
	require.Equal(e.t, status, w.Code, w.Body.String())
	var resp ErrorResponse
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(e.t, resp.Success)
	require.NotNil(e.t, resp.Error)
	require.Equal(e.t, code, resp.Error.Code, resp.Error.Message)
	return *resp.Error
}

// verifiedManufacturer registers and verifies a manufacturer and returns
// the actor that acts for it
func (e *apiEnv) verifiedManufacturer(code string) shared.Actor {
	e.t.Helper()
	var mf partnerapp.ManufacturerResponse
	e.ok(e.do(e.admin, http.MethodPost, "/api/v1/manufacturers", partnerapp.CreateManufacturerRequest{
		Code: code, Name: "Factory " + code, Email: code + "@factory.test",
	}), &mf)
	e.ok(e.do(e.admin, http.MethodPost, "/api/v1/manufacturers/"+mf.ID.String()+"/verify", nil), &mf)
	require.True(e.t, mf.Assignable)
	return shared.NewActor(mf.ID, shared.RoleManufacturer)
}

func (e *apiEnv) orderPath(id uuid.UUID, suffix string) string {
	return "/api/v1/orders/" + id.String() + suffix
}

func hoodieOrder(intent string) map[string]any {
	return map[string]any{
		"intent":          intent,
		"product_name":    "Heavyweight Hoodie",
		"fabric":          "400 GSM fleece",
		"colour":          "sage",
		"size_breakdown":  "M:30,L:20",
		"sample_quantity": 2,
		"bulk_quantity":   50,
		"unit_price":      "900",
	}
}

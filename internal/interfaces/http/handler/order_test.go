package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	orderapp "github.com/leorit/backend/internal/application/order"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderHandler_SampleThenBulkLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	mf := env.verifiedManufacturer("KNIT01")

	var o orderapp.OrderResponse
	env.ok(env.do(env.buyer, http.MethodPost, "/api/v1/orders", hoodieOrder("sample_then_bulk")), &o)
	assert.Equal(t, "DRAFT", o.LifecycleState)
	assert.Equal(t, "initiated", o.PaymentState)
	assert.Equal(t, env.buyer.ID, o.BuyerID)
	assert.Equal(t, "46800", o.TotalAmount.String())

	step := func(actor shared.Actor, suffix string, body any, wantState string) {
		t.Helper()
		env.ok(env.do(actor, http.MethodPost, env.orderPath(o.ID, suffix), body), &o)
		require.Equal(t, wantState, o.LifecycleState, suffix)
	}

	step(env.buyer, "/submit", nil, "SUBMITTED")
	step(env.admin, "/approve", nil, "ADMIN_APPROVED")
	step(env.admin, "/assign", orderapp.AssignManufacturerRequest{ManufacturerID: mf.ID}, "MANUFACTURER_ASSIGNED")
	step(env.admin, "/payment/request", nil, "PAYMENT_REQUESTED")
	step(env.admin, "/payment/confirm", nil, "PAYMENT_CONFIRMED")
	assert.Equal(t, "held", o.PaymentState)
	step(mf, "/production/start", nil, "SAMPLE_IN_PROGRESS")

	upload := func(stage string) orderapp.QCResultResponse {
		t.Helper()
		var res orderapp.QCResultResponse
		env.ok(env.do(mf, http.MethodPost, env.orderPath(o.ID, "/qc"), orderapp.UploadQCRequest{
			Stage:     stage,
			MediaRefs: []string{"qc/" + stage + "/front.jpg"},
		}), &res)
		o = res.Order
		return res
	}
	decide := func(qcID uuid.UUID, req orderapp.DecideQCRequest) orderapp.QCResultResponse {
		t.Helper()
		var res orderapp.QCResultResponse
		env.ok(env.do(env.admin, http.MethodPost, env.orderPath(o.ID, "/qc/"+qcID.String()+"/decision"), req), &res)
		o = res.Order
		return res
	}

	first := upload("sample")
	assert.Equal(t, "SAMPLE_QC_UPLOADED", o.LifecycleState)
	assert.Equal(t, 1, first.QCRecord.Round)
	assert.Equal(t, "pending", first.QCRecord.AdminDecision)

	rejected := decide(first.QCRecord.ID, orderapp.DecideQCRequest{
		Decision: "rejected", DefectType: "print_defect", DefectSeverity: 3, Notes: "logo off-centre",
	})
	assert.Equal(t, "SAMPLE_IN_PROGRESS", o.LifecycleState)
	assert.Equal(t, "print_defect", rejected.QCRecord.DefectType)

	// a decided round cannot be decided again
	env.fail(env.do(env.admin, http.MethodPost,
		env.orderPath(o.ID, "/qc/"+first.QCRecord.ID.String()+"/decision"),
		orderapp.DecideQCRequest{Decision: "approved"}), http.StatusConflict, shared.CodeAlreadyDecided)

	second := upload("sample")
	assert.Equal(t, 2, second.QCRecord.Round)
	decide(second.QCRecord.ID, orderapp.DecideQCRequest{Decision: "approved"})
	assert.Equal(t, "SAMPLE_APPROVED", o.LifecycleState)

	step(env.buyer, "/bulk/unlock", nil, "BULK_UNLOCKED")
	step(mf, "/bulk/start", nil, "BULK_IN_PRODUCTION")
	bulk := upload("bulk")
	decide(bulk.QCRecord.ID, orderapp.DecideQCRequest{Decision: "approved"})
	assert.Equal(t, "READY_FOR_DISPATCH", o.LifecycleState)

	step(mf, "/dispatch", orderapp.DispatchRequest{TrackingID: "DHL123", Carrier: "DHL"}, "DISPATCHED")
	assert.Equal(t, "DHL123", o.TrackingID)
	step(env.admin, "/payment/releasable", nil, "DISPATCHED")
	assert.Equal(t, "releasable", o.PaymentState)
	step(env.buyer, "/delivery", nil, "DELIVERED")
	step(env.admin, "/payment/release", nil, "COMPLETED")
	assert.Equal(t, "released", o.PaymentState)
	assert.NotNil(t, o.Milestones.CompletedAt)
	assert.NotNil(t, o.Milestones.SampleApprovedAt)

	var history orderapp.HistoryResponse
	env.ok(env.do(env.buyer, http.MethodGet, env.orderPath(o.ID, "/history"), nil), &history)
	assert.True(t, history.Consistent, history.PathError)
	assert.Empty(t, history.Discrepancies)
	assert.Equal(t, "DRAFT", history.Path[0])
	assert.Equal(t, "COMPLETED", history.Path[len(history.Path)-1])

	var samples []orderapp.QCRecordResponse
	env.ok(env.do(mf, http.MethodGet, env.orderPath(o.ID, "/qc?stage=sample"), nil), &samples)
	require.Len(t, samples, 2)

	var byNumber orderapp.OrderResponse
	env.ok(env.do(env.admin, http.MethodGet, "/api/v1/orders/by-number/"+o.OrderNumber, nil), &byNumber)
	assert.Equal(t, o.ID, byNumber.ID)
}

func TestOrderHandler_SampleOnlyCompletesOnApproval(t *testing.T) {
	env := newAPIEnv(t)
	mf := env.verifiedManufacturer("SMPL01")

	var o orderapp.OrderResponse
	body := hoodieOrder("sample_only")
	delete(body, "bulk_quantity")
	env.ok(env.do(env.buyer, http.MethodPost, "/api/v1/orders", body), &o)
	for _, s := range []struct {
		actor  shared.Actor
		suffix string
		body   any
	}{
		{env.buyer, "/submit", nil},
		{env.admin, "/approve", nil},
		{env.admin, "/assign", orderapp.AssignManufacturerRequest{ManufacturerID: mf.ID}},
		{env.admin, "/payment/request", nil},
		{env.admin, "/payment/confirm", nil},
		{mf, "/production/start", nil},
	} {
		env.ok(env.do(s.actor, http.MethodPost, env.orderPath(o.ID, s.suffix), s.body), &o)
	}

	var res orderapp.QCResultResponse
	env.ok(env.do(mf, http.MethodPost, env.orderPath(o.ID, "/qc"), orderapp.UploadQCRequest{}), &res)
	assert.Equal(t, "sample", res.QCRecord.Stage)
	env.ok(env.do(env.admin, http.MethodPost, env.orderPath(o.ID, "/qc/"+res.QCRecord.ID.String()+"/decision"),
		orderapp.DecideQCRequest{Decision: "approved"}), &res)

	assert.Equal(t, "SAMPLE_COMPLETED", res.Order.LifecycleState)
	assert.Equal(t, "held", res.Order.PaymentState)

	env.fail(env.do(env.buyer, http.MethodPost, env.orderPath(o.ID, "/bulk/unlock"), nil),
		http.StatusUnprocessableEntity, shared.CodeInvalidTransition)
}

func TestOrderHandler_Errors(t *testing.T) {
	env := newAPIEnv(t)
	var o orderapp.OrderResponse
	env.ok(env.do(env.buyer, http.MethodPost, "/api/v1/orders", hoodieOrder("direct_bulk")), &o)

	t.Run("anonymous", func(t *testing.T) {
		env.fail(env.do(shared.Actor{}, http.MethodGet, "/api/v1/orders", nil),
			http.StatusUnauthorized, "ERR_UNAUTHORIZED")
	})

	t.Run("unknown intent", func(t *testing.T) {
		info := env.fail(env.do(env.buyer, http.MethodPost, "/api/v1/orders", hoodieOrder("bulk_only")),
			http.StatusBadRequest, "ERR_VALIDATION")
		require.Len(t, info.Details, 1)
		assert.Equal(t, "intent", info.Details[0].Field)
	})

	t.Run("malformed id", func(t *testing.T) {
		env.fail(env.do(env.buyer, http.MethodGet, "/api/v1/orders/not-a-uuid", nil),
			http.StatusBadRequest, "ERR_BAD_REQUEST")
	})

	t.Run("missing order", func(t *testing.T) {
		env.fail(env.do(env.admin, http.MethodGet, env.orderPath(uuid.New(), ""), nil),
			http.StatusNotFound, shared.CodeNotFound)
	})

	t.Run("other buyer cannot see the order", func(t *testing.T) {
		stranger := shared.NewActor(uuid.New(), shared.RoleBuyer)
		env.fail(env.do(stranger, http.MethodGet, env.orderPath(o.ID, ""), nil),
			http.StatusForbidden, shared.CodeUnauthorized)
	})

	t.Run("buyer cannot approve", func(t *testing.T) {
		env.fail(env.do(env.buyer, http.MethodPost, env.orderPath(o.ID, "/approve"), nil),
			http.StatusForbidden, shared.CodeUnauthorized)
	})

	t.Run("skipping a state", func(t *testing.T) {
		env.fail(env.do(env.admin, http.MethodPost, env.orderPath(o.ID, "/payment/request"), nil),
			http.StatusUnprocessableEntity, shared.CodeInvalidTransition)
	})

	t.Run("refund needs a reason", func(t *testing.T) {
		info := env.fail(env.do(env.admin, http.MethodPost, env.orderPath(o.ID, "/payment/refund"), map[string]any{}),
			http.StatusBadRequest, "ERR_VALIDATION")
		assert.Equal(t, "reason", info.Details[0].Field)
	})

	t.Run("incomplete draft cannot be submitted", func(t *testing.T) {
		var draft orderapp.OrderResponse
		env.ok(env.do(env.buyer, http.MethodPost, "/api/v1/orders", map[string]any{"intent": "direct_bulk"}), &draft)
		info := env.fail(env.do(env.buyer, http.MethodPost, env.orderPath(draft.ID, "/submit"), nil),
			http.StatusUnprocessableEntity, shared.CodeGuardFailed)
		assert.Contains(t, info.Message, "product_name")
	})

	t.Run("upload url without media storage", func(t *testing.T) {
		env.fail(env.do(env.admin, http.MethodPost, env.orderPath(o.ID, "/qc/upload-url"), orderapp.QCUploadURLRequest{
			Stage: "bulk", FileName: "front.jpg", ContentType: "image/jpeg",
		}), http.StatusUnprocessableEntity, shared.CodeGuardFailed)
	})
}

func TestOrderHandler_UpdateDraftAndList(t *testing.T) {
	env := newAPIEnv(t)
	var o orderapp.OrderResponse
	env.ok(env.do(env.buyer, http.MethodPost, "/api/v1/orders", hoodieOrder("direct_bulk")), &o)

	update := orderapp.UpdateDraftRequest{
		ProductName: "Boxy Tee", Fabric: "240 GSM jersey", BulkQuantity: 100,
	}
	update.UnitPrice = o.UnitPrice
	env.ok(env.do(env.buyer, http.MethodPut, env.orderPath(o.ID, ""), update), &o)
	assert.Equal(t, "Boxy Tee", o.ProductName)
	assert.Equal(t, "90000", o.TotalAmount.String())

	other := shared.NewActor(uuid.New(), shared.RoleBuyer)
	env.ok(env.do(other, http.MethodPost, "/api/v1/orders", hoodieOrder("sample_only")), nil)

	var mine []orderapp.OrderListItemResponse
	w := env.do(env.buyer, http.MethodGet, "/api/v1/orders?page_size=10", nil)
	env.ok(w, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, o.ID, mine[0].ID)
	assert.Contains(t, w.Body.String(), `"total":1`)

	var all []orderapp.OrderListItemResponse
	env.ok(env.do(env.admin, http.MethodGet, "/api/v1/orders?intent=sample_only", nil), &all)
	require.Len(t, all, 1)
	assert.Equal(t, "sample_only", all[0].Intent)

	env.fail(env.do(env.admin, http.MethodGet, "/api/v1/orders?state=SHIPPED", nil),
		http.StatusBadRequest, "ERR_VALIDATION")
}

func TestOrderHandler_AllowedPath(t *testing.T) {
	env := newAPIEnv(t)

	var path orderapp.IntentPathResponse
	env.ok(env.do(env.buyer, http.MethodGet, "/api/v1/orders/intents/direct_bulk/path", nil), &path)
	assert.Equal(t, "direct_bulk", path.Intent)
	assert.NotContains(t, path.Path, "SAMPLE_IN_PROGRESS")
	assert.Contains(t, path.Path, "BULK_IN_PRODUCTION")

	env.fail(env.do(env.buyer, http.MethodGet, "/api/v1/orders/intents/bulk_only/path", nil),
		http.StatusBadRequest, shared.CodeValidation)
}

func TestOrderHandler_DeclineAndReassign(t *testing.T) {
	env := newAPIEnv(t)
	first := env.verifiedManufacturer("DECL01")
	second := env.verifiedManufacturer("DECL02")

	var o orderapp.OrderResponse
	env.ok(env.do(env.buyer, http.MethodPost, "/api/v1/orders", hoodieOrder("direct_bulk")), &o)
	env.ok(env.do(env.buyer, http.MethodPost, env.orderPath(o.ID, "/submit"), nil), &o)
	env.ok(env.do(env.admin, http.MethodPost, env.orderPath(o.ID, "/approve"), nil), &o)
	env.ok(env.do(env.admin, http.MethodPost, env.orderPath(o.ID, "/assign"),
		orderapp.AssignManufacturerRequest{ManufacturerID: first.ID}), &o)

	env.fail(env.do(second, http.MethodPost, env.orderPath(o.ID, "/decline"), nil),
		http.StatusForbidden, shared.CodeUnauthorized)

	var declined orderapp.OrderResponse
	env.ok(env.do(first, http.MethodPost, env.orderPath(o.ID, "/decline"),
		orderapp.DeclineAssignmentRequest{Reason: "capacity"}), &declined)
	assert.Equal(t, "MANUFACTURER_ASSIGNED", declined.LifecycleState)
	assert.Nil(t, declined.ManufacturerID)

	var reread orderapp.OrderResponse
	env.ok(env.do(env.admin, http.MethodGet, env.orderPath(o.ID, ""), nil), &reread)
	assert.Nil(t, reread.ManufacturerID)

	env.fail(env.do(env.admin, http.MethodPost, env.orderPath(o.ID, "/assign"),
		orderapp.AssignManufacturerRequest{ManufacturerID: uuid.New()}),
		http.StatusNotFound, shared.CodeNotFound)

	env.fail(env.do(env.admin, http.MethodPost, env.orderPath(o.ID, "/payment/request"), nil),
		http.StatusUnprocessableEntity, shared.CodeGuardFailed)

	env.ok(env.do(env.admin, http.MethodPost, env.orderPath(o.ID, "/assign"),
		orderapp.AssignManufacturerRequest{ManufacturerID: second.ID}), &o)
	require.NotNil(t, o.ManufacturerID)
	assert.Equal(t, second.ID, *o.ManufacturerID)
}

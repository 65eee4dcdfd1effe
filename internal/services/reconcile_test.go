package services

import (
	"errors"
	"testing"

	"github.com/luxintaste/storefront/internal/cache"
	"github.com/luxintaste/storefront/internal/db"
	"github.com/luxintaste/storefront/internal/gateway"
	"github.com/luxintaste/storefront/internal/models"
)

func newReconcileService(t *testing.T, store *fakeOrderStore, adapters ...gateway.Adapter) *ReconcileService {
	t.Helper()

	provider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider: %v", err)
	}
	t.Cleanup(func() { provider.Close() })

	return NewReconcileService(store, gateway.NewRegistry(adapters...), provider, testLogger())
}

func successCallback() *gateway.Callback {
	return &gateway.Callback{
		MerchantOrderID: "LUXURY-TXN-abc",
		State:           "COMPLETED",
		TransactionID:   "T12345",
		Raw:             []byte(`{"state":"COMPLETED"}`),
	}
}

func TestReconcileService_HandleCallback_Settles(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	adapter := &fakeAdapter{name: models.GatewayPhonePe, configured: true, callback: successCallback()}
	service := newReconcileService(t, store, adapter)

	if err := service.HandleCallback(t.Context(), "phonepe", gateway.CallbackRequest{}); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if len(store.settled) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(store.settled))
	}
	call := store.settled[0]
	if call.merchantOrderID != "LUXURY-TXN-abc" || call.status != models.PaymentCompleted || call.paymentID != "T12345" {
		t.Errorf("unexpected settlement %+v", call)
	}
	if string(call.rawPayload) != `{"state":"COMPLETED"}` {
		t.Errorf("raw payload = %q", call.rawPayload)
	}
}

func TestReconcileService_HandleCallback_FailureState(t *testing.T) {
	t.Parallel()

	callback := successCallback()
	callback.State = "FAILED"
	callback.TransactionID = "T1"

	store := &fakeOrderStore{}
	adapter := &fakeAdapter{name: models.GatewayPhonePe, configured: true, callback: callback}
	service := newReconcileService(t, store, adapter)

	if err := service.HandleCallback(t.Context(), "phonepe", gateway.CallbackRequest{}); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if len(store.settled) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(store.settled))
	}
	call := store.settled[0]
	if call.status != models.PaymentFailed {
		t.Errorf("status = %s, want FAILED", call.status)
	}
	if call.paymentID != "T1" {
		t.Errorf("payment id = %q, want T1; failures keep the transaction reference", call.paymentID)
	}
}

func TestReconcileService_HandleCallback_InvalidSignature(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	adapter := &fakeAdapter{name: models.GatewayPhonePe, configured: true, callbackErr: gateway.ErrInvalidSignature}
	service := newReconcileService(t, store, adapter)

	err := service.HandleCallback(t.Context(), "phonepe", gateway.CallbackRequest{})
	if !errors.Is(err, gateway.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(store.settled) != 0 {
		t.Fatal("rejected webhook must not mutate any order")
	}
}

func TestReconcileService_HandleCallback_UnknownGateway(t *testing.T) {
	t.Parallel()

	service := newReconcileService(t, &fakeOrderStore{})

	err := service.HandleCallback(t.Context(), "square", gateway.CallbackRequest{})
	if !errors.Is(err, ErrUnknownGateway) {
		t.Fatalf("expected ErrUnknownGateway, got %v", err)
	}
}

func TestReconcileService_HandleCallback_DuplicateDelivery(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	adapter := &fakeAdapter{name: models.GatewayPhonePe, configured: true, callback: successCallback()}
	service := newReconcileService(t, store, adapter)

	for i := 0; i < 3; i++ {
		if err := service.HandleCallback(t.Context(), "phonepe", gateway.CallbackRequest{}); err != nil {
			t.Fatalf("HandleCallback %d: %v", i, err)
		}
	}

	if len(store.settled) != 1 {
		t.Fatalf("expected exactly 1 settlement across replays, got %d", len(store.settled))
	}
}

func TestReconcileService_HandleCallback_AlreadySettled(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{settleErr: db.ErrInvalidStatusTransition}
	adapter := &fakeAdapter{name: models.GatewayPhonePe, configured: true, callback: successCallback()}
	service := newReconcileService(t, store, adapter)

	if err := service.HandleCallback(t.Context(), "phonepe", gateway.CallbackRequest{}); err != nil {
		t.Fatalf("replay against a settled order should be benign, got %v", err)
	}
}

func TestReconcileService_HandleCallback_UnknownOrder(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{settleErr: db.ErrNotFound}
	adapter := &fakeAdapter{name: models.GatewayPhonePe, configured: true, callback: successCallback()}
	service := newReconcileService(t, store, adapter)

	if err := service.HandleCallback(t.Context(), "phonepe", gateway.CallbackRequest{}); err != nil {
		t.Fatalf("callback for an unknown order should be acknowledged, got %v", err)
	}
}

func TestReconcileService_HandleCallback_NonTerminalState(t *testing.T) {
	t.Parallel()

	callback := successCallback()
	callback.State = "PENDING"

	store := &fakeOrderStore{}
	adapter := &fakeAdapter{name: models.GatewayPhonePe, configured: true, callback: callback}
	service := newReconcileService(t, store, adapter)

	if err := service.HandleCallback(t.Context(), "phonepe", gateway.CallbackRequest{}); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if len(store.settled) != 0 {
		t.Fatal("non-terminal states must not settle the order")
	}
}

func TestMapProviderState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    string
		want     models.PaymentStatus
		terminal bool
	}{
		{"COMPLETED", models.PaymentCompleted, true},
		{"completed", models.PaymentCompleted, true},
		{"SUCCESS", models.PaymentCompleted, true},
		{"PAYMENT.CAPTURE.COMPLETED", models.PaymentCompleted, true},
		{"FAILED", models.PaymentFailed, true},
		{"DECLINED", models.PaymentFailed, true},
		{"EXPIRED", models.PaymentFailed, true},
		{"PENDING", "", false},
		{"CHECKOUT.ORDER.APPROVED", "", false},
	}

	for _, tt := range tests {
		got, terminal := mapProviderState(tt.state)
		if got != tt.want || terminal != tt.terminal {
			t.Errorf("mapProviderState(%q) = (%s, %t), want (%s, %t)", tt.state, got, terminal, tt.want, tt.terminal)
		}
	}
}

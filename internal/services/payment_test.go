package services_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qrshop/internal/domain"
	"qrshop/internal/gateway"
	"qrshop/internal/services"
)

// pendingSale places a gateway checkout of 2×A and returns the result.
func pendingSale(t *testing.T, w *world, gw *fakeGateway) services.CheckoutResult {
	t.Helper()
	res, err := newCheckout(t, w, "gateway", gw).Checkout(context.Background(), w.buyer, w.cart(entry(w.a, 2, "10.00")))
	require.NoError(t, err)
	return res
}

func newPayments(w *world, gw *fakeGateway, verify bool) *services.PaymentService {
	return &services.PaymentService{
		DB:             w.db,
		Sales:          w.sales,
		Stock:          w.stock,
		Gateway:        gw,
		Log:            zap.NewNop(),
		VerifyFinalize: verify,
	}
}

func statusOf(t *testing.T, w *world, id int64) domain.SaleStatus {
	t.Helper()
	s, err := w.sales.Get(context.Background(), id)
	require.NoError(t, err)
	return s.Status
}

func refOf(t *testing.T, w *world, id int64) string {
	t.Helper()
	s, err := w.sales.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s.Reference)
	return *s.Reference
}

func TestCallbackPaid(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{}
	res := pendingSale(t, w, gw)
	pay := newPayments(w, gw, false)

	out, err := pay.HandleCallback(context.Background(), services.CallbackInput{Reference: refOf(t, w, res.SaleID), Code: 2, TransactionID: res.TransactionID})
	require.NoError(t, err)
	assert.True(t, out.Resolved)
	assert.True(t, out.Applied)
	assert.Equal(t, domain.StatusPaid, statusOf(t, w, res.SaleID))
	assert.Equal(t, 3, w.stockOf(t, w.a))
}

func TestCallbackFailedReleasesStock(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{}
	res := pendingSale(t, w, gw)
	require.Equal(t, 3, w.stockOf(t, w.a))
	pay := newPayments(w, gw, false)

	out, err := pay.HandleCallback(context.Background(), services.CallbackInput{Reference: refOf(t, w, res.SaleID), Code: 7})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, domain.StatusFailed, statusOf(t, w, res.SaleID))
	assert.Equal(t, 5, w.stockOf(t, w.a))
}

func TestCallbackIsIdempotent(t *testing.T) {
	for _, code := range []int{2, 7} {
		w := newWorld(t, 5, 5)
		gw := &fakeGateway{}
		res := pendingSale(t, w, gw)
		pay := newPayments(w, gw, false)
		in := services.CallbackInput{Reference: refOf(t, w, res.SaleID), Code: code}

		_, err := pay.HandleCallback(context.Background(), in)
		require.NoError(t, err)
		first, err := w.sales.Get(context.Background(), res.SaleID)
		require.NoError(t, err)
		stockAfterFirst := w.stockOf(t, w.a)

		out, err := pay.HandleCallback(context.Background(), in)
		require.NoError(t, err)
		assert.False(t, out.Applied)
		second, err := w.sales.Get(context.Background(), res.SaleID)
		require.NoError(t, err)
		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, first.Version, second.Version)
		assert.Equal(t, stockAfterFirst, w.stockOf(t, w.a))
	}
}

func TestCallbackUnresolvedIsSoft(t *testing.T) {
	w := newWorld(t, 5, 5)
	pay := newPayments(w, &fakeGateway{}, false)

	out, err := pay.HandleCallback(context.Background(), services.CallbackInput{Reference: "garbage", Code: 2})
	require.NoError(t, err)
	assert.False(t, out.Resolved)

	out, err = pay.HandleCallback(context.Background(), services.CallbackInput{Reference: "ORDEN-777-abc", Code: 2})
	require.NoError(t, err)
	assert.False(t, out.Resolved)
	assert.Equal(t, int64(777), out.SaleID)
}

func TestCallbackContradictionIsIgnored(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{}
	res := pendingSale(t, w, gw)
	pay := newPayments(w, gw, false)
	ref := refOf(t, w, res.SaleID)

	_, err := pay.HandleCallback(context.Background(), services.CallbackInput{Reference: ref, Code: 2})
	require.NoError(t, err)
	out, err := pay.HandleCallback(context.Background(), services.CallbackInput{Reference: ref, Code: 7})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, domain.StatusPaid, statusOf(t, w, res.SaleID))
	assert.Equal(t, 3, w.stockOf(t, w.a))
}

func TestFinalizeWithoutCallbackCompletes(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{}
	res := pendingSale(t, w, gw)
	pay := newPayments(w, gw, false)

	out, err := pay.Finalize(context.Background(), w.buyer, res.SaleID)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, domain.StatusCompleted, statusOf(t, w, res.SaleID))
}

func TestFinalizeVerifiesWithProvider(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{status: gateway.Status{Code: 1, Known: true, Message: "Pendiente"}}
	res := pendingSale(t, w, gw)
	pay := newPayments(w, gw, true)

	_, err := pay.Finalize(context.Background(), w.buyer, res.SaleID)
	assert.ErrorIs(t, err, domain.ErrPaymentPending)
	assert.Equal(t, domain.StatusPendingPayment, statusOf(t, w, res.SaleID))

	gw.status = gateway.Status{Code: 2, Known: true, Message: "Pagado"}
	out, err := pay.Finalize(context.Background(), w.buyer, res.SaleID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Status)
}

func TestFinalizeKeepsCallbackOutcome(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{}
	res := pendingSale(t, w, gw)
	pay := newPayments(w, gw, false)

	_, err := pay.HandleCallback(context.Background(), services.CallbackInput{Reference: refOf(t, w, res.SaleID), Code: 2})
	require.NoError(t, err)

	out, err := pay.Finalize(context.Background(), w.buyer, res.SaleID)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, domain.StatusPaid, out.Status)
	assert.Equal(t, domain.StatusPaid, statusOf(t, w, res.SaleID))
}

func TestCallbackOverridesPollingCompletion(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{}
	res := pendingSale(t, w, gw)
	pay := newPayments(w, gw, false)

	_, err := pay.Finalize(context.Background(), w.buyer, res.SaleID)
	require.NoError(t, err)
	out, err := pay.HandleCallback(context.Background(), services.CallbackInput{Reference: refOf(t, w, res.SaleID), Code: 2})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, domain.StatusPaid, statusOf(t, w, res.SaleID))
}

func TestFinalizeOwnership(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{}
	res := pendingSale(t, w, gw)
	pay := newPayments(w, gw, false)

	_, err := pay.Finalize(context.Background(), w.noPhone, res.SaleID)
	assert.True(t, domain.IsNotFound(err))
	_, err = pay.Finalize(context.Background(), w.buyer, 9999)
	assert.True(t, domain.IsNotFound(err))
}

func TestPollStatus(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{status: gateway.Status{Code: 2, Known: true, Message: "Pagado"}}
	res := pendingSale(t, w, gw)
	pay := newPayments(w, gw, false)
	ctx := context.Background()

	got, err := pay.PollStatus(ctx, w.buyer, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, services.PollPaid, got.State)
	assert.Equal(t, res.SaleID, got.SaleID)

	gw.status = gateway.Status{Code: 1, Known: true, Message: "Pendiente"}
	got, err = pay.PollStatus(ctx, w.buyer, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, services.PollPending, got.State)

	gw.stErr = &domain.GatewayError{Op: "status", Err: errors.New("502")}
	got, err = pay.PollStatus(ctx, w.buyer, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, services.PollUnknown, got.State)
	assert.Equal(t, gateway.UnknownStatusMessage, got.Message)

	_, err = pay.PollStatus(ctx, w.noPhone, res.TransactionID)
	assert.True(t, domain.IsNotFound(err))
}

func TestCallbackMustMatchRecordedPayment(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{}
	res := pendingSale(t, w, gw)
	pay := newPayments(w, gw, false)
	ctx := context.Background()
	ref := refOf(t, w, res.SaleID)

	for _, in := range []services.CallbackInput{
		{Reference: services.BuildReference(res.SaleID), Code: 7},
		{Reference: "ORDEN-" + strconv.FormatInt(res.SaleID, 10) + "-notours", Code: 7},
		{Reference: ref, Code: 7, TransactionID: "SOMEONE-ELSE"},
	} {
		out, err := pay.HandleCallback(ctx, in)
		require.NoError(t, err)
		assert.True(t, out.Resolved, in.Reference)
		assert.False(t, out.Applied, in.Reference)
	}
	assert.Equal(t, domain.StatusPendingPayment, statusOf(t, w, res.SaleID))
	assert.Equal(t, 3, w.stockOf(t, w.a))

	out, err := pay.HandleCallback(ctx, services.CallbackInput{Reference: ref, Code: 2, TransactionID: res.TransactionID})
	require.NoError(t, err)
	assert.True(t, out.Applied)
}

func TestFailureAfterVerifiedFinalizeIsIgnored(t *testing.T) {
	w := newWorld(t, 5, 5)
	gw := &fakeGateway{status: gateway.Status{Code: 2, Known: true, Message: "Pagado"}}
	res := pendingSale(t, w, gw)
	pay := newPayments(w, gw, true)
	ctx := context.Background()

	_, err := pay.Finalize(ctx, w.buyer, res.SaleID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, statusOf(t, w, res.SaleID))

	out, err := pay.HandleCallback(ctx, services.CallbackInput{Reference: refOf(t, w, res.SaleID), Code: 7, TransactionID: res.TransactionID})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, domain.StatusCompleted, statusOf(t, w, res.SaleID))
	assert.Equal(t, 3, w.stockOf(t, w.a))
}

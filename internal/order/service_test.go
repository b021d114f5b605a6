package order

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/storefront-admin/internal/apperr"
	"github.com/wichananm65/storefront-admin/internal/ordermode"
	"github.com/wichananm65/storefront-admin/internal/otp"
	"github.com/wichananm65/storefront-admin/internal/product"
	"github.com/wichananm65/storefront-admin/internal/push"
	"github.com/wichananm65/storefront-admin/internal/user"
	"go.uber.org/zap"
)

var (
	testUserID     = "6f1c2a7e-3b2d-4c55-9a10-0c3f5b8e1d01"
	testProductID  = "0b8f6d4e-7a31-4f0c-8e2a-5d9c1b3a7e02"
	otherProductID = "9d2e4f6a-1c3b-4a5d-8e7f-2b4c6d8e0a03"
)

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []push.Message
	err  error
}

func (f *fakeNotifier) SendToAllAdmins(ctx context.Context, msg push.Message) (push.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	if f.err != nil {
		return push.Result{}, f.err
	}
	return push.Result{Sent: 1, Total: 1}, nil
}

type testEnv struct {
	svc      *Service
	repo     *InMemoryRepository
	modes    *ordermode.Service
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hasher, err := otp.NewHasher("test-secret")
	require.NoError(t, err)

	env := &testEnv{
		repo:     NewInMemoryRepository(),
		modes:    ordermode.NewService(ordermode.NewInMemoryRepository(), zap.NewNop()),
		notifier: &fakeNotifier{},
	}
	users := user.NewInMemoryRepository([]user.User{{ID: testUserID}})
	products := product.NewInMemoryRepository([]product.Product{
		{ID: testProductID, Name: "Salmon kibble 2kg", SellingPrice: decimal.RequireFromString("50.00"), Category: "food"},
		{ID: otherProductID, Name: "Rope toy", SellingPrice: decimal.RequireFromString("12.50")},
	})
	env.svc = NewService(env.repo, users, products, env.modes, hasher, env.notifier, zap.NewNop(),
		Options{OTPTTL: 10 * time.Minute})
	return env
}

func validCreateRequest(txID string) CreateRequest {
	return CreateRequest{
		User:          testUserID,
		Items:         []ItemInput{{ProductID: testProductID, Quantity: "2"}},
		TotalAmount:   decimal.NewFromInt(100),
		TransactionID: txID,
		OrderType:     "Scheduled",
		DeliveryAddress: Address{
			City: "Bangkok", ZipCode: "10110", State: "Bangkok", Country: "TH",
		},
	}
}

func (e *testEnv) mustCreate(t *testing.T, txID string) Order {
	t.Helper()
	o, err := e.svc.Create(context.Background(), validCreateRequest(txID))
	require.NoError(t, err)
	return o
}

func strPtr(s string) *string { return &s }

func TestCreate_ScheduledDefaults(t *testing.T) {
	env := newTestEnv(t)

	o := env.mustCreate(t, "TXN1")

	require.NotNil(t, o.DeliverySlot)
	assert.Equal(t, DefaultDeliverySlot, *o.DeliverySlot)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, DeliveryProcessing, o.DeliveryStatus)
	assert.Equal(t, TypeScheduled, o.OrderType)
	assert.Equal(t, PaymentCOD, o.PaymentMethod)
	assert.Equal(t, []Item{{ProductID: testProductID, Quantity: 2}}, o.Items)
	assert.NoError(t, uuid.Validate(o.ID))

	stored, err := env.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.TransactionID, stored.TransactionID)
}

func TestCreate_QuickDropsSlot(t *testing.T) {
	env := newTestEnv(t)

	req := validCreateRequest("TXN-Q")
	req.OrderType = "Quick"
	req.DeliverySlot = strPtr("9–11 AM")
	o, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, TypeQuick, o.OrderType)
	assert.Nil(t, o.DeliverySlot)
}

func TestCreate_KeepsSuppliedSlot(t *testing.T) {
	env := newTestEnv(t)

	req := validCreateRequest("TXN-S")
	req.DeliverySlot = strPtr(" 4–6 PM ")
	o, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, o.DeliverySlot)
	assert.Equal(t, "4–6 PM", *o.DeliverySlot)
}

func TestCreate_DuplicateTransaction(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreate(t, "TXN1")

	_, err := env.svc.Create(context.Background(), validCreateRequest("TXN1"))
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = env.svc.Create(context.Background(), validCreateRequest("TXN2"))
	assert.NoError(t, err)
}

func TestCreate_ModeGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	off := false

	_, err := env.modes.Update(ctx, ordermode.Patch{IsScheduledActive: &off})
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, validCreateRequest("TXN1"))
	assert.ErrorIs(t, err, ErrScheduledDisabled)
	assert.ErrorIs(t, err, apperr.ErrFeatureDisabled)

	quick := validCreateRequest("TXN2")
	quick.OrderType = "quick"
	_, err = env.svc.Create(ctx, quick)
	require.NoError(t, err)

	_, err = env.modes.Update(ctx, ordermode.Patch{IsQuickActive: &off})
	require.NoError(t, err)
	quick.TransactionID = "TXN3"
	_, err = env.svc.Create(ctx, quick)
	assert.ErrorIs(t, err, ErrQuickDisabled)
}

func TestCreate_DeliveredForcesPaid(t *testing.T) {
	env := newTestEnv(t)

	req := validCreateRequest("TXN1")
	req.DeliveryStatus = "delivered"
	req.Status = "pending"
	o, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, DeliveryDelivered, o.DeliveryStatus)
	assert.Equal(t, StatusPaid, o.Status)
}

func TestCreate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		want   error
	}{
		{"malformed user", func(r *CreateRequest) { r.User = "abc" }, ErrInvalidUser},
		{"unknown user", func(r *CreateRequest) { r.User = uuid.NewString() }, ErrUserNotFound},
		{"no items", func(r *CreateRequest) { r.Items = nil }, ErrItemsRequired},
		{"malformed product", func(r *CreateRequest) { r.Items[0].ProductID = "p1" }, ErrInvalidProduct},
		{"unknown product", func(r *CreateRequest) {
			r.Items = append(r.Items, ItemInput{ProductID: uuid.NewString(), Quantity: "1"})
		}, ErrProductNotFound},
		{"zero quantity", func(r *CreateRequest) { r.Items[0].Quantity = "0" }, ErrInvalidQuantity},
		{"zero amount", func(r *CreateRequest) { r.TotalAmount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(r *CreateRequest) { r.TotalAmount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"sub-cent amount", func(r *CreateRequest) { r.TotalAmount = decimal.RequireFromString("0.001") }, ErrInvalidAmount},
		{"three decimals", func(r *CreateRequest) { r.TotalAmount = decimal.RequireFromString("100.125") }, ErrInvalidAmount},
		{"amount too large", func(r *CreateRequest) { r.TotalAmount = decimal.New(1, 10) }, ErrInvalidAmount},
		{"blank transaction", func(r *CreateRequest) { r.TransactionID = "  " }, ErrTransactionRequired},
		{"bad status", func(r *CreateRequest) { r.Status = "REFUNDED" }, ErrInvalidStatus},
		{"bad delivery status", func(r *CreateRequest) { r.DeliveryStatus = "LOST" }, ErrInvalidDelivery},
		{"bad payment method", func(r *CreateRequest) { r.PaymentMethod = "card" }, ErrInvalidPaymentMethod},
		{"no city", func(r *CreateRequest) { r.DeliveryAddress.City = "" }, ErrIncompleteAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := validCreateRequest("TXN1")
			tt.mutate(&req)

			_, err := env.svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)

			n, _ := env.repo.Count(context.Background(), "")
			assert.Zero(t, n, "nothing must be written on a rejected create")
		})
	}
}

func TestCreate_DuplicateProductIDsCountOnce(t *testing.T) {
	env := newTestEnv(t)

	req := validCreateRequest("TXN1")
	req.Items = []ItemInput{
		{ProductID: testProductID, Quantity: "1"},
		{ProductID: testProductID, Quantity: "3"},
		{ProductID: otherProductID},
	}
	o, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, o.Items, 3)
	assert.Equal(t, 1, o.Items[2].Quantity)
}

func TestUpdate_DeliveredForcesPaid(t *testing.T) {
	env := newTestEnv(t)
	o := env.mustCreate(t, "TXN1")
	require.Equal(t, StatusPending, o.Status)

	updated, err := env.svc.Update(context.Background(), o.ID, UpdateRequest{DeliveryStatus: strPtr("Delivered")})
	require.NoError(t, err)

	assert.Equal(t, DeliveryDelivered, updated.DeliveryStatus)
	assert.Equal(t, StatusPaid, updated.Status)
	assert.True(t, !updated.UpdatedAt.Before(o.UpdatedAt))
}

func TestUpdate_PartialFields(t *testing.T) {
	env := newTestEnv(t)
	o := env.mustCreate(t, "TXN1")
	amount := decimal.RequireFromString("149.50")

	updated, err := env.svc.Update(context.Background(), o.ID, UpdateRequest{
		TotalAmount:   &amount,
		PaymentMethod: strPtr("PhonePe"),
		Items:         []ItemInput{{ProductID: otherProductID, Quantity: "4"}},
	})
	require.NoError(t, err)

	assert.True(t, amount.Equal(updated.TotalAmount))
	assert.Equal(t, PaymentPhonePe, updated.PaymentMethod)
	assert.Equal(t, []Item{{ProductID: otherProductID, Quantity: 4}}, updated.Items)
	assert.Equal(t, o.TransactionID, updated.TransactionID)
	assert.Equal(t, o.DeliveryAddress, updated.DeliveryAddress)
}

func TestUpdate_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		want  error
	}{
		{"forward", []string{"DISPATCHED", "DELIVERED"}, nil},
		{"same value", []string{"PROCESSING"}, nil},
		{"same value after delivery", []string{"DELIVERED", "DELIVERED"}, nil},
		{"same value after cancel", []string{"CANCELLED", "CANCELLED"}, nil},
		{"backwards", []string{"DISPATCHED", "PROCESSING"}, apperr.ErrInvalidState},
		{"out of delivered", []string{"DELIVERED", "DISPATCHED"}, ErrAlreadyDelivered},
		{"out of cancelled", []string{"CANCELLED", "PROCESSING"}, ErrAlreadyCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			o := env.mustCreate(t, "TXN1")

			var err error
			for _, step := range tt.steps {
				_, err = env.svc.Update(context.Background(), o.ID, UpdateRequest{DeliveryStatus: strPtr(step)})
			}
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdate_DeliveredStaysPaid(t *testing.T) {
	env := newTestEnv(t)
	o := env.mustCreate(t, "TXN1")
	_, err := env.svc.Update(context.Background(), o.ID, UpdateRequest{DeliveryStatus: strPtr("DELIVERED")})
	require.NoError(t, err)

	_, err = env.svc.Update(context.Background(), o.ID, UpdateRequest{Status: strPtr("FAILED")})
	assert.ErrorIs(t, err, ErrDeliveredUnpaid)
}

func TestUpdate_FullSaveOfDeliveredOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.mustCreate(t, "TXN1")
	_, err := env.svc.Update(ctx, o.ID, UpdateRequest{DeliveryStatus: strPtr("DELIVERED")})
	require.NoError(t, err)

	addr := o.DeliveryAddress
	addr.Street = "99 Sukhumvit Rd"
	updated, err := env.svc.Update(ctx, o.ID, UpdateRequest{
		DeliveryStatus:  strPtr("DELIVERED"),
		Status:          strPtr("PAID"),
		DeliveryAddress: &addr,
	})
	require.NoError(t, err)
	assert.Equal(t, "99 Sukhumvit Rd", updated.DeliveryAddress.Street)
	assert.Equal(t, StatusPaid, updated.Status)

	_, err = env.svc.Update(ctx, o.ID, UpdateRequest{DeliveryStatus: strPtr("DELIVERED"), Status: strPtr("FAILED")})
	assert.ErrorIs(t, err, ErrDeliveredUnpaid)
}

func TestUpdate_RejectsUnstorableAmount(t *testing.T) {
	env := newTestEnv(t)
	o := env.mustCreate(t, "TXN1")

	for _, v := range []string{"0.001", "149.505"} {
		amount := decimal.RequireFromString(v)
		_, err := env.svc.Update(context.Background(), o.ID, UpdateRequest{TotalAmount: &amount})
		assert.ErrorIs(t, err, ErrInvalidAmount, v)
	}

	amount := decimal.RequireFromString("149.50")
	_, err := env.svc.Update(context.Background(), o.ID, UpdateRequest{TotalAmount: &amount})
	assert.NoError(t, err)
}

func TestUpdate_NotFoundAndInvalidID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Update(context.Background(), uuid.NewString(), UpdateRequest{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.Update(context.Background(), "nope", UpdateRequest{})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestCancel_Twice(t *testing.T) {
	env := newTestEnv(t)
	o := env.mustCreate(t, "TXN1")

	cancelled, err := env.svc.Cancel(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, DeliveryCancelled, cancelled.DeliveryStatus)

	_, err = env.svc.Cancel(context.Background(), o.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestCancel_DeliveredAndMissing(t *testing.T) {
	env := newTestEnv(t)
	o := env.mustCreate(t, "TXN1")
	_, err := env.svc.Update(context.Background(), o.ID, UpdateRequest{DeliveryStatus: strPtr("DELIVERED")})
	require.NoError(t, err)

	_, err = env.svc.Cancel(context.Background(), o.ID)
	assert.ErrorIs(t, err, ErrAlreadyDelivered)

	_, err = env.svc.Cancel(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOTP_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.mustCreate(t, "TXN1")

	res, err := env.svc.VerifyOTP(ctx, o.ID, "1234")
	require.NoError(t, err)
	assert.False(t, res.Success, "verification without an issued code must fail")
	assert.Equal(t, "Invalid or expired OTP", res.Message)

	code, err := env.svc.GenerateOTP(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, code, 4)

	stored, _ := env.repo.GetByID(ctx, o.ID)
	require.NotNil(t, stored.OTPHash)
	assert.NotContains(t, *stored.OTPHash, code)

	res, err = env.svc.VerifyOTP(ctx, o.ID, code)
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = env.svc.VerifyOTP(ctx, o.ID, code)
	require.NoError(t, err)
	assert.False(t, res.Success)

	after, _ := env.repo.GetByID(ctx, o.ID)
	assert.Nil(t, after.OTPHash)
	assert.Equal(t, DeliveryProcessing, after.DeliveryStatus)
}

func TestOTP_ReissueSupersedes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.mustCreate(t, "TXN1")

	first, err := env.svc.GenerateOTP(ctx, o.ID)
	require.NoError(t, err)
	second, err := env.svc.GenerateOTP(ctx, o.ID)
	require.NoError(t, err)

	if first != second {
		res, err := env.svc.VerifyOTP(ctx, o.ID, first)
		require.NoError(t, err)
		assert.False(t, res.Success)
	}
	res, err := env.svc.VerifyOTP(ctx, o.ID, second)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestOTP_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.mustCreate(t, "TXN1")

	issued := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return issued }
	code, err := env.svc.GenerateOTP(ctx, o.ID)
	require.NoError(t, err)

	env.svc.now = func() time.Time { return issued.Add(11 * time.Minute) }
	res, err := env.svc.VerifyOTP(ctx, o.ID, code)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestOTP_NoneForDeliveredOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.mustCreate(t, "TXN1")
	_, err := env.svc.Update(ctx, o.ID, UpdateRequest{DeliveryStatus: strPtr("DELIVERED")})
	require.NoError(t, err)

	code, err := env.svc.GenerateOTP(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, code)

	stored, _ := env.repo.GetByID(ctx, o.ID)
	assert.Nil(t, stored.OTPHash)
}

func TestOTP_ConcurrentVerifySucceedsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.mustCreate(t, "TXN1")
	code, err := env.svc.GenerateOTP(ctx, o.ID)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.svc.VerifyOTP(ctx, o.ID, code)
			if err == nil && res.Success {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}

func TestConfirmDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.mustCreate(t, "TXN1")

	_, err := env.svc.ConfirmDelivery(ctx, o.ID, "0000")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	code, err := env.svc.GenerateOTP(ctx, o.ID)
	require.NoError(t, err)
	delivered, err := env.svc.ConfirmDelivery(ctx, o.ID, code)
	require.NoError(t, err)

	assert.Equal(t, DeliveryDelivered, delivered.DeliveryStatus)
	assert.Equal(t, StatusPaid, delivered.Status)
	require.Len(t, env.notifier.msgs, 1)
	assert.Equal(t, "/orders/"+o.ID, env.notifier.msgs[0].URL)

	_, err = env.svc.ConfirmDelivery(ctx, o.ID, code)
	assert.ErrorIs(t, err, ErrAlreadyDelivered)
}

func TestConfirmDelivery_NotifyFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.notifier.err = errors.New("push backend down")
	o := env.mustCreate(t, "TXN1")

	code, err := env.svc.GenerateOTP(ctx, o.ID)
	require.NoError(t, err)
	delivered, err := env.svc.ConfirmDelivery(ctx, o.ID, code)
	require.NoError(t, err)
	assert.Equal(t, DeliveryDelivered, delivered.DeliveryStatus)
}

func TestListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return base }
	first := env.mustCreate(t, "TXN1")
	env.svc.now = func() time.Time { return base.Add(time.Hour) }
	second := env.mustCreate(t, "TXN2")

	orders, err := env.svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)

	require.NoError(t, env.svc.Delete(ctx, first.ID))
	assert.ErrorIs(t, env.svc.Delete(ctx, first.ID), ErrNotFound)

	n, err := env.svc.Count(ctx, DeliveryProcessing)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestList_Filters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cod := env.mustCreate(t, "TXN1")
	req := validCreateRequest("TXN2")
	req.PaymentMethod = "phonepe"
	phonepe, err := env.svc.Create(ctx, req)
	require.NoError(t, err)
	_, err = env.svc.Update(ctx, phonepe.ID, UpdateRequest{DeliveryStatus: strPtr("DELIVERED")})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"payment method", ListFilter{PaymentMethod: PaymentCOD}, []string{cod.ID}},
		{"payment status", ListFilter{Status: StatusPaid}, []string{phonepe.ID}},
		{"delivery status", ListFilter{DeliveryStatus: DeliveryProcessing}, []string{cod.ID}},
		{"combined", ListFilter{PaymentMethod: PaymentPhonePe, DeliveryStatus: DeliveryProcessing}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, err := env.svc.List(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, v := range views {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestNewListFilter(t *testing.T) {
	f, err := NewListFilter("paid", " all ", "Dispatched")
	require.NoError(t, err)
	assert.Equal(t, ListFilter{Status: StatusPaid, DeliveryStatus: DeliveryDispatched}, f)

	_, err = NewListFilter("REFUNDED", "", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = NewListFilter("", "card", "")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
	_, err = NewListFilter("", "", "LOST")
	assert.ErrorIs(t, err, ErrInvalidDelivery)
}

func TestView_AttachesProducts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := validCreateRequest("TXN1")
	req.Items = append(req.Items, ItemInput{ProductID: otherProductID, Quantity: "1"})
	o, err := env.svc.Create(ctx, req)
	require.NoError(t, err)

	v, err := env.svc.View(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, v.Items, 2)
	require.NotNil(t, v.Items[0].Product)
	assert.Equal(t, "Salmon kibble 2kg", v.Items[0].Product.Name)
	assert.Equal(t, "food", v.Items[0].Product.Category)
	assert.Equal(t, 2, v.Items[0].Quantity)
	require.NotNil(t, v.Items[1].Product)
	assert.True(t, decimal.RequireFromString("12.5").Equal(v.Items[1].Product.SellingPrice))

	// a product removed from the catalogue leaves the line without a summary
	env.svc.products = product.NewInMemoryRepository(nil)
	v, err = env.svc.View(ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, v.Items[0].Product)
	assert.Equal(t, testProductID, v.Items[0].ProductID)
}

type failingUpdateRepository struct {
	*InMemoryRepository
}

func (failingUpdateRepository) Update(ctx context.Context, id string, p Patch, now time.Time) (Order, error) {
	return Order{}, errors.New("connection reset")
}

func TestConfirmDelivery_FailedWriteKeepsCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.mustCreate(t, "TXN1")
	code, err := env.svc.GenerateOTP(ctx, o.ID)
	require.NoError(t, err)

	env.svc.repo = failingUpdateRepository{env.repo}
	_, err = env.svc.ConfirmDelivery(ctx, o.ID, code)
	require.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Empty(t, env.notifier.msgs)

	env.svc.repo = env.repo
	delivered, err := env.svc.ConfirmDelivery(ctx, o.ID, code)
	require.NoError(t, err)
	assert.Equal(t, DeliveryDelivered, delivered.DeliveryStatus)
}

type brokenRepository struct {
	*InMemoryRepository
}

func (brokenRepository) GetByID(ctx context.Context, id string) (Order, error) {
	return Order{}, errors.New("connection reset")
}

func TestStoreFailureIsUpstream(t *testing.T) {
	env := newTestEnv(t)
	env.svc.repo = brokenRepository{env.repo}

	_, err := env.svc.Cancel(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Equal(t, 500, apperr.HTTPStatus(err))
}

package order

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront-admin/internal/apperr"
	"github.com/wichananm65/storefront-admin/internal/ordermode"
	"github.com/wichananm65/storefront-admin/internal/otp"
	"github.com/wichananm65/storefront-admin/internal/product"
	"github.com/wichananm65/storefront-admin/internal/push"
	"go.uber.org/zap"
)

const (
	DefaultDeliverySlot = "6–8 AM"

	restoreTimeout = 5 * time.Second
)

// maxTotalAmount is the first value the orders.total_amount column cannot
// hold.
var maxTotalAmount = decimal.New(1, 10)

type UserChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type ProductCatalog interface {
	// CountByIDs returns how many of the distinct ids exist.
	CountByIDs(ctx context.Context, ids []string) (int, error)
	FindSummaries(ctx context.Context, ids []string) ([]product.Summary, error)
}

type ModeReader interface {
	Get(ctx context.Context) (ordermode.OrderMode, error)
}

type Notifier interface {
	SendToAllAdmins(ctx context.Context, msg push.Message) (push.Result, error)
}

type Options struct {
	DefaultDeliverySlot string
	// OTPTTL bounds how long an issued code stays valid; 0 means no expiry.
	OTPTTL time.Duration
}

type Service struct {
	repo     Repository
	users    UserChecker
	products ProductCatalog
	modes    ModeReader
	otp      *otp.Hasher
	notifier Notifier
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
	newID    func() string
}

// NewService wires the order engine. notifier may be nil, in which case
// delivery confirmations are not broadcast.
func NewService(repo Repository, users UserChecker, products ProductCatalog, modes ModeReader,
	hasher *otp.Hasher, notifier Notifier, logger *zap.Logger, opts Options) *Service {
	if opts.DefaultDeliverySlot == "" {
		opts.DefaultDeliverySlot = DefaultDeliverySlot
	}
	return &Service{
		repo:     repo,
		users:    users,
		products: products,
		modes:    modes,
		otp:      hasher,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type ItemInput struct {
	ProductID string      `json:"productId"`
	Quantity  json.Number `json:"quantity"`
}

type CreateRequest struct {
	User            string          `json:"user"`
	Name            string          `json:"name"`
	Mobile          string          `json:"mobile"`
	Items           []ItemInput     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          string          `json:"status"`
	TransactionID   string          `json:"transactionId"`
	PaymentMethod   string          `json:"paymentMethod"`
	DeliveryStatus  string          `json:"deliveryStatus"`
	DeliveryAddress Address         `json:"deliveryAddress"`
	OrderType       string          `json:"orderType"`
	DeliverySlot    *string         `json:"deliverySlot"`
}

// UpdateRequest carries a partial update. Absent or empty fields are left
// untouched.
type UpdateRequest struct {
	User            *string          `json:"user"`
	Items           []ItemInput      `json:"items"`
	TotalAmount     *decimal.Decimal `json:"totalAmount"`
	Status          *string          `json:"status"`
	PaymentMethod   *string          `json:"paymentMethod"`
	DeliveryStatus  *string          `json:"deliveryStatus"`
	DeliveryAddress *Address         `json:"deliveryAddress"`
}

type VerifyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Create validates the request against users, products, the transaction
// ledger and the order mode, in that order, before writing anything.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Order, error) {
	if !validID(req.User) {
		return Order{}, ErrInvalidUser
	}
	items, err := parseItems(req.Items)
	if err != nil {
		return Order{}, err
	}
	if !validAmount(req.TotalAmount) {
		return Order{}, ErrInvalidAmount
	}
	txID := strings.TrimSpace(req.TransactionID)
	if txID == "" {
		return Order{}, ErrTransactionRequired
	}

	status := StatusPending
	if req.Status != "" {
		var ok bool
		if status, ok = ParsePaymentStatus(req.Status); !ok {
			return Order{}, ErrInvalidStatus
		}
	}
	method := PaymentCOD
	if req.PaymentMethod != "" {
		var ok bool
		if method, ok = ParsePaymentMethod(req.PaymentMethod); !ok {
			return Order{}, ErrInvalidPaymentMethod
		}
	}
	delivery := DeliveryProcessing
	if req.DeliveryStatus != "" {
		var ok bool
		if delivery, ok = ParseDeliveryStatus(req.DeliveryStatus); !ok {
			return Order{}, ErrInvalidDelivery
		}
	}
	if delivery == DeliveryDelivered {
		status = StatusPaid
	}
	if !req.DeliveryAddress.complete() {
		return Order{}, ErrIncompleteAddress
	}

	orderType := ParseType(req.OrderType)
	var slot *string
	if orderType == TypeScheduled {
		v := s.opts.DefaultDeliverySlot
		if req.DeliverySlot != nil && strings.TrimSpace(*req.DeliverySlot) != "" {
			v = strings.TrimSpace(*req.DeliverySlot)
		}
		slot = &v
	}

	if err := s.checkUser(ctx, req.User); err != nil {
		return Order{}, err
	}
	if err := s.checkProducts(ctx, items); err != nil {
		return Order{}, err
	}
	used, err := s.repo.TransactionExists(ctx, txID)
	if err != nil {
		return Order{}, s.upstream("check transaction id", err)
	}
	if used {
		return Order{}, ErrDuplicateTransaction
	}
	if err := s.checkMode(ctx, orderType); err != nil {
		return Order{}, err
	}

	now := s.now().UTC()
	o := Order{
		ID:              s.newID(),
		User:            req.User,
		Name:            strings.TrimSpace(req.Name),
		Mobile:          strings.TrimSpace(req.Mobile),
		Items:           items,
		TotalAmount:     req.TotalAmount,
		Status:          status,
		TransactionID:   txID,
		PaymentMethod:   method,
		DeliveryStatus:  delivery,
		OrderType:       orderType,
		DeliverySlot:    slot,
		DeliveryAddress: req.DeliveryAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	created, err := s.repo.Create(ctx, o)
	if errors.Is(err, ErrDuplicateTransaction) {
		return Order{}, err
	}
	if err != nil {
		return Order{}, s.upstream("create order", err, zap.String("transaction_id", txID))
	}

	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("order_type", string(created.OrderType)),
		zap.String("total_amount", created.TotalAmount.String()))
	return created, nil
}

// Update applies a partial update. A delivery status of DELIVERED forces
// the payment status to PAID within the same write.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Order, error) {
	if !validID(id) {
		return Order{}, ErrInvalidID
	}
	p, err := s.buildPatch(req)
	if err != nil {
		return Order{}, err
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if p.User != nil {
		if err := s.checkUser(ctx, *p.User); err != nil {
			return Order{}, err
		}
	}

	delivery := current.DeliveryStatus
	if p.DeliveryStatus != nil {
		if !current.DeliveryStatus.CanTransitionTo(*p.DeliveryStatus) {
			return Order{}, transitionError(current.DeliveryStatus, *p.DeliveryStatus)
		}
		delivery = *p.DeliveryStatus
	}
	if delivery == DeliveryDelivered {
		if current.DeliveryStatus == DeliveryDelivered && p.Status != nil && *p.Status != StatusPaid {
			return Order{}, ErrDeliveredUnpaid
		}
		paid := StatusPaid
		p.Status = &paid
	}

	return s.write(ctx, id, p)
}

// Cancel moves a live order to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id string) (Order, error) {
	if !validID(id) {
		return Order{}, ErrInvalidID
	}
	current, err := s.get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	switch current.DeliveryStatus {
	case DeliveryDelivered:
		return Order{}, ErrAlreadyDelivered
	case DeliveryCancelled:
		return Order{}, ErrAlreadyCancelled
	}

	cancelled := DeliveryCancelled
	o, err := s.write(ctx, id, Patch{DeliveryStatus: &cancelled})
	if err != nil {
		return Order{}, err
	}
	s.logger.Info("order cancelled", zap.String("order_id", id))
	return o, nil
}

// GenerateOTP issues a fresh code for the order and returns it once. It
// returns "" without touching the order when it is already delivered.
func (s *Service) GenerateOTP(ctx context.Context, id string) (string, error) {
	if !validID(id) {
		return "", ErrInvalidID
	}
	current, err := s.get(ctx, id)
	if err != nil {
		return "", err
	}
	if current.DeliveryStatus == DeliveryDelivered {
		return "", nil
	}

	code, err := s.otp.Generate()
	if err != nil {
		return "", s.upstream("generate otp", err, zap.String("order_id", id))
	}
	err = s.repo.SetOTP(ctx, id, s.otp.Hash(id, code), s.now().UTC())
	if errors.Is(err, ErrNotFound) {
		return "", err
	}
	if err != nil {
		return "", s.upstream("store otp", err, zap.String("order_id", id))
	}

	s.logger.Info("otp issued", zap.String("order_id", id))
	return code, nil
}

// VerifyOTP checks code against the outstanding digest and consumes it on
// success. A mismatch is reported in the result, not as an error.
func (s *Service) VerifyOTP(ctx context.Context, id, code string) (VerifyResult, error) {
	res, _, err := s.consumeOTP(ctx, id, code)
	return res, err
}

// consumeOTP also returns the order as it was before its digest was
// cleared.
func (s *Service) consumeOTP(ctx context.Context, id, code string) (VerifyResult, Order, error) {
	failed := VerifyResult{Success: false, Message: ErrInvalidOTP.Message}

	if !validID(id) {
		return VerifyResult{}, Order{}, ErrInvalidID
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return VerifyResult{}, Order{}, ErrOTPRequired
	}
	current, err := s.get(ctx, id)
	if err != nil {
		return VerifyResult{}, Order{}, err
	}
	if current.OTPHash == nil || !s.otp.Verify(id, code, *current.OTPHash) {
		return failed, current, nil
	}
	if s.expired(current.OTPIssuedAt) {
		return failed, current, nil
	}

	cleared, err := s.repo.ClearOTP(ctx, id, *current.OTPHash, s.now().UTC())
	if err != nil {
		return VerifyResult{}, Order{}, s.upstream("clear otp", err, zap.String("order_id", id))
	}
	if !cleared {
		return failed, current, nil
	}

	s.logger.Info("otp verified", zap.String("order_id", id))
	return VerifyResult{Success: true, Message: "OTP verified successfully"}, current, nil
}

// ConfirmDelivery verifies the code, marks the order delivered and then
// tells the admins. The broadcast is best effort.
func (s *Service) ConfirmDelivery(ctx context.Context, id, code string) (Order, error) {
	if !validID(id) {
		return Order{}, ErrInvalidID
	}
	current, err := s.get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if current.DeliveryStatus.Terminal() {
		return Order{}, transitionError(current.DeliveryStatus, DeliveryDelivered)
	}

	res, consumed, err := s.consumeOTP(ctx, id, code)
	if err != nil {
		return Order{}, err
	}
	if !res.Success {
		return Order{}, ErrInvalidOTP
	}

	delivered := string(DeliveryDelivered)
	o, err := s.Update(ctx, id, UpdateRequest{DeliveryStatus: &delivered})
	if errors.Is(err, apperr.ErrUpstream) {
		s.restoreOTP(ctx, consumed, err)
	}
	if err != nil {
		return Order{}, err
	}
	s.notifyDelivered(ctx, o)
	return o, nil
}

// restoreOTP puts back the digest a confirmation consumed when the store
// failed to record the delivery, so the courier can retry with the same
// code. It runs detached from ctx, which may be what expired.
func (s *Service) restoreOTP(ctx context.Context, o Order, cause error) {
	if o.OTPHash == nil || o.OTPIssuedAt == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()

	err := s.repo.SetOTP(ctx, o.ID, *o.OTPHash, *o.OTPIssuedAt)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Error("otp consumed but delivery not recorded",
			zap.String("order_id", o.ID), zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	s.logger.Warn("delivery not recorded, otp restored",
		zap.String("order_id", o.ID), zap.NamedError("cause", cause))
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	if !validID(id) {
		return Order{}, ErrInvalidID
	}
	return s.get(ctx, id)
}

// View returns the order with its lines resolved against the catalogue.
func (s *Service) View(ctx context.Context, id string) (View, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	views, err := s.views(ctx, []Order{o})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// List returns the orders matching f, newest first, with their lines
// resolved against the catalogue.
func (s *Service) List(ctx context.Context, f ListFilter) ([]View, error) {
	orders, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, s.upstream("list orders", err)
	}
	return s.views(ctx, orders)
}

// views attaches product summaries with one catalogue lookup. Lines whose
// product is gone keep a nil Product.
func (s *Service) views(ctx context.Context, orders []Order) ([]View, error) {
	var ids []string
	seen := make(map[string]struct{})
	for _, o := range orders {
		for _, it := range o.Items {
			if _, dup := seen[it.ProductID]; dup {
				continue
			}
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}
	}

	summaries, err := s.products.FindSummaries(ctx, ids)
	if err != nil {
		return nil, s.upstream("load products", err)
	}
	byID := make(map[string]*product.Summary, len(summaries))
	for i := range summaries {
		byID[summaries[i].ID] = &summaries[i]
	}

	views := make([]View, 0, len(orders))
	for _, o := range orders {
		items := make([]ItemView, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, ItemView{ProductID: it.ProductID, Quantity: it.Quantity, Product: byID[it.ProductID]})
		}
		views = append(views, View{Order: o, Items: items})
	}
	return views, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrInvalidID
	}
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return s.upstream("delete order", err, zap.String("order_id", id))
	}
	s.logger.Info("order deleted", zap.String("order_id", id))
	return nil
}

// Count counts orders in a delivery status; "" counts every order.
func (s *Service) Count(ctx context.Context, status DeliveryStatus) (int, error) {
	n, err := s.repo.Count(ctx, status)
	if err != nil {
		return 0, s.upstream("count orders", err, zap.String("delivery_status", string(status)))
	}
	return n, nil
}

func (s *Service) buildPatch(req UpdateRequest) (Patch, error) {
	var p Patch
	if req.User != nil && *req.User != "" {
		if !validID(*req.User) {
			return Patch{}, ErrInvalidUser
		}
		p.User = req.User
	}
	if req.Items != nil {
		items, err := parseItems(req.Items)
		if err != nil {
			return Patch{}, err
		}
		p.Items = items
	}
	if req.TotalAmount != nil {
		if !validAmount(*req.TotalAmount) {
			return Patch{}, ErrInvalidAmount
		}
		p.TotalAmount = req.TotalAmount
	}
	if req.Status != nil && *req.Status != "" {
		st, ok := ParsePaymentStatus(*req.Status)
		if !ok {
			return Patch{}, ErrInvalidStatus
		}
		p.Status = &st
	}
	if req.PaymentMethod != nil && *req.PaymentMethod != "" {
		m, ok := ParsePaymentMethod(*req.PaymentMethod)
		if !ok {
			return Patch{}, ErrInvalidPaymentMethod
		}
		p.PaymentMethod = &m
	}
	if req.DeliveryStatus != nil && *req.DeliveryStatus != "" {
		d, ok := ParseDeliveryStatus(*req.DeliveryStatus)
		if !ok {
			return Patch{}, ErrInvalidDelivery
		}
		p.DeliveryStatus = &d
	}
	if req.DeliveryAddress != nil {
		if !req.DeliveryAddress.complete() {
			return Patch{}, ErrIncompleteAddress
		}
		p.DeliveryAddress = req.DeliveryAddress
	}
	return p, nil
}

func (s *Service) write(ctx context.Context, id string, p Patch) (Order, error) {
	o, err := s.repo.Update(ctx, id, p, s.now().UTC())
	if errors.Is(err, ErrNotFound) {
		return Order{}, err
	}
	if err != nil {
		return Order{}, s.upstream("update order", err, zap.String("order_id", id))
	}
	return o, nil
}

func (s *Service) get(ctx context.Context, id string) (Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Order{}, err
	}
	if err != nil {
		return Order{}, s.upstream("load order", err, zap.String("order_id", id))
	}
	return o, nil
}

func (s *Service) checkUser(ctx context.Context, id string) error {
	ok, err := s.users.Exists(ctx, id)
	if err != nil {
		return s.upstream("check user", err, zap.String("user_id", id))
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) checkProducts(ctx context.Context, items []Item) error {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.ProductID]; dup {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}

	found, err := s.products.CountByIDs(ctx, ids)
	if err != nil {
		return s.upstream("check products", err)
	}
	if found != len(ids) {
		return ErrProductNotFound
	}
	return nil
}

func (s *Service) checkMode(ctx context.Context, t Type) error {
	mode, err := s.modes.Get(ctx)
	if err != nil {
		return err
	}
	if t == TypeQuick && !mode.IsQuickActive {
		return ErrQuickDisabled
	}
	if t == TypeScheduled && !mode.IsScheduledActive {
		return ErrScheduledDisabled
	}
	return nil
}

func (s *Service) expired(issuedAt *time.Time) bool {
	if s.opts.OTPTTL <= 0 || issuedAt == nil {
		return false
	}
	return s.now().Sub(*issuedAt) > s.opts.OTPTTL
}

func (s *Service) notifyDelivered(ctx context.Context, o Order) {
	if s.notifier == nil {
		return
	}
	msg := push.Message{
		Title: "Order delivered",
		Body:  "Order " + shortID(o.ID) + " has been delivered",
		URL:   "/orders/" + o.ID,
	}
	res, err := s.notifier.SendToAllAdmins(ctx, msg)
	if err != nil {
		s.logger.Warn("delivery notification failed", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	s.logger.Info("delivery notification sent",
		zap.String("order_id", o.ID),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed))
}

func (s *Service) upstream(msg string, err error, fields ...zap.Field) error {
	s.logger.Error("failed to "+msg, append(fields, zap.Error(err))...)
	return apperr.Wrap(apperr.Upstream, msg, err)
}

func parseItems(in []ItemInput) ([]Item, error) {
	if len(in) == 0 {
		return nil, ErrItemsRequired
	}
	items := make([]Item, 0, len(in))
	for _, it := range in {
		if !validID(it.ProductID) {
			return nil, ErrInvalidProduct
		}
		qty, err := parseQuantity(it.Quantity)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{ProductID: it.ProductID, Quantity: qty})
	}
	return items, nil
}

// parseQuantity truncates fractional input and defaults a missing
// quantity to 1.
func parseQuantity(n json.Number) (int, error) {
	if n == "" {
		return 1, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsNaN(f) || f < 1 || f > math.MaxInt32 {
		return 0, ErrInvalidQuantity
	}
	return int(f), nil
}

// validAmount accepts positive amounts with at most two decimal places that
// fit the stored precision.
func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(2)) && d.LessThan(maxTotalAmount)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

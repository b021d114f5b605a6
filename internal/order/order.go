package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront-admin/internal/product"
)

// PaymentStatus tracks the money side of an order.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusPaid      PaymentStatus = "PAID"
	StatusFailed    PaymentStatus = "FAILED"
	StatusCancelled PaymentStatus = "CANCELLED"
)

// DeliveryStatus tracks the fulfilment side of an order. DELIVERED and
// CANCELLED are terminal.
type DeliveryStatus string

const (
	DeliveryProcessing DeliveryStatus = "PROCESSING"
	DeliveryDispatched DeliveryStatus = "DISPATCHED"
	DeliveryDelivered  DeliveryStatus = "DELIVERED"
	DeliveryCancelled  DeliveryStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentPhonePe PaymentMethod = "phonepe"
	PaymentCOD     PaymentMethod = "cod"
)

type Type string

const (
	TypeQuick     Type = "quick"
	TypeScheduled Type = "scheduled"
)

type Item struct {
	ProductID string `json:"productId" bson:"productId"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

// Address is embedded in the order; it has no identity of its own.
type Address struct {
	Street           string   `json:"street,omitempty" bson:"street,omitempty"`
	City             string   `json:"city" bson:"city"`
	ZipCode          string   `json:"zipCode" bson:"zipCode"`
	State            string   `json:"state" bson:"state"`
	Country          string   `json:"country" bson:"country"`
	Label            string   `json:"label,omitempty" bson:"label,omitempty"`
	Lat              *float64 `json:"lat,omitempty" bson:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty" bson:"lng,omitempty"`
	FormattedAddress string   `json:"formattedAddress,omitempty" bson:"formattedAddress,omitempty"`
}

func (a Address) complete() bool {
	return strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.ZipCode) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.Country) != ""
}

// Order is one customer purchase.
type Order struct {
	ID              string          `json:"id"`
	User            string          `json:"user"`
	Name            string          `json:"name,omitempty"`
	Mobile          string          `json:"mobile,omitempty"`
	Items           []Item          `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          PaymentStatus   `json:"status"`
	TransactionID   string          `json:"transactionId"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	DeliveryStatus  DeliveryStatus  `json:"deliveryStatus"`
	OrderType       Type            `json:"orderType"`
	DeliverySlot    *string         `json:"deliverySlot"`
	DeliveryAddress Address         `json:"deliveryAddress"`
	// OTPHash is the keyed digest of the outstanding delivery code, if any.
	OTPHash     *string    `json:"-"`
	OTPIssuedAt *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ItemView is an order line with the product it refers to, when the
// product still exists.
type ItemView struct {
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	Product   *product.Summary `json:"product"`
}

// View is what the admin API returns for an order: the order with its
// lines resolved against the catalogue.
type View struct {
	Order
	Items []ItemView `json:"items"`
}

// ListFilter narrows a listing. Empty fields match everything.
type ListFilter struct {
	Status         PaymentStatus
	PaymentMethod  PaymentMethod
	DeliveryStatus DeliveryStatus
}

func (f ListFilter) matches(o Order) bool {
	return (f.Status == "" || o.Status == f.Status) &&
		(f.PaymentMethod == "" || o.PaymentMethod == f.PaymentMethod) &&
		(f.DeliveryStatus == "" || o.DeliveryStatus == f.DeliveryStatus)
}

// NewListFilter parses listing query values. Blank values and "all" match
// everything.
func NewListFilter(status, method, delivery string) (ListFilter, error) {
	var f ListFilter
	if wantsFilter(status) {
		st, ok := ParsePaymentStatus(status)
		if !ok {
			return ListFilter{}, ErrInvalidStatus
		}
		f.Status = st
	}
	if wantsFilter(method) {
		m, ok := ParsePaymentMethod(method)
		if !ok {
			return ListFilter{}, ErrInvalidPaymentMethod
		}
		f.PaymentMethod = m
	}
	if wantsFilter(delivery) {
		d, ok := ParseDeliveryStatus(delivery)
		if !ok {
			return ListFilter{}, ErrInvalidDelivery
		}
		f.DeliveryStatus = d
	}
	return f, nil
}

func wantsFilter(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, "all")
}

// Patch lists the fields an update may change. Nil pointers and a nil
// Items slice leave the stored value alone.
type Patch struct {
	User            *string
	Items           []Item
	TotalAmount     *decimal.Decimal
	Status          *PaymentStatus
	PaymentMethod   *PaymentMethod
	DeliveryStatus  *DeliveryStatus
	DeliveryAddress *Address
}

func (p Patch) apply(o Order, now time.Time) Order {
	if p.User != nil {
		o.User = *p.User
	}
	if p.Items != nil {
		o.Items = append([]Item(nil), p.Items...)
	}
	if p.TotalAmount != nil {
		o.TotalAmount = *p.TotalAmount
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.PaymentMethod != nil {
		o.PaymentMethod = *p.PaymentMethod
	}
	if p.DeliveryStatus != nil {
		o.DeliveryStatus = *p.DeliveryStatus
	}
	if p.DeliveryAddress != nil {
		o.DeliveryAddress = *p.DeliveryAddress
	}
	o.UpdatedAt = now
	return o
}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusPaid, StatusFailed, StatusCancelled:
		return st, true
	}
	return "", false
}

func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch st := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case DeliveryProcessing, DeliveryDispatched, DeliveryDelivered, DeliveryCancelled:
		return st, true
	}
	return "", false
}

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentPhonePe, PaymentCOD:
		return m, true
	}
	return "", false
}

// ParseType treats anything other than "quick" (any case) as scheduled.
func ParseType(s string) Type {
	if strings.EqualFold(strings.TrimSpace(s), string(TypeQuick)) {
		return TypeQuick
	}
	return TypeScheduled
}

func (d DeliveryStatus) Terminal() bool {
	return d == DeliveryDelivered || d == DeliveryCancelled
}

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryProcessing: {DeliveryDispatched, DeliveryDelivered, DeliveryCancelled},
	DeliveryDispatched: {DeliveryDelivered, DeliveryCancelled},
}

// CanTransitionTo reports whether moving from d to next is allowed.
// Re-writing the current value is a no-op and allowed, terminal states
// included, so a full-document save of a closed order goes through.
func (d DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if d == next {
		return true
	}
	if d.Terminal() {
		return false
	}
	for _, s := range deliveryTransitions[d] {
		if s == next {
			return true
		}
	}
	return false
}

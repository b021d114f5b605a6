package order

import (
	"fmt"

	"github.com/wichananm65/storefront-admin/internal/apperr"
)

var (
	ErrNotFound        = apperr.New(apperr.NotFound, "order not found")
	ErrUserNotFound    = apperr.New(apperr.NotFound, "user not found")
	ErrProductNotFound = apperr.New(apperr.NotFound, "some products not found")

	ErrInvalidID            = apperr.New(apperr.InvalidArgument, "invalid order id")
	ErrInvalidUser          = apperr.New(apperr.InvalidArgument, "invalid user id")
	ErrItemsRequired        = apperr.New(apperr.InvalidArgument, "items required")
	ErrInvalidProduct       = apperr.New(apperr.InvalidArgument, "invalid product id")
	ErrInvalidQuantity      = apperr.New(apperr.InvalidArgument, "quantity must be at least 1")
	ErrInvalidAmount        = apperr.New(apperr.InvalidArgument, "invalid total amount")
	ErrTransactionRequired  = apperr.New(apperr.InvalidArgument, "transaction id required")
	ErrInvalidStatus        = apperr.New(apperr.InvalidArgument, "invalid payment status")
	ErrInvalidDelivery      = apperr.New(apperr.InvalidArgument, "invalid delivery status")
	ErrInvalidPaymentMethod = apperr.New(apperr.InvalidArgument, "invalid payment method")
	ErrIncompleteAddress    = apperr.New(apperr.InvalidArgument, "delivery address requires city, zipCode, state and country")
	ErrOTPRequired          = apperr.New(apperr.InvalidArgument, "otp required")
	ErrInvalidOTP           = apperr.New(apperr.InvalidArgument, "Invalid or expired OTP")

	ErrDuplicateTransaction = apperr.New(apperr.Conflict, "transaction id already used")

	ErrAlreadyDelivered = apperr.New(apperr.InvalidState, "already delivered")
	ErrAlreadyCancelled = apperr.New(apperr.InvalidState, "already cancelled")
	ErrDeliveredUnpaid  = apperr.New(apperr.InvalidState, "delivered orders must stay PAID")

	ErrQuickDisabled     = apperr.New(apperr.FeatureDisabled, "Quick Delivery is currently disabled by admin.")
	ErrScheduledDisabled = apperr.New(apperr.FeatureDisabled, "Scheduled Delivery is currently disabled by admin.")
)

func transitionError(from, to DeliveryStatus) error {
	switch from {
	case DeliveryDelivered:
		return ErrAlreadyDelivered
	case DeliveryCancelled:
		return ErrAlreadyCancelled
	}
	return apperr.New(apperr.InvalidState, fmt.Sprintf("cannot change delivery status from %s to %s", from, to))
}

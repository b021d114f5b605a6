// Package push keeps admin Web Push registrations and fans notifications
// out to them.
package push

import (
	"time"

	"github.com/wichananm65/storefront-admin/internal/apperr"
)

const DefaultURL = "/dashboard"

type Keys struct {
	P256dh string `json:"p256dh" bson:"p256dh"`
	Auth   string `json:"auth" bson:"auth"`
}

// Subscription is one browser registration. Endpoint is globally unique.
type Subscription struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Endpoint   string    `json:"endpoint"`
	Keys       Keys      `json:"keys"`
	Browser    string    `json:"browser,omitempty"`
	Device     string    `json:"device,omitempty"`
	LastActive time.Time `json:"lastActive"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Message is what callers broadcast; URL falls back to DefaultURL.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// payload is the JSON the service worker receives.
type payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Data  payloadData `json:"data"`
}

type payloadData struct {
	URL string `json:"url"`
}

var (
	ErrUserRequired     = apperr.New(apperr.InvalidArgument, "userId required")
	ErrEndpointRequired = apperr.New(apperr.InvalidArgument, "endpoint required")
	ErrKeysRequired     = apperr.New(apperr.InvalidArgument, "subscription keys p256dh and auth required")
	ErrMessageRequired  = apperr.New(apperr.InvalidArgument, "title and body required")
	ErrDisabled         = apperr.New(apperr.FeatureDisabled, "push notifications are not configured")
)

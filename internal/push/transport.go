package push

import (
	"context"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Transport delivers one encrypted payload to one subscription. A non-2xx
// answer from the push service is returned as *StatusError.
type Transport interface {
	Send(ctx context.Context, sub Subscription, payload []byte) error
}

type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push service responded %d", e.StatusCode)
}

// Gone reports whether the push service has dropped the endpoint for good.
func (e *StatusError) Gone() bool {
	return e.StatusCode == http.StatusGone || e.StatusCode == http.StatusNotFound
}

type VAPIDConfig struct {
	Subject    string
	PublicKey  string
	PrivateKey string
	// TTL is how long, in seconds, the push service may hold the message.
	TTL int
}

// WebPushTransport sends RFC 8291 encrypted messages signed with VAPID.
type WebPushTransport struct {
	vapid  VAPIDConfig
	client *http.Client
}

func NewWebPushTransport(vapid VAPIDConfig, client *http.Client) *WebPushTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebPushTransport{vapid: vapid, client: client}
}

func (t *WebPushTransport) Send(ctx context.Context, sub Subscription, payload []byte) error {
	res, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &webpush.Options{
		HTTPClient:      t.client,
		Subscriber:      t.vapid.Subject,
		VAPIDPublicKey:  t.vapid.PublicKey,
		VAPIDPrivateKey: t.vapid.PrivateKey,
		TTL:             t.vapid.TTL,
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{StatusCode: res.StatusCode}
	}
	return nil
}

// Package wechat is the client for the official-account platform API.
//
// It owns error classification: every failure coming out of this package is
// an [*Error] with a [Kind], and downstream code branches on the kind, never
// on status codes or message text.
package wechat

import (
	"errors"
	"fmt"
	"time"
)

// Credential is the pair of values that authenticates an outbound call.
//
// It is deliberately a struct and not a bare string or store id: handing the
// client anything but a real external identity should not compile.
type Credential struct {
	ExternalID string
	Token      string
}

func (c Credential) validate() error {
	if c.ExternalID == "" {
		return errors.New("credential missing external id")
	}
	if c.Token == "" {
		return errors.New("credential missing token")
	}

	return nil
}

// Kind classifies a failed call.
type Kind string

const (
	// Retried by the client.
	KindNetwork Kind = "network"
	KindServer  Kind = "server"

	// Never retried; drive account state upstream.
	KindRateLimited  Kind = "rate_limited"
	KindUnauthorized Kind = "unauthorized"
	KindBadRequest   Kind = "bad_request"
	KindCredential   Kind = "credential"
)

// Error is a classified API failure.
type Error struct {
	Kind   Kind
	Status int // HTTP status, 0 when the call never completed
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("wechat api: %s (status %d): %s", e.Kind, e.Status, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Whether the failure is transient and worth another attempt.
func (e *Error) retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// KindOf extracts the classification from an error, or "" if the error did
// not come out of this package.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	return ""
}

type (
	// FeedInfo is the resolved identity of a shared official account.
	FeedInfo struct {
		ExternalFeedID string `json:"feed_id"`
		Title          string `json:"title"`
		Description    string `json:"description"`
	}

	// ArticleItem is one published post as the platform returns it.
	ArticleItem struct {
		Title       string `json:"title"`
		SourceURL   string `json:"url"`
		ContentHTML string `json:"content_html"`
		PublishedAt int64  `json:"published_at"` // unix seconds
	}

	// LoginSession is a started login handshake. The QR code url is shown
	// to the operator to scan; the session id is polled for completion.
	LoginSession struct {
		ID        string `json:"session_id"`
		QRCodeURL string `json:"qrcode_url"`
	}

	// Grant is a completed handshake: the credential plus the identity's
	// display name.
	Grant struct {
		Credential  Credential
		DisplayName string
	}
)

// PublishTime converts the platform's unix timestamp.
func (a ArticleItem) PublishTime() time.Time {
	return time.Unix(a.PublishedAt, 0).UTC()
}

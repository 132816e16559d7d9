package wechat

import (
	"context"
	"net/http"
)

// BeginLogin starts a credential handshake.
//
// The returned QR code url is surfaced to the operator; the session id is
// then polled with [Client.PollLogin] until the scan completes.
func (c *Client) BeginLogin(ctx context.Context) (LoginSession, error) {
	var session LoginSession
	if err := c.call(ctx, nil, http.MethodPost, "/login", nil, &session); err != nil {
		return LoginSession{}, err
	}

	return session, nil
}

type pollResp struct {
	Status      string `json:"status"` // "pending" or "complete"
	Uin         string `json:"uin"`
	Token       string `json:"token"`
	DisplayName string `json:"display_name"`
}

// PollLogin checks a handshake for completion.
//
// Returns nil while the scan is still pending. The session token on the
// platform side is single-use: once a poll has returned a grant, polling the
// same session again surfaces a server error, so callers must stop after the
// first non-nil result.
func (c *Client) PollLogin(ctx context.Context, sessionID string) (*Grant, error) {
	var resp pollResp
	if err := c.call(ctx, nil, http.MethodGet, "/login/"+sessionID, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "complete" {
		return nil, nil
	}

	return &Grant{
		Credential: Credential{
			ExternalID: resp.Uin,
			Token:      resp.Token,
		},
		DisplayName: resp.DisplayName,
	}, nil
}

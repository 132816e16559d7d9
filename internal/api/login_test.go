package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrs "wxsync/internal/errors"
	"wxsync/internal/wechat"
	"wxsync/internal/wxsync"
)

func TestLoginHandshake(t *testing.T) {
	f := newTestServer(t)
	f.client.grant = &wechat.Grant{
		Credential:  wechat.Credential{ExternalID: "uin-9", Token: "tok-9"},
		DisplayName: "ops",
	}

	var (
		req = httptest.NewRequest(http.MethodPost, "/v1/logins", nil)
		rec = httptest.NewRecorder()
	)
	require.NoError(t, f.server.postLogins(rec, req))
	require.Equal(t, http.StatusCreated, rec.Code)

	var started PostLoginResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	assert.Equal(t, "sess-1", started.SessionID)
	assert.NotEmpty(t, started.QRCodeURL)

	// The poller runs in the background; the status endpoint flips once it
	// lands the account.
	require.Eventually(t, func() bool {
		statusReq := httptest.NewRequest(http.MethodGet, "/v1/logins/"+started.SessionID, nil)
		statusReq = mux.SetURLVars(statusReq, map[string]string{"sessionID": started.SessionID})
		statusRec := httptest.NewRecorder()
		if err := f.server.getLogin(statusRec, statusReq); err != nil {
			return false
		}

		var status LoginStatusResp
		if err := json.NewDecoder(statusRec.Body).Decode(&status); err != nil {
			return false
		}
		return status.Completed && status.Account != nil
	}, time.Second, 5*time.Millisecond)

	// The account is persisted and active.
	accts, err := f.repo.AccountsByStatus(t.Context(), wxsync.AccountStatusActive)
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, "uin-9", accts[0].ExternalID)
}

func TestLoginRegistryDropsFinishedHandshakes(t *testing.T) {
	f := newTestServer(t)
	f.server.logins.grace = time.Millisecond
	f.client.grant = &wechat.Grant{
		Credential:  wechat.Credential{ExternalID: "uin-9", Token: "tok-9"},
		DisplayName: "ops",
	}

	var (
		req = httptest.NewRequest(http.MethodPost, "/v1/logins", nil)
		rec = httptest.NewRecorder()
	)
	require.NoError(t, f.server.postLogins(rec, req))

	var started PostLoginResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))

	// Once the poller finishes, the grace window elapses and the entry is
	// gone, so the registry does not accumulate dead handshakes.
	require.Eventually(t, func() bool {
		_, ok := f.server.logins.get(started.SessionID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestGetLoginUnknownSession(t *testing.T) {
	f := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/logins/nope", nil)
	req = mux.SetURLVars(req, map[string]string{"sessionID": "nope"})
	rec := httptest.NewRecorder()

	err := f.server.getLogin(rec, req)
	require.Error(t, err)

	var apiErr *apierrs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestGetAccounts(t *testing.T) {
	f := newTestServer(t)
	seedAccount(t, f.repo)

	var (
		req = httptest.NewRequest(http.MethodGet, "/v1/accounts", nil)
		rec = httptest.NewRecorder()
	)
	require.NoError(t, f.server.getAccounts(rec, req))

	var resp AccountListResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Accounts, 1)
	assert.Equal(t, string(wxsync.AccountStatusActive), resp.Accounts[0].Status)
}

package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"wxsync/internal/accounts"
	apierrs "wxsync/internal/errors"
	"wxsync/internal/wxsync"
)

// loginRegistry tracks the pollers for in-flight login handshakes so the
// status endpoint can find them. Finished handshakes linger for a grace
// period so a poll loop can still observe the outcome, then drop out.
type loginRegistry struct {
	mu    sync.Mutex
	m     map[string]*accounts.Poller
	grace time.Duration
}

func newLoginRegistry() *loginRegistry {
	return &loginRegistry{
		m:     make(map[string]*accounts.Poller),
		grace: 5 * time.Minute,
	}
}

func (lr *loginRegistry) put(sessionID string, p *accounts.Poller) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.m[sessionID] = p
}

func (lr *loginRegistry) get(sessionID string) (*accounts.Poller, bool) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	p, ok := lr.m[sessionID]
	return p, ok
}

// expire schedules the entry's removal once its handshake has finished.
func (lr *loginRegistry) expire(sessionID string) {
	time.AfterFunc(lr.grace, func() {
		lr.mu.Lock()
		defer lr.mu.Unlock()
		delete(lr.m, sessionID)
	})
}

type PostLoginResp struct {
	SessionID string `json:"session_id"`
	QRCodeURL string `json:"qrcode_url"`
}

// postLogins starts a login handshake and a background poller for it. The
// operator scans the returned QR code and polls the status endpoint.
func (s *Server) postLogins(w http.ResponseWriter, r *http.Request) error {
	sess, err := s.accounts.BeginLogin(r.Context())
	if err != nil {
		return err
	}

	poller := s.accounts.NewPoller(sess.ID, s.pollInterval)
	s.logins.put(sess.ID, poller)

	go func() {
		acct, err := poller.Run(s.baseCtx)
		s.logins.expire(sess.ID)
		if err != nil {
			slog.Error("login poller stopped", "session_id", sess.ID, "err", err)
			return
		}
		slog.Info("account logged in", "session_id", sess.ID, "account_id", acct.ID)
	}()

	return writeJSON(w, http.StatusCreated, PostLoginResp{
		SessionID: sess.ID,
		QRCodeURL: sess.QRCodeURL,
	})
}

type LoginStatusResp struct {
	SessionID string       `json:"session_id"`
	Completed bool         `json:"completed"`
	Account   *AccountResp `json:"account,omitempty"`
}

func (s *Server) getLogin(w http.ResponseWriter, r *http.Request) error {
	sessionID := mux.Vars(r)["sessionID"]

	poller, ok := s.logins.get(sessionID)
	if !ok {
		return apierrs.E("unknown login session", http.StatusNotFound)
	}

	resp := LoginStatusResp{
		SessionID: sessionID,
		Completed: poller.Completed(),
	}
	if acct := poller.Account(); acct != nil {
		ar := apiAccount(*acct)
		resp.Account = &ar
	}

	return writeJSON(w, http.StatusOK, resp)
}

type AccountResp struct {
	ID               string     `json:"id"`
	DisplayName      string     `json:"display_name"`
	Status           string     `json:"status"`
	BlacklistedUntil *time.Time `json:"blacklisted_until,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func apiAccount(a wxsync.Account) AccountResp {
	return AccountResp{
		ID:               a.ID,
		DisplayName:      a.DisplayName,
		Status:           string(a.Status),
		BlacklistedUntil: a.BlacklistedUntil,
		CreatedAt:        a.CreatedAt,
	}
}

type AccountListResp struct {
	Accounts []AccountResp `json:"accounts"`
}

func (s *Server) getAccounts(w http.ResponseWriter, r *http.Request) error {
	accts, err := s.repo.AccountsByStatus(r.Context(),
		wxsync.AccountStatusActive,
		wxsync.AccountStatusBlacklisted,
		wxsync.AccountStatusExpired,
		wxsync.AccountStatusDisabled,
	)
	if err != nil {
		return err
	}

	resp := AccountListResp{Accounts: []AccountResp{}}
	for _, a := range accts {
		resp.Accounts = append(resp.Accounts, apiAccount(a))
	}

	return writeJSON(w, http.StatusOK, resp)
}

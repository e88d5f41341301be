package handler

import (
	"net/http"
	"time"

	"github.com/efreitasn/finance/internal/domain"
	"github.com/efreitasn/finance/internal/service"
)

const sessionCookie = "session"

// SessionHandler handles registration, login and logout.
type SessionHandler struct {
	accountSvc *service.AccountService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(accountSvc *service.AccountService) *SessionHandler {
	return &SessionHandler{accountSvc: accountSvc}
}

// registerRequest is the JSON request body for POST /register.
type registerRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

// loginRequest is the JSON request body for POST /login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	Cash        float64 `json:"cash"`
	CashDisplay string  `json:"cash_display"`
	CreatedAt   string  `json:"created_at"`
}

// sessionResponse is returned by register and login.
type sessionResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
}

// Register handles POST /register.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", invalidBodyMessage)
		return
	}

	sess, err := h.accountSvc.Register(r.Context(), service.RegisterRequest{
		Username:     req.Username,
		Password:     req.Password,
		Confirmation: req.Confirmation,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	h.writeSession(w, r, http.StatusCreated, sess)
}

// Login handles POST /login.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", invalidBodyMessage)
		return
	}

	sess, err := h.accountSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		mapError(w, err)
		return
	}

	h.writeSession(w, r, http.StatusOK, sess)
}

// Logout handles POST /logout by expiring the session cookie.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) writeSession(w http.ResponseWriter, r *http.Request, status int, sess *service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	WriteJSON(w, status, sessionResponse{
		User:      toUserResponse(sess.User),
		Token:     sess.Token,
		ExpiresAt: formatTime(sess.ExpiresAt),
	})
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Cash:        domain.CentsToDollars(u.Cash),
		CashDisplay: domain.FormatUSD(u.Cash),
		CreatedAt:   formatTime(u.CreatedAt),
	}
}

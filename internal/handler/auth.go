package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/jborcher/vegfuel/internal/apperror"
	"github.com/jborcher/vegfuel/internal/auth"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/service"
)

const (
	stateCookie       = "oauth_state"
	stateCookieMaxAge = 600 // seconds

	resetRequestedMessage = "If that email has an account, a reset link has been sent."
	resetDoneMessage      = "Password updated. You can now sign in."
)

// AuthHandler serves the unauthenticated /auth endpoints.
//
//   - HandleRegister, HandleLogin     → email + password accounts
//   - HandleSocial                    → exchange a Google/Apple ID token
//   - HandleResetRequest/Confirm      → password reset by email link
//   - HandleGoogleLogin/Callback      → browser redirect flow for Google
//
// Every successful sign-in answers with the same tokenResponse.
type AuthHandler struct {
	auth          *service.AuthService
	reset         *service.ResetService
	web           *auth.GoogleWebFlow // nil when the web flow is not configured
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	resetService *service.ResetService,
	web *auth.GoogleWebFlow,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:          authService,
		reset:         resetService,
		web:           web,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type socialRequest struct {
	Provider string `json:"provider" validate:"required"`
	IDToken  string `json:"id_token" validate:"required"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        *model.User `json:"user"`
}

func newTokenResponse(res *service.AuthResult) tokenResponse {
	return tokenResponse{AccessToken: res.Token, TokenType: "bearer", User: res.User}
}

// HandleRegister creates a password account.
//
// HTTP: POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

// HandleSocial exchanges a provider ID token for a session token.
//
// HTTP: POST /auth/social
// REQUEST BODY: {"provider": "google"|"apple", "id_token": "..."}
func (h *AuthHandler) HandleSocial(w http.ResponseWriter, r *http.Request) {
	var req socialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.SocialExchange(r.Context(), model.Provider(req.Provider), req.IDToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

// HandleResetRequest starts a password reset. The answer is the same
// whether or not the email has an account.
//
// HTTP: POST /auth/password-reset/request
func (h *AuthHandler) HandleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.reset.RequestReset(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: resetRequestedMessage})
}

// HandleResetConfirm sets a new password from a reset token.
//
// HTTP: POST /auth/password-reset/confirm
func (h *AuthHandler) HandleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.reset.ConfirmReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: resetDoneMessage})
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// redirect. The callback only proceeds when both match.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.web == nil {
		writeError(w, h.logger, apperror.NotFound("sign-in method", "google web"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.web.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the browser flow: it checks the state,
// trades the code for Google's ID token and then signs in exactly like
// HandleSocial.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.web == nil {
		writeError(w, h.logger, apperror.NotFound("sign-in method", "google web"))
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("google callback: state mismatch")
		writeError(w, h.logger, apperror.BadRequest("invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: authorization denied", slog.String("error", errParam))
		writeError(w, h.logger, apperror.Unauthenticated("Google sign-in was cancelled"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.BadRequest("missing OAuth code"))
		return
	}

	idToken, err := h.web.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, h.logger, apperror.InvalidAssertion("google", err.Error()))
		return
	}

	res, err := h.auth.SocialExchange(r.Context(), model.ProviderGoogle, idToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(res))
}

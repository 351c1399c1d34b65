package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/serrf0f/gatehouse/internal/ctxkeys"
	"github.com/serrf0f/gatehouse/internal/middleware"
	"github.com/serrf0f/gatehouse/internal/model"
	"github.com/serrf0f/gatehouse/internal/service"
	"github.com/serrf0f/gatehouse/internal/validation"
)

// VerificationCodeLength is enforced before the service sees the code so a
// malformed submission never burns a retry.
const VerificationCodeLength = 4

type authHandler struct {
	authService    *service.AuthService
	sessionService *service.SessionService
}

func NewAuthHandler(authService *service.AuthService, sessionService *service.SessionService) *authHandler {
	return &authHandler{
		authService:    authService,
		sessionService: sessionService,
	}
}

type userResponse struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	EmailVerified bool    `json:"emailVerified"`
	Username      *string `json:"username,omitempty"`
	AvatarURL     *string `json:"avatarUrl,omitempty"`
}

func newUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:            user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Username:      user.Username,
		AvatarURL:     user.AvatarURL,
	}
}

func (h *authHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := decodeJSON(r, &req)
	if err != nil {
		respondError(w, http.StatusBadRequest, fieldErrors{Message: "Invalid request body"})
		return
	}

	user, session, err := h.authService.SignUp(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, fieldErrors{Email: "Please provide a valid email address"})
		case errors.Is(err, service.ErrEmailTaken):
			respondError(w, http.StatusBadRequest, fieldErrors{Email: "This email is already registered"})
		case errors.Is(err, validation.ErrPasswordTooShort), errors.Is(err, validation.ErrPasswordTooLong):
			respondError(w, http.StatusBadRequest, fieldErrors{Password: err.Error()})
		case errors.Is(err, service.ErrEmailDelivery):
			slog.Error("signup email delivery failed", "error", err)
			respondError(w, http.StatusInternalServerError, fieldErrors{Message: "Could not send the verification email. Please try again."})
		default:
			slog.Error("signup failed", "error", err)
			respondError(w, http.StatusInternalServerError, fieldErrors{Message: "An error occurred. Please try again."})
		}
		return
	}

	http.SetCookie(w, h.sessionService.Cookie(session))
	respondJSON(w, http.StatusCreated, newUserResponse(user))
}

func (h *authHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := decodeJSON(r, &req)
	if err != nil {
		respondError(w, http.StatusBadRequest, fieldErrors{Message: "Invalid request body"})
		return
	}

	user, session, err := h.authService.SignIn(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(w, http.StatusBadRequest, fieldErrors{Message: "Invalid email or password"})
			return
		}
		slog.Error("signin failed", "error", err)
		respondError(w, http.StatusInternalServerError, fieldErrors{Message: "An error occurred. Please try again."})
		return
	}

	http.SetCookie(w, h.sessionService.Cookie(session))

	redirectTo := middleware.ConsumeRedirectCookie(w, r)
	respondJSON(w, http.StatusOK, struct {
		User       userResponse `json:"user"`
		RedirectTo string       `json:"redirectTo"`
	}{
		User:       newUserResponse(user),
		RedirectTo: redirectTo,
	})
}

func (h *authHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	err := decodeJSON(r, &req)
	if err != nil {
		respondError(w, http.StatusBadRequest, fieldErrors{Message: "Invalid request body"})
		return
	}

	code := strings.TrimSpace(req.Code)
	if len(code) != VerificationCodeLength {
		respondError(w, http.StatusBadRequest, fieldErrors{Code: "Verification code must be 4 digits"})
		return
	}

	session, err := h.authService.VerifyEmail(user, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyVerified):
			// Nothing left to prove
			respondJSON(w, http.StatusOK, struct {
				Verified bool `json:"verified"`
			}{Verified: true})
		case errors.Is(err, service.ErrCodeNotFound):
			respondError(w, http.StatusBadRequest, fieldErrors{Code: "No active code found. Request a new one.", ResendCode: true})
		case errors.Is(err, service.ErrCodeExpired):
			respondError(w, http.StatusBadRequest, fieldErrors{Code: "This code has expired. Request a new one.", ResendCode: true})
		case errors.Is(err, service.ErrRetryExhausted):
			respondError(w, http.StatusBadRequest, fieldErrors{Code: "Too many attempts. Request a new code.", ResendCode: true})
		case errors.Is(err, service.ErrCodeMismatch):
			respondError(w, http.StatusBadRequest, fieldErrors{Code: err.Error()})
		default:
			slog.Error("email verification failed", "error", err, "user_id", user.ID)
			respondError(w, http.StatusInternalServerError, fieldErrors{Message: "An error occurred. Please try again."})
		}
		return
	}

	http.SetCookie(w, h.sessionService.Cookie(session))
	respondJSON(w, http.StatusOK, struct {
		Verified bool `json:"verified"`
	}{Verified: true})
}

func (h *authHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.authService.ResendCode(user)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyVerified):
			respondError(w, http.StatusBadRequest, fieldErrors{Message: "Email is already verified"})
		case errors.Is(err, service.ErrEmailDelivery):
			slog.Error("resend code delivery failed", "error", err, "user_id", user.ID)
			respondError(w, http.StatusInternalServerError, fieldErrors{Message: "Could not send the verification email. Please try again."})
		default:
			slog.Error("resend code failed", "error", err, "user_id", user.ID)
			respondError(w, http.StatusInternalServerError, fieldErrors{Message: "An error occurred. Please try again."})
		}
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Sent bool `json:"sent"`
	}{Sent: true})
}

func (h *authHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email          string `json:"email"`
		ChallengeToken string `json:"cf-turnstile-response"`
	}
	err := decodeJSON(r, &req)
	if err != nil {
		respondError(w, http.StatusBadRequest, fieldErrors{Message: "Invalid request body"})
		return
	}

	err = h.authService.ForgotPassword(req.Email, req.ChallengeToken, middleware.GetClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChallengeFailed):
			respondError(w, http.StatusBadRequest, fieldErrors{Message: "Challenge verification failed. Please try again."})
		case errors.Is(err, service.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, fieldErrors{Email: "Invalid email"})
		case errors.Is(err, service.ErrEmailDelivery):
			slog.Error("reset link delivery failed", "error", err)
			respondError(w, http.StatusInternalServerError, fieldErrors{Message: "Could not send the reset email. Please try again."})
		default:
			slog.Error("forgot password failed", "error", err)
			respondError(w, http.StatusInternalServerError, fieldErrors{Message: "An error occurred. Please try again."})
		}
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Sent bool `json:"sent"`
	}{Sent: true})
}

func (h *authHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	var req struct {
		Password             string `json:"password"`
		PasswordConfirmation string `json:"passwordConfirmation"`
	}
	err := decodeJSON(r, &req)
	if err != nil {
		respondError(w, http.StatusBadRequest, fieldErrors{Message: "Invalid request body"})
		return
	}

	user, session, err := h.authService.ResetPassword(token, req.Password, req.PasswordConfirmation)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingToken):
			respondError(w, http.StatusBadRequest, fieldErrors{Message: "Missing reset token"})
		case errors.Is(err, service.ErrConfirmationMismatch):
			respondError(w, http.StatusBadRequest, fieldErrors{Password: "Passwords do not match"})
		case errors.Is(err, validation.ErrPasswordTooShort), errors.Is(err, validation.ErrPasswordTooLong):
			respondError(w, http.StatusBadRequest, fieldErrors{Password: err.Error()})
		case errors.Is(err, service.ErrTokenNotFound), errors.Is(err, service.ErrTokenExpired):
			respondError(w, http.StatusBadRequest, fieldErrors{Message: "Invalid or expired reset link. Please request a new one."})
		default:
			slog.Error("password reset failed", "error", err)
			respondError(w, http.StatusInternalServerError, fieldErrors{Message: "An error occurred. Please try again."})
		}
		return
	}

	http.SetCookie(w, h.sessionService.Cookie(session))
	respondJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := ctxkeys.Session(r.Context())
	if session != nil {
		err := h.sessionService.Invalidate(session.ID)
		if err != nil {
			slog.Error("logout failed", "error", err, "session_id", session.ID)
		}
	}

	http.SetCookie(w, h.sessionService.BlankCookie())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	respondJSON(w, http.StatusOK, newUserResponse(user))
}

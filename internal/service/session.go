package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/serrf0f/gatehouse/internal/model"
	"github.com/serrf0f/gatehouse/internal/repository"
)

// SessionCookieName is the bearer cookie carrying the session identifier.
const SessionCookieName = "session"

// SessionService issues, validates, rotates and invalidates DB-backed
// sessions and produces the matching cookie directives.
type SessionService struct {
	sessionRepository repository.SessionRepository
	userRepository    repository.UserRepository
	expiry            time.Duration
	renewWindow       time.Duration
	isProduction      bool
}

func NewSessionService(
	sessionRepository repository.SessionRepository,
	userRepository repository.UserRepository,
	expiry time.Duration,
	renewWindow time.Duration,
	isProduction bool,
) *SessionService {
	return &SessionService{
		sessionRepository: sessionRepository,
		userRepository:    userRepository,
		expiry:            expiry,
		renewWindow:       renewWindow,
		isProduction:      isProduction,
	}
}

// Create mints a new session for the user. The returned session is fresh:
// its cookie must be sent to the client.
func (s *SessionService) Create(userID string) (*model.Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	session := &model.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.expiry),
		Fresh:     true,
	}

	err = s.sessionRepository.Create(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Validate resolves a session id to its user. Absent or expired sessions
// yield (nil, nil, nil); the caller must instruct the client to clear the
// cookie. A session inside the renewal window is transparently rotated to a
// new identifier and full expiry, and comes back marked fresh.
func (s *SessionService) Validate(sessionID string) (*model.User, *model.Session, error) {
	session, err := s.sessionRepository.ByID(sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.IsExpired() {
		err = s.sessionRepository.Delete(session.ID)
		if err != nil {
			slog.Warn("failed to delete expired session", "error", err, "session_id", session.ID)
		}
		return nil, nil, nil
	}

	user, err := s.userRepository.ByID(session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Orphaned session, treat as invalid
			_ = s.sessionRepository.Delete(session.ID)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get session user: %w", err)
	}

	if time.Until(session.ExpiresAt) < s.renewWindow {
		rotated, err := s.rotate(session)
		if err != nil {
			return nil, nil, err
		}
		session = rotated
	}

	return user, session, nil
}

func (s *SessionService) rotate(old *model.Session) (*model.Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	session := &model.Session{
		ID:        id,
		UserID:    old.UserID,
		ExpiresAt: time.Now().Add(s.expiry),
		Fresh:     true,
	}

	err = s.sessionRepository.Rotate(old.ID, session)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	slog.Debug("session rotated", "user_id", session.UserID)
	return session, nil
}

// Invalidate deletes a single session. Idempotent.
func (s *SessionService) Invalidate(sessionID string) error {
	return s.sessionRepository.Delete(sessionID)
}

// InvalidateAll deletes every session belonging to the user, used after
// password changes and email verification to cut off any stolen sessions.
func (s *SessionService) InvalidateAll(userID string) error {
	return s.sessionRepository.DeleteByUser(userID)
}

// RunExpiryGC deletes expired session rows on an interval to keep the table
// small. Expired sessions are already rejected at validation time, so this
// is maintenance only. Blocks; run in a goroutine.
func (s *SessionService) RunExpiryGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		n, err := s.sessionRepository.DeleteExpired()
		if err != nil {
			slog.Error("session gc failed", "error", err)
			continue
		}
		if n > 0 {
			slog.Debug("session gc", "deleted", n)
		}
	}
}

// Cookie returns the set-cookie directive for a session. The cookie itself
// carries no Max-Age: it lives as long as the browser keeps it, and the
// server enforces the real expiry.
func (s *SessionService) Cookie(session *model.Session) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteStrictMode,
	}
}

// BlankCookie returns the directive that clears the session cookie.
func (s *SessionService) BlankCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteStrictMode,
	}
}

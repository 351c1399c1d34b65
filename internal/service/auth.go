package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/serrf0f/gatehouse/internal/model"
	"github.com/serrf0f/gatehouse/internal/repository"
	"github.com/serrf0f/gatehouse/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmailDelivery      = errors.New("could not deliver email")
	ErrChallengeFailed    = errors.New("challenge verification failed")

	ErrAlreadyVerified = errors.New("email already verified")
	ErrCodeNotFound    = errors.New("validation code not found")
	ErrCodeExpired     = errors.New("verification code has expired")
	ErrCodeMismatch    = errors.New("validation code mismatched")
	ErrRetryExhausted  = errors.New("maximum retries reached")

	ErrMissingToken         = errors.New("missing reset token")
	ErrConfirmationMismatch = errors.New("confirmation password mismatch")
	ErrTokenNotFound        = errors.New("reset token not found")
	ErrTokenExpired         = errors.New("reset token has expired")
)

// MaxCodeRetry is the mismatch ceiling checked before incrementing: a code
// whose retry counter already reached it is deleted on the next mismatch,
// so three wrong submissions are possible and the third is terminal.
const MaxCodeRetry = 2

// AuthService orchestrates the credential lifecycle: sign-up, sign-in,
// email verification, password reset and OAuth sign-in. It owns no HTTP
// concerns; handlers translate its results and sentinel errors.
type AuthService struct {
	userRepository       repository.UserRepository
	codeRepository       repository.VerificationCodeRepository
	resetTokenRepository repository.ResetTokenRepository
	oauthRepository      repository.OAuthAccountRepository
	atomicRepository     repository.AtomicRepository
	sessionService       *SessionService
	notifier             Notifier
	challenge            ChallengeVerifier
	hasher               PasswordHasher
	codeExpiry           time.Duration
	resetTokenExpiry     time.Duration
}

func NewAuthService(
	userRepository repository.UserRepository,
	codeRepository repository.VerificationCodeRepository,
	resetTokenRepository repository.ResetTokenRepository,
	oauthRepository repository.OAuthAccountRepository,
	atomicRepository repository.AtomicRepository,
	sessionService *SessionService,
	notifier Notifier,
	challenge ChallengeVerifier,
	hasher PasswordHasher,
	codeExpiry time.Duration,
	resetTokenExpiry time.Duration,
) *AuthService {
	return &AuthService{
		userRepository:       userRepository,
		codeRepository:       codeRepository,
		resetTokenRepository: resetTokenRepository,
		oauthRepository:      oauthRepository,
		atomicRepository:     atomicRepository,
		sessionService:       sessionService,
		notifier:             notifier,
		challenge:            challenge,
		hasher:               hasher,
		codeExpiry:           codeExpiry,
		resetTokenExpiry:     resetTokenExpiry,
	}
}

// SignUp creates an unverified account, emails it a verification code and
// opens a session. If the code cannot be delivered, the account and code
// rows are rolled back together so the same email can retry cleanly.
func (s *AuthService) SignUp(email, password string) (*model.User, *model.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, nil, ErrInvalidEmail
	}
	err = validation.ValidatePassword(password)
	if err != nil {
		return nil, nil, err
	}

	existing, err := s.userRepository.ByEmail(email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrEmailTaken
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: &hashedPassword,
		CreatedAt:    time.Now(),
	}
	err = s.userRepository.Create(user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	err = s.issueVerificationCode(user)
	if err != nil {
		// Compensating rollback: no orphaned user or code row may survive a
		// failed delivery, or the next sign-up attempt would collide.
		rollbackErr := s.atomicRepository.RollbackSignup(user.ID)
		if rollbackErr != nil {
			slog.Error("signup rollback failed", "error", rollbackErr, "user_id", user.ID)
		}
		return nil, nil, err
	}

	session, err := s.sessionService.Create(user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user signed up", "user_id", user.ID, "email", email)
	return user, session, nil
}

// SignIn verifies an email/password pair. Unknown emails, passwordless
// (OAuth-only) accounts and wrong passwords all fail identically.
func (s *AuthService) SignIn(email, password string) (*model.User, *model.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepository.ByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.HasPassword() {
		return nil, nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(*user.PasswordHash, password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.sessionService.Create(user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user signed in", "user_id", user.ID, "email", email)
	return user, session, nil
}

// VerifyEmail checks a submitted code against the live one for the user.
// On a match, every existing session is invalidated, the verified flag and
// the code row flip atomically, and a fresh session comes back.
func (s *AuthService) VerifyEmail(user *model.User, code string) (*model.Session, error) {
	if user.EmailVerified {
		return nil, ErrAlreadyVerified
	}

	validationCode, err := s.codeRepository.ByUserAndEmail(user.ID, user.Email)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get verification code: %w", err)
	}

	if validationCode.IsExpired() {
		err = s.codeRepository.Delete(user.ID, user.Email)
		if err != nil {
			slog.Warn("failed to delete expired code", "error", err, "user_id", user.ID)
		}
		return nil, ErrCodeExpired
	}

	if validationCode.Code != code {
		if validationCode.Retry >= MaxCodeRetry {
			err = s.codeRepository.Delete(user.ID, user.Email)
			if err != nil {
				slog.Warn("failed to delete exhausted code", "error", err, "user_id", user.ID)
			}
			return nil, ErrRetryExhausted
		}
		err = s.codeRepository.IncrementRetry(user.ID, user.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to increment retry: %w", err)
		}
		return nil, fmt.Errorf("%w (%d retries left)", ErrCodeMismatch, MaxCodeRetry-validationCode.Retry)
	}

	err = s.sessionService.InvalidateAll(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to invalidate sessions: %w", err)
	}

	err = s.atomicRepository.MarkEmailVerified(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to mark email verified: %w", err)
	}

	session, err := s.sessionService.Create(user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("email verified", "user_id", user.ID, "email", user.Email)
	return session, nil
}

// ResendCode issues a replacement verification code, discarding any prior one.
func (s *AuthService) ResendCode(user *model.User) error {
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	return s.issueVerificationCode(user)
}

func (s *AuthService) issueVerificationCode(user *model.User) error {
	code, err := GenerateVerificationCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	err = s.codeRepository.Replace(&model.VerificationCode{
		UserID:    user.ID,
		Email:     user.Email,
		Code:      code,
		ExpiresAt: time.Now().Add(s.codeExpiry),
	})
	if err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	err = s.notifier.SendVerificationCode(user.Email, code)
	if err != nil {
		slog.Error("verification code delivery failed", "error", err, "email", user.Email)
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}

	return nil
}

// ForgotPassword creates a single-use reset token for a verified account
// and emails the reset link. Unknown and unverified emails fail with the
// same uniform error. The challenge token is verified first when a
// verifier is configured.
func (s *AuthService) ForgotPassword(email, challengeToken, clientIP string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	ok, err := s.challenge.Verify(challengeToken, clientIP)
	if err != nil {
		slog.Warn("challenge verification errored", "error", err)
		return ErrChallengeFailed
	}
	if !ok {
		return ErrChallengeFailed
	}

	user, err := s.userRepository.ByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidEmail
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.EmailVerified {
		return ErrInvalidEmail
	}

	token := &model.ResetToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.resetTokenExpiry),
	}
	err = s.resetTokenRepository.Replace(token)
	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	err = s.notifier.SendResetPasswordLink(user.Email, token.ID)
	if err != nil {
		slog.Error("reset link delivery failed", "error", err, "email", user.Email)
		// Compensating delete so the row never blocks a retry
		deleteErr := s.resetTokenRepository.Delete(token.ID)
		if deleteErr != nil {
			slog.Error("reset token rollback failed", "error", deleteErr, "token_id", token.ID)
		}
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}

	slog.Info("reset link sent", "user_id", user.ID, "email", user.Email)
	return nil
}

// ResetPassword consumes a reset token: all of the user's sessions are
// invalidated, then the password hash is replaced and the token deleted in
// one transaction, and a fresh session comes back.
func (s *AuthService) ResetPassword(tokenID, password, passwordConfirmation string) (*model.User, *model.Session, error) {
	if tokenID == "" {
		return nil, nil, ErrMissingToken
	}
	if password != passwordConfirmation {
		return nil, nil, ErrConfirmationMismatch
	}
	err := validation.ValidatePassword(password)
	if err != nil {
		return nil, nil, err
	}

	token, err := s.resetTokenRepository.ByID(tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return nil, nil, ErrTokenNotFound
		}
		return nil, nil, fmt.Errorf("failed to get reset token: %w", err)
	}

	if token.IsExpired() {
		return nil, nil, ErrTokenExpired
	}

	err = s.sessionService.InvalidateAll(token.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to invalidate sessions: %w", err)
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.atomicRepository.ReplacePassword(token.UserID, hashedPassword, token.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to replace password: %w", err)
	}

	user, err := s.userRepository.ByID(token.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	session, err := s.sessionService.Create(user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("password reset", "user_id", user.ID)
	return user, session, nil
}

// OAuthProfile carries what the provider told us about the identity.
type OAuthProfile struct {
	ProviderUserID string
	Email          string
	Username       string
	AvatarURL      string
}

// SignInOAuth resolves an external identity to a local account, creating a
// pre-verified passwordless account (and the identity link) on first sight.
func (s *AuthService) SignInOAuth(providerID string, profile OAuthProfile) (*model.User, *model.Session, error) {
	providerUserID := profile.ProviderUserID
	email := profile.Email
	email = strings.TrimSpace(strings.ToLower(email))

	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, nil, ErrInvalidEmail
	}

	account, err := s.oauthRepository.ByProvider(providerID, providerUserID)
	if err != nil && !errors.Is(err, repository.ErrOAuthAccountNotFound) {
		return nil, nil, fmt.Errorf("failed to get oauth account: %w", err)
	}

	var user *model.User
	if account != nil {
		user, err = s.userRepository.ByID(account.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get user: %w", err)
		}
	} else {
		user, err = s.userRepository.ByEmail(email)
		if err != nil {
			if !errors.Is(err, repository.ErrUserNotFound) {
				return nil, nil, fmt.Errorf("failed to get user: %w", err)
			}
			// First sight of this identity: the provider already verified
			// the email, so the account starts verified and passwordless.
			user = &model.User{
				ID:            uuid.New().String(),
				Email:         email,
				EmailVerified: true,
				CreatedAt:     time.Now(),
			}
			if profile.Username != "" {
				user.Username = &profile.Username
			}
			if profile.AvatarURL != "" {
				user.AvatarURL = &profile.AvatarURL
			}
			err = s.userRepository.Create(user)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create user: %w", err)
			}
			slog.Info("new oauth user created", "user_id", user.ID, "email", email, "provider", providerID)
		}

		err = s.oauthRepository.Create(&model.OAuthAccount{
			ProviderID:     providerID,
			ProviderUserID: providerUserID,
			UserID:         user.ID,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to link oauth account: %w", err)
		}
	}

	session, err := s.sessionService.Create(user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user signed in via oauth", "user_id", user.ID, "provider", providerID)
	return user, session, nil
}

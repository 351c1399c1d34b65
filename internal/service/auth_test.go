package service

import (
	"testing"
	"time"

	"github.com/serrf0f/gatehouse/internal/model"
	"github.com/serrf0f/gatehouse/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUp(t *testing.T) {
	t.Run("creates unverified user with session and code", func(t *testing.T) {
		f := newAuthFixture()

		user, session, err := f.auth.SignUp("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)

		assert.Equal(t, "alice@example.com", user.Email)
		assert.False(t, user.EmailVerified)
		assert.True(t, user.HasPassword())
		assert.NotEqual(t, "hunter2hunter2", *user.PasswordHash)

		require.NotNil(t, session)
		assert.True(t, session.Fresh)
		assert.Equal(t, user.ID, session.UserID)

		code := f.notifier.lastCode()
		assert.Len(t, code, VerificationCodeSize)
	})

	t.Run("normalizes email case and whitespace", func(t *testing.T) {
		f := newAuthFixture()

		user, _, err := f.auth.SignUp("  Alice@Example.COM ", "hunter2hunter2")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		f := newAuthFixture()

		_, _, err := f.auth.SignUp("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)

		_, _, err = f.auth.SignUp("alice@example.com", "anotherpassword")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("rejects invalid email and short password", func(t *testing.T) {
		f := newAuthFixture()

		_, _, err := f.auth.SignUp("not-an-email", "hunter2hunter2")
		assert.ErrorIs(t, err, ErrInvalidEmail)

		_, _, err = f.auth.SignUp("alice@example.com", "short")
		assert.ErrorIs(t, err, validation.ErrPasswordTooShort)
	})

	t.Run("rolls back user when code delivery fails", func(t *testing.T) {
		f := newAuthFixture()
		f.notifier.failNext = true

		_, _, err := f.auth.SignUp("alice@example.com", "hunter2hunter2")
		assert.ErrorIs(t, err, ErrEmailDelivery)

		// The same email must be able to sign up again
		_, _, err = f.auth.SignUp("alice@example.com", "hunter2hunter2")
		assert.NoError(t, err)
	})
}

func TestSignIn(t *testing.T) {
	t.Run("valid credentials open a session", func(t *testing.T) {
		f := newAuthFixture()
		_, _, err := f.auth.SignUp("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)

		user, session, err := f.auth.SignIn("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.True(t, session.Fresh)
	})

	t.Run("unknown email, wrong password and passwordless account fail alike", func(t *testing.T) {
		f := newAuthFixture()
		_, _, err := f.auth.SignUp("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)

		_, _, err = f.auth.SignIn("nobody@example.com", "hunter2hunter2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, _, err = f.auth.SignIn("alice@example.com", "wrongpassword")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, _, err = f.auth.SignInOAuth(model.OAuthProviderGitHub, OAuthProfile{
			ProviderUserID: "42",
			Email:          "bob@example.com",
		})
		require.NoError(t, err)

		_, _, err = f.auth.SignIn("bob@example.com", "whatever123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestVerifyEmail(t *testing.T) {
	signUp := func(t *testing.T, f *authFixture) *model.User {
		t.Helper()
		user, _, err := f.auth.SignUp("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)
		return user
	}

	t.Run("correct code verifies and reissues session", func(t *testing.T) {
		f := newAuthFixture()
		user := signUp(t, f)

		session, err := f.auth.VerifyEmail(user, f.notifier.lastCode())
		require.NoError(t, err)
		assert.True(t, session.Fresh)

		stored, err := (&fakeUserRepo{s: f.store}).ByID(user.ID)
		require.NoError(t, err)
		assert.True(t, stored.EmailVerified)

		// Code is consumed: a second attempt finds nothing
		_, err = f.auth.VerifyEmail(stored, f.notifier.lastCode())
		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})

	t.Run("verification invalidates every prior session", func(t *testing.T) {
		f := newAuthFixture()
		user := signUp(t, f)

		_, _, err := f.auth.SignIn("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)

		oldSessions := []string{}
		f.store.mu.Lock()
		for id := range f.store.sessions {
			oldSessions = append(oldSessions, id)
		}
		f.store.mu.Unlock()
		require.NotEmpty(t, oldSessions)

		fresh, err := f.auth.VerifyEmail(user, f.notifier.lastCode())
		require.NoError(t, err)

		for _, id := range oldSessions {
			u, s, err := f.sessions.Validate(id)
			require.NoError(t, err)
			assert.Nil(t, u)
			assert.Nil(t, s)
		}

		u, s, err := f.sessions.Validate(fresh.ID)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, user.ID, u.ID)
	})

	t.Run("third mismatch is terminal", func(t *testing.T) {
		f := newAuthFixture()
		user := signUp(t, f)

		wrong := "0000"
		require.NotEqual(t, wrong, f.notifier.lastCode())

		_, err := f.auth.VerifyEmail(user, wrong)
		assert.ErrorIs(t, err, ErrCodeMismatch)

		_, err = f.auth.VerifyEmail(user, wrong)
		assert.ErrorIs(t, err, ErrCodeMismatch)

		_, err = f.auth.VerifyEmail(user, wrong)
		assert.ErrorIs(t, err, ErrRetryExhausted)

		// The real code is gone now too
		_, err = f.auth.VerifyEmail(user, f.notifier.lastCode())
		assert.ErrorIs(t, err, ErrCodeNotFound)
	})

	t.Run("mismatches do not survive a resend", func(t *testing.T) {
		f := newAuthFixture()
		user := signUp(t, f)

		_, err := f.auth.VerifyEmail(user, "0000")
		assert.ErrorIs(t, err, ErrCodeMismatch)
		_, err = f.auth.VerifyEmail(user, "0000")
		assert.ErrorIs(t, err, ErrCodeMismatch)

		require.NoError(t, f.auth.ResendCode(user))

		// Fresh code, fresh retry budget
		_, err = f.auth.VerifyEmail(user, "0000")
		assert.ErrorIs(t, err, ErrCodeMismatch)
		_, err = f.auth.VerifyEmail(user, "0000")
		assert.ErrorIs(t, err, ErrCodeMismatch)
		_, err = f.auth.VerifyEmail(user, f.notifier.lastCode())
		assert.NoError(t, err)
	})

	t.Run("expired code is deleted on submission", func(t *testing.T) {
		f := newAuthFixture()
		user := signUp(t, f)

		f.store.mu.Lock()
		f.store.codes[user.ID].ExpiresAt = time.Now().Add(-time.Minute)
		f.store.mu.Unlock()

		_, err := f.auth.VerifyEmail(user, f.notifier.lastCode())
		assert.ErrorIs(t, err, ErrCodeExpired)

		_, err = f.auth.VerifyEmail(user, f.notifier.lastCode())
		assert.ErrorIs(t, err, ErrCodeNotFound)
	})

	t.Run("already verified short-circuits", func(t *testing.T) {
		f := newAuthFixture()
		user := signUp(t, f)
		user.EmailVerified = true

		_, err := f.auth.VerifyEmail(user, "1234")
		assert.ErrorIs(t, err, ErrAlreadyVerified)
		assert.ErrorIs(t, f.auth.ResendCode(user), ErrAlreadyVerified)
	})
}

func TestResendCode(t *testing.T) {
	t.Run("replaces the live code", func(t *testing.T) {
		f := newAuthFixture()
		user, _, err := f.auth.SignUp("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)

		first := f.notifier.lastCode()
		require.NoError(t, f.auth.ResendCode(user))
		second := f.notifier.lastCode()

		if first != second {
			_, err = f.auth.VerifyEmail(user, first)
			assert.ErrorIs(t, err, ErrCodeMismatch)
		}

		_, err = f.auth.VerifyEmail(user, second)
		assert.NoError(t, err)
	})
}

func TestForgotPassword(t *testing.T) {
	verifiedUser := func(t *testing.T, f *authFixture) *model.User {
		t.Helper()
		user, _, err := f.auth.SignUp("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)
		_, err = f.auth.VerifyEmail(user, f.notifier.lastCode())
		require.NoError(t, err)
		user.EmailVerified = true
		return user
	}

	t.Run("sends a reset link for verified accounts", func(t *testing.T) {
		f := newAuthFixture()
		verifiedUser(t, f)

		err := f.auth.ForgotPassword("alice@example.com", "tok", "1.2.3.4")
		require.NoError(t, err)
		assert.NotEmpty(t, f.notifier.lastResetToken())
	})

	t.Run("unknown and unverified emails fail alike", func(t *testing.T) {
		f := newAuthFixture()
		_, _, err := f.auth.SignUp("bob@example.com", "hunter2hunter2")
		require.NoError(t, err)

		err = f.auth.ForgotPassword("nobody@example.com", "tok", "1.2.3.4")
		assert.ErrorIs(t, err, ErrInvalidEmail)

		err = f.auth.ForgotPassword("bob@example.com", "tok", "1.2.3.4")
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})

	t.Run("failed challenge blocks the request", func(t *testing.T) {
		f := newAuthFixture()
		verifiedUser(t, f)
		f.auth.challenge = &fakeChallenge{approve: false}

		err := f.auth.ForgotPassword("alice@example.com", "tok", "1.2.3.4")
		assert.ErrorIs(t, err, ErrChallengeFailed)
	})

	t.Run("rolls back the token when delivery fails", func(t *testing.T) {
		f := newAuthFixture()
		verifiedUser(t, f)
		f.notifier.failNext = true

		err := f.auth.ForgotPassword("alice@example.com", "tok", "1.2.3.4")
		assert.ErrorIs(t, err, ErrEmailDelivery)

		f.store.mu.Lock()
		assert.Empty(t, f.store.tokens)
		f.store.mu.Unlock()
	})

	t.Run("a new request replaces the prior token", func(t *testing.T) {
		f := newAuthFixture()
		verifiedUser(t, f)

		require.NoError(t, f.auth.ForgotPassword("alice@example.com", "tok", "1.2.3.4"))
		first := f.notifier.lastResetToken()
		require.NoError(t, f.auth.ForgotPassword("alice@example.com", "tok", "1.2.3.4"))

		_, _, err := f.auth.ResetPassword(first, "newpassword1", "newpassword1")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}

func TestResetPassword(t *testing.T) {
	setup := func(t *testing.T) (*authFixture, string) {
		t.Helper()
		f := newAuthFixture()
		user, _, err := f.auth.SignUp("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)
		_, err = f.auth.VerifyEmail(user, f.notifier.lastCode())
		require.NoError(t, err)
		require.NoError(t, f.auth.ForgotPassword("alice@example.com", "tok", "1.2.3.4"))
		return f, f.notifier.lastResetToken()
	}

	t.Run("replaces the password and consumes the token", func(t *testing.T) {
		f, token := setup(t)

		user, session, err := f.auth.ResetPassword(token, "newpassword1", "newpassword1")
		require.NoError(t, err)
		assert.True(t, session.Fresh)

		_, _, err = f.auth.SignIn(user.Email, "hunter2hunter2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = f.auth.SignIn(user.Email, "newpassword1")
		assert.NoError(t, err)

		_, _, err = f.auth.ResetPassword(token, "anotherpass1", "anotherpass1")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("invalidates every existing session", func(t *testing.T) {
		f, token := setup(t)

		_, stolen, err := f.auth.SignIn("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)

		_, fresh, err := f.auth.ResetPassword(token, "newpassword1", "newpassword1")
		require.NoError(t, err)

		u, s, err := f.sessions.Validate(stolen.ID)
		require.NoError(t, err)
		assert.Nil(t, u)
		assert.Nil(t, s)

		u, s, err = f.sessions.Validate(fresh.ID)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "alice@example.com", u.Email)
	})

	t.Run("input validation", func(t *testing.T) {
		f, token := setup(t)

		_, _, err := f.auth.ResetPassword("", "newpassword1", "newpassword1")
		assert.ErrorIs(t, err, ErrMissingToken)

		_, _, err = f.auth.ResetPassword(token, "newpassword1", "different1")
		assert.ErrorIs(t, err, ErrConfirmationMismatch)

		_, _, err = f.auth.ResetPassword(token, "short", "short")
		assert.ErrorIs(t, err, validation.ErrPasswordTooShort)

		_, _, err = f.auth.ResetPassword("no-such-token", "newpassword1", "newpassword1")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		f, token := setup(t)

		f.store.mu.Lock()
		f.store.tokens[token].ExpiresAt = time.Now().Add(-time.Minute)
		f.store.mu.Unlock()

		_, _, err := f.auth.ResetPassword(token, "newpassword1", "newpassword1")
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestSignInOAuth(t *testing.T) {
	t.Run("first sight creates a verified passwordless account", func(t *testing.T) {
		f := newAuthFixture()

		user, session, err := f.auth.SignInOAuth(model.OAuthProviderGoogle, OAuthProfile{
			ProviderUserID: "g-123",
			Email:          "Alice@Example.com",
			Username:       "Alice",
			AvatarURL:      "https://example.com/a.png",
		})
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.True(t, user.EmailVerified)
		assert.False(t, user.HasPassword())
		require.NotNil(t, user.Username)
		assert.Equal(t, "Alice", *user.Username)
		assert.True(t, session.Fresh)
	})

	t.Run("second sign-in reuses the linked account", func(t *testing.T) {
		f := newAuthFixture()

		first, _, err := f.auth.SignInOAuth(model.OAuthProviderGoogle, OAuthProfile{
			ProviderUserID: "g-123",
			Email:          "alice@example.com",
		})
		require.NoError(t, err)

		second, _, err := f.auth.SignInOAuth(model.OAuthProviderGoogle, OAuthProfile{
			ProviderUserID: "g-123",
			Email:          "alice@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("links to an existing password account by email", func(t *testing.T) {
		f := newAuthFixture()
		existing, _, err := f.auth.SignUp("alice@example.com", "hunter2hunter2")
		require.NoError(t, err)

		user, _, err := f.auth.SignInOAuth(model.OAuthProviderGitHub, OAuthProfile{
			ProviderUserID: "99",
			Email:          "alice@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, existing.ID, user.ID)
		assert.True(t, user.HasPassword())
	})
}

package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTurnstileVerifier(secret, verifyURL string) *TurnstileVerifier {
	return &TurnstileVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: time.Second},
	}
}

func TestTurnstileVerifier(t *testing.T) {
	t.Run("empty secret disables the check", func(t *testing.T) {
		verifier := NewTurnstileVerifier("")

		ok, err := verifier.Verify("anything", "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("forwards token and ip to siteverify", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "s3cret", r.Form.Get("secret"))
			assert.Equal(t, "the-token", r.Form.Get("response"))
			assert.Equal(t, "1.2.3.4", r.Form.Get("remoteip"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success": true}`))
		}))
		defer server.Close()

		verifier := testTurnstileVerifier("s3cret", server.URL)
		ok, err := verifier.Verify("the-token", "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejected token verifies false without error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
		}))
		defer server.Close()

		verifier := testTurnstileVerifier("s3cret", server.URL)
		ok, err := verifier.Verify("bad-token", "1.2.3.4")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unreachable endpoint errors", func(t *testing.T) {
		verifier := testTurnstileVerifier("s3cret", "http://127.0.0.1:1")
		ok, err := verifier.Verify("the-token", "1.2.3.4")
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

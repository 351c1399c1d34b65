package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ChallengeVerifier validates a bot-mitigation token before sensitive
// actions. A failed or timed-out check is reported as a plain false.
type ChallengeVerifier interface {
	Verify(token, clientIP string) (bool, error)
}

const turnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// TurnstileVerifier checks tokens against Cloudflare Turnstile's siteverify
// endpoint. An empty secret disables the check entirely (development).
type TurnstileVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

func NewTurnstileVerifier(secret string) *TurnstileVerifier {
	return &TurnstileVerifier{
		secret:    secret,
		verifyURL: turnstileVerifyURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *TurnstileVerifier) Verify(token, clientIP string) (bool, error) {
	if v.secret == "" {
		return true, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	form.Set("remoteip", clientIP)

	resp, err := v.client.Post(v.verifyURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("turnstile request failed: %w", err)
	}
	defer resp.Body.Close()

	var outcome struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	err = json.NewDecoder(resp.Body).Decode(&outcome)
	if err != nil {
		return false, fmt.Errorf("turnstile response decode failed: %w", err)
	}

	if !outcome.Success {
		slog.Warn("turnstile validation failed", "error_codes", outcome.ErrorCodes)
	}

	return outcome.Success, nil
}

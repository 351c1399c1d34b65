package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// fieldErrors is the error envelope every auth endpoint returns. Fields map
// to the form inputs they belong to; Message carries anything broader.
// ResendCode tells the client to offer a "send a new code" action.
type fieldErrors struct {
	Email      string `json:"email,omitempty"`
	Password   string `json:"password,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	ResendCode bool   `json:"resendCode,omitempty"`
}

type errorResponse struct {
	Errors fieldErrors `json:"errors"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, errs fieldErrors) {
	respondJSON(w, status, errorResponse{Errors: errs})
}

var errBadRequestBody = errors.New("invalid request body")

// decodeJSON reads a small JSON body into dst. Bodies are capped at 64KB;
// no auth payload is anywhere near that.
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, 64<<10)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	err := json.NewDecoder(body).Decode(dst)
	if err != nil {
		return errBadRequestBody
	}
	return nil
}

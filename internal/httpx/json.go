package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// SessionExpiresHeader carries the refreshed session expiry on authenticated responses.
const SessionExpiresHeader = "X-Session-Expires"

const maxJSONBody = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, body any) {
	body = withSessionExpiry(body, w.Header().Get(SessionExpiresHeader))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{
		"success": false,
		"message": message,
		"error":   message,
	})
}

// ReadJSON decodes a bounded request body into dst. An empty body is an error.
func ReadJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

func withSessionExpiry(body any, expires string) any {
	expires = strings.TrimSpace(expires)
	if expires == "" {
		return body
	}

	payload, ok := body.(map[string]any)
	if !ok || payload == nil {
		return body
	}
	if _, exists := payload["session_expires_at"]; exists {
		return body
	}

	clone := make(map[string]any, len(payload)+1)
	for key, value := range payload {
		clone[key] = value
	}
	clone["session_expires_at"] = expires
	return clone
}

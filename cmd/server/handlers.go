package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mksbai/backend-chat-buy-crypto/core/logger"
	"github.com/mksbai/backend-chat-buy-crypto/middleware"
)

// placeholderText is streamed in place of a model response until a real
// completion backend is wired in.
const placeholderText = "This is a placeholder response from the backend. Your message was received and the " +
	"streaming is working. Replace this with real AI output when ready."

// chunkSize is the number of bytes flushed per streaming step.
const chunkSize = 24

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (a *app) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMe reports the identity bound to the caller's session.
func (a *app) handleMe(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Anonymous bool    `json:"anonymous"`
		UserID    *string `json:"user_id"`
	}{Anonymous: true}

	if info, ok := middleware.GetSession(r.Context()); ok && info.Sess.IsAuthenticated() {
		id := info.Sess.UserID.String()
		resp.Anonymous = false
		resp.UserID = &id
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns the double-submit token already seeded on the
// response, for clients that cannot read the cookie directly.
func (a *app) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.GetCSRFToken(r.Context())
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

// handleChat validates the message payload and streams the placeholder
// reply in fixed-size chunks, flushing after each one so clients observe
// incremental delivery.
func (a *app) handleChat(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(payload) == 0 {
		writeError(w, http.StatusBadRequest, "Request body is required")
		return
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(payload, &data); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	raw, ok := data["message"]
	if !ok {
		writeError(w, http.StatusBadRequest, "'message' field is required")
		return
	}
	var message string
	if err := json.Unmarshal(raw, &message); err != nil {
		writeError(w, http.StatusBadRequest, "'message' must be a string")
		return
	}
	if strings.TrimSpace(message) == "" {
		writeError(w, http.StatusBadRequest, "'message' must not be empty")
		return
	}
	if len(message) > a.cfg.MaxMessageBytes {
		writeError(w, http.StatusBadRequest, "'message' exceeds size limit")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for text := placeholderText; len(text) > 0; {
		n := min(chunkSize, len(text))
		if _, err := io.WriteString(w, text[:n]); err != nil {
			return
		}
		text = text[n:]
		if flusher != nil {
			flusher.Flush()
		}

		if a.cfg.StreamDelay <= 0 {
			continue
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(a.cfg.StreamDelay):
		}
	}
}

// handleLogin binds a user id to the caller's session. The session token
// is rotated so the pre-authentication identifier cannot be replayed into
// an authenticated session.
func (a *app) handleLogin(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.GetSession(r.Context())
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "'user_id' must be a valid UUID")
		return
	}

	token, _, err := a.sessions.Rotate(info.Token)
	if err != nil {
		a.log.ErrorContext(r.Context(), "session rotation failed",
			logger.Component("auth"), logger.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := a.sessions.Authenticate(token, userID); err != nil {
		a.log.ErrorContext(r.Context(), "session authentication failed",
			logger.Component("auth"), logger.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	middleware.ReplaceSessionCookie(w, token, int(a.sessions.TTL().Seconds()), a.cfg.IsProd())

	id := userID.String()
	writeJSON(w, http.StatusOK, struct {
		Anonymous bool    `json:"anonymous"`
		UserID    *string `json:"user_id"`
	}{Anonymous: false, UserID: &id})
}

// handleLogout destroys the caller's session and expires the cookie.
func (a *app) handleLogout(w http.ResponseWriter, r *http.Request) {
	if info, ok := middleware.GetSession(r.Context()); ok {
		a.sessions.Destroy(info.Token)
		a.log.InfoContext(r.Context(), "session destroyed",
			logger.Component("auth"), logger.SessionID(info.Token))
	}

	middleware.ReplaceSessionCookie(w, "", -1, a.cfg.IsProd())
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

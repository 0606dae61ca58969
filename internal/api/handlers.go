package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/CareBear/internal/models"
	"github.com/BTreeMap/CareBear/internal/twiliowhatsapp"
	"github.com/BTreeMap/CareBear/internal/util"
)

const (
	defaultTurnsLimit = 50
	maxTurnsLimit     = 500
	maxBodyBytes      = 64 << 10
)

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// cookieSession returns the session key from the session cookie, if any.
func cookieSession(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, key string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// chatHandler handles POST /chat. The session comes from the body, then the
// cookie; a fresh one is issued when neither is present.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req models.ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		slog.Warn("Server.chatHandler: invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	key := req.SessionID
	if key == "" {
		key = cookieSession(r)
	}
	if key == "" {
		key = util.GenerateSessionID()
		s.setSessionCookie(w, key)
		slog.Debug("Server.chatHandler: issued session", "sessionKey", key)
	}

	res, err := s.conv.Chat(r.Context(), key, req.Message)
	if err != nil {
		writeEngineError(w, "chatHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}

// resumeHandler handles POST /resume.
func (s *Server) resumeHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req models.SessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		slog.Warn("Server.resumeHandler: invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = cookieSession(r)
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	res, err := s.conv.Resume(r.Context(), req.SessionID)
	if err != nil {
		writeEngineError(w, "resumeHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session resumed", res))
}

// whyHandler handles GET /why?session_id=, falling back to the cookie.
func (s *Server) whyHandler(w http.ResponseWriter, r *http.Request) {
	req := models.SessionRequest{SessionID: r.URL.Query().Get("session_id")}
	if req.SessionID == "" {
		req.SessionID = cookieSession(r)
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	rationale, err := s.conv.Explain(r.Context(), req.SessionID)
	if err != nil {
		writeEngineError(w, "whyHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.ExplainResult{
		SessionID: req.SessionID,
		Rationale: rationale,
	}))
}

// turnsHandler handles GET /sessions/{id}/turns?limit=.
func (s *Server) turnsHandler(w http.ResponseWriter, r *http.Request) {
	req := models.SessionRequest{SessionID: chi.URLParam(r, "id")}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	limit := defaultTurnsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a positive integer"))
			return
		}
		limit = min(n, maxTurnsLimit)
	}

	turns, err := s.conv.Transcript(r.Context(), req.SessionID, limit)
	if err != nil {
		writeEngineError(w, "turnsHandler", err)
		return
	}
	if turns == nil {
		turns = []models.TurnRecord{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turns))
}

// forgetHandler handles DELETE /sessions/{id}.
func (s *Server) forgetHandler(w http.ResponseWriter, r *http.Request) {
	req := models.SessionRequest{SessionID: chi.URLParam(r, "id")}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if err := s.conv.Forget(r.Context(), req.SessionID); err != nil {
		writeEngineError(w, "forgetHandler", err)
		return
	}
	if cookieSession(r) == req.SessionID {
		http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", MaxAge: -1})
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session deleted", nil))
}

// twilioWebhookHandler handles inbound WhatsApp messages from Twilio. Replies
// go out through the REST API, so the TwiML answer is always empty.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.twilioWebhookHandler: invalid form", "error", err)
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		url := s.publicURL + r.URL.RequestURI()
		if !s.validator.Validate(url, params, r.Header.Get("X-Twilio-Signature")) {
			slog.Warn("Server.twilioWebhookHandler: signature mismatch", "url", url)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	from := twiliowhatsapp.StripPrefix(r.PostForm.Get("From"))
	body := r.PostForm.Get("Body")
	if err := s.twilio.ProcessInbound(r.Context(), r.PostForm.Get("MessageSid"), from, body); err != nil {
		// Twilio retries on non-2xx; the user has already been told about the failure.
		slog.Warn("Server.twilioWebhookHandler: message not answered", "error", err, "from", from)
	}
	writeTwiML(w)
}

// healthHandler handles GET /healthz.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			slog.Warn("Server.healthHandler: unhealthy", "error", err)
			writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("unhealthy"))
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// Package server exposes the advisor over HTTP: a streaming chat endpoint
// (SSE), a non-streaming variant, and conversation history reads.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"skinadvisor/internal/advisor"
	"skinadvisor/internal/ratelimit"
	"skinadvisor/internal/usertoken"
	"skinadvisor/internal/util"
	"skinadvisor/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Advisor       *advisor.Advisor
	Store         store.Store
	TokenVerifier *usertoken.Verifier
	Limiter       *ratelimit.FixedWindowLimiter // optional
}

// Server exposes HTTP endpoints for the advisor service.
type Server struct {
	advisor       *advisor.Advisor
	store         store.Store
	tokenVerifier *usertoken.Verifier
	limiter       *ratelimit.FixedWindowLimiter
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		advisor:       cfg.Advisor,
		store:         cfg.Store,
		tokenVerifier: cfg.TokenVerifier,
		limiter:       cfg.Limiter,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/conversations", s.withUser(s.handleListConversations))
	s.mux.Handle("/conversations/", s.withUser(s.handleConversation))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenVerifier == nil {
			writeError(w, http.StatusInternalServerError, "token verifier not configured")
			return
		}
		userID, err := s.tokenVerifier.VerifyRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if s.limiter != nil && !s.limiter.Allow(userID) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r, userID)
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	convos, err := s.store.ListConversationsByUser(userID, 50)
	if err != nil {
		slog.ErrorContext(r.Context(), "list conversations", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not list conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convos})
}

// handleConversation dispatches /conversations/{id}/messages. The id "new"
// starts a conversation on POST.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request, userID string) {
	rest := strings.TrimPrefix(r.URL.Path, "/conversations/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "messages" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	conversationID := parts[0]
	switch r.Method {
	case http.MethodGet:
		s.handleListMessages(w, r, userID, conversationID)
	case http.MethodPost:
		s.handleChat(w, r, userID, conversationID)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, userID, conversationID string) {
	conv, ok, err := s.store.GetConversation(conversationID)
	if err != nil {
		slog.ErrorContext(r.Context(), "get conversation", "conversation", conversationID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not load conversation")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if conv.UserID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	msgs, err := s.store.ListConversationMessages(conversationID, 0)
	if err != nil {
		slog.ErrorContext(r.Context(), "list messages", "conversation", conversationID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not list messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv, "messages": msgs})
}

type chatRequest struct {
	Message    string   `json:"message"`
	ImageRefs  []string `json:"imageRefs,omitempty"`
	Specialist string   `json:"specialist,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, userID, conversationID string) {
	var body chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if conversationID == "new" {
		conversationID = ""
	}
	req := advisor.ChatRequest{
		UserID:         userID,
		ConversationID: conversationID,
		Message:        body.Message,
		ImageRefs:      body.ImageRefs,
		Specialist:     body.Specialist,
	}

	if r.URL.Query().Get("stream") == "false" {
		res, err := s.advisor.Respond(r.Context(), req)
		if err != nil {
			writeAdvisorError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"conversationId": res.ConversationID,
			"messageId":      res.MessageID,
			"fullText":       res.FullText,
			"specialistUsed": res.Specialist,
		})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// SSE headers are written lazily so errors raised before the first delta
	// still get a proper status code.
	started := false
	startStream := func() {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		started = true
	}

	res, err := s.advisor.StreamMessage(r.Context(), req, func(delta string) error {
		if !started {
			startStream()
		}
		payload, err := json.Marshal(map[string]string{"text": delta})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !started {
			writeAdvisorError(w, r, err)
			return
		}
		slog.ErrorContext(r.Context(), "chat stream aborted", "conversation", conversationID, "err", err)
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", errorEventData(err))
		flusher.Flush()
		return
	}
	if !started {
		startStream()
	}
	done, _ := json.Marshal(map[string]any{
		"conversationId": res.ConversationID,
		"messageId":      res.MessageID,
		"specialistUsed": res.Specialist,
	})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", done)
	flusher.Flush()
}

func errorEventData(err error) []byte {
	payload, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return []byte(`{"error":"stream failed"}`)
	}
	return payload
}

func writeAdvisorError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, advisor.ErrEmptyMessage), errors.Is(err, advisor.ErrUnknownSpecialist):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, advisor.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, advisor.ErrConversationForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		slog.ErrorContext(r.Context(), "chat failed", "err", err)
		writeError(w, http.StatusBadGateway, "chat failed")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

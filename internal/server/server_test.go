package server

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"skinadvisor/internal/advisor"
	"skinadvisor/internal/usertoken"
	"skinadvisor/pkg/ai"
	"skinadvisor/pkg/store"
)

type scriptedCompleter struct {
	fragments []string
}

func (c *scriptedCompleter) Complete(_ context.Context, _ ai.Request) (string, error) {
	return strings.Join(c.fragments, ""), nil
}

func (c *scriptedCompleter) StreamComplete(_ context.Context, _ ai.Request, onDelta func(string) error) (string, error) {
	var b strings.Builder
	for _, frag := range c.fragments {
		if err := onDelta(frag); err != nil {
			return "", err
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}

type testEnv struct {
	server *httptest.Server
	store  *store.MemoryStore
	signer func(subject string) string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "kid-1",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	t.Cleanup(jwksServer.Close)

	verifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:  jwksServer.URL,
		Issuer:   "issuer-test",
		Audience: "aud-test",
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	st := store.NewMemoryStore()
	adv, err := advisor.New(advisor.Config{
		Store:           st,
		Completer:       &scriptedCompleter{fragments: []string{"Use ", "sunscreen ", "daily."}},
		GenerationModel: "claude-sonnet-4-5",
	})
	if err != nil {
		t.Fatalf("new advisor: %v", err)
	}

	srv := httptest.NewServer(New(Config{
		Advisor:       adv,
		Store:         st,
		TokenVerifier: verifier,
	}).Router())
	t.Cleanup(srv.Close)

	signer := func(subject string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "issuer-test",
			Audience:  jwt.ClaimStrings{"aud-test"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		})
		token.Header["kid"] = "kid-1"
		signed, err := token.SignedString(key)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return signed
	}

	return &testEnv{server: srv, store: st, signer: signer}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/conversations", "/conversations/new/messages"} {
		resp := env.do(t, http.MethodGet, path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without token: status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestChatNonStreaming(t *testing.T) {
	env := newTestEnv(t)
	token := env.signer("user-1")

	resp := env.do(t, http.MethodPost, "/conversations/new/messages?stream=false", token,
		map[string]string{"message": "do I need sunscreen indoors"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	var out struct {
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
		FullText       string `json:"fullText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.FullText != "Use sunscreen daily." {
		t.Fatalf("fullText = %q", out.FullText)
	}
	if out.ConversationID == "" || out.MessageID == "" {
		t.Fatalf("missing ids: %+v", out)
	}

	msgs, err := env.store.ListConversationMessages(out.ConversationID, 0)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("persisted messages = %d err=%v, want 2", len(msgs), err)
	}
}

func TestChatStreamingSSE(t *testing.T) {
	env := newTestEnv(t)
	token := env.signer("user-1")

	resp := env.do(t, http.MethodPost, "/conversations/new/messages", token,
		map[string]string{"message": "what order do I apply my morning routine steps"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	var deltas []string
	var doneData string
	event := ""
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch event {
			case "message":
				var payload struct {
					Text string `json:"text"`
				}
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					t.Fatalf("decode delta %q: %v", data, err)
				}
				deltas = append(deltas, payload.Text)
			case "done":
				doneData = data
			}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}

	if got := strings.Join(deltas, ""); got != "Use sunscreen daily." {
		t.Fatalf("streamed text = %q", got)
	}
	var done struct {
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
		SpecialistUsed string `json:"specialistUsed"`
	}
	if doneData == "" {
		t.Fatalf("no done event received")
	}
	if err := json.Unmarshal([]byte(doneData), &done); err != nil {
		t.Fatalf("decode done event: %v", err)
	}
	if done.ConversationID == "" || done.MessageID == "" {
		t.Fatalf("done event missing ids: %s", doneData)
	}
	if done.SpecialistUsed != "routine_architect" {
		t.Fatalf("specialistUsed = %q, want routine_architect", done.SpecialistUsed)
	}
}

func TestChatValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	token := env.signer("user-1")

	resp := env.do(t, http.MethodPost, "/conversations/new/messages", token,
		map[string]string{"message": "   "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty message status = %d, want 400", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/conversations/missing/messages", token,
		map[string]string{"message": "hello"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing conversation status = %d, want 404", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/conversations/new/messages", token,
		map[string]string{"message": "hello", "specialist": "nutritionist"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown specialist status = %d, want 400", resp.StatusCode)
	}
}

func TestConversationReadsAndOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signer("owner")
	intruder := env.signer("intruder")

	resp := env.do(t, http.MethodPost, "/conversations/new/messages?stream=false", owner,
		map[string]string{"message": "hello advisor"})
	var out struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/conversations", owner, nil)
	var list struct {
		Conversations []json.RawMessage `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	resp.Body.Close()
	if len(list.Conversations) != 1 {
		t.Fatalf("owner sees %d conversations, want 1", len(list.Conversations))
	}

	resp = env.do(t, http.MethodGet, "/conversations/"+out.ConversationID+"/messages", owner, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner messages status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/conversations/"+out.ConversationID+"/messages", intruder, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("intruder messages status = %d, want 403", resp.StatusCode)
	}
	resp = env.do(t, http.MethodPost, "/conversations/"+out.ConversationID+"/messages?stream=false", intruder,
		map[string]string{"message": "let me in"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("intruder chat status = %d, want 403", resp.StatusCode)
	}
}

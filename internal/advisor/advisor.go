// Package advisor implements the conversational orchestration for the
// skincare advisor: specialist routing, user-memory context assembly, prompt
// composition, streamed completion with durable transcripts, and the
// background title and insight jobs that follow each exchange.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"skinadvisor/internal/specialist"
	"skinadvisor/internal/util"
	"skinadvisor/pkg/ai"
	"skinadvisor/pkg/domain"
	"skinadvisor/pkg/events"
	"skinadvisor/pkg/queue"
	"skinadvisor/pkg/storage"
	"skinadvisor/pkg/store"
)

// SpecialistNone disables automatic routing for a turn.
const SpecialistNone = "none"

// JobEnqueuer is the slice of the job queue the advisor needs.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, kind, conversationID, specialist string) (queue.Job, error)
}

// Config wires an Advisor.
type Config struct {
	Store     store.Store
	Completer ai.Completer
	Jobs      JobEnqueuer             // optional; no background jobs when nil
	Objects   storage.ObjectStore     // optional; image refs unresolvable when nil
	Publisher events.InsightPublisher // optional; insights stay local when nil

	GenerationModel string
	UtilityModel    string
	MaxTokens       int
	HistoryLimit    int
}

// Advisor orchestrates chat turns. Turns within one conversation are
// serialized by a per-conversation lock so concurrent requests cannot
// interleave their transcript writes.
type Advisor struct {
	store     store.Store
	completer ai.Completer
	jobs      JobEnqueuer
	objects   storage.ObjectStore
	publisher events.InsightPublisher

	generationModel string
	utilityModel    string
	maxTokens       int
	historyLimit    int

	mu        sync.Mutex
	convLocks map[string]*convLock
}

// New creates an Advisor.
func New(cfg Config) (*Advisor, error) {
	if cfg.Store == nil {
		return nil, errors.New("advisor requires a store")
	}
	if cfg.Completer == nil {
		return nil, errors.New("advisor requires a completer")
	}
	if cfg.GenerationModel == "" {
		return nil, errors.New("advisor requires a generation model")
	}
	utilityModel := cfg.UtilityModel
	if utilityModel == "" {
		utilityModel = cfg.GenerationModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 40
	}
	return &Advisor{
		store:           cfg.Store,
		completer:       cfg.Completer,
		jobs:            cfg.Jobs,
		objects:         cfg.Objects,
		publisher:       cfg.Publisher,
		generationModel: cfg.GenerationModel,
		utilityModel:    utilityModel,
		maxTokens:       maxTokens,
		historyLimit:    historyLimit,
		convLocks:       make(map[string]*convLock),
	}, nil
}

// ChatRequest is one user turn.
type ChatRequest struct {
	UserID         string
	ConversationID string // empty starts a new conversation
	Message        string
	ImageRefs      []string
	Specialist     string // empty for auto routing, "none" to disable, or a specialist id
}

// ChatResult reports a completed turn.
type ChatResult struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	FullText       string `json:"fullText"`
	Specialist     string `json:"specialist,omitempty"`
	FirstExchange  bool   `json:"firstExchange"`
}

// StreamMessage runs one chat turn: it persists the user message, streams
// completion text through onDelta, persists the assistant reply, and
// schedules the follow-up jobs. The user message stays persisted even when
// streaming fails partway, so a retried turn sees it in history. onDelta
// returning an error aborts the stream and fails the turn.
func (a *Advisor) StreamMessage(ctx context.Context, req ChatRequest, onDelta func(string) error) (ChatResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return ChatResult{}, ErrEmptyMessage
	}
	if req.Specialist != "" && req.Specialist != SpecialistNone && !specialist.Valid(req.Specialist) {
		return ChatResult{}, fmt.Errorf("%w: %s", ErrUnknownSpecialist, req.Specialist)
	}

	conv, firstTurn, err := a.ensureConversation(req.UserID, req.ConversationID)
	if err != nil {
		return ChatResult{}, err
	}

	lock := a.acquireConversation(conv.ID)
	lock.Lock()
	defer a.releaseConversation(conv.ID, lock)

	history, err := a.store.ListRecentMessages(conv.ID, a.historyLimit)
	if err != nil {
		return ChatResult{}, fmt.Errorf("load history: %w", err)
	}
	firstExchange := firstTurn || len(history) == 0

	specID := a.resolveSpecialist(req.Specialist, conv.PinnedSpecialist, message)
	var profile *specialist.Profile
	if specID != "" {
		if p, ok := specialist.Get(specID); ok {
			profile = &p
		}
	}

	userCtx := LoadUserContext(ctx, a.store, req.UserID)
	system := BuildSystemPrompt(userCtx, profile)

	now := time.Now().UTC()
	userMsg := domain.Message{
		ID:             util.NewID(),
		ConversationID: conv.ID,
		UserID:         req.UserID,
		Role:           domain.RoleUser,
		Content:        message,
		ImageRefs:      req.ImageRefs,
		CreatedAt:      now,
	}
	if err := a.store.AppendMessage(userMsg); err != nil {
		return ChatResult{}, fmt.Errorf("persist user message: %w", err)
	}

	aiReq := ai.Request{
		Model:     a.generationModel,
		MaxTokens: a.maxTokens,
		System:    system,
		Messages:  a.buildMessages(ctx, history, message, req.ImageRefs),
	}

	acc := newTranscript()
	_, err = a.completer.StreamComplete(ctx, aiReq, func(delta string) error {
		acc.append(delta)
		if onDelta != nil {
			return onDelta(delta)
		}
		return nil
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("stream completion: %w", err)
	}
	fullText := acc.finalize()

	assistantMsg := domain.Message{
		ID:             util.NewID(),
		ConversationID: conv.ID,
		UserID:         req.UserID,
		Role:           domain.RoleAssistant,
		Content:        fullText,
		Specialist:     specID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.store.AppendMessage(assistantMsg); err != nil {
		return ChatResult{}, fmt.Errorf("persist assistant message: %w", err)
	}
	if err := a.store.TouchConversation(conv.ID, assistantMsg.CreatedAt); err != nil {
		slog.WarnContext(ctx, "touch conversation", "conversation", conv.ID, "err", err)
	}

	a.scheduleFollowups(ctx, conv.ID, specID, firstExchange)

	return ChatResult{
		ConversationID: conv.ID,
		MessageID:      assistantMsg.ID,
		FullText:       fullText,
		Specialist:     specID,
		FirstExchange:  firstExchange,
	}, nil
}

// Respond runs a turn without streaming and returns the full reply.
func (a *Advisor) Respond(ctx context.Context, req ChatRequest) (ChatResult, error) {
	return a.StreamMessage(ctx, req, nil)
}

func (a *Advisor) ensureConversation(userID, conversationID string) (domain.Conversation, bool, error) {
	if conversationID == "" {
		conv := domain.Conversation{
			ID:        util.NewID(),
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := a.store.CreateConversation(conv); err != nil {
			return domain.Conversation{}, false, fmt.Errorf("create conversation: %w", err)
		}
		return conv, true, nil
	}
	conv, ok, err := a.store.GetConversation(conversationID)
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return domain.Conversation{}, false, ErrConversationNotFound
	}
	if conv.UserID != userID {
		return domain.Conversation{}, false, ErrConversationForbidden
	}
	return conv, false, nil
}

// resolveSpecialist applies the override chain: an explicit request wins,
// "none" disables routing, a conversation pin comes next, and keyword
// detection is the default.
func (a *Advisor) resolveSpecialist(requested, pinned, message string) string {
	switch {
	case requested == SpecialistNone:
		return ""
	case requested != "":
		return requested
	case pinned != "":
		return pinned
	}
	id, ok := specialist.Detect(message)
	if !ok {
		return ""
	}
	return id
}

// convLock serializes turns within one conversation. holders counts the
// turns waiting on or holding the mutex so the map entry can be dropped
// once the last one releases it.
type convLock struct {
	sync.Mutex
	holders int
}

func (a *Advisor) acquireConversation(conversationID string) *convLock {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.convLocks[conversationID]
	if !ok {
		lock = &convLock{}
		a.convLocks[conversationID] = lock
	}
	lock.holders++
	return lock
}

func (a *Advisor) releaseConversation(conversationID string, lock *convLock) {
	lock.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()
	lock.holders--
	if lock.holders == 0 {
		delete(a.convLocks, conversationID)
	}
}

// buildMessages converts stored history plus the new turn into completion
// messages. Image refs are resolved from object storage for the new turn
// only; an unresolvable ref is logged and skipped so a missing upload never
// blocks the chat.
func (a *Advisor) buildMessages(ctx context.Context, history []domain.Message, message string, imageRefs []string) []ai.Message {
	msgs := make([]ai.Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	turn := ai.Message{Role: string(domain.RoleUser), Content: message}
	for _, ref := range imageRefs {
		img, err := a.fetchImage(ctx, ref)
		if err != nil {
			slog.WarnContext(ctx, "resolve image ref", "ref", ref, "err", err)
			continue
		}
		turn.Images = append(turn.Images, img)
	}
	return append(msgs, turn)
}

const maxImageBytes = 8 << 20

func (a *Advisor) fetchImage(ctx context.Context, ref string) (ai.Image, error) {
	if a.objects == nil {
		return ai.Image{}, errors.New("object storage not configured")
	}
	body, contentType, err := a.objects.Get(ctx, ref)
	if err != nil {
		return ai.Image{}, err
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, maxImageBytes))
	if err != nil {
		return ai.Image{}, err
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return ai.Image{MediaType: contentType, Data: data}, nil
}

// scheduleFollowups enqueues the post-turn background jobs. Failures are
// logged and never fail the turn.
func (a *Advisor) scheduleFollowups(ctx context.Context, conversationID, specID string, firstExchange bool) {
	if a.jobs == nil {
		return
	}
	if firstExchange {
		if _, err := a.jobs.Enqueue(ctx, queue.KindTitle, conversationID, ""); err != nil {
			slog.WarnContext(ctx, "enqueue title job", "conversation", conversationID, "err", err)
		}
	}
	if specID != "" {
		if _, err := a.jobs.Enqueue(ctx, queue.KindInsight, conversationID, specID); err != nil {
			slog.WarnContext(ctx, "enqueue insight job", "conversation", conversationID, "err", err)
		}
	}
}

// transcript accumulates streamed fragments and yields the final text
// exactly once; appends after finalize are dropped.
type transcript struct {
	b         strings.Builder
	finalized bool
	final     string
}

func newTranscript() *transcript {
	return &transcript{}
}

func (t *transcript) append(fragment string) {
	if t.finalized {
		return
	}
	t.b.WriteString(fragment)
}

func (t *transcript) finalize() string {
	if !t.finalized {
		t.final = t.b.String()
		t.finalized = true
	}
	return t.final
}

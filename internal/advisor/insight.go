package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"skinadvisor/internal/specialist"
	"skinadvisor/internal/util"
	"skinadvisor/pkg/ai"
	"skinadvisor/pkg/domain"
)

// ExtractInsight mines the latest exchange of a conversation for the
// structured facts the active specialist knows how to pull out, stores them,
// and publishes them to the learning pipeline. A reply that contains no
// parseable JSON object is treated as "nothing to extract": the job succeeds
// and nothing is stored.
func (a *Advisor) ExtractInsight(ctx context.Context, conversationID, specialistID string) error {
	profile, ok := specialist.Get(specialistID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSpecialist, specialistID)
	}

	msgs, err := a.store.ListRecentMessages(conversationID, a.historyLimit)
	if err != nil {
		return fmt.Errorf("load exchange: %w", err)
	}
	userTurn, assistantTurn, ok := lastExchange(msgs)
	if !ok {
		return nil
	}

	transcript := fmt.Sprintf("User: %s\nAdvisor: %s", userTurn.Content, assistantTurn.Content)
	raw, err := a.completer.Complete(ctx, ai.Request{
		Model:     a.utilityModel,
		MaxTokens: 512,
		System:    profile.Extraction,
		Messages:  []ai.Message{{Role: string(domain.RoleUser), Content: transcript}},
	})
	if err != nil {
		return fmt.Errorf("insight completion: %w", err)
	}

	payload, ok := parseInsightPayload(raw)
	if !ok {
		slog.DebugContext(ctx, "insight extraction yielded no json", "conversation", conversationID, "specialist", specialistID)
		return nil
	}

	insight := domain.SpecialistInsight{
		ID:             util.NewID(),
		ConversationID: conversationID,
		Specialist:     specialistID,
		Payload:        payload,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.store.CreateSpecialistInsight(insight); err != nil {
		return fmt.Errorf("store insight: %w", err)
	}

	if a.publisher != nil {
		if err := a.publisher.PublishInsight(ctx, insight); err != nil {
			slog.WarnContext(ctx, "publish insight", "conversation", conversationID, "specialist", specialistID, "err", err)
		}
	}
	return nil
}

// lastExchange returns the most recent user turn and the assistant turn that
// answered it.
func lastExchange(msgs []domain.Message) (user, assistant domain.Message, ok bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != domain.RoleAssistant {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if msgs[j].Role == domain.RoleUser {
				return msgs[j], msgs[i], true
			}
		}
		return domain.Message{}, domain.Message{}, false
	}
	return domain.Message{}, domain.Message{}, false
}

// parseInsightPayload pulls the first balanced {...} span out of the model
// reply and parses it strictly. Models often wrap JSON in prose or code
// fences; anything that still fails to parse is reported as no payload.
func parseInsightPayload(raw string) (map[string]any, bool) {
	start := -1
	depth := 0
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				var payload map[string]any
				if err := json.Unmarshal([]byte(raw[start:i+1]), &payload); err != nil {
					return nil, false
				}
				if len(payload) == 0 {
					return nil, false
				}
				return payload, true
			}
		}
	}
	return nil, false
}

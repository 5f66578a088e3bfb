package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"skinadvisor/pkg/ai"
	"skinadvisor/pkg/domain"
)

const titlePrompt = `Generate a short title for this skincare conversation.
Rules: 4 to 6 words, no quotation marks, no trailing punctuation, describe
the topic rather than summarising the advice. Reply with the title only.`

// GenerateTitle derives a conversation title from the first exchange and
// writes it only if the conversation is still untitled, so a manually set
// title is never overwritten. Called from the background job runner;
// failures surface as job errors, never to the chat turn.
func (a *Advisor) GenerateTitle(ctx context.Context, conversationID string) error {
	msgs, err := a.store.ListConversationMessages(conversationID, 2)
	if err != nil {
		return fmt.Errorf("load first exchange: %w", err)
	}
	if len(msgs) == 0 {
		return errors.New("conversation has no messages")
	}

	var b strings.Builder
	for _, m := range msgs {
		role := "User"
		if m.Role == domain.RoleAssistant {
			role = "Advisor"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}

	raw, err := a.completer.Complete(ctx, ai.Request{
		Model:     a.utilityModel,
		MaxTokens: 64,
		System:    titlePrompt,
		Messages:  []ai.Message{{Role: string(domain.RoleUser), Content: b.String()}},
	})
	if err != nil {
		return fmt.Errorf("title completion: %w", err)
	}

	title := cleanTitle(raw)
	if title == "" {
		return errors.New("title completion returned no usable text")
	}
	if _, err := a.store.SetConversationTitleIfEmpty(conversationID, title); err != nil {
		return fmt.Errorf("store title: %w", err)
	}
	return nil
}

// cleanTitle strips surrounding quotes and whitespace and collapses the
// title onto a single line.
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	title = strings.Trim(title, `"'`+"`")
	return strings.TrimSpace(title)
}

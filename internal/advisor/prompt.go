package advisor

import (
	"fmt"
	"strings"

	"skinadvisor/internal/specialist"
	"skinadvisor/pkg/domain"
)

const basePersona = `You are a knowledgeable, warm skincare advisor. You give specific,
actionable guidance grounded in ingredient science, and you tailor every
answer to the user's skin profile and product history when they are
available. Be honest about uncertainty and about the limits of
over-the-counter skincare.

Safety rules, always in force:
- You are not a medical professional. For persistent or severe conditions,
  advise seeing a dermatologist.
- Never recommend a product containing an ingredient the user is allergic
  to, and warn if the user proposes one.
- Never guarantee results. Skin varies; frame outcomes as likely or
  possible, not certain.
- Recommend patch testing any product new to the user.
- We do not sell products. Direct any purchase to third-party retailers.`

// BuildSystemPrompt assembles the system prompt from the user's memory
// snapshot and the active specialist, if any. It is a pure function of its
// inputs: identical context and specialist always produce identical output.
// Empty sections are omitted entirely.
func BuildSystemPrompt(uc domain.UserContext, sp *specialist.Profile) string {
	var b strings.Builder
	b.WriteString(basePersona)

	if p := uc.Profile; p != nil {
		b.WriteString("\n\n## User skin profile\n")
		fmt.Fprintf(&b, "- Skin type: %s\n", p.SkinType)
		if len(p.Concerns) > 0 {
			fmt.Fprintf(&b, "- Concerns: %s\n", strings.Join(p.Concerns, ", "))
		}
		if len(p.Allergies) > 0 {
			fmt.Fprintf(&b, "- ALLERGIES (never recommend products containing these): %s\n",
				strings.Join(p.Allergies, ", "))
		}
		if p.Climate != "" {
			fmt.Fprintf(&b, "- Climate: %s\n", p.Climate)
		}
		if p.AgeRange != "" {
			fmt.Fprintf(&b, "- Age range: %s\n", p.AgeRange)
		}
		if p.BudgetTier != "" {
			fmt.Fprintf(&b, "- Budget tier: %s\n", p.BudgetTier)
		}
		if p.ExperienceLevel != "" {
			fmt.Fprintf(&b, "- Experience level: %s\n", p.ExperienceLevel)
		}
	}

	if len(uc.Reactions) > 0 {
		var loved, caused, other []domain.ProductReaction
		for _, r := range uc.Reactions {
			switch {
			case r.Reaction.Negative():
				caused = append(caused, r)
			case r.Reaction == domain.ReactionHolyGrail || r.Reaction == domain.ReactionLiked:
				loved = append(loved, r)
			default:
				other = append(other, r)
			}
		}
		b.WriteString("\n## Product history\n")
		if len(loved) > 0 {
			b.WriteString("Products that worked:\n")
			writeReactions(&b, loved)
		}
		if len(caused) > 0 {
			b.WriteString("Products that caused problems (DO NOT recommend again):\n")
			writeReactions(&b, caused)
		}
		if len(other) > 0 {
			b.WriteString("Products with no noticeable effect:\n")
			writeReactions(&b, other)
		}
	}

	if topics := conversationTopics(uc.RecentConversations); len(topics) > 0 {
		b.WriteString("\n## Recent conversation topics\n")
		for _, topic := range topics {
			fmt.Fprintf(&b, "- %s\n", topic)
		}
	}

	if len(uc.Routine) > 0 {
		b.WriteString("\n## Current routine\n")
		for _, rp := range uc.Routine {
			fmt.Fprintf(&b, "- Step %d", rp.Step)
			if rp.TimeOfDay != "" {
				fmt.Fprintf(&b, " (%s)", rp.TimeOfDay)
			}
			fmt.Fprintf(&b, ": %s", rp.ProductName)
			if rp.Brand != "" {
				fmt.Fprintf(&b, " (%s)", rp.Brand)
			}
			b.WriteString("\n")
		}
	}

	if len(uc.IngredientInsights) > 0 {
		b.WriteString("\n## What works for similar skin\n")
		for _, fact := range uc.IngredientInsights {
			fmt.Fprintf(&b, "- %s: %.0f%% success for %s skin", fact.Ingredient, fact.SuccessRate*100, fact.SkinType)
			if fact.Concern != "" {
				fmt.Fprintf(&b, " with %s", fact.Concern)
			}
			fmt.Fprintf(&b, " (n=%d)\n", fact.SampleSize)
		}
	}

	if len(uc.SeasonalPatterns) > 0 {
		b.WriteString("\n## Seasonal notes for the user's climate\n")
		for _, pat := range uc.SeasonalPatterns {
			fmt.Fprintf(&b, "- %s: %s\n", pat.Season, pat.Observation)
		}
	}

	if len(uc.TrendSignals) > 0 {
		b.WriteString("\n## Current trend signals\n")
		for _, ts := range uc.TrendSignals {
			fmt.Fprintf(&b, "- %s: %s (%d mentions)\n", ts.Topic, ts.Status, ts.Mentions)
		}
	}

	if sp != nil {
		b.WriteString("\n## Active specialist\n")
		b.WriteString(sp.Persona)
		b.WriteString("\n")
	}

	return b.String()
}

func writeReactions(b *strings.Builder, items []domain.ProductReaction) {
	for _, r := range items {
		b.WriteString("- " + r.ProductName)
		if r.Brand != "" {
			fmt.Fprintf(b, " (%s)", r.Brand)
		}
		fmt.Fprintf(b, ": %s", r.Reaction)
		if r.Note != "" {
			fmt.Fprintf(b, " (%s)", r.Note)
		}
		b.WriteString("\n")
	}
}

// conversationTopics collects titles of recent conversations; untitled ones
// carry no topic signal and are skipped.
func conversationTopics(convos []domain.Conversation) []string {
	topics := make([]string, 0, len(convos))
	for _, c := range convos {
		if c.Title != "" {
			topics = append(topics, c.Title)
		}
	}
	return topics
}

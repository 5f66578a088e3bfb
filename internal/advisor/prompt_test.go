package advisor

import (
	"strings"
	"testing"

	"skinadvisor/internal/specialist"
	"skinadvisor/pkg/domain"
)

func fullContext() domain.UserContext {
	return domain.UserContext{
		RecentConversations: []domain.Conversation{
			{ID: "c1", UserID: "user-1", Title: "Retinol Purging Timeline"},
			{ID: "c2", UserID: "user-1"},
		},
		Profile: &domain.SkinProfile{
			UserID:     "user-1",
			SkinType:   "oily",
			Concerns:   []string{"acne", "texture"},
			Allergies:  []string{"lanolin"},
			Climate:    "humid",
			BudgetTier: "drugstore",
		},
		Reactions: []domain.ProductReaction{
			{ProductName: "Foaming Cleanser", Brand: "CeraVe", Reaction: domain.ReactionLiked},
			{ProductName: "AHA Peel", Reaction: domain.ReactionCausedReaction, Note: "stinging within minutes"},
		},
		Routine: []domain.RoutineProduct{
			{Step: 1, ProductName: "Gel Cleanser", TimeOfDay: "am"},
			{Step: 2, ProductName: "Niacinamide Serum", TimeOfDay: "am"},
		},
		IngredientInsights: []domain.IngredientEffectiveness{
			{Ingredient: "niacinamide", SkinType: "oily", Concern: "acne", SuccessRate: 0.72, SampleSize: 418},
		},
		SeasonalPatterns: []domain.SeasonalPattern{
			{Climate: "humid", Season: "summer", Observation: "lighter moisturizers reduce congestion"},
		},
		TrendSignals: []domain.TrendSignal{
			{Topic: "peptide serums", Status: domain.TrendTrending, Mentions: 1200},
		},
	}
}

func TestBuildSystemPromptIsDeterministic(t *testing.T) {
	sp, _ := specialist.Get(specialist.IngredientAnalyst)
	a := BuildSystemPrompt(fullContext(), &sp)
	b := BuildSystemPrompt(fullContext(), &sp)
	if a != b {
		t.Fatalf("identical inputs produced different prompts")
	}
}

func TestBuildSystemPromptIncludesMemorySections(t *testing.T) {
	prompt := BuildSystemPrompt(fullContext(), nil)

	for _, want := range []string{
		"Skin type: oily",
		"ALLERGIES (never recommend products containing these): lanolin",
		"Products that worked:\n- Foaming Cleanser (CeraVe): liked",
		"Products that caused problems (DO NOT recommend again):\n- AHA Peel: caused_reaction (stinging within minutes)",
		"Recent conversation topics\n- Retinol Purging Timeline",
		"Step 2 (am): Niacinamide Serum",
		"niacinamide: 72% success for oily skin with acne (n=418)",
		"summer: lighter moisturizers reduce congestion",
		"peptide serums: trending (1200 mentions)",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "## Active specialist") {
		t.Fatalf("specialist section present without a specialist")
	}
}

func TestBuildSystemPromptOmitsEmptySections(t *testing.T) {
	prompt := BuildSystemPrompt(domain.UserContext{}, nil)

	for _, header := range []string{
		"## User skin profile",
		"## Product history",
		"## Recent conversation topics",
		"## Current routine",
		"## What works for similar skin",
		"## Seasonal notes",
		"## Current trend signals",
		"## Active specialist",
	} {
		if strings.Contains(prompt, header) {
			t.Fatalf("empty context must omit %q", header)
		}
	}
	for _, rule := range []string{
		"patch testing",
		"Never guarantee results",
		"third-party retailers",
	} {
		if !strings.Contains(prompt, rule) {
			t.Fatalf("base safety rules missing %q", rule)
		}
	}
}

func TestBuildSystemPromptAppendsSpecialistPersona(t *testing.T) {
	sp, _ := specialist.Get(specialist.SensitivityGuardian)
	prompt := BuildSystemPrompt(domain.UserContext{}, &sp)
	if !strings.Contains(prompt, "Sensitivity Guardian") {
		t.Fatalf("specialist persona missing from prompt")
	}
}

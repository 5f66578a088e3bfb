package advisor

import (
	"context"
	"testing"
	"time"

	"skinadvisor/pkg/domain"
	"skinadvisor/pkg/store"
)

func TestLoadUserContextNewUser(t *testing.T) {
	st := store.NewMemoryStore()
	uc := LoadUserContext(context.Background(), st, "nobody")

	if uc.Profile != nil {
		t.Fatalf("new user should have no profile")
	}
	if len(uc.Reactions) != 0 || len(uc.Routine) != 0 || len(uc.RecentConversations) != 0 {
		t.Fatalf("new user context not empty: %+v", uc)
	}
	if len(uc.IngredientInsights) != 0 || len(uc.SeasonalPatterns) != 0 {
		t.Fatalf("learning sections require a profile: %+v", uc)
	}
}

func TestLoadUserContextAggregatesAllSources(t *testing.T) {
	st := store.NewMemoryStore()
	st.SaveSkinProfile(domain.SkinProfile{UserID: "user-1", SkinType: "dry", Climate: "arid"})
	st.AddProductReaction(domain.ProductReaction{ID: "r1", UserID: "user-1", ProductName: "Squalane Oil", Reaction: domain.ReactionHolyGrail})
	st.AddRoutineProduct(domain.RoutineProduct{ID: "p1", UserID: "user-1", Step: 1, ProductName: "Cream Cleanser"})
	st.SeedLearningInsights(
		[]domain.IngredientEffectiveness{
			{Ingredient: "ceramides", SkinType: "dry", SuccessRate: 0.8, SampleSize: 100},
			{Ingredient: "clay", SkinType: "oily", SuccessRate: 0.6, SampleSize: 50},
		},
		[]domain.SeasonalPattern{
			{Climate: "arid", Season: "winter", Observation: "occlusives matter more"},
			{Climate: "humid", Season: "summer", Observation: "gel textures"},
		},
		[]domain.TrendSignal{{Topic: "slugging", Status: domain.TrendTrending, Mentions: 900}},
	)
	if err := st.CreateConversation(domain.Conversation{ID: "c1", UserID: "user-1", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	uc := LoadUserContext(context.Background(), st, "user-1")

	if uc.Profile == nil || uc.Profile.SkinType != "dry" {
		t.Fatalf("profile not loaded: %+v", uc.Profile)
	}
	if len(uc.Reactions) != 1 || len(uc.Routine) != 1 || len(uc.RecentConversations) != 1 {
		t.Fatalf("primary sources incomplete: %+v", uc)
	}
	if len(uc.IngredientInsights) != 1 || uc.IngredientInsights[0].Ingredient != "ceramides" {
		t.Fatalf("effectiveness not filtered by skin type: %+v", uc.IngredientInsights)
	}
	if len(uc.SeasonalPatterns) != 1 || uc.SeasonalPatterns[0].Climate != "arid" {
		t.Fatalf("seasonal patterns not filtered by climate: %+v", uc.SeasonalPatterns)
	}
	if len(uc.TrendSignals) != 1 {
		t.Fatalf("trend signals missing: %+v", uc.TrendSignals)
	}
}

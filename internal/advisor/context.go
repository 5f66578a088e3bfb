package advisor

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"skinadvisor/pkg/domain"
	"skinadvisor/pkg/store"
)

const (
	maxReactions        = 50
	maxRecentConvos     = 10
	maxIngredientFacts  = 10
	maxSeasonalPatterns = 5
	maxTrendSignals     = 8
)

// LoadUserContext assembles the memory snapshot injected into the system
// prompt. Sources are fetched concurrently and each failure degrades to an
// empty section rather than failing the chat turn; a new user with no data
// yields a zero-value context. Community learnings keyed by skin type or
// climate are only fetched once the profile round has completed.
func LoadUserContext(ctx context.Context, st store.Store, userID string) domain.UserContext {
	var out domain.UserContext

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, ok, err := st.GetSkinProfile(userID)
		if err != nil {
			slog.WarnContext(gctx, "context load: skin profile", "user", userID, "err", err)
			return nil
		}
		if ok {
			out.Profile = &profile
		}
		return nil
	})
	g.Go(func() error {
		convos, err := st.ListConversationsByUser(userID, maxRecentConvos)
		if err != nil {
			slog.WarnContext(gctx, "context load: conversations", "user", userID, "err", err)
			return nil
		}
		out.RecentConversations = convos
		return nil
	})
	g.Go(func() error {
		reactions, err := st.ListProductReactions(userID, maxReactions)
		if err != nil {
			slog.WarnContext(gctx, "context load: reactions", "user", userID, "err", err)
			return nil
		}
		out.Reactions = reactions
		return nil
	})
	g.Go(func() error {
		routine, err := st.ListRoutineProducts(userID)
		if err != nil {
			slog.WarnContext(gctx, "context load: routine", "user", userID, "err", err)
			return nil
		}
		out.Routine = routine
		return nil
	})
	g.Go(func() error {
		signals, err := st.ListTrendSignals(maxTrendSignals)
		if err != nil {
			slog.WarnContext(gctx, "context load: trend signals", "err", err)
			return nil
		}
		out.TrendSignals = signals
		return nil
	})
	_ = g.Wait()

	if out.Profile == nil {
		return out
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		facts, err := st.ListIngredientEffectiveness(out.Profile.SkinType, maxIngredientFacts)
		if err != nil {
			slog.WarnContext(gctx, "context load: ingredient effectiveness", "user", userID, "err", err)
			return nil
		}
		out.IngredientInsights = facts
		return nil
	})
	if out.Profile.Climate != "" {
		g.Go(func() error {
			patterns, err := st.ListSeasonalPatterns(out.Profile.Climate, maxSeasonalPatterns)
			if err != nil {
				slog.WarnContext(gctx, "context load: seasonal patterns", "user", userID, "err", err)
				return nil
			}
			out.SeasonalPatterns = patterns
			return nil
		})
	}
	_ = g.Wait()

	return out
}

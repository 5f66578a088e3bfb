package store

import (
	"time"

	"skinadvisor/pkg/domain"
)

// Store defines persistence operations for the advisor engine.
//
// Conversations and messages are owned by this core; messages are append-only.
// Profile, reaction, routine, and learning-insight reads cover records owned
// by other subsystems (profile management, reaction tracking, the community
// learning pipeline) and are read-only here.
type Store interface {
	// conversations
	CreateConversation(c domain.Conversation) error
	GetConversation(id string) (domain.Conversation, bool, error)
	ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error)
	TouchConversation(id string, lastMessageAt time.Time) error
	// SetConversationTitleIfEmpty sets the title only when none exists yet.
	// Returns true when the title was written.
	SetConversationTitleIfEmpty(id, title string) (bool, error)

	// messages
	AppendMessage(msg domain.Message) error
	ListConversationMessages(conversationID string, limit int) ([]domain.Message, error)
	// ListRecentMessages returns the newest limit messages in creation order.
	ListRecentMessages(conversationID string, limit int) ([]domain.Message, error)

	// user memory (read-only)
	GetSkinProfile(userID string) (domain.SkinProfile, bool, error)
	ListProductReactions(userID string, limit int) ([]domain.ProductReaction, error)
	ListRoutineProducts(userID string) ([]domain.RoutineProduct, error)

	// learning insights (read-only, best-effort)
	ListIngredientEffectiveness(skinType string, limit int) ([]domain.IngredientEffectiveness, error)
	ListSeasonalPatterns(climate string, limit int) ([]domain.SeasonalPattern, error)
	ListTrendSignals(limit int) ([]domain.TrendSignal, error)

	// specialist insights (write-only)
	CreateSpecialistInsight(insight domain.SpecialistInsight) error
}

package domain

import "time"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ReactionKind string

const (
	ReactionHolyGrail      ReactionKind = "holy_grail"
	ReactionLiked          ReactionKind = "liked"
	ReactionNoEffect       ReactionKind = "no_effect"
	ReactionCausedReaction ReactionKind = "caused_reaction"
	ReactionCausedBreakout ReactionKind = "caused_breakout"
)

// Negative reports whether the reaction describes an adverse outcome.
func (r ReactionKind) Negative() bool {
	return r == ReactionCausedReaction || r == ReactionCausedBreakout
}

type TrendStatus string

const (
	TrendEmerging  TrendStatus = "emerging"
	TrendTrending  TrendStatus = "trending"
	TrendDeclining TrendStatus = "declining"
)

type Conversation struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Title            string     `json:"title,omitempty"`
	PinnedSpecialist string     `json:"pinnedSpecialist,omitempty"`
	LastMessageAt    *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Message is one turn in a conversation. Messages are append-only: once
// written they are never mutated or deleted, and creation order defines the
// history replayed to the completion service.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	UserID         string      `json:"userId"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	ImageRefs      []string    `json:"imageRefs,omitempty"`
	Specialist     string      `json:"specialist,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// SkinProfile is the user's durable skin memory. It is owned by the profile
// management flow; the advisor only reads it.
type SkinProfile struct {
	UserID          string    `json:"userId"`
	SkinType        string    `json:"skinType"`
	Concerns        []string  `json:"concerns,omitempty"`
	Allergies       []string  `json:"allergies,omitempty"`
	Climate         string    `json:"climate,omitempty"`
	AgeRange        string    `json:"ageRange,omitempty"`
	BudgetTier      string    `json:"budgetTier,omitempty"`
	ExperienceLevel string    `json:"experienceLevel,omitempty"`
	OnboardingDone  bool      `json:"onboardingDone"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type ProductReaction struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	ProductName string       `json:"productName"`
	Brand       string       `json:"brand,omitempty"`
	Reaction    ReactionKind `json:"reaction"`
	Note        string       `json:"note,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type RoutineProduct struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Step        int       `json:"step"`
	ProductName string    `json:"productName"`
	Brand       string    `json:"brand,omitempty"`
	TimeOfDay   string    `json:"timeOfDay,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IngredientEffectiveness is a community-derived aggregate keyed by skin type
// and concern. Produced by the learning pipeline, read-only here.
type IngredientEffectiveness struct {
	Ingredient  string  `json:"ingredient"`
	SkinType    string  `json:"skinType"`
	Concern     string  `json:"concern,omitempty"`
	SuccessRate float64 `json:"successRate"`
	SampleSize  int     `json:"sampleSize"`
}

type SeasonalPattern struct {
	Climate     string `json:"climate"`
	Season      string `json:"season"`
	Observation string `json:"observation"`
}

type TrendSignal struct {
	Topic    string      `json:"topic"`
	Status   TrendStatus `json:"status"`
	Mentions int         `json:"mentions"`
}

// SpecialistInsight is a structured fact mined from one completed exchange,
// tagged by the specialist that was active when the exchange happened.
type SpecialistInsight struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	Specialist     string         `json:"specialist"`
	Payload        map[string]any `json:"payload"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// UserContext is the aggregated read-only snapshot injected into the system
// prompt. Every list defaults to empty and Profile to nil for a new user.
type UserContext struct {
	Profile             *SkinProfile              `json:"profile,omitempty"`
	RecentConversations []Conversation            `json:"recentConversations,omitempty"`
	Reactions           []ProductReaction         `json:"reactions,omitempty"`
	Routine             []RoutineProduct          `json:"routine,omitempty"`
	IngredientInsights  []IngredientEffectiveness `json:"ingredientInsights,omitempty"`
	SeasonalPatterns    []SeasonalPattern         `json:"seasonalPatterns,omitempty"`
	TrendSignals        []TrendSignal             `json:"trendSignals,omitempty"`
}

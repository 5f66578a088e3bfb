package store

import (
	"sort"
	"sync"
	"time"

	"skinadvisor/pkg/domain"
)

// MemoryStore keeps everything in-process. Used by tests and local dev.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
	profiles      map[string]domain.SkinProfile
	reactions     map[string][]domain.ProductReaction
	routines      map[string][]domain.RoutineProduct
	effectiveness []domain.IngredientEffectiveness
	seasonal      []domain.SeasonalPattern
	trends        []domain.TrendSignal
	insights      []domain.SpecialistInsight
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
		profiles:      make(map[string]domain.SkinProfile),
		reactions:     make(map[string][]domain.ProductReaction),
		routines:      make(map[string][]domain.RoutineProduct),
	}
}

// CreateConversation stores a new conversation.
func (m *MemoryStore) CreateConversation(c domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[c.ID] = c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MemoryStore) GetConversation(id string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	return c, ok, nil
}

// ListConversationsByUser returns a user's conversations, most recent first.
func (m *MemoryStore) ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Conversation, 0)
	for _, c := range m.conversations {
		if c.UserID == userID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		ti, tj := res[i].UpdatedAt, res[j].UpdatedAt
		if res[i].LastMessageAt != nil {
			ti = *res[i].LastMessageAt
		}
		if res[j].LastMessageAt != nil {
			tj = *res[j].LastMessageAt
		}
		return ti.After(tj)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// TouchConversation refreshes the last-message timestamp.
func (m *MemoryStore) TouchConversation(id string, lastMessageAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil
	}
	if !lastMessageAt.IsZero() {
		t := lastMessageAt.UTC()
		c.LastMessageAt = &t
	}
	c.UpdatedAt = time.Now().UTC()
	m.conversations[id] = c
	return nil
}

// SetConversationTitleIfEmpty writes the title once.
func (m *MemoryStore) SetConversationTitleIfEmpty(id, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok || c.Title != "" {
		return false, nil
	}
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	m.conversations[id] = c
	return true, nil
}

// AppendMessage records a message in arrival order.
func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

// ListConversationMessages returns messages in append order.
func (m *MemoryStore) ListConversationMessages(conversationID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryStore) ListRecentMessages(conversationID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// SaveSkinProfile seeds a profile (test/dev helper, not part of Store).
func (m *MemoryStore) SaveSkinProfile(p domain.SkinProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
}

// GetSkinProfile returns a user's profile when present.
func (m *MemoryStore) GetSkinProfile(userID string) (domain.SkinProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	return p, ok, nil
}

// AddProductReaction seeds a reaction (test/dev helper).
func (m *MemoryStore) AddProductReaction(r domain.ProductReaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions[r.UserID] = append(m.reactions[r.UserID], r)
}

// ListProductReactions returns a user's reactions.
func (m *MemoryStore) ListProductReactions(userID string, limit int) ([]domain.ProductReaction, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.reactions[userID]
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]domain.ProductReaction, len(items))
	copy(out, items)
	return out, nil
}

// AddRoutineProduct seeds a routine step (test/dev helper).
func (m *MemoryStore) AddRoutineProduct(r domain.RoutineProduct) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routines[r.UserID] = append(m.routines[r.UserID], r)
}

// ListRoutineProducts returns a user's routine in step order.
func (m *MemoryStore) ListRoutineProducts(userID string) ([]domain.RoutineProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.RoutineProduct, len(m.routines[userID]))
	copy(items, m.routines[userID])
	sort.Slice(items, func(i, j int) bool { return items[i].Step < items[j].Step })
	return items, nil
}

// SeedLearningInsights loads aggregate fixtures (test/dev helper).
func (m *MemoryStore) SeedLearningInsights(
	effectiveness []domain.IngredientEffectiveness,
	seasonal []domain.SeasonalPattern,
	trends []domain.TrendSignal,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.effectiveness = effectiveness
	m.seasonal = seasonal
	m.trends = trends
}

// ListIngredientEffectiveness filters aggregates by skin type.
func (m *MemoryStore) ListIngredientEffectiveness(skinType string, limit int) ([]domain.IngredientEffectiveness, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.IngredientEffectiveness, 0)
	for _, item := range m.effectiveness {
		if item.SkinType == skinType {
			res = append(res, item)
		}
		if len(res) == limit {
			break
		}
	}
	return res, nil
}

// ListSeasonalPatterns filters patterns by climate.
func (m *MemoryStore) ListSeasonalPatterns(climate string, limit int) ([]domain.SeasonalPattern, error) {
	if limit <= 0 {
		limit = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.SeasonalPattern, 0)
	for _, item := range m.seasonal {
		if item.Climate == climate {
			res = append(res, item)
		}
		if len(res) == limit {
			break
		}
	}
	return res, nil
}

// ListTrendSignals returns global trend signals.
func (m *MemoryStore) ListTrendSignals(limit int) ([]domain.TrendSignal, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.trends
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]domain.TrendSignal, len(items))
	copy(out, items)
	return out, nil
}

// CreateSpecialistInsight appends an extracted insight.
func (m *MemoryStore) CreateSpecialistInsight(insight domain.SpecialistInsight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights = append(m.insights, insight)
	return nil
}

// ListSpecialistInsights returns stored insights (test/dev helper).
func (m *MemoryStore) ListSpecialistInsights(conversationID string) []domain.SpecialistInsight {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.SpecialistInsight, 0)
	for _, insight := range m.insights {
		if conversationID == "" || insight.ConversationID == conversationID {
			res = append(res, insight)
		}
	}
	return res
}

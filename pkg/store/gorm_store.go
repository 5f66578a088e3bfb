package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"skinadvisor/pkg/domain"
)

const migrateLockID int64 = 48219502

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent replicas do not race on schema changes.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&ConversationModel{},
			&MessageModel{},
			&SkinProfileModel{},
			&ProductReactionModel{},
			&RoutineProductModel{},
			&IngredientEffectivenessModel{},
			&SeasonalPatternModel{},
			&TrendSignalModel{},
			&SpecialistInsightModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'message_models'
					AND constraint_name = 'message_models_conversation_id_fkey'
				) THEN
					ALTER TABLE message_models
					ADD CONSTRAINT message_models_conversation_id_fkey
					FOREIGN KEY (conversation_id) REFERENCES conversation_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'specialist_insight_models'
					AND constraint_name = 'specialist_insight_models_conversation_id_fkey'
				) THEN
					ALTER TABLE specialist_insight_models
					ADD CONSTRAINT specialist_insight_models_conversation_id_fkey
					FOREIGN KEY (conversation_id) REFERENCES conversation_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure conversation foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateConversation creates a new conversation record.
func (s *GormStore) CreateConversation(c domain.Conversation) error {
	model := conversationToModel(c)
	return s.db.Create(&model).Error
}

// GetConversation returns one conversation by ID.
func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ListConversationsByUser returns latest conversations of a user.
func (s *GormStore) ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []ConversationModel
	if err := s.db.Where("user_id = ?", userID).
		Order("last_message_at DESC NULLS LAST").
		Order("updated_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Conversation, 0, len(models))
	for _, model := range models {
		items = append(items, conversationFromModel(model))
	}
	return items, nil
}

// TouchConversation refreshes the last-message timestamp.
func (s *GormStore) TouchConversation(id string, lastMessageAt time.Time) error {
	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if !lastMessageAt.IsZero() {
		updates["last_message_at"] = lastMessageAt.UTC()
	}
	return s.db.Model(&ConversationModel{}).Where("id = ?", id).Updates(updates).Error
}

// SetConversationTitleIfEmpty writes the title only when the conversation is
// still untitled. The conditional UPDATE makes title assignment write-once
// even under concurrent title jobs.
func (s *GormStore) SetConversationTitleIfEmpty(id, title string) (bool, error) {
	res := s.db.Model(&ConversationModel{}).
		Where("id = ? AND (title IS NULL OR title = '')", id).
		Updates(map[string]any{
			"title":      title,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendMessage records one conversation turn.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.Create(&model).Error
}

// ListConversationMessages returns messages in chronological order.
func (s *GormStore) ListConversationMessages(conversationID string, limit int) ([]domain.Message, error) {
	query := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []MessageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, messageFromModel(model))
	}
	return msgs, nil
}

// ListRecentMessages returns the newest limit messages, still in
// chronological order.
func (s *GormStore) ListRecentMessages(conversationID string, limit int) ([]domain.Message, error) {
	query := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []MessageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, len(models))
	for i, model := range models {
		msgs[len(models)-1-i] = messageFromModel(model)
	}
	return msgs, nil
}

// GetSkinProfile returns the user's skin profile when present.
func (s *GormStore) GetSkinProfile(userID string) (domain.SkinProfile, bool, error) {
	var model SkinProfileModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.SkinProfile{}, false, nil
		}
		return domain.SkinProfile{}, false, err
	}
	return skinProfileFromModel(model), true, nil
}

// ListProductReactions returns the user's most recent product reactions.
func (s *GormStore) ListProductReactions(userID string, limit int) ([]domain.ProductReaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []ProductReactionModel
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.ProductReaction, 0, len(models))
	for _, model := range models {
		items = append(items, productReactionFromModel(model))
	}
	return items, nil
}

// ListRoutineProducts returns the user's active routine in step order.
func (s *GormStore) ListRoutineProducts(userID string) ([]domain.RoutineProduct, error) {
	var models []RoutineProductModel
	if err := s.db.Where("user_id = ?", userID).
		Order("step ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.RoutineProduct, 0, len(models))
	for _, model := range models {
		items = append(items, routineProductFromModel(model))
	}
	return items, nil
}

// ListIngredientEffectiveness returns aggregates for a skin type, best first.
func (s *GormStore) ListIngredientEffectiveness(skinType string, limit int) ([]domain.IngredientEffectiveness, error) {
	if limit <= 0 {
		limit = 10
	}
	var models []IngredientEffectivenessModel
	if err := s.db.Where("skin_type = ?", skinType).
		Order("success_rate DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.IngredientEffectiveness, 0, len(models))
	for _, model := range models {
		items = append(items, domain.IngredientEffectiveness{
			Ingredient:  model.Ingredient,
			SkinType:    model.SkinType,
			Concern:     model.Concern,
			SuccessRate: model.SuccessRate,
			SampleSize:  model.SampleSize,
		})
	}
	return items, nil
}

// ListSeasonalPatterns returns patterns recorded for a climate.
func (s *GormStore) ListSeasonalPatterns(climate string, limit int) ([]domain.SeasonalPattern, error) {
	if limit <= 0 {
		limit = 5
	}
	var models []SeasonalPatternModel
	if err := s.db.Where("climate = ?", climate).
		Order("updated_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.SeasonalPattern, 0, len(models))
	for _, model := range models {
		items = append(items, domain.SeasonalPattern{
			Climate:     model.Climate,
			Season:      model.Season,
			Observation: model.Observation,
		})
	}
	return items, nil
}

// ListTrendSignals returns the freshest global trend signals.
func (s *GormStore) ListTrendSignals(limit int) ([]domain.TrendSignal, error) {
	if limit <= 0 {
		limit = 10
	}
	var models []TrendSignalModel
	if err := s.db.Order("updated_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.TrendSignal, 0, len(models))
	for _, model := range models {
		items = append(items, domain.TrendSignal{
			Topic:    model.Topic,
			Status:   domain.TrendStatus(model.Status),
			Mentions: model.Mentions,
		})
	}
	return items, nil
}

// CreateSpecialistInsight stores one extracted insight.
func (s *GormStore) CreateSpecialistInsight(insight domain.SpecialistInsight) error {
	payload, err := json.Marshal(insight.Payload)
	if err != nil {
		return fmt.Errorf("marshal insight payload: %w", err)
	}
	model := SpecialistInsightModel{
		ID:             insight.ID,
		ConversationID: insight.ConversationID,
		Specialist:     insight.Specialist,
		Payload:        payload,
		CreatedAt:      insight.CreatedAt,
	}
	return s.db.Create(&model).Error
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:               c.ID,
		UserID:           c.UserID,
		Title:            c.Title,
		PinnedSpecialist: c.PinnedSpecialist,
		LastMessageAt:    c.LastMessageAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:               m.ID,
		UserID:           m.UserID,
		Title:            m.Title,
		PinnedSpecialist: m.PinnedSpecialist,
		LastMessageAt:    m.LastMessageAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	var imageRefs datatypes.JSON
	if len(msg.ImageRefs) > 0 {
		imageRefs, _ = json.Marshal(msg.ImageRefs)
	}
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		ImageRefs:      imageRefs,
		Specialist:     msg.Specialist,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	var imageRefs []string
	if len(m.ImageRefs) > 0 {
		_ = json.Unmarshal(m.ImageRefs, &imageRefs)
	}
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		Role:           domain.MessageRole(m.Role),
		Content:        m.Content,
		ImageRefs:      imageRefs,
		Specialist:     m.Specialist,
		CreatedAt:      m.CreatedAt,
	}
}

func skinProfileFromModel(m SkinProfileModel) domain.SkinProfile {
	var concerns, allergies []string
	if len(m.Concerns) > 0 {
		_ = json.Unmarshal(m.Concerns, &concerns)
	}
	if len(m.Allergies) > 0 {
		_ = json.Unmarshal(m.Allergies, &allergies)
	}
	return domain.SkinProfile{
		UserID:          m.UserID,
		SkinType:        m.SkinType,
		Concerns:        concerns,
		Allergies:       allergies,
		Climate:         m.Climate,
		AgeRange:        m.AgeRange,
		BudgetTier:      m.BudgetTier,
		ExperienceLevel: m.ExperienceLevel,
		OnboardingDone:  m.OnboardingDone,
		UpdatedAt:       m.UpdatedAt,
	}
}

func productReactionFromModel(m ProductReactionModel) domain.ProductReaction {
	return domain.ProductReaction{
		ID:          m.ID,
		UserID:      m.UserID,
		ProductName: m.ProductName,
		Brand:       m.Brand,
		Reaction:    domain.ReactionKind(m.Reaction),
		Note:        m.Note,
		CreatedAt:   m.CreatedAt,
	}
}

func routineProductFromModel(m RoutineProductModel) domain.RoutineProduct {
	return domain.RoutineProduct{
		ID:          m.ID,
		UserID:      m.UserID,
		Step:        m.Step,
		ProductName: m.ProductName,
		Brand:       m.Brand,
		TimeOfDay:   m.TimeOfDay,
		CreatedAt:   m.CreatedAt,
	}
}

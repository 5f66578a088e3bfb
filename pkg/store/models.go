package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type ConversationModel struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"not null;index"`
	Title            string
	PinnedSpecialist string
	LastMessageAt    *time.Time `gorm:"index"`
	CreatedAt        time.Time  `gorm:"not null"`
	UpdatedAt        time.Time  `gorm:"not null"`
}

type MessageModel struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"not null;index"`
	UserID         string `gorm:"not null;index"`
	Role           string `gorm:"not null"`
	Content        string `gorm:"type:text;not null"`
	ImageRefs      datatypes.JSON
	Specialist     string
	CreatedAt      time.Time `gorm:"not null;index"`
}

type SkinProfileModel struct {
	UserID          string `gorm:"primaryKey"`
	SkinType        string
	Concerns        datatypes.JSON
	Allergies       datatypes.JSON
	Climate         string
	AgeRange        string
	BudgetTier      string
	ExperienceLevel string
	OnboardingDone  bool
	UpdatedAt       time.Time
}

type ProductReactionModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	ProductName string `gorm:"not null"`
	Brand       string
	Reaction    string `gorm:"not null"`
	Note        string
	CreatedAt   time.Time `gorm:"not null;index"`
}

type RoutineProductModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	Step        int    `gorm:"not null"`
	ProductName string `gorm:"not null"`
	Brand       string
	TimeOfDay   string
	CreatedAt   time.Time `gorm:"not null"`
}

type IngredientEffectivenessModel struct {
	ID          uint   `gorm:"primaryKey"`
	Ingredient  string `gorm:"not null;index:idx_ingredient_skin"`
	SkinType    string `gorm:"not null;index:idx_ingredient_skin"`
	Concern     string
	SuccessRate float64
	SampleSize  int
	UpdatedAt   time.Time
}

type SeasonalPatternModel struct {
	ID          uint   `gorm:"primaryKey"`
	Climate     string `gorm:"not null;index"`
	Season      string `gorm:"not null"`
	Observation string `gorm:"type:text"`
	UpdatedAt   time.Time
}

type TrendSignalModel struct {
	ID        uint   `gorm:"primaryKey"`
	Topic     string `gorm:"not null;uniqueIndex"`
	Status    string `gorm:"not null"`
	Mentions  int
	UpdatedAt time.Time `gorm:"index"`
}

type SpecialistInsightModel struct {
	ID             string         `gorm:"primaryKey"`
	ConversationID string         `gorm:"not null;index"`
	Specialist     string         `gorm:"not null;index"`
	Payload        datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt      time.Time      `gorm:"not null"`
}

package memory

import (
	"strings"
	"time"

	"github.com/strainwise/convmem/pkg/classifier"
)

// QueryType is the classified intent of a query.
type QueryType = classifier.QueryType

// Query types, re-exported for callers that only import memory.
const (
	QueryBreeding       = classifier.QueryBreeding
	QueryRecommendation = classifier.QueryRecommendation
	QueryEducation      = classifier.QueryEducation
	QueryGeneral        = classifier.QueryGeneral
)

// Feedback is the user's judgement of a response.
type Feedback string

const (
	FeedbackHelpful    Feedback = "helpful"
	FeedbackNotHelpful Feedback = "not_helpful"
)

// Valid reports whether f is a recognised feedback value.
func (f Feedback) Valid() bool {
	return f == FeedbackHelpful || f == FeedbackNotHelpful
}

// ConversationEntry is one recorded exchange. Query, Response and IsEncrypted
// are fixed once written; only UserFeedback may change afterwards.
type ConversationEntry struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"user_id"`
	SessionID           string            `json:"session_id"`
	Timestamp           time.Time         `json:"timestamp"`
	Query               string            `json:"query"`
	Response            string            `json:"response"`
	QueryType           QueryType         `json:"query_type"`
	MentionedEntities   []string          `json:"mentioned_entities"`
	RequestedAttributes []string          `json:"requested_attributes"`
	UserFeedback        Feedback          `json:"user_feedback,omitempty"`
	IsEncrypted         bool              `json:"is_encrypted"`
	Metadata            map[string]string `json:"metadata,omitempty"`

	// DecryptFailed marks a record whose ciphertext could not be opened.
	// Query and Response then hold the raw stored values.
	DecryptFailed bool `json:"decrypt_failed,omitempty"`
}

func (e *ConversationEntry) clone() *ConversationEntry {
	c := *e
	c.MentionedEntities = append([]string(nil), e.MentionedEntities...)
	c.RequestedAttributes = append([]string(nil), e.RequestedAttributes...)
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// ExperienceLevel is the inferred user expertise.
type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceExpert       ExperienceLevel = "expert"
)

// next returns the level one step up, saturating at expert.
func (l ExperienceLevel) next() ExperienceLevel {
	switch l {
	case ExperienceBeginner:
		return ExperienceIntermediate
	default:
		return ExperienceExpert
	}
}

// ConversationStyle is the inferred preferred response shape.
type ConversationStyle string

const (
	StyleBrief     ConversationStyle = "brief"
	StyleDetailed  ConversationStyle = "detailed"
	StyleTechnical ConversationStyle = "technical"
)

// UserMemoryProfile is the per-user preference model.
type UserMemoryProfile struct {
	UserID              string            `json:"user_id"`
	PreferredEntities   []string          `json:"preferred_entities"`
	AvoidedEntities     []string          `json:"avoided_entities"`
	PreferredAttributes []string          `json:"preferred_attributes"`
	AvoidedAttributes   []string          `json:"avoided_attributes"`
	TypicalUseCases     []string          `json:"typical_use_cases"`
	ExperienceLevel     ExperienceLevel   `json:"experience_level"`
	ConversationStyle   ConversationStyle `json:"conversation_style"`
	LastUpdated         time.Time         `json:"last_updated"`
}

// DefaultProfile returns the profile a user starts with.
func DefaultProfile(userID string) *UserMemoryProfile {
	return &UserMemoryProfile{
		UserID:              userID,
		PreferredEntities:   []string{},
		AvoidedEntities:     []string{},
		PreferredAttributes: []string{},
		AvoidedAttributes:   []string{},
		TypicalUseCases:     []string{},
		ExperienceLevel:     ExperienceBeginner,
		ConversationStyle:   StyleDetailed,
	}
}

// MemorySettings controls every memory behaviour for one user.
type MemorySettings struct {
	Enabled              bool `json:"enabled"`
	RetentionDays        int  `json:"retention_days"`
	EncryptSensitiveData bool `json:"encrypt_sensitive_data"`
	AllowAnalytics       bool `json:"allow_analytics"`
	AutoSessionSave      bool `json:"auto_session_save"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() MemorySettings {
	return MemorySettings{
		Enabled:              true,
		RetentionDays:        90,
		EncryptSensitiveData: true,
		AllowAnalytics:       true,
		AutoSessionSave:      true,
	}
}

// SettingsPatch is a partial settings update. Nil fields keep their value.
type SettingsPatch struct {
	Enabled              *bool `json:"enabled,omitempty"`
	RetentionDays        *int  `json:"retention_days,omitempty" validate:"omitempty,gte=0,lte=3650"`
	EncryptSensitiveData *bool `json:"encrypt_sensitive_data,omitempty"`
	AllowAnalytics       *bool `json:"allow_analytics,omitempty"`
	AutoSessionSave      *bool `json:"auto_session_save,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.Enabled == nil && p.RetentionDays == nil && p.EncryptSensitiveData == nil &&
		p.AllowAnalytics == nil && p.AutoSessionSave == nil
}

// Apply merges the patch over s.
func (p SettingsPatch) Apply(s MemorySettings) MemorySettings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.RetentionDays != nil {
		s.RetentionDays = *p.RetentionDays
	}
	if p.EncryptSensitiveData != nil {
		s.EncryptSensitiveData = *p.EncryptSensitiveData
	}
	if p.AllowAnalytics != nil {
		s.AllowAnalytics = *p.AllowAnalytics
	}
	if p.AutoSessionSave != nil {
		s.AutoSessionSave = *p.AutoSessionSave
	}
	return s
}

// Context is the reconstructed personalization input for text generation.
type Context struct {
	Summary          string   `json:"summary"`
	SuggestedPrompts []string `json:"suggested_prompts"`
}

// emptyContext is returned when memory is disabled or there is no history.
func emptyContext() *Context {
	return &Context{Summary: "", SuggestedPrompts: []string{}}
}

// Empty reports whether there is nothing to personalize with.
func (c *Context) Empty() bool {
	return c.Summary == "" && len(c.SuggestedPrompts) == 0
}

// Prepend returns prompt with the summary placed in front of it, separated by
// a blank line. An empty summary leaves prompt unchanged.
func (c *Context) Prepend(prompt string) string {
	if c == nil || strings.TrimSpace(c.Summary) == "" {
		return prompt
	}
	return c.Summary + "\n\n" + prompt
}

// Export is the complete plaintext data set held for a user.
type Export struct {
	UserID        string               `json:"user_id"`
	ExportedAt    time.Time            `json:"exported_at"`
	Profile       *UserMemoryProfile   `json:"profile"`
	Settings      MemorySettings       `json:"settings"`
	Conversations []*ConversationEntry `json:"conversations"`
}

// RankedItem is a name with an occurrence count.
type RankedItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary is the analytics rollup over a user's history.
type Summary struct {
	TotalConversations    int               `json:"total_conversations"`
	TotalSessions         int               `json:"total_sessions"`
	AverageSessionLength  float64           `json:"average_session_length"`
	TopEntities           []RankedItem      `json:"top_entities"`
	TopAttributes         []RankedItem      `json:"top_attributes"`
	QueryTypeDistribution map[QueryType]int `json:"query_type_distribution"`
	// WeeklyActivity is indexed by time.Weekday (Sunday = 0) in UTC.
	WeeklyActivity [7]int `json:"weekly_activity"`
}

func emptySummary() *Summary {
	return &Summary{
		TopEntities:           []RankedItem{},
		TopAttributes:         []RankedItem{},
		QueryTypeDistribution: map[QueryType]int{},
	}
}

package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := New(nil)

	tests := []struct {
		query string
		want  QueryType
	}{
		{"How do I cross Blue Dream with OG Kush?", QueryBreeding},
		{"Best sativa for focus?", QueryRecommendation},
		{"Can you recommend something for sleep", QueryRecommendation},
		{"What is the difference between indica and sativa?", QueryEducation},
		{"Explain terpenes to me", QueryEducation},
		{"Which strain is best for breeding purple colors?", QueryBreeding},
		{"hello there", QueryGeneral},
		{"", QueryGeneral},
		{"I was refocused today", QueryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.query))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(nil)
	q := "How do I cross Blue Dream with OG Kush?"
	first := c.Classify(q)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(q))
	}
}

func TestExtractEntities_VocabularyOrder(t *testing.T) {
	c := New(nil)

	assert.Equal(t, []string{"Blue Dream", "OG Kush"},
		c.ExtractEntities("Blue Dream and OG Kush make a balanced cross."))
	assert.Equal(t, []string{"Blue Dream", "OG Kush"},
		c.ExtractEntities("Start with og kush, then pollinate it with BLUE DREAM."))
	assert.Equal(t, []string{"Jack Herer"}, c.ExtractEntities("Try Jack Herer."))
}

func TestExtractEntities_NoMatch(t *testing.T) {
	c := New(nil)
	assert.Empty(t, c.ExtractEntities("nothing relevant here"))
	assert.Empty(t, c.ExtractEntities(""))
}

func TestExtractAttributes(t *testing.T) {
	c := New(nil)

	assert.Equal(t, []string{"focus", "sativa"}, c.ExtractAttributes("Best sativa for focus?"))
	assert.Equal(t, []string{"sleep", "citrus", "indica"},
		c.ExtractAttributes("An indica with citrus notes that helps me sleep"))
	assert.Empty(t, c.ExtractAttributes("refocused unhappy"))

	assert.Equal(t, []string{"pain relief"}, c.ExtractAttributes("Something for pain relief?"))
	assert.Equal(t, []string{"pain relief"}, c.ExtractAttributes("Pain relief for back pain"))
	assert.Equal(t, []string{"pain"}, c.ExtractAttributes("What helps with pain?"))
}

func TestExtractAvoided(t *testing.T) {
	c := New(nil)

	entities, attrs := c.ExtractAvoided("I love Blue Dream. I don't like Sour Diesel or anything spicy!")
	assert.Equal(t, []string{"Sour Diesel"}, entities)
	assert.Equal(t, []string{"spicy"}, attrs)

	entities, attrs = c.ExtractAvoided("Something for sleep please")
	assert.Nil(t, entities)
	assert.Nil(t, attrs)
}

func TestTermDetection(t *testing.T) {
	c := New(nil)

	assert.True(t, c.HasTechnicalTerm("Which terpene profile dominates?"))
	assert.True(t, c.HasTechnicalTerm("F1 seeds from a backcross"))
	assert.False(t, c.HasTechnicalTerm("what should I smoke"))

	assert.True(t, c.HasNoviceTerm("I'm new to this"))
	assert.True(t, c.HasNoviceTerm("first time buyer"))
	assert.False(t, c.HasNoviceTerm("renew to me"))
}

func TestUseCases(t *testing.T) {
	c := New(nil)
	assert.Equal(t, []string{"daytime productivity", "stress relief"},
		c.UseCases([]string{"focus", "energy", "anxiety", "citrus"}))
	assert.Empty(t, c.UseCases(nil))
}

func TestQueryType_Valid(t *testing.T) {
	assert.True(t, QueryBreeding.Valid())
	assert.True(t, QueryGeneral.Valid())
	assert.False(t, QueryType("other").Valid())
}

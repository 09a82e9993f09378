package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgo(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{time.Minute, "1 minute ago"},
		{45 * time.Minute, "45 minutes ago"},
		{time.Hour, "1 hour ago"},
		{23*time.Hour + 59*time.Minute, "23 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{10 * 24 * time.Hour, "10 days ago"},
	}
	for _, tt := range tests {
		if got := ago(tt.d); got != tt.want {
			t.Errorf("ago(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestReconstructor_BreedingContinuation(t *testing.T) {
	f := newHubFixture(t, nil, nil)
	ctx := context.Background()

	f.hub.RecordConversation(ctx, "u1", "Which phenotype of Gelato has the most limonene?", "Gelato #33 is a good pick.", nil)
	f.clock.Advance(time.Minute)
	f.hub.RecordConversation(ctx, "u1", "How do I cross Blue Dream with OG Kush?", "Blue Dream and OG Kush can be crossed.", nil)
	f.clock.Advance(2 * time.Minute)

	c, err := f.hub.BuildContext(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t,
		"Preferred strains: Gelato, Blue Dream, OG Kush. "+
			"Experience level: intermediate. Conversation style: technical. "+
			"Last interaction: 2 minutes ago. Recent breeding questions: 1.",
		c.Summary)
	assert.Equal(t, []string{
		"What strains are similar to Gelato?",
		"What traits would a cross with Blue Dream produce?",
		trendingPrompts[0],
		trendingPrompts[1],
		trendingPrompts[2],
	}, c.SuggestedPrompts)
}

func TestReconstructor_RecentMentionsAndAvoids(t *testing.T) {
	p := DefaultProfile("u1")
	p.PreferredEntities = []string{"A", "B", "C", "D", "E", "F"}
	p.AvoidedEntities = []string{"Sour Diesel"}
	p.AvoidedAttributes = []string{"citrus"}

	entries := []*ConversationEntry{
		{QueryType: QueryGeneral, MentionedEntities: []string{"F", "A"}},
		{QueryType: QueryBreeding, MentionedEntities: []string{"G", "F"}},
	}
	r := &Reconstructor{now: func() time.Time { return time.Time{} }}
	summary := r.summary(p, entries)

	assert.Contains(t, summary, "Preferred strains: A, B, C, D, E.")
	assert.Contains(t, summary, "Avoids: Sour Diesel, citrus.")
	assert.Contains(t, summary, "Recently discussed: F, G.")
	assert.Contains(t, summary, "Recent breeding questions: 1.")
}

func TestSuggestPrompts_BoundedAndDeduplicated(t *testing.T) {
	p := DefaultProfile("u1")
	p.ExperienceLevel = ExperienceExpert
	entries := []*ConversationEntry{{QueryType: QueryBreeding}}

	got := suggestPrompts(p, entries)
	assert.Equal(t, []string{
		"Can you continue with my breeding project?",
		trendingPrompts[0],
		trendingPrompts[1],
		trendingPrompts[2],
		trendingPrompts[3],
	}, got)

	for i := 0; i < 3; i++ {
		assert.Equal(t, got, suggestPrompts(p, entries), "prompts are deterministic")
	}
}

func TestContext_Prepend(t *testing.T) {
	c := &Context{Summary: "Preferred strains: Gelato."}
	assert.Equal(t, "Preferred strains: Gelato.\n\nWhat now?", c.Prepend("What now?"))
	assert.Equal(t, "What now?", emptyContext().Prepend("What now?"))

	var nilContext *Context
	assert.Equal(t, "What now?", nilContext.Prepend("What now?"))
}

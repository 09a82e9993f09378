package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Reconstruction bounds.
const (
	DefaultRecentWindow = 20
	maxSummaryItems     = 5
	maxSuggestedPrompts = 5
)

var beginnerPrompts = []string{
	"What's the difference between indica and sativa?",
	"How do terpenes shape a strain's effects?",
}

var trendingPrompts = []string{
	"What are the most popular strains right now?",
	"Which strains are trending for relaxation?",
	"What's new in strain breeding?",
	"Which strains work well for daytime use?",
	"Which high-CBD strains are worth trying?",
}

// Reconstructor builds the personalization context from a user's profile
// and recent history. Output depends only on stored state and the clock.
type Reconstructor struct {
	conversations *ConversationStore
	profiles      *ProfileStore
	settings      *SettingsStore
	window        int
	logger        hubLogger
	now           func() time.Time
}

// NewReconstructor creates a reconstructor reading the window most recent
// entries. A non-positive window uses DefaultRecentWindow.
func NewReconstructor(conversations *ConversationStore, profiles *ProfileStore, settings *SettingsStore, window int, logger hubLogger) *Reconstructor {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	if logger == nil {
		logger = &nopHubLogger{}
	}
	return &Reconstructor{
		conversations: conversations,
		profiles:      profiles,
		settings:      settings,
		window:        window,
		logger:        logger,
		now:           time.Now,
	}
}

// Build returns the context for userID. Disabled memory or an empty history
// yields an empty context, not an error.
func (r *Reconstructor) Build(ctx context.Context, userID string) (*Context, error) {
	if !validUserID(userID) {
		return emptyContext(), ErrInvalidUserID
	}
	settings, err := r.settings.Get(ctx, userID)
	if err != nil {
		return emptyContext(), err
	}
	if !settings.Enabled {
		return emptyContext(), nil
	}

	entries, err := r.conversations.ReadRecent(ctx, userID, r.window)
	if err != nil {
		return emptyContext(), err
	}
	if len(entries) == 0 {
		return emptyContext(), nil
	}

	profile, err := r.profiles.Get(ctx, userID)
	if err != nil {
		r.logger.Warn("profile unavailable, using defaults", "user_id", userID, "error", err)
		profile = DefaultProfile(userID)
	}

	return &Context{
		Summary:          r.summary(profile, entries),
		SuggestedPrompts: suggestPrompts(profile, entries),
	}, nil
}

func (r *Reconstructor) summary(p *UserMemoryProfile, entries []*ConversationEntry) string {
	var parts []string
	add := func(label string, items []string) {
		if len(items) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s.", label, strings.Join(items, ", ")))
		}
	}

	topEntities := firstN(p.PreferredEntities, maxSummaryItems)
	add("Preferred strains", topEntities)
	add("Preferred effects", firstN(p.PreferredAttributes, maxSummaryItems))
	add("Avoids", firstN(union(append([]string(nil), p.AvoidedEntities...), p.AvoidedAttributes), maxSummaryItems))
	add("Recently discussed", recentMentions(entries, topEntities))

	parts = append(parts,
		fmt.Sprintf("Experience level: %s.", p.ExperienceLevel),
		fmt.Sprintf("Conversation style: %s.", p.ConversationStyle),
		fmt.Sprintf("Last interaction: %s.", ago(r.now().Sub(entries[0].Timestamp))),
	)

	if n := countBreeding(entries); n > 0 {
		parts = append(parts, fmt.Sprintf("Recent breeding questions: %d.", n))
	}
	return strings.Join(parts, " ")
}

// recentMentions returns entities from entries (newest first) that are not
// already in exclude.
func recentMentions(entries []*ConversationEntry, exclude []string) []string {
	var out []string
	for _, e := range entries {
		for _, name := range e.MentionedEntities {
			if contains(exclude, name) || contains(out, name) {
				continue
			}
			out = append(out, name)
			if len(out) == maxSummaryItems {
				return out
			}
		}
	}
	return out
}

func suggestPrompts(p *UserMemoryProfile, entries []*ConversationEntry) []string {
	prompts := make([]string, 0, maxSuggestedPrompts)
	add := func(prompt string) {
		if len(prompts) < maxSuggestedPrompts && !contains(prompts, prompt) {
			prompts = append(prompts, prompt)
		}
	}

	if len(p.PreferredEntities) > 0 {
		add(fmt.Sprintf("What strains are similar to %s?", p.PreferredEntities[0]))
	}
	if len(p.PreferredAttributes) > 0 {
		add(fmt.Sprintf("Which strains are best for %s?", p.PreferredAttributes[0]))
	}
	if latest := entries[0]; latest.QueryType == QueryBreeding {
		if len(latest.MentionedEntities) > 0 {
			add(fmt.Sprintf("What traits would a cross with %s produce?", latest.MentionedEntities[0]))
		} else {
			add("Can you continue with my breeding project?")
		}
	}
	if p.ExperienceLevel == ExperienceBeginner {
		for _, prompt := range beginnerPrompts {
			add(prompt)
		}
	}
	for _, prompt := range trendingPrompts {
		add(prompt)
	}
	return prompts
}

func countBreeding(entries []*ConversationEntry) int {
	n := 0
	for _, e := range entries {
		if e.QueryType == QueryBreeding {
			n++
		}
	}
	return n
}

// ago renders d as a coarse relative time.
func ago(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	default:
		return plural(int(d/(24*time.Hour)), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func firstN(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

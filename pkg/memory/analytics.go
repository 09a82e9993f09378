package memory

import (
	"context"
	"sort"
)

const maxRankedItems = 5

// Aggregator computes read-only rollups over a user's history.
type Aggregator struct {
	conversations *ConversationStore
	settings      *SettingsStore
}

// NewAggregator creates an aggregator.
func NewAggregator(conversations *ConversationStore, settings *SettingsStore) *Aggregator {
	return &Aggregator{conversations: conversations, settings: settings}
}

// Summarize folds the full history of userID. When analytics are not
// allowed the summary is empty and no history is read.
func (a *Aggregator) Summarize(ctx context.Context, userID string) (*Summary, error) {
	if !validUserID(userID) {
		return nil, ErrInvalidUserID
	}
	settings, err := a.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !settings.AllowAnalytics {
		return emptySummary(), nil
	}

	entries, err := a.conversations.ReadAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	return summarize(entries), nil
}

func summarize(entries []*ConversationEntry) *Summary {
	s := emptySummary()
	if len(entries) == 0 {
		return s
	}

	sessions := make(map[string]struct{})
	entities := make(map[string]int)
	attributes := make(map[string]int)
	for _, e := range entries {
		sessions[e.SessionID] = struct{}{}
		for _, name := range e.MentionedEntities {
			entities[name]++
		}
		for _, attr := range e.RequestedAttributes {
			attributes[attr]++
		}
		s.QueryTypeDistribution[e.QueryType]++
		s.WeeklyActivity[e.Timestamp.UTC().Weekday()]++
	}

	s.TotalConversations = len(entries)
	s.TotalSessions = len(sessions)
	s.AverageSessionLength = float64(len(entries)) / float64(len(sessions))
	s.TopEntities = rank(entities, maxRankedItems)
	s.TopAttributes = rank(attributes, maxRankedItems)
	return s
}

// rank orders counts descending, ties by name, and keeps the first n.
func rank(counts map[string]int, n int) []RankedItem {
	items := make([]RankedItem, 0, len(counts))
	for name, count := range counts {
		items = append(items, RankedItem{Name: name, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}

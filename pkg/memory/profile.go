package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/strainwise/convmem/pkg/classifier"
	"github.com/strainwise/convmem/pkg/kv"
)

// Style thresholds.
const (
	detailedQueryChars = 100
	briefQueryWords    = 5
)

// ProfileStore owns every UserMemoryProfile.
type ProfileStore struct {
	cache      kv.Cache
	classifier *classifier.Classifier
	sealer     Cipher
	logger     hubLogger
	now        func() time.Time
}

// NewProfileStore creates a profile store. A non-nil sealer encrypts the
// stored profile blob.
func NewProfileStore(cache kv.Cache, cls *classifier.Classifier, sealer Cipher) *ProfileStore {
	if cls == nil {
		cls = classifier.New(nil)
	}
	return &ProfileStore{
		cache:      cache,
		classifier: cls,
		sealer:     sealer,
		logger:     &nopHubLogger{},
		now:        time.Now,
	}
}

// Get returns the user's profile, or a fresh default one if none is stored.
// An unreadable stored profile also yields the default; the next Apply
// overwrites it.
func (s *ProfileStore) Get(ctx context.Context, userID string) (*UserMemoryProfile, error) {
	data, err := s.cache.Get(ctx, kv.ProfileKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return DefaultProfile(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read profile: %w", ErrStorageUnavailable, err)
	}
	p, err := s.decode(userID, data)
	if err != nil {
		s.logger.Warn("stored profile unreadable, using default", "user_id", userID, "error", err)
		return DefaultProfile(userID), nil
	}
	return p, nil
}

// Save persists p.
func (s *ProfileStore) Save(ctx context.Context, p *UserMemoryProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Seal(data); err != nil {
			return fmt.Errorf("seal profile: %w", err)
		}
	}
	if err := s.cache.Set(ctx, kv.ProfileKey(p.UserID), data); err != nil {
		return fmt.Errorf("%w: write profile: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Apply folds one conversation into the user's profile and persists it.
// entry must carry plaintext query text.
func (s *ProfileStore) Apply(ctx context.Context, userID string, entry *ConversationEntry) (*UserMemoryProfile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.fold(p, entry)
	if err := s.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the stored profile.
func (s *ProfileStore) Delete(ctx context.Context, userID string) error {
	if err := s.cache.Delete(ctx, kv.ProfileKey(userID)); err != nil {
		return fmt.Errorf("%w: delete profile: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// fold applies the inference rules of one entry to p:
// preference sets grow by union, avoided names from negated phrases go to the
// avoided sets instead, technical vocabulary upgrades experience one level,
// novice vocabulary resets it to beginner, and style follows query shape.
func (s *ProfileStore) fold(p *UserMemoryProfile, entry *ConversationEntry) {
	avoidedEntities, avoidedAttributes := s.classifier.ExtractAvoided(entry.Query)

	p.PreferredEntities = union(p.PreferredEntities, without(entry.MentionedEntities, avoidedEntities))
	fresh := without(entry.RequestedAttributes, avoidedAttributes)
	p.PreferredAttributes = union(p.PreferredAttributes, fresh)
	p.AvoidedEntities = union(p.AvoidedEntities, avoidedEntities)
	p.AvoidedAttributes = union(p.AvoidedAttributes, avoidedAttributes)

	p.TypicalUseCases = union(p.TypicalUseCases, s.classifier.UseCases(fresh))
	if entry.QueryType == QueryBreeding {
		p.TypicalUseCases = union(p.TypicalUseCases, []string{"breeding"})
	}

	technical := s.classifier.HasTechnicalTerm(entry.Query)
	if technical && p.ExperienceLevel != ExperienceExpert {
		p.ExperienceLevel = p.ExperienceLevel.next()
	}
	if s.classifier.HasNoviceTerm(entry.Query) {
		p.ExperienceLevel = ExperienceBeginner
	}

	query := strings.TrimSpace(entry.Query)
	switch {
	case technical:
		p.ConversationStyle = StyleTechnical
	case len(query) > detailedQueryChars:
		p.ConversationStyle = StyleDetailed
	case len(strings.Fields(query)) < briefQueryWords:
		p.ConversationStyle = StyleBrief
	}

	p.LastUpdated = s.now().UTC()
}

func (s *ProfileStore) decode(userID string, data []byte) (*UserMemoryProfile, error) {
	if s.sealer != nil {
		// Profiles written before sealing was enabled are plain JSON and fail to open.
		if opened, err := s.sealer.Open(data); err == nil {
			data = opened
		}
	}

	p := DefaultProfile(userID)
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode profile for %s: %w", userID, err)
	}
	return p, nil
}

// union appends the members of add missing from set, keeping order.
func union(set, add []string) []string {
	if set == nil {
		set = []string{}
	}
	for _, v := range add {
		if !contains(set, v) {
			set = append(set, v)
		}
	}
	return set
}

func without(list, drop []string) []string {
	if len(drop) == 0 {
		return list
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if !contains(drop, v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

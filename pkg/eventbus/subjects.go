package eventbus

import (
	"fmt"
	"strings"
)

const (
	// SubjectPrefix is the canonical prefix for memory lifecycle events.
	SubjectPrefix = "convmem.v1"

	// AllSubjects matches every lifecycle event.
	AllSubjects = SubjectPrefix + ".>"
)

// Domain identifies lifecycle event domains.
type Domain string

const (
	DomainUser   Domain = "user"
	DomainSystem Domain = "system"
)

// UserSubject returns the canonical subject for a per-user event,
// e.g. convmem.v1.user.u1.session.flushed.
func UserSubject(userID, eventType string) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, DomainUser, sanitizeSegment(userID), eventType)
}

// SystemSubject returns the canonical subject for a node-level event.
func SystemSubject(nodeID, eventType string) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, DomainSystem, sanitizeSegment(nodeID), eventType)
}

// UserWildcardSubject matches every event of one user.
func UserWildcardSubject(userID string) string {
	return fmt.Sprintf("%s.%s.%s.>", SubjectPrefix, DomainUser, sanitizeSegment(userID))
}

// DomainWildcardSubject returns canonical wildcard subject for a domain.
func DomainWildcardSubject(domain Domain) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, sanitizeSegment(string(domain)))
}

// sanitizeSegment keeps one identifier in a single subject token.
func sanitizeSegment(value string) string {
	if value == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, value)
}

package model

import (
	"fmt"
	"sort"
	"strings"
)

const (
	IdentityUserPrefix    = "user:"
	IdentitySessionPrefix = "session:"
)

// ResolveIdentity normalizes an event's actor into a single identity
// key. Authenticated user id wins; otherwise the browsing session id,
// falling back to the device-scoped anonymous id.
func ResolveIdentity(event *Event) string {
	if event.UserID != "" {
		return IdentityUserPrefix + event.UserID
	}

	if event.SessionID != "" {
		return IdentitySessionPrefix + event.SessionID
	}

	if event.AnonymousID != "" {
		return IdentitySessionPrefix + event.AnonymousID
	}

	return ""
}

func UserIdentityKey(userID string) string {
	return fmt.Sprintf("%s%s", IdentityUserPrefix, userID)
}

// ParseIdentityKey splits a prefixed identity key into its user or
// session id. ok is false for keys carrying neither prefix or an
// empty id, so lookups never have to slice blindly.
func ParseIdentityKey(identityKey string) (userID, sessionID string, ok bool) {
	if strings.HasPrefix(identityKey, IdentityUserPrefix) {
		userID = identityKey[len(IdentityUserPrefix):]
		return userID, "", userID != ""
	}

	if strings.HasPrefix(identityKey, IdentitySessionPrefix) {
		sessionID = identityKey[len(IdentitySessionPrefix):]
		return "", sessionID, sessionID != ""
	}

	return "", "", false
}

// SortEventsForReplay orders events ascending by timestamp, ties
// broken by event id, so reprocessing the same range is deterministic.
func SortEventsForReplay(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].ID < events[j].ID
	})
}

// buildSessionUserMap maps a session id to the identity key of the
// user who authenticated within it. Events are never rewritten; the
// mapping only redirects the join at read time.
func buildSessionUserMap(events []Event) map[string]string {
	sessionUser := make(map[string]string)
	for i := range events {
		if events[i].UserID != "" && events[i].SessionID != "" {
			sessionUser[events[i].SessionID] = UserIdentityKey(events[i].UserID)
		}
	}
	return sessionUser
}

// GroupEventsByIdentity resolves every event to an identity key and
// groups them preserving replay order. Anonymous activity on a session
// that later authenticated is attributed to the resolved user, so one
// browsing session never splits into two identities.
func GroupEventsByIdentity(events []Event) map[string][]Event {
	SortEventsForReplay(events)
	sessionUser := buildSessionUserMap(events)

	byIdentity := make(map[string][]Event)
	for i := range events {
		identityKey := ResolveIdentity(&events[i])
		if identityKey == "" {
			continue
		}

		if events[i].UserID == "" && events[i].SessionID != "" {
			if userKey, exists := sessionUser[events[i].SessionID]; exists {
				identityKey = userKey
			}
		}

		byIdentity[identityKey] = append(byIdentity[identityKey], events[i])
	}

	return byIdentity
}

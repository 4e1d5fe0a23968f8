package model

import (
	"time"

	"github.com/jinzhu/gorm/dialects/postgres"

	U "pitchmetrics/util"
)

// Event types produced by the marketplace portals. The engine treats
// event types as opaque match keys; these constants only name the ones
// it has built-in semantics for (monetary attribution, registration
// cohorts).
const (
	EventTypeRegistration     = "registration"
	EventTypePitchView        = "pitch_view"
	EventTypeNDASigned        = "nda_signed"
	EventTypePaymentCompleted = "payment_completed"
	EventTypeDealCompleted    = "deal_completed"
	EventTypeMediaStreamed    = "media_streamed"
)

// monetaryEventTypes - Completed transactions contributing to
// lifetime value: direct payments and deal-derived revenue.
var monetaryEventTypes = map[string]bool{
	EventTypePaymentCompleted: true,
	EventTypeDealCompleted:    true,
}

// Event is one row of the append-only interaction log. Rows are never
// mutated after creation; every derived structure is recomputed from
// replays of this table.
type Event struct {
	ID        string `gorm:"primary_key:true;type:uuid;default:uuid_generate_v4()" json:"id"`
	EventType string `json:"event_type"`

	// Actor references. UserID is set for authenticated actors,
	// SessionID for the browsing session, AnonymousID as the
	// device-scoped fallback before any session exists.
	UserID      string `json:"user_id"`
	SessionID   string `json:"session_id"`
	AnonymousID string `json:"anonymous_id"`

	// Context attributes promoted to columns because the engine
	// filters and segments on them directly.
	PitchID int64   `json:"pitch_id"`
	Page    string  `json:"page"`
	Device  string  `json:"device"`
	Country string  `json:"country"`
	Amount  float64 `json:"amount"`

	// Remaining payload as JsonB. https://github.com/jinzhu/gorm/issues/1183
	Properties postgres.Jsonb `json:"properties,omitempty"`

	// unix epoch timestamp in seconds.
	Timestamp int64     `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func IsMonetaryEvent(event *Event) bool {
	return monetaryEventTypes[event.EventType]
}

// Property resolves an attribute by name, checking promoted columns
// before the json payload. The bool reports whether the attribute is
// present at all.
func (event *Event) Property(key string) (interface{}, bool) {
	switch key {
	case "event_type":
		return event.EventType, true
	case "user_id":
		return event.UserID, event.UserID != ""
	case "session_id":
		return event.SessionID, event.SessionID != ""
	case "pitch_id":
		return float64(event.PitchID), event.PitchID != 0
	case "page":
		return event.Page, event.Page != ""
	case "device":
		return event.Device, event.Device != ""
	case "country":
		return event.Country, event.Country != ""
	case "amount":
		return event.Amount, event.Amount != 0
	}

	propertiesMap, err := U.DecodePostgresJsonb(&event.Properties)
	if err != nil {
		return nil, false
	}

	value, exists := (*propertiesMap)[key]
	return value, exists
}

package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jinzhu/gorm/dialects/postgres"

	U "pitchmetrics/util"
)

const MaxFunnelStages = 10

var (
	ErrTooFewFunnelStages  = errors.New("funnel requires at least two stages")
	ErrTooManyFunnelStages = errors.New("funnel exceeds the maximum number of stages")
	ErrInvalidFunnelWindow = errors.New("funnel time window must be positive")
	ErrMissingFunnelName   = errors.New("funnel name is required")
)

// FunnelStage is one ordered step of a funnel: an event-type match
// plus optional AND-combined filters over the event's attributes.
type FunnelStage struct {
	StageID   string           `json:"stage_id"`
	Name      string           `json:"name"`
	EventType string           `json:"event_type"`
	Filters   []PropertyFilter `json:"filters,omitempty"`
}

// FunnelDefinition holds an ordered stage list and the logical time
// window one traversal attempt is allowed to take. Stage order is
// fixed after creation; edits replace the whole stage list.
type FunnelDefinition struct {
	ID          uint64 `gorm:"primary_key:true" json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Ordered list of FunnelStage as JsonB.
	Stages           postgres.Jsonb `json:"stages"`
	TimeWindowInSecs int64          `json:"time_window_in_secs"`
	Active           bool           `json:"active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// FunnelProgressRecord is one derived row per stage reached by one
// attempt. The triple (funnel_id, funnel_session_id, stage_order) is
// unique; recomputation deletes before regenerating.
type FunnelProgressRecord struct {
	ID                      string    `gorm:"primary_key:true;type:uuid;default:uuid_generate_v4()" json:"id"`
	FunnelID                uint64    `json:"funnel_id"`
	StageOrder              int       `json:"stage_order"`
	IdentityKey             string    `json:"identity_key"`
	FunnelSessionID         string    `json:"funnel_session_id"`
	SourceEventID           string    `json:"source_event_id"`
	IsCompleted             bool      `json:"is_completed"`
	SecondsSinceFunnelStart int64     `json:"seconds_since_funnel_start"`
	Timestamp               int64     `json:"timestamp"`
	CreatedAt               time.Time `json:"created_at"`
}

// FunnelStages decodes the ordered stage list from the JsonB column.
func (funnel *FunnelDefinition) FunnelStages() ([]FunnelStage, error) {
	if funnel.Stages.RawMessage == nil {
		return nil, ErrTooFewFunnelStages
	}

	var stages []FunnelStage
	if err := json.Unmarshal(funnel.Stages.RawMessage, &stages); err != nil {
		return nil, err
	}
	return stages, nil
}

func EncodeFunnelStages(stages []FunnelStage) (*postgres.Jsonb, error) {
	return U.EncodeToPostgresJsonb(stages)
}

// ValidateFunnelDefinition rejects invalid definitions synchronously
// so no partial definition is ever persisted.
func ValidateFunnelDefinition(name string, stages []FunnelStage, timeWindowInSecs int64) error {
	if name == "" {
		return ErrMissingFunnelName
	}

	if len(stages) < 2 {
		return ErrTooFewFunnelStages
	}

	if len(stages) > MaxFunnelStages {
		return ErrTooManyFunnelStages
	}

	if timeWindowInSecs <= 0 {
		return ErrInvalidFunnelWindow
	}

	for i := range stages {
		if stages[i].EventType == "" {
			return errors.New("funnel stage missing match event type")
		}
		if err := validateFilters(stages[i].Filters); err != nil {
			return err
		}
	}

	return nil
}

// MatchesStage - The event advances a stage only when its type matches
// and every stage filter passes.
func MatchesStage(event *Event, stage *FunnelStage) bool {
	if event.EventType != stage.EventType {
		return false
	}
	return MatchesFilters(event, stage.Filters)
}

// StageEventTypes returns the distinct event types the funnel's stages
// match on, used to bound the event fetch on recomputation.
func StageEventTypes(stages []FunnelStage) []string {
	seen := make(map[string]bool)
	eventTypes := make([]string, 0)
	for i := range stages {
		if !seen[stages[i].EventType] {
			seen[stages[i].EventType] = true
			eventTypes = append(eventTypes, stages[i].EventType)
		}
	}
	return eventTypes
}

package model

import (
	"encoding/json"
	"testing"

	"github.com/jinzhu/gorm/dialects/postgres"
	"github.com/stretchr/testify/assert"
)

func jsonbFromMap(t *testing.T, properties map[string]interface{}) *postgres.Jsonb {
	data, err := json.Marshal(properties)
	assert.Nil(t, err)
	return &postgres.Jsonb{RawMessage: data}
}

func TestMatchesFiltersOperators(t *testing.T) {
	event := &Event{
		EventType: EventTypePitchView,
		UserID:    "u1",
		Page:      "/pitches/42",
		Device:    "mobile",
		Properties: *jsonbFromMap(t, map[string]interface{}{
			"genre":  "drama",
			"budget": 250000,
		}),
	}

	assert.True(t, MatchesFilters(event, []PropertyFilter{
		{Property: "genre", Operator: FilterOpEquals, Value: "drama"}}))
	assert.False(t, MatchesFilters(event, []PropertyFilter{
		{Property: "genre", Operator: FilterOpEquals, Value: "comedy"}}))

	assert.True(t, MatchesFilters(event, []PropertyFilter{
		{Property: "genre", Operator: FilterOpNotEquals, Value: "comedy"}}))
	// not_equals passes when the attribute is absent.
	assert.True(t, MatchesFilters(event, []PropertyFilter{
		{Property: "missing", Operator: FilterOpNotEquals, Value: "anything"}}))

	assert.True(t, MatchesFilters(event, []PropertyFilter{
		{Property: "page", Operator: FilterOpContains, Value: "/pitches/"}}))
	assert.False(t, MatchesFilters(event, []PropertyFilter{
		{Property: "page", Operator: FilterOpContains, Value: "/users/"}}))

	assert.True(t, MatchesFilters(event, []PropertyFilter{
		{Property: "budget", Operator: FilterOpGreaterThan, Value: "100000"}}))
	assert.False(t, MatchesFilters(event, []PropertyFilter{
		{Property: "budget", Operator: FilterOpLesserThan, Value: "100000"}}))

	// Numerical operator against a non-numerical attribute fails the
	// filter instead of erroring.
	assert.False(t, MatchesFilters(event, []PropertyFilter{
		{Property: "genre", Operator: FilterOpGreaterThan, Value: "1"}}))

	// Promoted column resolution.
	assert.True(t, MatchesFilters(event, []PropertyFilter{
		{Property: "device", Operator: FilterOpEquals, Value: "mobile"}}))
}

func TestMatchesFiltersAndCombination(t *testing.T) {
	event := &Event{
		EventType:  EventTypePitchView,
		UserID:     "u1",
		Device:     "mobile",
		Properties: *jsonbFromMap(t, map[string]interface{}{"genre": "drama"}),
	}

	filters := []PropertyFilter{
		{Property: "genre", Operator: FilterOpEquals, Value: "drama"},
		{Property: "device", Operator: FilterOpEquals, Value: "mobile"},
	}
	assert.True(t, MatchesFilters(event, filters))

	filters[1].Value = "desktop"
	assert.False(t, MatchesFilters(event, filters))

	// Empty filter list always matches.
	assert.True(t, MatchesFilters(event, nil))
}

func TestValidateFilters(t *testing.T) {
	assert.Nil(t, validateFilters(nil))
	assert.Nil(t, validateFilters([]PropertyFilter{
		{Property: "genre", Operator: FilterOpEquals, Value: "drama"}}))

	assert.NotNil(t, validateFilters([]PropertyFilter{
		{Property: "", Operator: FilterOpEquals, Value: "drama"}}))
	assert.NotNil(t, validateFilters([]PropertyFilter{
		{Property: "genre", Operator: "like", Value: "drama"}}))
}

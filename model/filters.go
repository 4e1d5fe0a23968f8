package model

import (
	"fmt"
	"strings"

	U "pitchmetrics/util"
)

// Filter operators accepted on stage and cohort filters. Numerical
// operators coerce both sides to float64 and fail the filter when the
// attribute is not numerical.
const (
	FilterOpEquals      = "equals"
	FilterOpNotEquals   = "not_equals"
	FilterOpContains    = "contains"
	FilterOpGreaterThan = "greater_than"
	FilterOpLesserThan  = "lesser_than"
)

// PropertyFilter is one predicate over an event's context or payload.
// Multiple filters on the same stage or cohort are AND combined.
type PropertyFilter struct {
	Property string `json:"property"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

func isValidFilterOperator(operator string) bool {
	switch operator {
	case FilterOpEquals, FilterOpNotEquals, FilterOpContains,
		FilterOpGreaterThan, FilterOpLesserThan:
		return true
	}
	return false
}

func validateFilters(filters []PropertyFilter) error {
	for i := range filters {
		if filters[i].Property == "" {
			return fmt.Errorf("filter %d missing property", i)
		}
		if !isValidFilterOperator(filters[i].Operator) {
			return fmt.Errorf("filter %d has unknown operator %s", i, filters[i].Operator)
		}
	}
	return nil
}

func (filter *PropertyFilter) matches(event *Event) bool {
	value, exists := event.Property(filter.Property)

	switch filter.Operator {
	case FilterOpEquals:
		return exists && U.GetPropertyValueAsString(value) == filter.Value
	case FilterOpNotEquals:
		return !exists || U.GetPropertyValueAsString(value) != filter.Value
	case FilterOpContains:
		return exists && strings.Contains(U.GetPropertyValueAsString(value), filter.Value)
	case FilterOpGreaterThan, FilterOpLesserThan:
		if !exists {
			return false
		}
		eventValue, err := U.GetPropertyValueAsFloat64(value)
		if err != nil {
			return false
		}
		filterValue, err := U.GetPropertyValueAsFloat64(filter.Value)
		if err != nil {
			return false
		}
		if filter.Operator == FilterOpGreaterThan {
			return eventValue > filterValue
		}
		return eventValue < filterValue
	}

	return false
}

// MatchesFilters - AND combination of all filters over the event.
func MatchesFilters(event *Event, filters []PropertyFilter) bool {
	for i := range filters {
		if !filters[i].matches(event) {
			return false
		}
	}
	return true
}

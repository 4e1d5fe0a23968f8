package util

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jinzhu/gorm/dialects/postgres"
	"github.com/pkg/errors"
)

func DecodePostgresJsonb(sourceJsonb *postgres.Jsonb) (*map[string]interface{}, error) {
	sourceMap := make(map[string]interface{})
	if sourceJsonb == nil || sourceJsonb.RawMessage == nil {
		return &sourceMap, nil
	}

	if err := json.Unmarshal(sourceJsonb.RawMessage, &sourceMap); err != nil {
		return nil, errors.Wrap(err, "failed to decode jsonb column")
	}
	return &sourceMap, nil
}

func EncodeToPostgresJsonb(sourceMap interface{}) (*postgres.Jsonb, error) {
	sourceJsonBytes, err := json.Marshal(sourceMap)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode value as jsonb")
	}
	return &postgres.Jsonb{RawMessage: sourceJsonBytes}, nil
}

// GetPropertyValueAsString - Converts a decoded json property value
// to its string form for filter comparison.
func GetPropertyValueAsString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetPropertyValueAsFloat64 - Converts a decoded json property value
// to float64 for numerical filter comparison.
func GetPropertyValueAsFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported numerical property value type %T", value)
	}
}

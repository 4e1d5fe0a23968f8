package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKey(t *testing.T) {
	key, err := NewKey("funnel:report", "1:100:200")
	assert.Nil(t, err)

	cKey, err := key.Key()
	assert.Nil(t, err)
	assert.Equal(t, "funnel:report:1:100:200", cKey)

	// Suffix is optional; the prefix alone is a valid key.
	key, err = NewKey("cohort:report:7", "")
	assert.Nil(t, err)
	cKey, err = key.Key()
	assert.Nil(t, err)
	assert.Equal(t, "cohort:report:7", cKey)

	_, err = NewKey("", "orphan")
	assert.Equal(t, ErrorInvalidPrefix, err)
}

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "25s", FormatDuration(25*time.Second))
	assert.Equal(t, "5m 0s", FormatDuration(5*time.Minute))
	assert.Equal(t, "1h 30m 0s", FormatDuration(90*time.Minute))
}

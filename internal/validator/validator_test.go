package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsWellFormedPrice(t *testing.T) {
	valid := []string{"505,000", `"505,000"`, "0", "12.5", " 1,000 "}
	for _, s := range valid {
		assert.True(t, IsWellFormedPrice(s), s)
	}
	invalid := []string{"", "-1", "abc", "1,0a0", `""`}
	for _, s := range invalid {
		assert.False(t, IsWellFormedPrice(s), s)
	}
}

func TestIsAtOrBeforeCutoff(t *testing.T) {
	cutoff := time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC)

	assert.False(t, IsAtOrBeforeCutoff("2025/08/02", cutoff))
	assert.False(t, IsAtOrBeforeCutoff("2025/07/31", cutoff))
	assert.True(t, IsAtOrBeforeCutoff("2025/07/30", cutoff))
	assert.True(t, IsAtOrBeforeCutoff("2025/07/29", cutoff))
	assert.True(t, IsAtOrBeforeCutoff("2025/7/1", cutoff))
}

func TestIsAtOrBeforeCutoff_FailOpen(t *testing.T) {
	cutoff := time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC)
	assert.False(t, IsAtOrBeforeCutoff("30/07/2025", cutoff))
	assert.False(t, IsAtOrBeforeCutoff("", cutoff))
	assert.False(t, IsAtOrBeforeCutoff("2025/07/29", time.Time{}))
}

func TestIsAtOrBeforeCutoff_IgnoresTimeOfDay(t *testing.T) {
	cutoff := time.Date(2025, 7, 30, 18, 45, 0, 0, time.UTC)
	assert.True(t, IsAtOrBeforeCutoff("2025/07/30", cutoff))
}

func TestIsFuture(t *testing.T) {
	now := time.Date(2025, 8, 2, 23, 0, 0, 0, time.UTC)
	assert.False(t, IsFuture("2025/08/02", now))
	assert.True(t, IsFuture("2025/08/03", now))
	assert.False(t, IsFuture("garbage", now))
}

package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatETA(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0h:00m:00s"},
		{-5 * time.Second, "0h:00m:00s"},
		{36 * time.Second, "0h:00m:36s"},
		{36*time.Second + 600*time.Millisecond, "0h:00m:37s"},
		{90 * time.Minute, "1h:30m:00s"},
		{26*time.Hour + 61*time.Second, "26h:01m:01s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatETA(tt.in))
		})
	}
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "14,302", FormatCount(14302))
	assert.Equal(t, "-1,000", FormatCount(-1000))
}

func TestFormatInodeRate(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0 ino/s"},
		{-3, "0 ino/s"},
		{2.5, "2.5 ino/s"},
		{85.33, "85 ino/s"},
		{14302.9, "14,302 ino/s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatInodeRate(tt.in))
		})
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "0.00%", FormatPercent(0))
	assert.Equal(t, "12.35%", FormatPercent(12.345678))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "3m 17s", FormatDuration(3*time.Minute+17*time.Second))
	assert.Equal(t, "1h 02m 03s", FormatDuration(time.Hour+2*time.Minute+3*time.Second))
}

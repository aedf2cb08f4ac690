package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"uploaded to queued", StatusUploaded, StatusQueued, true},
		{"uploaded to failed", StatusUploaded, StatusFailed, true},
		{"uploaded to processing", StatusUploaded, StatusProcessing, false},
		{"uploaded to completed", StatusUploaded, StatusCompleted, false},
		{"queued to processing", StatusQueued, StatusProcessing, true},
		{"queued to failed", StatusQueued, StatusFailed, true},
		{"queued to completed", StatusQueued, StatusCompleted, false},
		{"processing to completed", StatusProcessing, StatusCompleted, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"processing to queued", StatusProcessing, StatusQueued, false},
		{"completed is terminal: no outbound transitions", StatusCompleted, StatusFailed, false},
		{"failed is terminal: no outbound transitions", StatusFailed, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusUploaded.Terminal())
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusProcessing.Terminal())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusUploaded.Valid())
	assert.True(t, StatusQueued.Valid())
	assert.True(t, StatusProcessing.Valid())
	assert.True(t, StatusCompleted.Valid())
	assert.True(t, StatusFailed.Valid())
	assert.False(t, Status("BOGUS").Valid())
	assert.False(t, Status("").Valid())
}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"zero limit defaults to 50", Page{}, Page{Limit: 50, Offset: 0}},
		{"negative limit defaults to 50", Page{Limit: -5}, Page{Limit: 50, Offset: 0}},
		{"limit clamped to 500", Page{Limit: 10000}, Page{Limit: 500, Offset: 0}},
		{"negative offset clamped to zero", Page{Limit: 10, Offset: -3}, Page{Limit: 10, Offset: 0}},
		{"valid page passes through", Page{Limit: 25, Offset: 50}, Page{Limit: 25, Offset: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestPhotoDeleted(t *testing.T) {
	p := &Photo{}
	assert.False(t, p.Deleted())

	now := time.Now().UTC()
	p.DeletedAt = &now
	assert.True(t, p.Deleted())
}

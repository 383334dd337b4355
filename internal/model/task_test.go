package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateChildren(t *testing.T) {
	cases := []struct {
		name         string
		statuses     []Status
		wantProgress int
		wantStatus   Status
	}{
		{"no children", nil, 0, StatusPending},
		{"all pending", []Status{StatusPending, StatusPending}, 0, StatusPending},
		{"one started", []Status{StatusInProgress, StatusPending}, 0, StatusInProgress},
		{"two of three done", []Status{StatusCompleted, StatusCompleted, StatusPending}, 67, StatusInProgress},
		{"one of three done", []Status{StatusCompleted, StatusPending, StatusPending}, 33, StatusInProgress},
		{"all done", []Status{StatusCompleted, StatusCompleted, StatusCompleted}, 100, StatusCompleted},
		{"half done", []Status{StatusCompleted, StatusPending}, 50, StatusInProgress},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			children := make([]Task, len(tc.statuses))
			for i, status := range tc.statuses {
				children[i] = Task{Status: status}
			}
			progress, status := AggregateChildren(children)
			assert.Equal(t, tc.wantProgress, progress)
			assert.Equal(t, tc.wantStatus, status)
		})
	}
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus(" In_Progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, status)

	_, err = ParseStatus("done")
	assert.Error(t, err)
}

func TestParsePriority(t *testing.T) {
	priority, err := ParsePriority("URGENT")
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, priority)

	_, err = ParsePriority("asap")
	assert.Error(t, err)
}

func TestIsParent(t *testing.T) {
	assert.True(t, (&Task{PublicID: "G-0001"}).IsParent())
	assert.False(t, (&Task{PublicID: "P-0001"}).IsParent())
}

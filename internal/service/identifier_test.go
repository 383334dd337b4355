package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/model"
	"taskpilot/internal/repository"
)

func TestAllocateSequencesPerFamily(t *testing.T) {
	db := newTestDB(t)
	allocator := NewIdentifierAllocator(repository.NewSequenceRepository(db))
	ctx := context.Background()

	first, err := allocator.Allocate(ctx, model.FamilyIndividual)
	require.NoError(t, err)
	assert.Equal(t, "P-0001", first)

	second, err := allocator.Allocate(ctx, model.FamilyIndividual)
	require.NoError(t, err)
	assert.Equal(t, "P-0002", second)

	// Families count independently.
	group, err := allocator.Allocate(ctx, model.FamilyGroup)
	require.NoError(t, err)
	assert.Equal(t, "G-0001", group)
}

func TestAllocateConcurrentCallersGetDistinctIDs(t *testing.T) {
	db := newTestDB(t)
	allocator := NewIdentifierAllocator(repository.NewSequenceRepository(db))
	ctx := context.Background()

	const n = 25
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := allocator.Allocate(ctx, model.FamilyIndividual)
			if assert.NoError(t, err) {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n, "every concurrent caller got a distinct id")
}

func TestFormatPublicIDWidensPastFourDigits(t *testing.T) {
	assert.Equal(t, "P-0042", FormatPublicID(model.FamilyIndividual, 42))
	assert.Equal(t, "G-9999", FormatPublicID(model.FamilyGroup, 9999))
	assert.Equal(t, "P-12345", FormatPublicID(model.FamilyIndividual, 12345))
}

package appointments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_CreateAndConflict(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	at := time.Date(2025, 12, 17, 19, 0, 42, 0, time.Local)

	appt, err := repo.Create(ctx, "client-1", at, "  asesoria  ")
	require.NoError(t, err)
	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, "asesoria", appt.Purpose)
	assert.Equal(t, 0, appt.DateTime.Second())

	_, err = repo.Create(ctx, "client-1", at, "otra cosa")
	assert.ErrorIs(t, err, ErrConflict)

	// Another client can take the same slot.
	_, err = repo.Create(ctx, "client-2", at, "")
	require.NoError(t, err)

	found, err := repo.FindConflicting(ctx, "client-1", at)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, appt.ID, found.ID)

	free, err := repo.FindConflicting(ctx, "client-1", at.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, free)
}

func TestInMemoryRepository_CreateValidation(t *testing.T) {
	repo := NewInMemoryRepository()
	_, err := repo.Create(context.Background(), " ", time.Now(), "")
	assert.ErrorIs(t, err, ErrMissingClientID)
	_, err = repo.Create(context.Background(), "client-1", time.Time{}, "")
	assert.ErrorIs(t, err, ErrMissingDateTime)
}

func TestInMemoryRepository_ConcurrentCreateKeepsOne(t *testing.T) {
	repo := NewInMemoryRepository()
	at := time.Date(2025, 12, 17, 19, 0, 0, 0, time.Local)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, conflicts int
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(context.Background(), "client-1", at, "asesoria")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, 19, conflicts)
}

func TestInMemoryRepository_ListOrdersByDate(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	base := time.Date(2025, 12, 17, 10, 0, 0, 0, time.Local)

	_, err := repo.Create(ctx, "client-1", base.Add(48*time.Hour), "c")
	require.NoError(t, err)
	_, err = repo.Create(ctx, "client-1", base, "a")
	require.NoError(t, err)
	_, err = repo.Create(ctx, "client-2", base.Add(24*time.Hour), "b")
	require.NoError(t, err)

	mine, err := repo.List(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "a", mine[0].Purpose)
	assert.Equal(t, "c", mine[1].Purpose)

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Purpose, all[1].Purpose, all[2].Purpose})
}

func TestInMemoryRepository_UpdateDeleteClear(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	at := time.Date(2025, 12, 17, 10, 0, 0, 0, time.Local)

	first, err := repo.Create(ctx, "client-1", at, "a")
	require.NoError(t, err)
	second, err := repo.Create(ctx, "client-1", at.Add(time.Hour), "b")
	require.NoError(t, err)

	// Moving onto an occupied slot conflicts.
	taken := at.Add(time.Hour)
	_, err = repo.Update(ctx, first.ID, UpdateRequest{DateTime: &taken})
	assert.ErrorIs(t, err, ErrConflict)

	moved := at.Add(3 * time.Hour)
	status := StatusCancelled
	purpose := strings.Repeat("x", 200)
	updated, err := repo.Update(ctx, first.ID, UpdateRequest{DateTime: &moved, Status: &status, Purpose: &purpose})
	require.NoError(t, err)
	assert.True(t, updated.DateTime.Equal(moved))
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Len(t, updated.Purpose, MaxPurposeLength)

	// The old slot is free again.
	_, err = repo.Create(ctx, "client-1", at, "again")
	require.NoError(t, err)

	bad := Status("archived")
	_, err = repo.Update(ctx, first.ID, UpdateRequest{Status: &bad})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	require.NoError(t, repo.Delete(ctx, second.ID))
	assert.ErrorIs(t, repo.Delete(ctx, second.ID), ErrNotFound)
	_, err = repo.Get(ctx, second.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Create(ctx, "client-2", at, "")
	require.NoError(t, err)
	removed, err := repo.Clear(ctx, "client-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	rest, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "client-2", rest[0].ClientID)
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	appt, err := repo.Create(ctx, "client-1", time.Date(2025, 12, 17, 10, 0, 0, 0, time.Local), "a")
	require.NoError(t, err)

	appt.Purpose = "mutated"
	stored, err := repo.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", stored.Purpose)
}

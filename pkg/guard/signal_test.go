package guard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/guard"
	"github.com/dmitrymomot/pushkit/pkg/notification"
)

func TestSimilaritySignal_ExactDuplicate(t *testing.T) {
	s := guard.NewSimilaritySignal(30*time.Second, 0.85)
	ctx := context.Background()

	first := msgWith("m1", "Your export job finished successfully")
	f, err := s.Inspect(ctx, "user-1", first)
	require.NoError(t, err)
	assert.False(t, f.Duplicate)
	assert.Equal(t, 1, f.Occurrences)
	require.NoError(t, s.Record(ctx, "user-1", first))

	dup := msgWith("m2", "Your export job finished successfully")
	dup.Title = first.Title
	f, err = s.Inspect(ctx, "user-1", dup)
	require.NoError(t, err)
	assert.True(t, f.Duplicate)
	assert.Equal(t, "m1", f.OfMessageID)
	assert.Equal(t, 2, f.Occurrences)
}

func TestSimilaritySignal_InspectDoesNotRegister(t *testing.T) {
	s := guard.NewSimilaritySignal(30*time.Second, 0.85)
	ctx := context.Background()

	msg := msgWith("m1", "Quota almost exhausted")
	_, err := s.Inspect(ctx, "user-1", msg)
	require.NoError(t, err)

	// Without an explicit Record, the same content stays unknown. Rejected
	// messages must never become coalescing targets.
	retry := msgWith("m2", "Quota almost exhausted")
	f, err := s.Inspect(ctx, "user-1", retry)
	require.NoError(t, err)
	assert.False(t, f.Duplicate)
}

func TestSimilaritySignal_NearDuplicate(t *testing.T) {
	s := guard.NewSimilaritySignal(30*time.Second, 0.7)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "user-1", msgWith("m1", "Backup completed for volume vol-001 in 34 seconds")))

	f, err := s.Inspect(ctx, "user-1", msgWith("m2", "Backup completed for volume vol-002 in 34 seconds"))
	require.NoError(t, err)
	assert.True(t, f.Duplicate, "messages differing only in an identifier should coalesce")
}

func TestSimilaritySignal_DifferentContent(t *testing.T) {
	s := guard.NewSimilaritySignal(30*time.Second, 0.85)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "user-1", msgWith("m1", "Your export finished")))

	f, err := s.Inspect(ctx, "user-1", msgWith("m2", "Payment method expires next week"))
	require.NoError(t, err)
	assert.False(t, f.Duplicate)
}

func TestSimilaritySignal_DifferentCategoryNotCoalesced(t *testing.T) {
	s := guard.NewSimilaritySignal(30*time.Second, 0.85)
	ctx := context.Background()

	base := msgWith("m1", "Maintenance window tonight")
	require.NoError(t, s.Record(ctx, "user-1", base))

	other := base
	other.ID = "m2"
	other.Category = notification.CategorySystem
	f, err := s.Inspect(ctx, "user-1", other)
	require.NoError(t, err)
	assert.False(t, f.Duplicate, "coalescing requires the same category")
}

func TestSimilaritySignal_DifferentIdentityNotCoalesced(t *testing.T) {
	s := guard.NewSimilaritySignal(30*time.Second, 0.85)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "user-1", msgWith("m1", "Report ready")))

	f, err := s.Inspect(ctx, "user-2", msgWith("m2", "Report ready"))
	require.NoError(t, err)
	assert.False(t, f.Duplicate)
}

func TestSimilaritySignal_WindowExpiry(t *testing.T) {
	s := guard.NewSimilaritySignal(50*time.Millisecond, 0.85)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "user-1", msgWith("m1", "Report ready")))

	time.Sleep(80 * time.Millisecond)

	f, err := s.Inspect(ctx, "user-1", msgWith("m2", "Report ready"))
	require.NoError(t, err)
	assert.False(t, f.Duplicate, "entries outside the window must not coalesce")
}

func TestSimilaritySignal_UnicodeNormalization(t *testing.T) {
	s := guard.NewSimilaritySignal(30*time.Second, 0.85)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "user-1", msgWith("m1", "Export  Ready   for download")))

	// Same text with collapsed whitespace and different casing.
	f, err := s.Inspect(ctx, "user-1", msgWith("m2", "export ready FOR download"))
	require.NoError(t, err)
	assert.True(t, f.Duplicate)
}

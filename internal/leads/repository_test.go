package leads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_Create(t *testing.T) {
	repo := NewInMemoryRepository()

	lead, err := repo.Create(context.Background(), &CreateLeadRequest{
		Name:         "Jane Smith",
		Email:        "jane@example.com",
		FacilityType: "Medical Office",
		Source:       SourceChat,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, lead.ID)
	assert.False(t, lead.CreatedAt.IsZero())
	assert.Equal(t, "Jane", lead.FirstName())
}

func TestInMemoryRepository_CreateIsIdempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	req := &CreateLeadRequest{ID: "lead-1", Name: "Jane Smith", Email: "jane@example.com"}

	first, err := repo.Create(ctx, req)
	require.NoError(t, err)
	req.Name = "Someone Else"
	second, err := repo.Create(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Jane Smith", second.Name)
}

func TestInMemoryRepository_Validation(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, &CreateLeadRequest{Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = repo.Create(ctx, &CreateLeadRequest{Name: "No Contact"})
	assert.ErrorIs(t, err, ErrMissingContact)

	_, err = repo.Create(ctx, &CreateLeadRequest{Name: "Chat Lead", Phone: "+17405550100", Source: SourceChat})
	assert.ErrorIs(t, err, ErrMissingFacility)
}

func TestInMemoryRepository_GetByIDNotFound(t *testing.T) {
	_, err := NewInMemoryRepository().GetByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestInMemoryRepository_ListPaging(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, &CreateLeadRequest{
			Name:      "Lead Person",
			Phone:     "+17405550100",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page, err := repo.List(ctx, ListLeadsFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, base.Add(3*time.Minute), page[0].CreatedAt)

	recent, err := repo.List(ctx, ListLeadsFilter{Since: base.Add(4 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	empty, err := repo.List(ctx, ListLeadsFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

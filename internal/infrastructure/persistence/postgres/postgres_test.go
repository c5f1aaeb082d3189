package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/content"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

func TestGetMigrations_Ordered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL, m.Name)
	}
}

func TestErrorHelpers(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}
	assert.True(t, IsUniqueViolation(unique))
	assert.Equal(t, "users_username_key", constraintName(unique))

	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsSerializationFailure(errors.New("plain")))
	assert.Empty(t, constraintName(errors.New("plain")))
}

func TestDecodeContent(t *testing.T) {
	item := content.Item{ID: "r1", Creator: "bob", Cat: points.CategoryFitness, Title: "Legs", Usage: 4}

	c, err := decodeContent(content.TypeRoutine, item, []byte(`{"exercises":["squat"],"duration_minutes":30,"usage_count":99}`))
	require.NoError(t, err)
	r, ok := c.(content.Routine)
	require.True(t, ok)
	assert.Equal(t, []string{"squat"}, r.Exercises)
	assert.Equal(t, 30, r.DurationMinutes)
	assert.Equal(t, 4, r.UsageCount())
	assert.Equal(t, "bob", r.CreatorID())

	c, err = decodeContent(content.TypeMealPlan, item, nil)
	require.NoError(t, err)
	assert.Equal(t, content.TypeMealPlan, c.Kind())

	_, err = decodeContent(content.Type("video"), item, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidContentType)
}

func TestItemOf(t *testing.T) {
	item := content.Item{ID: "a1", Title: "Sleep"}
	got, ok := itemOf(content.Article{Item: item})
	require.True(t, ok)
	assert.Equal(t, "Sleep", got.Title)
}

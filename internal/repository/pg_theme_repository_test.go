package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

func TestPgThemeRepository_InsertThemes(t *testing.T) {
	t.Run("inserts all themes in one batch", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)
		ctx := context.Background()

		projectID := uuid.New()
		generation := uuid.New()
		themes := []*domain.Theme{
			{ProjectID: projectID, Generation: generation, Label: "Theme 1", Provenance: domain.ThemeProvenance{Method: "kmeans", ClusterID: 0, Size: 7}},
			{ProjectID: projectID, Generation: generation, Label: "Theme 2", Provenance: domain.ThemeProvenance{Method: "kmeans", ClusterID: 1, Size: 5}},
		}

		batch := mock.ExpectBatch()
		batch.ExpectExec(`INSERT INTO themes`).
			WithArgs(pgxmock.AnyArg(), projectID, generation, "Theme 1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batch.ExpectExec(`INSERT INTO themes`).
			WithArgs(pgxmock.AnyArg(), projectID, generation, "Theme 2", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.InsertThemes(ctx, themes)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, themes[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects theme without generation", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)

		err = repo.InsertThemes(context.Background(), []*domain.Theme{
			{ProjectID: uuid.New(), Label: "Theme 1"},
		})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("no-op on empty slice", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)

		err = repo.InsertThemes(context.Background(), nil)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgThemeRepository_UpsertAssignments(t *testing.T) {
	t.Run("upserts assignments by theme and document", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)

		themeID := uuid.New()
		docID := uuid.New()
		batch := mock.ExpectBatch()
		batch.ExpectExec(`INSERT INTO theme_assignments`).
			WithArgs(themeID, docID, 0.85, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.UpsertAssignments(context.Background(), []*domain.ThemeAssignment{
			{ThemeID: themeID, DocumentID: docID, Weight: 0.85},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgThemeRepository_DeleteGenerationsExcept(t *testing.T) {
	t.Run("deletes stale generations only", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)

		projectID := uuid.New()
		generation := uuid.New()
		mock.ExpectExec(`DELETE FROM themes WHERE project_id = \$1 AND generation != \$2`).
			WithArgs(projectID, generation).
			WillReturnResult(pgxmock.NewResult("DELETE", 4))

		deleted, err := repo.DeleteGenerationsExcept(context.Background(), projectID, generation)
		require.NoError(t, err)
		assert.Equal(t, int64(4), deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgThemeRepository_UpdateLabel(t *testing.T) {
	t.Run("overwrites label and provenance", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)

		themeID := uuid.New()
		mock.ExpectExec(`UPDATE themes SET label = \$2, provenance = \$3`).
			WithArgs(themeID, "Graph Neural Networks", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.UpdateLabel(context.Background(), themeID, "Graph Neural Networks", domain.ThemeProvenance{
			Method: "ngram_extraction",
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects empty label", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)

		err = repo.UpdateLabel(context.Background(), uuid.New(), "", domain.ThemeProvenance{})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("returns not found when theme missing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)

		themeID := uuid.New()
		mock.ExpectExec(`UPDATE themes SET label = \$2`).
			WithArgs(themeID, "Anything", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.UpdateLabel(context.Background(), themeID, "Anything", domain.ThemeProvenance{})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgThemeRepository_GetByID(t *testing.T) {
	t.Run("returns theme with provenance", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)

		themeID := uuid.New()
		projectID := uuid.New()
		generation := uuid.New()
		now := time.Now().UTC()
		mock.ExpectQuery(`SELECT .+ FROM themes\s+WHERE id = \$1`).
			WithArgs(themeID).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "project_id", "generation", "label", "provenance", "summary", "created_at", "updated_at",
			}).AddRow(themeID, projectID, generation, "Theme 3",
				[]byte(`{"method":"kmeans","cluster_id":3,"size":12,"is_main_theme":true}`), nil, now, now))

		theme, err := repo.GetByID(context.Background(), themeID)
		require.NoError(t, err)
		assert.Equal(t, "Theme 3", theme.Label)
		assert.Equal(t, generation, theme.Generation)
		assert.Equal(t, 3, theme.Provenance.ClusterID)
		assert.True(t, theme.Provenance.IsMainTheme)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)

		themeID := uuid.New()
		mock.ExpectQuery(`SELECT .+ FROM themes`).
			WithArgs(themeID).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetByID(context.Background(), themeID)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgThemeRepository_ListSectionTexts(t *testing.T) {
	t.Run("returns texts strongest assignment first", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgThemeRepository(mock)

		themeID := uuid.New()
		mock.ExpectQuery(`SELECT s\.text\s+FROM theme_assignments ta`).
			WithArgs(themeID, 100).
			WillReturnRows(pgxmock.NewRows([]string{"text"}).
				AddRow("strongest member text").
				AddRow("weaker member text"))

		texts, err := repo.ListSectionTexts(context.Background(), themeID, 100)
		require.NoError(t, err)
		require.Len(t, texts, 2)
		assert.Equal(t, "strongest member text", texts[0])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

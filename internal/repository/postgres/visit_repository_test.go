package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"waypoint/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVisitRepository(db)
	visitedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO visits (visit_id, url, reason, duration_minutes, visited_at)`)).
		WithArgs("v-1", "https://x.com/home", "a considered reason", 15, visitedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Create(context.Background(), &domain.VisitRecord{
		VisitID:   "v-1",
		URL:       "https://x.com/home",
		Reason:    "a considered reason",
		Duration:  15,
		Timestamp: visitedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepository_Create_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVisitRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO visits`)).
		WillReturnError(errors.New("connection refused"))

	err = repo.Create(context.Background(), &domain.VisitRecord{VisitID: "v-1", URL: "https://x.com"})
	assert.Error(t, err)
}

func TestVisitRepository_AttachReflection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVisitRepository(db)

	t.Run("updates an existing record", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE visits SET reflection = $2 WHERE visit_id = $1`)).
			WithArgs("v-1", "worth it, barely").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.AttachReflection(context.Background(), "v-1", "worth it, barely")
		require.NoError(t, err)
	})

	t.Run("unknown visit id", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE visits SET reflection = $2 WHERE visit_id = $1`)).
			WithArgs("v-missing", "anything").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.AttachReflection(context.Background(), "v-missing", "anything")
		assert.ErrorIs(t, err, domain.ErrVisitNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVisitRepository(db)
	visitedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"visit_id", "url", "reason", "duration_minutes", "visited_at", "reflection"}).
		AddRow("v-1", "https://x.com/a", "reason one", 5, visitedAt, nil).
		AddRow("v-2", "https://twitter.com/b", "reason two", 10, visitedAt.Add(time.Hour), "it went fine")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT visit_id, url, reason, duration_minutes, visited_at, reflection`)).
		WillReturnRows(rows)

	visits, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, visits, 2)

	assert.Equal(t, "v-1", visits[0].VisitID)
	assert.Nil(t, visits[0].Reflection, "NULL reflection maps to nil")

	require.NotNil(t, visits[1].Reflection)
	assert.Equal(t, "it went fine", *visits[1].Reflection)
	assert.Equal(t, 10, visits[1].Duration)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepository_List_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVisitRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT visit_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"visit_id", "url", "reason", "duration_minutes", "visited_at", "reflection"}))

	visits, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, visits)
	assert.Empty(t, visits)
}

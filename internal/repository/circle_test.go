package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"circles/internal/cache"
	"circles/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircleRepository_CreateConflictFromPostgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCircleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "circles"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_circles_name_lower"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Circle{Name: "Book Club", OwnerID: 1})
	requireCode(t, err, models.CodeConflict)
	assert.Equal(t, MsgCircleNameTaken, err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircleRepository_GetByIDNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCircleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "circles" WHERE "circles"."id" = $1 ORDER BY "circles"."id" LIMIT $2`)).
		WithArgs(42, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 42)
	requireCode(t, err, models.CodeNotFound)
	assert.Equal(t, "Circle not found", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircleRepository_NameLookupAndRename(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCircleRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "alice")
	book := createCircle(t, db, "Book Club", owner)
	chess := createCircle(t, db, "Chess", owner)

	got, err := repo.GetByName(ctx, "  book CLUB ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, book.ID, got.ID)

	got, err = repo.GetByName(ctx, "Knitting")
	require.NoError(t, err)
	assert.Nil(t, got)

	chess.Name = "BOOK CLUB"
	err = repo.Update(ctx, chess)
	requireCode(t, err, models.CodeConflict)

	chess.Name = "Chess Masters"
	chess.Description = "Weekly games"
	require.NoError(t, repo.Update(ctx, chess))

	reloaded, err := repo.GetByID(ctx, chess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chess Masters", reloaded.Name)
	assert.Equal(t, "Weekly games", reloaded.Description)
	require.NotNil(t, reloaded.Owner)
	assert.Equal(t, "alice", reloaded.Owner.Username)
}

func TestCircleRepository_NameLookupAgreesWithUniqueIndex(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCircleRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "alice")
	cafe := createCircle(t, db, "CAFÉ Society", owner)

	got, err := repo.GetByName(ctx, "CAFÉ SOCIETY")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cafe.ID, got.ID)

	// Whatever the database folds, a name the lookup misses must be
	// insertable and a name it finds must be rejected by the index.
	for _, name := range []string{"cafÉ society", "Café Society", "CAFÉ society"} {
		found, err := repo.GetByName(ctx, name)
		require.NoError(t, err)

		err = repo.Create(ctx, &models.Circle{Name: name, OwnerID: owner.ID})
		if found != nil {
			requireCode(t, err, models.CodeConflict)
		} else {
			assert.NoError(t, err, name)
		}
	}
}

func TestCircleRepository_ListForUserNewestFirst(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCircleRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	first := createCircle(t, db, "First", alice, bob)
	createCircle(t, db, "Alice Only", alice)
	second := createCircle(t, db, "Second", bob)
	require.NoError(t, db.Model(second).Update("created_at", time.Now().Add(time.Hour)).Error)

	circles, err := repo.ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, circles, 2)
	assert.Equal(t, second.ID, circles[0].ID)
	assert.Equal(t, first.ID, circles[1].ID)

	none, err := repo.ListForUser(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	db := setupSQLiteDB(t)
	tx := NewTransactor(db, cache.New(nil))
	ctx := context.Background()

	owner := createUser(t, db, "alice")

	err := tx.InTx(ctx, func(r Repositories) error {
		c := &models.Circle{Name: "Doomed", OwnerID: owner.ID}
		if err := r.Circles.Create(ctx, c); err != nil {
			return err
		}
		return models.NewConflictError("boom")
	})
	requireCode(t, err, models.CodeConflict)

	got, err := NewCircleRepository(db).GetByName(ctx, "Doomed")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = tx.InTx(ctx, func(r Repositories) error {
		return r.Circles.Create(ctx, &models.Circle{Name: "Kept", OwnerID: owner.ID})
	})
	require.NoError(t, err)
	got, err = NewCircleRepository(db).GetByName(ctx, "kept")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := InitDB(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.UpsertAttachment(context.Background(), Attachment{
		Filename: name,
		FilePath: "/media/" + name,
		MimeType: "image/jpeg",
		Title:    name,
	})
	require.NoError(t, err)
	return id
}

func strPtr(s string) *string { return &s }

func TestUpsertAttachment(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	id := seed(t, s, "cat.jpg")
	require.NoError(t, s.SaveFields(ctx, id, "a cat", "Cat", "A cat on a mat."))

	t.Run("same path keeps id and edited fields", func(t *testing.T) {
		again, err := s.UpsertAttachment(ctx, Attachment{Filename: "cat.jpg", FilePath: "/media/cat.jpg", MimeType: "image/png", Title: "ignored"})
		require.NoError(t, err)
		assert.Equal(t, id, again)

		a, err := s.GetAttachment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "image/png", a.MimeType)
		assert.Equal(t, "Cat", a.Title)
		assert.Equal(t, "a cat", a.AltText)
	})

	t.Run("new path gets new id", func(t *testing.T) {
		other := seed(t, s, "dog.png")
		assert.NotEqual(t, id, other)
	})
}

func TestGetAttachmentNotFound(t *testing.T) {
	s := setupStore(t)
	_, err := s.GetAttachment(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndSearch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	a := seed(t, s, "sunset.jpg")
	b := seed(t, s, "beach.png")
	seed(t, s, "logo.webp")
	require.NoError(t, s.SaveFields(ctx, b, "Waves at SUNSET", "Beach", ""))

	all, err := s.ListAttachments(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := s.ListAttachments(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	found, err := s.SearchAttachments(ctx, "sunset", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, a, found[0].ID)
	assert.Equal(t, b, found[1].ID)

	missing, err := s.ListMissingAltText(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, missing, 2)
}

func TestSaveFieldsNotFound(t *testing.T) {
	s := setupStore(t)
	err := s.SaveFields(context.Background(), 99, "a", "b", "c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("writes all present fields", func(t *testing.T) {
		s := setupStore(t)
		id := seed(t, s, "a.jpg")

		err := s.ApplyUpdate(ctx, id, MetaUpdate{AltText: strPtr("A"), Title: strPtr("B"), Description: strPtr("C")})
		require.NoError(t, err)

		got, err := s.GetAttachment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "A", got.AltText)
		assert.Equal(t, "B", got.Title)
		assert.Equal(t, "C", got.Description)
	})

	t.Run("absent and empty fields are untouched", func(t *testing.T) {
		s := setupStore(t)
		id := seed(t, s, "b.jpg")
		require.NoError(t, s.SaveFields(ctx, id, "old alt", "old title", "old desc"))

		err := s.ApplyUpdate(ctx, id, MetaUpdate{Title: strPtr(""), Description: strPtr("new desc")})
		require.NoError(t, err)

		got, err := s.GetAttachment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "old alt", got.AltText)
		assert.Equal(t, "old title", got.Title)
		assert.Equal(t, "new desc", got.Description)
	})

	t.Run("nothing present is a no-op", func(t *testing.T) {
		s := setupStore(t)
		assert.NoError(t, s.ApplyUpdate(ctx, 12345, MetaUpdate{}))
	})

	t.Run("unknown id", func(t *testing.T) {
		s := setupStore(t)
		err := s.ApplyUpdate(ctx, 12345, MetaUpdate{AltText: strPtr("x")})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestApplyUpdateDriverFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	s := New(conn, "postgres")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE attachments SET alt_text = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs("alt", sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE attachments SET title = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs("title", sqlmock.AnyArg(), int64(7)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = s.ApplyUpdate(context.Background(), 7, MetaUpdate{AltText: strPtr("alt"), Title: strPtr("title")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	pg := New(nil, "postgres")
	lite := New(nil, "sqlite")
	q := `UPDATE t SET a = ?, b = ? WHERE id = ?`

	assert.Equal(t, `UPDATE t SET a = $1, b = $2 WHERE id = $3`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestInitDBUnsupportedDriver(t *testing.T) {
	_, err := InitDB(context.Background(), "mysql", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("%q", "mysql"))
}

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/repository"
	"github.com/iliyamo/book-panel/internal/testutil"
)

func Test_ActivityRepo(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewActivityRepo(db)
	rd := &model.Reader{Mobile: "1"}
	testutil.GivenReader(t, db, rd)
	b := &model.Book{BookCode: 1}
	testutil.GivenBook(t, db, b)
	o := &model.Order{ReaderID: rd.ID, Books: []model.OrderedBook{{BookID: b.ID, Quantity: 1}}}
	testutil.GivenOrder(t, db, o)

	t0 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	older := &model.ActivityLog{Action: model.ActionNote, Description: "Order placed", OrderID: &o.ID, ReaderID: &rd.ID, CreatedAt: t0}
	newer := &model.ActivityLog{Action: model.ActionStatusChange, Description: "shipped", OrderID: &o.ID, CreatedAt: t0.Add(time.Hour)}
	loose := &model.ActivityLog{Action: "CALL", Description: "phoned reader", ReaderID: &rd.ID, CreatedAt: t0.Add(2 * time.Hour)}
	for _, a := range []*model.ActivityLog{older, newer, loose} {
		require.NoError(t, repo.Create(ctx, a))
	}

	byOrder, err := repo.ByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, byOrder, 2)
	assert.Equal(t, newer.ID, byOrder[0].ID)
	assert.Equal(t, older.ID, byOrder[1].ID)

	byReader, err := repo.ByReader(ctx, rd.ID)
	require.NoError(t, err)
	require.Len(t, byReader, 2)
	assert.Equal(t, loose.ID, byReader[0].ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	loose.Description = "called twice"
	loose.ReaderID = nil
	require.NoError(t, repo.Update(ctx, loose))
	got, err := repo.Get(ctx, loose.ID)
	require.NoError(t, err)
	assert.Equal(t, "called twice", got.Description)
	assert.Nil(t, got.ReaderID)
	assert.True(t, got.CreatedAt.Equal(loose.CreatedAt))

	require.NoError(t, repo.Delete(ctx, loose.ID))
	assert.ErrorIs(t, repo.Delete(ctx, loose.ID), repository.ErrNotFound)
	_, err = repo.Get(ctx, loose.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, loose), repository.ErrNotFound)
}

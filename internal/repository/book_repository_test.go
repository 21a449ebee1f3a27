package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/repository"
	"github.com/iliyamo/book-panel/internal/testutil"
)

func Test_BookRepo_List_FiltersAndPaginates(t *testing.T) {
	// setup
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewBookRepo(db)
	hindi := testutil.GivenLanguage(t, db, "Hindi")
	gujarati := testutil.GivenLanguage(t, db, "Gujarati")
	english := testutil.GivenLanguage(t, db, "English")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	langs := []int64{hindi, gujarati, english}
	for i := 0; i < 15; i++ {
		b := &model.Book{
			BookCode:   int64(100 + i),
			Title:      "Book",
			LanguageID: testutil.Ptr(langs[i%3]),
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		if i%2 == 0 {
			b.StockQty = testutil.Ptr[int64](3)
		}
		testutil.GivenBook(t, db, b)
	}

	// act
	page, err := repo.List(ctx, repository.BookFilter{
		LanguageIDs: []int64{hindi, gujarati},
		IsAvailable: testutil.Ptr(true),
		Page:        2,
		Limit:       2,
	})

	// assert
	require.NoError(t, err)
	// i in 0..14, lang hindi|gujarati (i%3 != 2) and even i: 0,4,6,10,12
	assert.Equal(t, int64(5), page.Pagination.Total)
	assert.Equal(t, int64(3), page.Pagination.TotalPages)
	assert.Equal(t, 2, page.Pagination.Page)
	assert.Equal(t, 2, page.Pagination.Limit)
	require.Len(t, page.Books, 2)
	// newest first: 12,10 | 6,4 | 0
	assert.Equal(t, int64(106), page.Books[0].BookCode)
	assert.Equal(t, int64(104), page.Books[1].BookCode)
	for _, b := range page.Books {
		assert.True(t, b.IsAvailable)
		require.NotNil(t, b.Language)
		assert.Contains(t, []string{"Hindi", "Gujarati"}, b.Language.Name)
	}
}

func Test_BookRepo_List_Defaults(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewBookRepo(db)

	page, err := repo.List(ctx, repository.BookFilter{Page: -3, Limit: 5000})

	require.NoError(t, err)
	assert.Empty(t, page.Books)
	assert.Equal(t, repository.Pagination{Total: 0, Page: 1, Limit: repository.MaxPageSize, TotalPages: 0}, page.Pagination)
}

func Test_BookRepo_List_Search(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewBookRepo(db)
	testutil.GivenBook(t, db, &model.Book{BookCode: 501, Title: "Tattvartha Sutra", Author: testutil.Ptr("Umaswati")})
	testutil.GivenBook(t, db, &model.Book{BookCode: 502, Title: "Samaysar", Author: testutil.Ptr("Kundakunda"), KabatNumber: testutil.Ptr[int64](1234)})
	testutil.GivenBook(t, db, &model.Book{BookCode: 777, Title: "Bhaktamar", BookSize: testutil.Ptr("Large"), Pages: testutil.Ptr[int64](300)})

	tests := []struct {
		name   string
		filter repository.BookFilter
		want   []int64
	}{
		{"title is case-insensitive", repository.BookFilter{Search: "sutra"}, []int64{501}},
		{"author", repository.BookFilter{Search: "KUNDA"}, []int64{502}},
		{"exact book code", repository.BookFilter{Search: "777"}, []int64{777}},
		{"kabat substring", repository.BookFilter{KabatNumber: "23"}, []int64{502}},
		{"book size", repository.BookFilter{BookSize: "larg"}, []int64{777}},
		{"page range", repository.BookFilter{MinPages: testutil.Ptr[int64](200), MaxPages: testutil.Ptr[int64](400)}, []int64{777}},
		{"no match", repository.BookFilter{Search: "nothing"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, err := repo.List(ctx, tc.filter)
			require.NoError(t, err)
			var got []int64
			for _, b := range page.Books {
				got = append(got, b.BookCode)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func Test_BookRepo_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewBookRepo(db)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	b := &model.Book{
		BookCode:  42,
		Title:     "Original",
		Price:     decimal.NewNullDecimal(decimal.RequireFromString("125.5")),
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.SetStock(2)
	require.NoError(t, repo.Create(ctx, b))
	require.NotZero(t, b.ID)

	dup := &model.Book{BookCode: 42, Title: "Dup", CreatedAt: now, UpdatedAt: now}
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, repository.ErrConflict)

	b.Title = "Renamed"
	require.NoError(t, repo.Update(ctx, b))
	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.Price.Valid)
	assert.True(t, got.Price.Decimal.Equal(decimal.RequireFromString("125.5")))
	assert.Equal(t, int64(2), got.Stock())

	missing := &model.Book{ID: 9999, BookCode: 1, Title: "x"}
	assert.ErrorIs(t, repo.Update(ctx, missing), repository.ErrNotFound)

	n, err := repo.DeleteTx(ctx, db, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.Get(ctx, b.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func Test_BookRepo_DeleteReferencedBook(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewBookRepo(db)
	b := &model.Book{BookCode: 1, Title: "Kept"}
	testutil.GivenBook(t, db, b)
	rd := &model.Reader{Mobile: "9000000001"}
	testutil.GivenReader(t, db, rd)
	testutil.GivenOrder(t, db, &model.Order{ReaderID: rd.ID, Books: []model.OrderedBook{{BookID: b.ID, Quantity: 1}}})

	_, err := repo.DeleteTx(ctx, db, b.ID)

	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, int64(1), testutil.CountRows(t, db, "books"))
}

func Test_BookRepo_SetStockTx(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewBookRepo(db)
	b := &model.Book{BookCode: 1, StockQty: testutil.Ptr[int64](4)}
	testutil.GivenBook(t, db, b)

	require.NoError(t, repo.SetStockTx(ctx, db, b.ID, -1, time.Now().UTC()))

	stock, available := testutil.BookStock(t, db, b.ID)
	require.NotNil(t, stock)
	assert.Equal(t, int64(-1), *stock)
	assert.False(t, available)
}

func Test_MasterRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	langs := repository.NewLanguageRepo(db)
	books := repository.NewBookRepo(db)

	hindi, err := langs.Create(ctx, "Hindi")
	require.NoError(t, err)
	_, err = langs.Create(ctx, "English")
	require.NoError(t, err)

	all, err := langs.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "English", all[0].Name)

	renamed, err := langs.Update(ctx, hindi.ID, "Hindi (Devanagari)")
	require.NoError(t, err)
	assert.Equal(t, "Hindi (Devanagari)", renamed.Name)

	_, err = langs.Update(ctx, 999, "x")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// deleting a language detaches its books
	b := &model.Book{BookCode: 1, LanguageID: testutil.Ptr(hindi.ID)}
	testutil.GivenBook(t, db, b)
	require.NoError(t, langs.Delete(ctx, hindi.ID))
	got, err := books.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LanguageID)
	assert.Nil(t, got.Language)

	assert.ErrorIs(t, langs.Delete(ctx, hindi.ID), repository.ErrNotFound)

	cats := repository.NewCategoryRepo(db)
	_, err = cats.Get(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, "Category with ID 1 not found", repository.Message(err))
}

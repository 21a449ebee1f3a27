package service_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/book-panel/internal/model"
	"github.com/iliyamo/book-panel/internal/repository"
	"github.com/iliyamo/book-panel/internal/service"
	"github.com/iliyamo/book-panel/internal/testutil"
)

func resolve(t *testing.T, s *services, in service.ReaderInput) (*model.Reader, error) {
	t.Helper()
	var rd *model.Reader
	err := repository.RunInTx(context.Background(), s.db, func(tx *sqlx.Tx) error {
		var err error
		rd, err = s.readers.Resolve(context.Background(), tx, in)
		return err
	})
	return rd, err
}

func Test_Resolve_CreatesFromFreeformName(t *testing.T) {
	s := newServices(t)

	rd, err := resolve(t, s, service.ReaderInput{Name: testutil.Ptr("  Mahavir  Prasad Jain "), Mobile: " 9000000001 "})

	require.NoError(t, err)
	assert.Equal(t, "9000000001", rd.Mobile)
	assert.Equal(t, "Mahavir", *rd.Firstname)
	assert.Equal(t, "Prasad Jain", *rd.Lastname)
	assert.True(t, rd.IsActive)
	for _, f := range []*string{rd.Email, rd.Address, rd.City, rd.State, rd.Pincode} {
		require.NotNil(t, f)
		assert.Equal(t, "", *f)
	}
	assert.False(t, rd.CreatedAt.IsZero())
}

func Test_Resolve_SingleTokenName(t *testing.T) {
	s := newServices(t)

	rd, err := resolve(t, s, service.ReaderInput{Name: testutil.Ptr("Neha"), Mobile: "1"})

	require.NoError(t, err)
	assert.Equal(t, "Neha", *rd.Firstname)
	assert.Equal(t, "", *rd.Lastname)
}

func Test_Resolve_IsIdempotent(t *testing.T) {
	s := newServices(t)
	in := service.ReaderInput{
		Firstname: testutil.Ptr("Asha"),
		Lastname:  testutil.Ptr("Shah"),
		Mobile:    "9999999999",
		Email:     testutil.Ptr("a@example.com"),
		Address:   testutil.Ptr("A"),
		City:      testutil.Ptr("Pune"),
		State:     testutil.Ptr("MH"),
		Pincode:   testutil.Ptr("411001"),
	}

	first, err := resolve(t, s, in)
	require.NoError(t, err)
	second, err := resolve(t, s, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Zero(t, testutil.CountRows(t, s.db, "reader_histories"))
}

func Test_Resolve_RecordsHistoryOnChange(t *testing.T) {
	s := newServices(t)
	existing := &model.Reader{
		Firstname: testutil.Ptr("Asha"),
		Mobile:    "9999999999",
		Email:     testutil.Ptr("a@example.com"),
		Address:   testutil.Ptr("A"),
	}
	testutil.GivenReader(t, s.db, existing)

	rd, err := resolve(t, s, service.ReaderInput{
		Firstname: testutil.Ptr("Asha"),
		Mobile:    "9999999999",
		Address:   testutil.Ptr("B"),
	})

	require.NoError(t, err)
	assert.Equal(t, existing.ID, rd.ID)
	assert.Equal(t, "B", *rd.Address)
	assert.Nil(t, rd.Email, "fields missing from the input are cleared")

	detail, err := s.readers.Get(context.Background(), rd.ID)
	require.NoError(t, err)
	require.Len(t, detail.History, 1)
	h := detail.History[0]
	assert.Equal(t, "A", *h.Address)
	assert.Equal(t, "a@example.com", *h.Email)
	assert.Equal(t, "Asha", *h.Firstname)
	assert.Nil(t, detail.Email)
}

func Test_Resolve_NilDiffersFromEmpty(t *testing.T) {
	s := newServices(t)
	existing := &model.Reader{Mobile: "1", City: testutil.Ptr("")}
	testutil.GivenReader(t, s.db, existing)

	_, err := resolve(t, s, service.ReaderInput{Mobile: "1"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), testutil.CountRows(t, s.db, "reader_histories"))
}

func Test_Resolve_RequiresMobile(t *testing.T) {
	s := newServices(t)

	_, err := resolve(t, s, service.ReaderInput{Name: testutil.Ptr("No Phone"), Mobile: " "})

	assert.ErrorIs(t, err, repository.ErrValidation)
	assert.Zero(t, testutil.CountRows(t, s.db, "readers"))
}

func Test_ReaderAdmin(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)

	rd, err := s.readers.Create(ctx, service.ReaderInput{Firstname: testutil.Ptr("Ravi"), Mobile: "1"})
	require.NoError(t, err)
	assert.True(t, rd.IsActive)
	assert.Equal(t, "", *rd.City)
	assert.Nil(t, rd.Email)

	_, err = s.readers.Create(ctx, service.ReaderInput{Mobile: "1"})
	assert.ErrorIs(t, err, repository.ErrConflict)
	_, err = s.readers.Create(ctx, service.ReaderInput{})
	assert.ErrorIs(t, err, repository.ErrValidation)

	updated, err := s.readers.Update(ctx, rd.ID, service.ReaderInput{
		Firstname: testutil.Ptr("Ravi"),
		Mobile:    "2",
		City:      testutil.Ptr(""),
		State:     testutil.Ptr(""),
		Pincode:   testutil.Ptr(""),
		IsActive:  testutil.Ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "2", updated.Mobile)
	assert.False(t, updated.IsActive)
	assert.Zero(t, testutil.CountRows(t, s.db, "reader_histories"), "only the mobile and flag changed")

	_, err = s.readers.Update(ctx, rd.ID, service.ReaderInput{Firstname: testutil.Ptr("Ravindra"), Mobile: "2"})
	require.NoError(t, err)
	detail, err := s.readers.Get(ctx, rd.ID)
	require.NoError(t, err)
	require.Len(t, detail.History, 1)
	assert.Equal(t, "Ravi", *detail.History[0].Firstname)
	assert.Empty(t, detail.Orders)

	_, err = s.readers.Update(ctx, 999, service.ReaderInput{Mobile: "3"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	list, err := s.readers.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.readers.Delete(ctx, rd.ID))
	assert.Zero(t, testutil.CountRows(t, s.db, "reader_histories"), "history goes with the reader")
	_, err = s.readers.Get(ctx, rd.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func Test_ReaderAdmin_DeleteWithOrders(t *testing.T) {
	ctx := context.Background()
	s := newServices(t)
	b := &model.Book{BookCode: 1, StockQty: testutil.Ptr[int64](1)}
	testutil.GivenBook(t, s.db, b)
	o, err := s.orders.PlaceOrder(ctx, orderFor("1", service.LineInput{BookID: b.ID, Quantity: 1}))
	require.NoError(t, err)

	err = s.readers.Delete(ctx, o.ReaderID)

	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, int64(1), testutil.CountRows(t, s.db, "readers"))
}

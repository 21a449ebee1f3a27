package service_test

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/queue"
	"github.com/iliyamo/book-panel/internal/repository"
	"github.com/iliyamo/book-panel/internal/service"
	"github.com/iliyamo/book-panel/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// memBlobs is an in-memory blob store.
type memBlobs struct {
	saved   map[string]string
	deleted []string
	n       int
}

func (m *memBlobs) Save(field, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.n++
	name := field + "-" + strconv.Itoa(m.n) + "-" + filename
	if m.saved == nil {
		m.saved = map[string]string{}
	}
	m.saved[name] = string(data)
	return name, nil
}

func (m *memBlobs) Delete(name string) error {
	if name == "" {
		return nil
	}
	m.deleted = append(m.deleted, name)
	delete(m.saved, name)
	return nil
}

type services struct {
	db        *sqlx.DB
	readers   *service.ReaderRegistry
	catalog   *service.CatalogService
	orders    *service.OrderService
	activity  *service.ActivityService
	blobs     *memBlobs
	published *recordingPublisher
}

func newServices(t *testing.T, opts ...service.Option) *services {
	t.Helper()
	db := testutil.NewDB(t)
	log := zap.NewNop()
	pub := &recordingPublisher{}
	blobs := &memBlobs{}
	opts = append([]service.Option{service.WithClock(testutil.Clock()), service.WithPublisher(pub)}, opts...)

	bookRepo := repository.NewBookRepo(db)
	readerRepo := repository.NewReaderRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	activityRepo := repository.NewActivityRepo(db)

	readers := service.NewReaderRegistry(readerRepo, orderRepo, log, opts...)
	catalog := service.NewCatalogService(bookRepo, repository.NewLanguageRepo(db), repository.NewCategoryRepo(db), blobs, log, opts...)
	return &services{
		db:        db,
		readers:   readers,
		catalog:   catalog,
		orders:    service.NewOrderService(orderRepo, bookRepo, readers, catalog, activityRepo, log, opts...),
		activity:  service.NewActivityService(activityRepo, orderRepo, readerRepo, opts...),
		blobs:     blobs,
		published: pub,
	}
}

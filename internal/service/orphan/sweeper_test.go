package orphan_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/orphan"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/mock"
)

func loggerForTests() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	return logger.WithField("component", "orphan-test")
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func insertProduct(t *testing.T, store domain.DocumentStore, title, image string, createdAt time.Time) string {
	t.Helper()
	p := domain.Product{Title: title, Price: 1, Image: image, CreatedBy: "admin@example.com", CreatedAt: createdAt}
	id, err := store.Insert(context.Background(), domain.CollectionProducts, p.Fields())
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	return id
}

func remainingTitles(t *testing.T, store domain.DocumentStore) map[string]bool {
	t.Helper()
	records, err := store.Find(context.Background(), domain.CollectionProducts, domain.Query{})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	out := make(map[string]bool, len(records))
	for _, rec := range records {
		out[domain.ProductFromRecord(rec).Title] = true
	}
	return out
}

func TestSweep_RemovesOnlyAgedOrphans(t *testing.T) {
	store := memory.NewDocumentStore()
	objects := memory.NewObjectStore("")
	svc := catalog.NewService(store, objects, catalog.WithLogger(loggerForTests()))

	oldOrphan := insertProduct(t, store, "old orphan", "", baseTime.Add(-time.Hour))
	if err := objects.Put(context.Background(), domain.ProductImageKey(oldOrphan), []byte("partial")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	insertProduct(t, store, "fresh orphan", "", baseTime.Add(-time.Minute))
	insertProduct(t, store, "linked", "https://storage.local/x.png", baseTime.Add(-time.Hour))
	insertProduct(t, store, "no timestamp", "", time.Time{})

	sweeper := orphan.NewSweeper(store, svc,
		orphan.WithLogger(loggerForTests()),
		orphan.WithGrace(15*time.Minute),
		orphan.WithMetrics(metrics.NewCatalogMetricsWithRegisterer(prometheus.NewRegistry())),
	)

	deleted, err := sweeper.Sweep(context.Background(), baseTime)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted orphan, got %d", deleted)
	}

	left := remainingTitles(t, store)
	if left["old orphan"] || !left["fresh orphan"] || !left["linked"] || !left["no timestamp"] {
		t.Fatalf("unexpected remaining products: %v", left)
	}
	if objects.Len() != 0 {
		t.Fatal("expected partial upload of the orphan to be removed")
	}
}

func TestSweep_RespectsBatchSize(t *testing.T) {
	store := memory.NewDocumentStore()
	svc := catalog.NewService(store, memory.NewObjectStore(""), catalog.WithLogger(loggerForTests()))
	for _, title := range []string{"a", "b", "c"} {
		insertProduct(t, store, title, "", baseTime.Add(-time.Hour))
	}

	sweeper := orphan.NewSweeper(store, svc, orphan.WithLogger(loggerForTests()), orphan.WithBatchSize(2))
	deleted, err := sweeper.Sweep(context.Background(), baseTime)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if deleted != 2 || len(remainingTitles(t, store)) != 1 {
		t.Fatalf("expected batch of 2, deleted=%d", deleted)
	}
}

func TestSweep_Errors(t *testing.T) {
	inner := memory.NewDocumentStore()
	insertProduct(t, inner, "old orphan", "", baseTime.Add(-time.Hour))
	store := mock.NewDocumentStore(inner)
	svc := catalog.NewService(store, memory.NewObjectStore(""), catalog.WithLogger(loggerForTests()))
	sweeper := orphan.NewSweeper(store, svc, orphan.WithLogger(loggerForTests()))

	store.Fail(mock.OpDelete, errors.New("delete rejected"))
	if deleted, err := sweeper.Sweep(context.Background(), baseTime); err == nil || deleted != 0 {
		t.Fatalf("expected delete error, got deleted=%d err=%v", deleted, err)
	}

	store.Fail(mock.OpFind, errors.New("query failed"))
	if _, err := sweeper.Sweep(context.Background(), baseTime); err == nil {
		t.Fatal("expected query error")
	}
}

func TestSweeper_Run_StopsOnContextCancel(t *testing.T) {
	store := memory.NewDocumentStore()
	svc := catalog.NewService(store, memory.NewObjectStore(""), catalog.WithLogger(loggerForTests()))
	sweeper := orphan.NewSweeper(store, svc,
		orphan.WithLogger(loggerForTests()),
		orphan.WithInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeper_Run_DisabledWithoutDeps(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		orphan.NewSweeper(nil, nil, orphan.WithLogger(loggerForTests())).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper must return immediately")
	}
}

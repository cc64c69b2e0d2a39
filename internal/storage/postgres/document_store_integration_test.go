package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestDocumentStore_PostgresInsertFindUpdateDelete(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	docs := NewDocumentStore(store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := docs.Insert(ctx, domain.CollectionProducts, map[string]any{
		"title": "Pho", "price": 12.5, "image": "",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	found, err := docs.Find(ctx, domain.CollectionProducts, domain.Where("title", "Pho"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 1 || found[0].ID != id {
		t.Fatalf("unexpected find result: %+v", found)
	}

	if err := docs.Update(ctx, domain.CollectionProducts, id, map[string]any{"id": id, "image": "https://cdn/x.png"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	found, err = docs.Find(ctx, domain.CollectionProducts, domain.Where("id", id))
	if err != nil {
		t.Fatalf("find by id field: %v", err)
	}
	if len(found) != 1 || found[0].Fields["image"] != "https://cdn/x.png" || found[0].Fields["title"] != "Pho" {
		t.Fatalf("update must merge fields: %+v", found)
	}

	err = docs.Update(ctx, domain.CollectionProducts, "missing", map[string]any{"x": 1})
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	if err := docs.Delete(ctx, domain.CollectionProducts, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := docs.Delete(ctx, domain.CollectionProducts, id); err != nil {
		t.Fatalf("delete of missing record must be a no-op: %v", err)
	}
	found, err = docs.Find(ctx, domain.CollectionProducts, domain.Query{})
	if err != nil {
		t.Fatalf("find after delete: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected empty collection, got %+v", found)
	}
}

func TestDocumentStore_PostgresMaxQuery(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	docs := NewDocumentStore(store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, fields := range []map[string]any{
		{"orderNumber": 3},
		{"orderNumber": 7},
		{"title": "no number"},
		{"orderNumber": 5},
	} {
		if _, err := docs.Insert(ctx, domain.CollectionCarts, fields); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	top, err := docs.Find(ctx, domain.CollectionCarts, domain.Query{
		OrderBy: "orderNumber", Descending: true, Limit: 1,
	})
	if err != nil {
		t.Fatalf("find max: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("expected one record, got %d", len(top))
	}
	if n, ok := domain.AsInt64(top[0].Fields["orderNumber"]); !ok || n != 7 {
		t.Fatalf("expected max orderNumber 7, got %v", top[0].Fields["orderNumber"])
	}
}

func TestDocumentStore_PostgresSubscribe(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	docs := NewDocumentStore(store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := docs.Insert(ctx, domain.CollectionProducts, map[string]any{"title": "Bun"}); err != nil {
		t.Fatalf("insert before subscribe: %v", err)
	}

	sub, err := docs.Subscribe(ctx, domain.CollectionProducts)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	first := <-sub.Events()
	if first.Err != nil || len(first.Records) != 1 {
		t.Fatalf("unexpected initial snapshot: %+v", first)
	}

	if _, err := docs.Insert(ctx, domain.CollectionCarts, map[string]any{"orderNumber": 1}); err != nil {
		t.Fatalf("insert into other collection: %v", err)
	}
	if _, err := docs.Insert(ctx, domain.CollectionProducts, map[string]any{"title": "Pho"}); err != nil {
		t.Fatalf("insert after subscribe: %v", err)
	}

	deadline := time.After(10 * time.Second)
	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				t.Fatal("events closed unexpectedly")
			}
			if event.Err != nil {
				t.Fatalf("unexpected terminal error: %v", event.Err)
			}
			if len(event.Records) == 2 {
				if event.Records[1].Fields["title"] != "Pho" {
					t.Fatalf("snapshot must keep insertion order: %+v", event.Records)
				}
				sub.Close()
				sub.Close()
				for range sub.Events() {
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot with 2 products")
		}
	}
}

func TestObjectStore_PostgresPutResolveDelete(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	objects := NewObjectStore(store, "https://cdn.example.com/")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := domain.ProductImageKey("p-1")
	if _, err := objects.ResolveURL(ctx, key); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound before put, got %v", err)
	}
	if err := objects.Put(ctx, key, []byte("IMG1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := objects.Put(ctx, key, []byte("IMG2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	url, err := objects.ResolveURL(ctx, key)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if url != "https://cdn.example.com/"+key {
		t.Fatalf("unexpected url: %s", url)
	}

	if err := objects.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := objects.ResolveURL(ctx, key); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound after delete, got %v", err)
	}
	if err := objects.Put(ctx, "", nil); err == nil {
		t.Fatal("expected error for empty key")
	}
}

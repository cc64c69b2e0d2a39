package mock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/mock"
)

func TestDocumentStoreMock(t *testing.T) {
	ctx := context.Background()
	store := mock.NewDocumentStore(memory.NewDocumentStore())

	id, err := store.Insert(ctx, "Product", map[string]any{"title": "Pho"})
	if err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	boom := errors.New("update failed")
	store.Fail(mock.OpUpdate, boom)
	if err := store.Update(ctx, "Product", id, map[string]any{"image": "x"}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	store.Fail(mock.OpUpdate, nil)
	if err := store.Update(ctx, "Product", id, map[string]any{"image": "x"}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	if store.Calls(mock.OpInsert) != 1 || store.Calls(mock.OpUpdate) != 2 {
		t.Fatalf("unexpected call counters: insert=%d update=%d", store.Calls(mock.OpInsert), store.Calls(mock.OpUpdate))
	}
}

func TestObjectStoreMock(t *testing.T) {
	ctx := context.Background()
	store := mock.NewObjectStore(memory.NewObjectStore(""))

	store.Fail(mock.OpPut, errors.New("network down"))
	if err := store.Put(ctx, "k", []byte("v")); err == nil {
		t.Fatal("expected put error")
	}
	if _, err := store.ResolveURL(ctx, "k"); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Fatalf("expected object to be absent after failed put, got %v", err)
	}
	if store.Calls(mock.OpPut) != 1 || store.Calls(mock.OpResolve) != 1 {
		t.Fatalf("unexpected call counters: put=%d resolve=%d", store.Calls(mock.OpPut), store.Calls(mock.OpResolve))
	}
}

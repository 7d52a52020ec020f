package database

import (
	"context"
	"errors"
	"testing"
)

func TestInterfaceCache(t *testing.T) {
	dbName := "testing-cache"
	_, err := Register(&Database{
		Name:        dbName,
		Description: "Unit Test Database for the interface read cache",
		StorageType: "hashmap",
	})
	if err != nil {
		t.Fatal(err)
	}

	cached := NewInterface(&Options{CacheSize: 8})
	raw := NewInterface(nil)

	A := NewExample(makeKey(dbName, "A"), "Alice", 1)
	if err := cached.Put(A); err != nil {
		t.Fatal(err)
	}

	// Writes through another interface are not seen while the record
	// is cached. This is the documented staleness caveat.
	A2 := NewExample(makeKey(dbName, "A"), "Alice II", 99)
	if err := raw.Put(A2); err != nil {
		t.Fatal(err)
	}
	r, err := cached.Get(makeKey(dbName, "A"))
	if err != nil {
		t.Fatal(err)
	}
	if example, ok := r.(*Example); !ok || example.Score != 1 {
		t.Fatalf("expected cached record with score 1, got %+v", r)
	}

	// Delete must also remove the record from the cache.
	if err := cached.Delete(makeKey(dbName, "A")); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.Get(makeKey(dbName, "A")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Purge must clear the cache, as it may hold purged records.
	B := NewExample(makeKey(dbName, "B"), "Bob", 2)
	if err := cached.Put(B); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.Get(makeKey(dbName, "B")); err != nil {
		t.Fatal(err)
	}
	n, err := cached.Purge(context.TODO(), dbName+":")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected one purged record, got %d", n)
	}
	if _, err := cached.Get(makeKey(dbName, "B")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after purge, got %v", err)
	}
}

package record

import (
	"sync"
	"testing"
)

// TestRecord is a minimal record implementation for tests.
type TestRecord struct {
	Base
	sync.Mutex

	S string
}

func TestBaseRecord(t *testing.T) {
	t.Parallel()

	// check model interface compliance
	var m Record
	b := &TestRecord{}
	m = b
	_ = m
}

func TestKeyHandling(t *testing.T) {
	t.Parallel()

	b := &TestRecord{}
	if b.KeyIsSet() {
		t.Error("key must not be set on new record")
	}

	b.SetKey("cache:rdap/domain/example.com")
	if !b.KeyIsSet() {
		t.Error("key must be set")
	}
	if b.DatabaseName() != "cache" {
		t.Errorf("unexpected database name: %s", b.DatabaseName())
	}
	if b.DatabaseKey() != "rdap/domain/example.com" {
		t.Errorf("unexpected database key: %s", b.DatabaseKey())
	}
	if b.Key() != "cache:rdap/domain/example.com" {
		t.Errorf("unexpected key: %s", b.Key())
	}

	// setting the key again must be ignored
	b.SetKey("cache:other")
	if b.Key() != "cache:rdap/domain/example.com" {
		t.Errorf("key must not be replaceable, got: %s", b.Key())
	}
}

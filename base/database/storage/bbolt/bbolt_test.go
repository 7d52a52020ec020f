package bbolt

import (
	"context"
	"errors"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/safing/rdapd/base/database/record"
	"github.com/safing/rdapd/base/database/storage"
)

var (
	// Compile time interface checks.
	_ storage.Interface = &BBolt{}
	_ storage.Purger    = &BBolt{}
)

type TestRecord struct { //nolint:maligned
	record.Base
	sync.Mutex
	S    string
	I    int
	I8   int8
	I16  int16
	I32  int32
	I64  int64
	UI   uint
	UI8  uint8
	UI16 uint16
	UI32 uint32
	UI64 uint64
	F32  float32
	F64  float64
	B    bool
}

func TestBBolt(t *testing.T) {
	t.Parallel()

	testDir, err := os.MkdirTemp("", "testing-")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.RemoveAll(testDir) // clean up
	}()

	// start
	db, err := NewBBolt("test", testDir)
	if err != nil {
		t.Fatal(err)
	}

	a := &TestRecord{
		S:    "banana",
		I:    42,
		I8:   42,
		I16:  42,
		I32:  42,
		I64:  42,
		UI:   42,
		UI8:  42,
		UI16: 42,
		UI32: 42,
		UI64: 42,
		F32:  42.42,
		F64:  42.42,
		B:    true,
	}
	a.SetMeta(&record.Meta{})
	a.Meta().Update()
	a.SetKey("test:A")

	// put record
	_, err = db.Put(a)
	if err != nil {
		t.Fatal(err)
	}

	// get and compare
	r1, err := db.Get("A")
	if err != nil {
		t.Fatal(err)
	}

	a1 := &TestRecord{}
	err = record.Unwrap(r1, a1)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a, a1) {
		t.Fatalf("mismatch, got %v", a1)
	}

	// insert-only put must fail for a valid existing record
	b := &TestRecord{S: "impostor"}
	b.SetMeta(&record.Meta{})
	b.Meta().Update()
	b.SetKey("test:A")
	_, err = db.PutNew(b)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// expired records do not block an insert-only put
	e := &TestRecord{}
	e.SetMeta(&record.Meta{})
	e.Meta().Update()
	e.Meta().SetAbsoluteExpiry(time.Now().Unix() - 10)
	e.SetKey("test:expired")
	_, err = db.Put(e)
	if err != nil {
		t.Fatal(err)
	}
	e2 := &TestRecord{S: "fresh"}
	e2.SetMeta(&record.Meta{})
	e2.Meta().Update()
	e2.SetKey("test:expired")
	_, err = db.PutNew(e2)
	if err != nil {
		t.Fatal(err)
	}

	// setup query test records
	qA := &TestRecord{}
	qA.SetKey("test:path/to/A")
	qA.CreateMeta()
	qB := &TestRecord{}
	qB.SetKey("test:path/to/B")
	qB.CreateMeta()
	qC := &TestRecord{}
	qC.SetKey("test:path/to/C")
	qC.CreateMeta()
	qZ := &TestRecord{}
	qZ.SetKey("test:z")
	qZ.CreateMeta()
	// put
	_, err = db.Put(qA)
	if err == nil {
		_, err = db.Put(qB)
	}
	if err == nil {
		_, err = db.Put(qC)
	}
	if err == nil {
		_, err = db.Put(qZ)
	}
	if err != nil {
		t.Fatal(err)
	}

	// test query
	it, err := db.Query("path/to/")
	if err != nil {
		t.Fatal(err)
	}
	cnt := 0
	for range it.Next {
		cnt++
	}
	if it.Err() != nil {
		t.Fatal(it.Err())
	}
	if cnt != 3 {
		t.Fatalf("unexpected query result count: %d", cnt)
	}

	// delete
	err = db.Delete("A")
	if err != nil {
		t.Fatal(err)
	}

	// check if its gone
	_, err = db.Get("A")
	if err == nil {
		t.Fatal("should fail")
	}

	// purging
	purger, ok := db.(storage.Purger)
	if ok {
		n, err := purger.Purge(context.TODO(), "path/to/")
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Fatalf("unexpected purge delete count: %d", n)
		}
	} else {
		t.Fatal("should implement Purger")
	}

	// test query
	it, err = db.Query("path/to/")
	if err != nil {
		t.Fatal(err)
	}
	cnt = 0
	for range it.Next {
		cnt++
	}
	if it.Err() != nil {
		t.Fatal(it.Err())
	}
	if cnt != 0 {
		t.Fatalf("unexpected query result count: %d", cnt)
	}

	// shutdown
	err = db.Shutdown()
	if err != nil {
		t.Fatal(err)
	}
}

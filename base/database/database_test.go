package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime/pprof"
	"sync"
	"testing"
	"time"

	_ "github.com/safing/rdapd/base/database/storage/bbolt"
	_ "github.com/safing/rdapd/base/database/storage/hashmap"
)

func TestMain(m *testing.M) {
	testDir, err := os.MkdirTemp("", "rdapd-database-testing-")
	if err != nil {
		panic(err)
	}

	err = Initialize(testDir)
	if err != nil {
		panic(err)
	}

	exitCode := m.Run()

	// Clean up the test directory.
	// Do not defer, as we end this function with a os.Exit call.
	_ = os.RemoveAll(testDir)

	os.Exit(exitCode)
}

func makeKey(dbName, key string) string {
	return fmt.Sprintf("%s:%s", dbName, key)
}

func testDatabase(t *testing.T, storageType string) { //nolint:thelper
	t.Run(fmt.Sprintf("TestStorage_%s", storageType), func(t *testing.T) {
		dbName := fmt.Sprintf("testing-%s", storageType)
		_, err := Register(&Database{
			Name:        dbName,
			Description: fmt.Sprintf("Unit Test Database for %s", storageType),
			StorageType: storageType,
		})
		if err != nil {
			t.Fatal(err)
		}

		// interface
		db := NewInterface(nil)

		A := NewExample(dbName+":A", "Herbert", 411)
		err = A.Save()
		if err != nil {
			t.Fatal(err)
		}

		B := NewExample(makeKey(dbName, "B"), "Fritz", 347)
		err = B.Save()
		if err != nil {
			t.Fatal(err)
		}

		C := NewExample(makeKey(dbName, "C"), "Norbert", 217)
		err = C.Save()
		if err != nil {
			t.Fatal(err)
		}

		exists, err := db.Exists(makeKey(dbName, "A"))
		if err != nil {
			t.Fatal(err)
		}
		if !exists {
			t.Fatalf("record %s should exist!", makeKey(dbName, "A"))
		}

		A1, err := GetExample(makeKey(dbName, "A"))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(A, A1) {
			t.Fatalf("A and A1 mismatch, A1: %v", A1)
		}

		cnt := countRecords(t, db, dbName+":")
		if cnt != 3 {
			t.Fatalf("expected three records, got %d", cnt)
		}

		// unique insert: key is already taken
		A2 := NewExample(makeKey(dbName, "A"), "Impostor", 1)
		err = A2.SaveNew()
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}

		// unique insert: new key
		D := NewExample(makeKey(dbName, "D"), "Dora", 555)
		err = D.SaveNew()
		if err != nil {
			t.Fatal(err)
		}

		// delete
		err = db.Delete(makeKey(dbName, "D"))
		if err != nil {
			t.Fatal(err)
		}
		_, err = db.Get(makeKey(dbName, "D"))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		// a deleted record must not block a new insert
		D2 := NewExample(makeKey(dbName, "D"), "Dora II", 556)
		err = D2.SaveNew()
		if err != nil {
			t.Fatal(err)
		}

		// purge
		n, err := db.Purge(context.TODO(), dbName+":")
		if err != nil {
			t.Fatal(err)
		}
		if n != 4 {
			t.Fatalf("expected four purged records, got %d", n)
		}
		cnt = countRecords(t, db, dbName+":")
		if cnt != 0 {
			t.Fatalf("expected no records after purge, got %d", cnt)
		}
	})
}

func testConcurrentPutNew(t *testing.T, storageType string) { //nolint:thelper
	t.Run(fmt.Sprintf("TestConcurrentPutNew_%s", storageType), func(t *testing.T) {
		dbName := fmt.Sprintf("testing-putnew-%s", storageType)
		_, err := Register(&Database{
			Name:        dbName,
			Description: "Unit Test Database for concurrent unique inserts",
			StorageType: storageType,
		})
		if err != nil {
			t.Fatal(err)
		}

		db := NewInterface(nil)

		// Many writers race on the same key: exactly one insert must win,
		// all others must report ErrAlreadyExists.
		const writers = 16
		var wg sync.WaitGroup
		var wins, conflicts int64
		var winsLock sync.Mutex

		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				r := NewExample(makeKey(dbName, "contested"), fmt.Sprintf("Writer %d", n), n)
				err := db.PutNew(r)
				winsLock.Lock()
				defer winsLock.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, ErrAlreadyExists):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 {
			t.Errorf("expected exactly one winner, got %d", wins)
		}
		if conflicts != writers-1 {
			t.Errorf("expected %d conflicts, got %d", writers-1, conflicts)
		}
	})
}

func TestDatabaseSystem(t *testing.T) { //nolint:tparallel
	t.Parallel()

	// panic after 10 seconds, to check for locks
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-finished:
		case <-time.After(10 * time.Second):
			fmt.Println("===== TAKING TOO LONG - PRINTING STACK TRACES =====")
			_ = pprof.Lookup("goroutine").WriteTo(os.Stdout, 1)
			os.Exit(1)
		}
	}()

	testDatabase(t, "bbolt")
	testDatabase(t, "hashmap")
	testConcurrentPutNew(t, "bbolt")
	testConcurrentPutNew(t, "hashmap")

	err := Shutdown()
	if err != nil {
		t.Fatal(err)
	}
}

func countRecords(t *testing.T, db *Interface, prefix string) int {
	t.Helper()

	it, err := db.Query(prefix)
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
	return cnt
}

package lookup

import (
	"context"
	"encoding/json"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/rdapd/base/database"
	_ "github.com/safing/rdapd/base/database/storage/hashmap"
)

func TestMain(m *testing.M) {
	testDir, err := os.MkdirTemp("", "rdapd-lookup-testing-")
	if err != nil {
		panic(err)
	}

	err = database.Initialize(testDir)
	if err != nil {
		panic(err)
	}

	_, err = database.Register(&database.Database{
		Name:        "cache",
		Description: "Unit Test Lookup Cache",
		StorageType: "hashmap",
	})
	if err != nil {
		panic(err)
	}

	exitCode := m.Run()

	// Clean up the test directory.
	// Do not defer, as we end this function with a os.Exit call.
	_ = os.RemoveAll(testDir)

	os.Exit(exitCode)
}

func testPayload(t *testing.T, doc string) json.RawMessage {
	t.Helper()
	require.True(t, json.Valid([]byte(doc)), "test payload must be valid JSON")
	return json.RawMessage(doc)
}

func TestDomainRecord(t *testing.T) {
	payload := testPayload(t, `{"objectClassName":"domain","ldhName":"RECORDS-TEST.COM"}`)

	rec := &DomainRecord{
		Domain:      "records-test.com",
		Payload:     payload,
		FetchedFrom: "https://rdap.example.org/domain/records-test.com",
		FetchedAt:   time.Now(),
	}
	require.NoError(t, rec.Save())

	got, err := GetDomainRecord("records-test.com")
	require.NoError(t, err)
	assert.Equal(t, "records-test.com", got.Domain)
	assert.JSONEq(t, string(payload), string(got.Payload))
	assert.Equal(t, rec.FetchedFrom, got.FetchedFrom)

	_, err = GetDomainRecord("never-cached.example")
	assert.ErrorIs(t, err, database.ErrNotFound)

	// A second insert for the same domain must fail, the cache only accepts
	// the first result.
	dup := &DomainRecord{
		Domain:  "records-test.com",
		Payload: testPayload(t, `{"objectClassName":"domain","ldhName":"OTHER"}`),
	}
	assert.ErrorIs(t, dup.Save(), database.ErrAlreadyExists)

	empty := &DomainRecord{Payload: payload}
	assert.Error(t, empty.Save())
}

func TestFindIPRecordMostSpecific(t *testing.T) {
	payloads := map[string]json.RawMessage{
		"11.0.0.0/8":    testPayload(t, `{"objectClassName":"ip network","handle":"NET-11-8"}`),
		"11.22.0.0/16":  testPayload(t, `{"objectClassName":"ip network","handle":"NET-11-16"}`),
		"11.22.33.0/24": testPayload(t, `{"objectClassName":"ip network","handle":"NET-11-24"}`),
	}
	for cidr, payload := range payloads {
		rec := &IPRecord{
			CIDR:      cidr,
			Payload:   payload,
			FetchedAt: time.Now(),
		}
		require.NoErrorf(t, rec.Save(), "saving %s", cidr)
	}

	// The narrowest containing block wins.
	got, err := FindIPRecord(netip.MustParseAddr("11.22.33.44"))
	require.NoError(t, err)
	assert.Equal(t, "11.22.33.0/24", got.CIDR)

	got, err = FindIPRecord(netip.MustParseAddr("11.22.99.1"))
	require.NoError(t, err)
	assert.Equal(t, "11.22.0.0/16", got.CIDR)

	got, err = FindIPRecord(netip.MustParseAddr("11.99.0.1"))
	require.NoError(t, err)
	assert.Equal(t, "11.0.0.0/8", got.CIDR)

	// 4-in-6 form matches the v4 block.
	got, err = FindIPRecord(netip.MustParseAddr("::ffff:11.22.33.44"))
	require.NoError(t, err)
	assert.Equal(t, "11.22.33.0/24", got.CIDR)

	_, err = FindIPRecord(netip.MustParseAddr("12.0.0.1"))
	assert.ErrorIs(t, err, database.ErrNotFound)

	dup := &IPRecord{CIDR: "11.0.0.0/8", Payload: payloads["11.0.0.0/8"]}
	assert.ErrorIs(t, dup.Save(), database.ErrAlreadyExists)
}

func TestFindIPRecordV6(t *testing.T) {
	rec := &IPRecord{
		CIDR:      "2001:db8:1::/48",
		Payload:   testPayload(t, `{"objectClassName":"ip network","handle":"NET6-DB8"}`),
		FetchedAt: time.Now(),
	}
	require.NoError(t, rec.Save())

	got, err := FindIPRecord(netip.MustParseAddr("2001:db8:1::77"))
	require.NoError(t, err)
	assert.Equal(t, "2001:db8:1::/48", got.CIDR)

	_, err = FindIPRecord(netip.MustParseAddr("2001:db8:2::77"))
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestFindASNRecordNarrowestRange(t *testing.T) {
	for _, rec := range []*ASNRecord{
		{StartASN: 60000, EndASN: 61000, Payload: testPayload(t, `{"objectClassName":"autnum","handle":"AS-BLOCK"}`)},
		{StartASN: 60100, EndASN: 60100, Payload: testPayload(t, `{"objectClassName":"autnum","handle":"AS-SINGLE"}`)},
	} {
		require.NoError(t, rec.Save())
	}

	got, err := FindASNRecord(60100)
	require.NoError(t, err)
	assert.Equal(t, uint32(60100), got.StartASN)
	assert.Equal(t, uint32(60100), got.EndASN)

	got, err = FindASNRecord(60500)
	require.NoError(t, err)
	assert.Equal(t, uint32(60000), got.StartASN)
	assert.Equal(t, uint32(61000), got.EndASN)

	_, err = FindASNRecord(59999)
	assert.ErrorIs(t, err, database.ErrNotFound)

	inverted := &ASNRecord{StartASN: 10, EndASN: 5}
	assert.Error(t, inverted.Save())
}

func TestParseASNKey(t *testing.T) {
	t.Parallel()

	start, end, err := parseASNKey("100-200")
	require.NoError(t, err)
	assert.Equal(t, uint32(100), start)
	assert.Equal(t, uint32(200), end)

	for _, key := range []string{"", "100", "200-100", "a-b", "100-"} {
		_, _, err := parseASNKey(key)
		assert.Errorf(t, err, "key %q should not parse", key)
	}

	assert.Equal(t, "100-200", makeASNKey(100, 200))
}

func TestClearCache(t *testing.T) {
	rec := &DomainRecord{
		Domain:  "clear-cache-test.com",
		Payload: testPayload(t, `{"objectClassName":"domain","ldhName":"CLEAR-CACHE-TEST.COM"}`),
	}
	require.NoError(t, rec.Save())

	n, err := clearCache(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	_, err = GetDomainRecord("clear-cache-test.com")
	assert.ErrorIs(t, err, database.ErrNotFound)
}
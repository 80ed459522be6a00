package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobhunter/internal/hash/sha256"
	"github.com/JakeFAU/jobhunter/internal/jobs"
)

func TestEncodeTagsCopyAndIsStable(t *testing.T) {
	t.Parallel()

	h := sha256.New()
	rec := jobs.Record{"company": "Acme", "title": "Engineer"}

	name, data, err := Encode(h, rec, "linkedinjobs")
	require.NoError(t, err)
	assert.Regexp(t, `^linkedinjobs-[0-9a-f]{64}\.json$`, name)
	assert.Contains(t, string(data), `"source":"linkedinjobs"`)
	_, tagged := rec["source"]
	assert.False(t, tagged, "input record must not be mutated")

	again, _, err := Encode(h, jobs.Record{"title": "Engineer", "company": "Acme"}, "linkedinjobs")
	require.NoError(t, err)
	assert.Equal(t, name, again)

	other, _, err := Encode(h, rec, "processed")
	require.NoError(t, err)
	assert.NotEqual(t, name, other)
}

func TestEncodeRequiresSource(t *testing.T) {
	t.Parallel()

	_, _, err := Encode(sha256.New(), jobs.Record{}, " ")
	require.Error(t, err)
	_, _, err = Encode(nil, jobs.Record{}, "x")
	require.Error(t, err)
}

func TestEncodeUnsupportedValue(t *testing.T) {
	t.Parallel()

	_, _, err := Encode(sha256.New(), jobs.Record{"ch": make(chan int)}, "x")
	require.Error(t, err)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	items, err := Decode([]byte(`[{"a":1}, "loose", {"b":2}]`))
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "loose", items[1])

	items, err = Decode([]byte(` {"company":"Acme"} `))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, map[string]any{"company": "Acme"}, items[0])

	items, err = Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = Decode([]byte(`42`))
	require.Error(t, err)
	_, err = Decode([]byte(`[{"a":`))
	require.Error(t, err)
}

func TestIsObjectName(t *testing.T) {
	t.Parallel()

	assert.True(t, IsObjectName("linkedinjobs-abc.json"))
	assert.False(t, IsObjectName(".tmp-123.json"))
	assert.False(t, IsObjectName("notes.txt"))
}

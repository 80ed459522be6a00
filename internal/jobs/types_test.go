package jobs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCollisionPolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseCollisionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, CollisionOverwrite, p)

	p, err = ParseCollisionPolicy("keep_first")
	require.NoError(t, err)
	assert.Equal(t, CollisionKeepFirst, p)

	_, err = ParseCollisionPolicy("merge")
	assert.Error(t, err)
}

func TestHarvestSummaryAdd(t *testing.T) {
	t.Parallel()

	total := HarvestSummary{PagesSubmitted: 2, PagesSucceeded: 1, PagesFailed: 1, RecordsSaved: 3}
	total.Add(HarvestSummary{PagesSubmitted: 1, PagesEmpty: 1, PagesSucceeded: 1, RecordsUnsaved: 2})

	assert.Equal(t, HarvestSummary{
		PagesSubmitted: 3,
		PagesSucceeded: 2,
		PagesFailed:    1,
		PagesEmpty:     1,
		RecordsSaved:   3,
		RecordsUnsaved: 2,
	}, total)
}

func TestUpsertResultWritten(t *testing.T) {
	t.Parallel()

	r := UpsertResult{Inserted: 1, Updated: 2}
	r.Add(UpsertResult{Unchanged: 1, Skipped: 4, Failed: 1})
	assert.Equal(t, 4, r.Written())
	assert.Equal(t, 4, r.Skipped)
}

func TestErrorsUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	fetchErr := &FetchError{Task: PageTask{SearchTerm: "Engineer", Location: "Remote", Page: 1}, Err: cause}
	assert.ErrorIs(t, fetchErr, cause)
	assert.Contains(t, fetchErr.Error(), "page 1")

	driverErr := &DriverError{Position: "Engineer", Location: "Remote", Err: cause}
	assert.ErrorIs(t, driverErr, cause)
}

func TestRecordString(t *testing.T) {
	t.Parallel()

	r := Record{"company": "Acme", "count": 3}
	assert.Equal(t, "Acme", r.Field("company"))
	assert.Equal(t, "3", r.Field("count"))
	assert.Equal(t, "", r.Field("missing"))

	clone := r.Clone()
	clone["company"] = "Other"
	assert.Equal(t, "Acme", r["company"])
}

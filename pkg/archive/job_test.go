package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_Marshal_WireFormat(t *testing.T) {
	job := testJob("/aws/lambda/a")
	job.Tags = map[string]string{"team": "platform"}

	body, err := job.Marshal()
	require.NoError(t, err)

	// The queue message keys are part of the contract with the consumer.
	s := string(body)
	assert.Contains(t, s, `"logGroupName":"/aws/lambda/a"`)
	assert.Contains(t, s, `"exportJobParams"`)
	assert.Contains(t, s, `"exportFromDate":1000`)
	assert.Contains(t, s, `"exportToDate":87401000`)
	assert.Contains(t, s, `"logGroupArn"`)
	assert.NotContains(t, s, "skipExport", "a false skip flag is omitted from the wire")
}

func TestUnmarshalJob_Malformed(t *testing.T) {
	_, err := UnmarshalJob([]byte("{not json"))
	assert.Error(t, err)
}

func TestParseBookmark(t *testing.T) {
	tags := map[string]string{
		TagPreviousExportToDate:   "1700000000000",
		TagPreviousExportFromDate: "garbage",
		TagLastRunStatus:          "",
	}

	ms, ok := ParseBookmark(tags, TagPreviousExportToDate)
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000000), ms)

	_, ok = ParseBookmark(tags, TagPreviousExportFromDate)
	assert.False(t, ok, "a malformed bookmark must be treated as absent")

	_, ok = ParseBookmark(tags, TagLastRunStatus)
	assert.False(t, ok)

	_, ok = ParseBookmark(tags, "Missing")
	assert.False(t, ok)

	_, ok = ParseBookmark(nil, TagPreviousExportToDate)
	assert.False(t, ok)
}

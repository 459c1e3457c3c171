package names

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 7, 12, 34, 56, 789000000, time.UTC)
	s := Stamp(ts)
	assert.Equal(t, "2024-03-07T12:34:56.789000", s)

	parsed, err := ParseStamp(s)
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
}

func TestSplitStampNoHost(t *testing.T) {
	name := SnapshotName("data", time.Date(2024, 3, 7, 12, 34, 56, 0, time.UTC), "")
	p, err := SplitStamp(name)
	require.NoError(t, err)
	assert.Equal(t, "data", p.Base)
	assert.Empty(t, p.Host)
}

func TestSplitStampWithHost(t *testing.T) {
	ts := time.Date(2024, 3, 7, 12, 34, 56, 0, time.UTC)
	name := SnapshotName("data", ts, "backup01")
	p, err := SplitStamp(name)
	require.NoError(t, err)
	assert.Equal(t, "data", p.Base)
	assert.Equal(t, "backup01", p.Host)
	assert.True(t, ts.Equal(p.Timestamp))
}

func TestSplitStampRejectsBareName(t *testing.T) {
	_, err := SplitStamp("data")
	assert.Error(t, err)
}

func TestValidateNameRejectsTraversal(t *testing.T) {
	for _, bad := range []string{"", ".", "..", "a/b", "a\x00b"} {
		assert.Error(t, ValidateName(bad), "expected error for %q", bad)
	}
	assert.NoError(t, ValidateName("data"))
	assert.NoError(t, ValidateName("data@2024-03-07T12:34:56.000000"))
}

func TestVolumePathRejectsTraversal(t *testing.T) {
	_, err := VolumePath("/volumes", "../etc")
	assert.Error(t, err)

	p, err := VolumePath("/volumes", "data")
	require.NoError(t, err)
	assert.Equal(t, "/volumes/data", p)
}

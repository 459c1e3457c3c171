package subvolume

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseShow(t *testing.T) {
	raw := "/volumes/data\n" +
		"\tName:                   data\n" +
		"\tUUID:                   abcd-1234\n" +
		"\tParent UUID:            -\n" +
		"\tCreation time:          2024-01-01 00:00:00 +0000\n" +
		"\tSubvolume ID:           258\n" +
		"\tGeneration:             10\n" +
		"\tFlags:                  -\n" +
		"\n" +
		"\tSnapshot(s):\n" +
		"\t                        snapshots/data@2024-01-01T00:00:00.000000\n"

	info := parseShow(raw)
	assert.Equal(t, "data", info.Fields["Name"])
	assert.Equal(t, "abcd-1234", info.Fields["UUID"])
	assert.Equal(t, "-", info.Fields["Flags"])
	if assert.Len(t, info.Snapshots, 1) {
		assert.Equal(t, "snapshots/data@2024-01-01T00:00:00.000000", info.Snapshots[0])
	}
}

func TestCommandErrorNotValidSubvolume(t *testing.T) {
	err := &CommandError{Op: "delete", Stderr: "ERROR: cannot access 'x': No such file or directory"}
	assert.True(t, err.NotValidSubvolume())

	err2 := &CommandError{Op: "delete", Stderr: "ERROR: Operation not permitted"}
	assert.False(t, err2.NotValidSubvolume())
}

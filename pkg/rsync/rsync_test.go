package rsync

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncAllPairsSucceed(t *testing.T) {
	p := New("/volumes", 22)
	var got [][]string
	p.runCmd = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		got = append(got, args)
		return []byte("ok"), nil
	}

	err := p.Sync(context.Background(), []string{"v1", "v2"}, []string{"host1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, args := range got {
		assert.Contains(t, args, "--update")
	}
}

func TestSyncPartialFailureCollectsAllErrors(t *testing.T) {
	p := New("/volumes", 22)
	p.runCmd = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		for _, a := range args {
			if strings.Contains(a, "host2:") {
				return []byte("connection refused"), assertErr{}
			}
		}
		return []byte("ok"), nil
	}

	err := p.Sync(context.Background(), []string{"v1"}, []string{"host1", "host2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host2")
	assert.NotContains(t, err.Error(), "v1 from host1")
}

type assertErr struct{}

func (assertErr) Error() string { return "simulated rsync failure" }

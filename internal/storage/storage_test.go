package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/pkg/logx"
)

func record(i int) Record {
	return Record{
		At:         time.Date(2024, 3, 1, 10, 0, i, 0, time.UTC),
		Tick:       uint64(i),
		Type:       "behavior.ended",
		BehaviorID: fmt.Sprintf("bhv_%d", i),
		Name:       fmt.Sprintf("wave-%d", i),
		Resources:  []string{"arm"},
		Reason:     "finished",
		ElapsedMS:  int64(i * 10),
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
	_, err := Open(Config{Driver: "postgres"}, logx.Nop())
	assert.Error(t, err)
	_, err = Open(Config{Driver: "file"}, logx.Nop())
	assert.Error(t, err, "path required")
}

func TestDrivers(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", "journal."+driver)
			st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			require.NoError(t, err)

			got, err := st.Recent(ctx, 10)
			require.NoError(t, err)
			assert.Empty(t, got)

			for i := 1; i <= 5; i++ {
				require.NoError(t, st.AppendEvent(ctx, record(i)))
			}
			got, err = st.Recent(ctx, 3)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "wave-3", got[0].Name)
			assert.Equal(t, "wave-5", got[2].Name)
			assert.Equal(t, uint64(5), got[2].Tick)
			assert.Equal(t, []string{"arm"}, got[2].Resources)
			assert.True(t, record(5).At.Equal(got[2].At))
			require.NoError(t, st.Close())

			// Records survive reopen.
			st, err = Open(Config{Driver: driver, Path: path}, logx.Nop())
			require.NoError(t, err)
			defer st.Close()
			got, err = st.Recent(ctx, 100)
			require.NoError(t, err)
			assert.Len(t, got, 5)
		})
	}
}

func TestFileCompaction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	st, err := Open(Config{Driver: "file", Path: path, Retain: 10}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	for i := 0; i < compactEvery; i++ {
		require.NoError(t, st.AppendEvent(ctx, record(i)))
	}
	n, err := countLines(path)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	require.NoError(t, st.AppendEvent(ctx, record(compactEvery)))
	got, err := st.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(compactEvery), got[1].Tick)
}

func TestTailSkipsGarbage(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "j.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"type\":\"a\"}\nnot json\n{\"type\":\"b\"}\n"), 0o600))
	got, err := tail(path, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].Type)
}

package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReplay(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	store.Append("sess-1", Record{Role: "user", Text: "hello"})
	store.Append("sess-1", Record{Role: "agent", Text: "hi there"})
	store.Append("sess-2", Record{Role: "user", Text: "other session"})

	var replayed []Record
	require.NoError(t, store.Replay("sess-1", func(rec Record) error {
		replayed = append(replayed, rec)
		return nil
	}))

	require.Len(t, replayed, 2)
	assert.Equal(t, "user", replayed[0].Role)
	assert.Equal(t, "hello", replayed[0].Text)
	assert.Equal(t, "agent", replayed[1].Role)
	assert.False(t, replayed[0].Time.IsZero())
}

func TestReplayMissingSession(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	require.NoError(t, store.Replay("nope", func(Record) error {
		t.Fatal("callback should not run")
		return nil
	}))
}

func TestReplaySkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	store.Append("sess-1", Record{Role: "user", Text: "before"})

	f, err := os.OpenFile(filepath.Join(dir, "sess-1.jsonl"), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{corrupt\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	store.Append("sess-1", Record{Role: "agent", Text: "after"})

	var texts []string
	require.NoError(t, store.Replay("sess-1", func(rec Record) error {
		texts = append(texts, rec.Text)
		return nil
	}))
	assert.Equal(t, []string{"before", "after"}, texts)
}

func TestAppendWithoutDirIsNoop(t *testing.T) {
	store := NewStore("", nil)
	store.Append("sess-1", Record{Role: "user", Text: "dropped"})
	require.NoError(t, store.Replay("sess-1", func(Record) error {
		t.Fatal("nothing should replay")
		return nil
	}))
}

func TestAppendPreservesExplicitTime(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	stamp := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	store.Append("sess-1", Record{Time: stamp, Role: "user", Text: "pi day"})

	var got Record
	require.NoError(t, store.Replay("sess-1", func(rec Record) error {
		got = rec
		return nil
	}))
	assert.True(t, got.Time.Equal(stamp))
}

func TestMetaSaveAndLoad(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	_, ok := store.LoadMeta("sess-1")
	assert.False(t, ok)

	store.SaveMeta("sess-1", Meta{
		BackendSessionID: "be-99",
		CWD:              "/work",
		ModeID:           "acceptEdits",
		ModelID:          "gpt-5.2",
	})

	meta, ok := store.LoadMeta("sess-1")
	require.True(t, ok)
	assert.Equal(t, "be-99", meta.BackendSessionID)
	assert.Equal(t, "/work", meta.CWD)
	assert.Equal(t, "acceptEdits", meta.ModeID)
	assert.Equal(t, "gpt-5.2", meta.ModelID)
}

package messagelog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/business-discovery/internal/storage/memory"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newLog() (*Log, *memory.ObjectStore) {
	objects := memory.NewObjectStore()
	return New(objects, &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}), objects
}

func appendN(t *testing.T, l *Log, n int) []Message {
	t.Helper()
	out := make([]Message, 0, n)
	for i := range n {
		m, err := l.Append(context.Background(), "u1", "c1", Message{
			Direction: DirectionIn,
			Data:      json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
		})
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestAppendWritesJSONLines(t *testing.T) {
	t.Parallel()

	l, objects := newLog()
	appendN(t, l, 2)

	body, err := objects.GetObject(context.Background(), "users/u1/conversations/c1/messages.jsonl")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	require.JSONEq(t, `{"ts":"2026-01-01T00:00:01Z","direction":"in","data":{"n":0}}`, lines[0])
}

func TestAppendValidates(t *testing.T) {
	t.Parallel()

	l, _ := newLog()
	ctx := context.Background()
	tests := []struct {
		name     string
		uid, cid string
		msg      Message
	}{
		{"direction", "u", "c", Message{Direction: "sideways"}},
		{"data", "u", "c", Message{Direction: DirectionOut, Data: json.RawMessage("{nope")}},
		{"empty user", "", "c", Message{Direction: DirectionIn}},
		{"traversal", "..", "c", Message{Direction: DirectionIn}},
		{"slash", "u", "a/b", Message{Direction: DirectionIn}},
	}
	for _, tt := range tests {
		_, err := l.Append(ctx, tt.uid, tt.cid, tt.msg)
		require.ErrorIs(t, err, ErrInvalid, tt.name)
	}
}

func TestReadNewestFirstWithCursor(t *testing.T) {
	t.Parallel()

	l, _ := newLog()
	written := appendN(t, l, 5)
	ctx := context.Background()

	page, err := l.Read(ctx, "u1", "c1", ReadOptions{Limit: 2})
	require.NoError(t, err)
	require.True(t, page.HasMore)
	require.Equal(t, []string{written[4].TS, written[3].TS}, tss(page.Messages))

	page, err = l.Read(ctx, "u1", "c1", ReadOptions{Limit: 2, Before: page.Messages[1].TS})
	require.NoError(t, err)
	require.True(t, page.HasMore)
	require.Equal(t, []string{written[2].TS, written[1].TS}, tss(page.Messages))

	page, err = l.Read(ctx, "u1", "c1", ReadOptions{Limit: 2, Before: page.Messages[1].TS})
	require.NoError(t, err)
	require.False(t, page.HasMore)
	require.Equal(t, []string{written[0].TS}, tss(page.Messages))

	page, err = l.Read(ctx, "u1", "c1", ReadOptions{Before: "unknown"})
	require.NoError(t, err)
	require.Len(t, page.Messages, 5)
	require.False(t, page.HasMore)
}

func TestReadMissingAndDelete(t *testing.T) {
	t.Parallel()

	l, _ := newLog()
	ctx := context.Background()

	page, err := l.Read(ctx, "u1", "c1", ReadOptions{})
	require.NoError(t, err)
	require.Empty(t, page.Messages)
	require.NotNil(t, page.Messages)

	appendN(t, l, 1)
	require.NoError(t, l.Delete(ctx, "u1", "c1"))
	page, err = l.Read(ctx, "u1", "c1", ReadOptions{})
	require.NoError(t, err)
	require.Empty(t, page.Messages)
}

func TestConcurrentAppends(t *testing.T) {
	t.Parallel()

	l, _ := newLog()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Append(context.Background(), "u1", "c1", Message{Direction: DirectionOut})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	page, err := l.Read(context.Background(), "u1", "c1", ReadOptions{Limit: 100})
	require.NoError(t, err)
	require.Len(t, page.Messages, 10)
}

func tss(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.TS
	}
	return out
}

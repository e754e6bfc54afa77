package transcript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// historyPager serves a chronological history newest-first, page by page.
type historyPager struct {
	history []gateway.Message
	calls   []string
	err     error
}

func (p *historyPager) FetchMessages(_ context.Context, _ string, limit int, beforeID string) ([]gateway.Message, error) {
	p.calls = append(p.calls, beforeID)
	if p.err != nil {
		return nil, p.err
	}
	end := len(p.history)
	if beforeID != "" {
		end = -1
		for i, m := range p.history {
			if m.ID == beforeID {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, nil
		}
	}
	var page []gateway.Message
	for i := end - 1; i >= 0 && len(page) < limit; i-- {
		page = append(page, p.history[i])
	}
	return page, nil
}

func makeHistory(n int) []gateway.Message {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]gateway.Message, n)
	for i := range out {
		out[i] = gateway.Message{
			ID:        fmt.Sprintf("%05d", i+1),
			Author:    "user",
			Content:   fmt.Sprintf("message %d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

func TestFetchAllAcrossPageBoundaries(t *testing.T) {
	pager := &historyPager{history: makeHistory(250)}
	ex := NewExtractor(pager, 100)

	messages, err := ex.FetchAll(context.Background(), "chan")
	require.NoError(t, err)
	require.Len(t, messages, 250)
	for i, m := range messages {
		assert.Equal(t, pager.history[i].ID, m.ID)
	}
	assert.Equal(t, []string{"", "00151", "00051"}, pager.calls)
}

func TestFetchAllExactMultipleStopsOnEmptyPage(t *testing.T) {
	pager := &historyPager{history: makeHistory(200)}
	ex := NewExtractor(pager, 100)

	messages, err := ex.FetchAll(context.Background(), "chan")
	require.NoError(t, err)
	assert.Len(t, messages, 200)
	assert.Len(t, pager.calls, 3)
	assert.Equal(t, "00001", messages[0].ID)
	assert.Equal(t, "00200", messages[199].ID)
}

func TestExtractAllRendersChronologically(t *testing.T) {
	pager := &historyPager{history: makeHistory(3)}
	lines, err := NewExtractor(pager, 0).ExtractAll(context.Background(), "chan")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"[2024-03-01 12:00:00] user: message 1",
		"[2024-03-01 12:00:01] user: message 2",
		"[2024-03-01 12:00:02] user: message 3",
	}, lines)
}

func TestFetchAllPropagatesErrors(t *testing.T) {
	pager := &historyPager{err: errors.New("rate limited")}
	_, err := NewExtractor(pager, 100).FetchAll(context.Background(), "chan")
	require.Error(t, err)
}

func TestRenderLine(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		name string
		msg  gateway.Message
		want string
	}{
		{
			name: "plain",
			msg:  gateway.Message{Author: "ana", Content: "hola", CreatedAt: at},
			want: "[2024-01-02 03:04:05] ana: hola",
		},
		{
			name: "body with attachments",
			msg:  gateway.Message{Author: "ana", Content: "mira", Attachments: []string{"https://a/1.png", "https://a/2.png"}, CreatedAt: at},
			want: "[2024-01-02 03:04:05] ana: mira [Adjuntos: https://a/1.png https://a/2.png]",
		},
		{
			name: "attachments only",
			msg:  gateway.Message{Author: "ana", Attachments: []string{"https://a/1.png"}, CreatedAt: at},
			want: "[2024-01-02 03:04:05] ana: [Adjuntos: https://a/1.png]",
		},
		{
			name: "empty",
			msg:  gateway.Message{Author: "ana", CreatedAt: at},
			want: "[2024-01-02 03:04:05] ana: (sin texto)",
		},
		{
			name: "unknown author",
			msg:  gateway.Message{Content: "x", CreatedAt: at},
			want: "[2024-01-02 03:04:05] Desconocido: x",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RenderLine(tc.msg))
		})
	}
}

func TestRenderEmptyHistory(t *testing.T) {
	assert.Equal(t, "Sin mensajes.", Render(nil))
	assert.Equal(t, "a\nb", Render([]string{"a", "b"}))
}

func TestWriteArtifact(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteArtifact(dir, "ticket-bugs-3.txt", "a\nb")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ticket-bugs-3.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(data))

	_, err = WriteArtifact(dir, "../escape.txt", "x")
	assert.Error(t, err)
}

package transcript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spec-kit/ticket-bot/internal/gateway"
)

// DefaultPageSize is the most messages the platform returns per history query.
const DefaultPageSize = 100

const (
	timeLayout         = "2006-01-02 15:04:05"
	unknownAuthor      = "Desconocido"
	emptyContent       = "(sin texto)"
	emptyTranscript    = "Sin mensajes."
	attachmentsLabel   = "Adjuntos:"
	attachmentsPattern = "[" + attachmentsLabel + " %s]"
)

// MessagePager is the history query the extractor walks.
type MessagePager interface {
	FetchMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]gateway.Message, error)
}

// Extractor reads a channel's complete history.
type Extractor struct {
	pager    MessagePager
	pageSize int
}

// NewExtractor returns an extractor requesting pageSize messages per call.
// Non-positive sizes fall back to DefaultPageSize.
func NewExtractor(pager MessagePager, pageSize int) *Extractor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Extractor{pager: pager, pageSize: pageSize}
}

// FetchAll returns every message in the channel, oldest first. Pages arrive
// newest first; each request asks for messages older than the last one seen
// and the walk stops on an empty or short page.
func (e *Extractor) FetchAll(ctx context.Context, channelID string) ([]gateway.Message, error) {
	var all []gateway.Message
	before := ""
	for {
		page, err := e.pager.FetchMessages(ctx, channelID, e.pageSize, before)
		if err != nil {
			return nil, fmt.Errorf("fetch messages before %q: %w", before, err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		last := page[len(page)-1].ID
		if len(page) < e.pageSize || last == before {
			break
		}
		before = last
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// ExtractAll returns the rendered lines of the channel's full history.
func (e *Extractor) ExtractAll(ctx context.Context, channelID string) ([]string, error) {
	messages, err := e.FetchAll(ctx, channelID)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, RenderLine(m))
	}
	return lines, nil
}

// RenderLine formats one message as "[timestamp] author: content".
func RenderLine(m gateway.Message) string {
	ts := ""
	if !m.CreatedAt.IsZero() {
		ts = m.CreatedAt.UTC().Format(timeLayout)
	}
	author := m.Author
	if author == "" {
		author = unknownAuthor
	}
	content := m.Content
	if len(m.Attachments) > 0 {
		list := fmt.Sprintf(attachmentsPattern, strings.Join(m.Attachments, " "))
		if content == "" {
			content = list
		} else {
			content = content + " " + list
		}
	}
	if content == "" {
		content = emptyContent
	}
	return fmt.Sprintf("[%s] %s: %s", ts, author, content)
}

// Render joins lines into the transcript body.
func Render(lines []string) string {
	if len(lines) == 0 {
		return emptyTranscript
	}
	return strings.Join(lines, "\n")
}

// WriteArtifact writes text to dir/name and returns the file path.
func WriteArtifact(dir, name, text string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", errors.New("invalid transcript file name")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

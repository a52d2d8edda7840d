// Package messagelog keeps per-conversation message history as JSON lines in
// an object store.
package messagelog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/store"
)

// DefaultLimit is the page size used when the caller does not pass one.
const DefaultLimit = 50

const contentType = "application/x-ndjson"

// ErrInvalid is returned for malformed ids or messages.
var ErrInvalid = errors.New("invalid message")

// Direction says who sent a message.
type Direction string

// Supported directions.
const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Message is one stored line.
type Message struct {
	TS        string          `json:"ts"`
	Direction Direction       `json:"direction"`
	Data      json.RawMessage `json:"data"`
}

// ReadOptions paginates Read. Before is the TS of a previously returned
// message; results start just after it.
type ReadOptions struct {
	Limit  int
	Before string
}

// Page is one page of messages, newest first.
type Page struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// Log reads and writes conversation logs.
type Log struct {
	objects store.ObjectStore
	clock   business.Clock

	mu sync.Mutex
}

// New returns a Log over objects.
func New(objects store.ObjectStore, clock business.Clock) *Log {
	return &Log{objects: objects, clock: clock}
}

// Path returns the object path of a conversation log.
func Path(userID, conversationID string) string {
	return fmt.Sprintf("users/%s/conversations/%s/messages.jsonl", userID, conversationID)
}

// Append adds msg to the end of the conversation log. The store has no
// append, so the whole object is read and rewritten. An empty TS is filled
// from the clock.
func (l *Log) Append(ctx context.Context, userID, conversationID string, msg Message) (Message, error) {
	if err := validateIDs(userID, conversationID); err != nil {
		return Message{}, err
	}
	switch msg.Direction {
	case DirectionIn, DirectionOut:
	default:
		return Message{}, fmt.Errorf("%w: direction must be in or out", ErrInvalid)
	}
	if len(msg.Data) == 0 {
		msg.Data = json.RawMessage("null")
	}
	if !json.Valid(msg.Data) {
		return Message{}, fmt.Errorf("%w: data is not JSON", ErrInvalid)
	}
	if msg.TS == "" {
		msg.TS = l.clock.Now().UTC().Format(time.RFC3339Nano)
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("encode message: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := Path(userID, conversationID)
	body, err := l.objects.GetObject(ctx, path)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Message{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(body) > 0 && body[len(body)-1] != '\n' {
		body = append(body, '\n')
	}
	body = append(body, line...)
	body = append(body, '\n')
	if err := l.objects.PutObject(ctx, path, contentType, body); err != nil {
		return Message{}, fmt.Errorf("write %s: %w", path, err)
	}
	return msg, nil
}

// Read returns a page of messages, newest first. A missing log is an empty
// page. An unknown Before cursor is ignored.
func (l *Log) Read(ctx context.Context, userID, conversationID string, opts ReadOptions) (Page, error) {
	if err := validateIDs(userID, conversationID); err != nil {
		return Page{}, err
	}
	path := Path(userID, conversationID)
	body, err := l.objects.GetObject(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return Page{Messages: []Message{}}, nil
	}
	if err != nil {
		return Page{}, fmt.Errorf("read %s: %w", path, err)
	}

	msgs, err := parse(body)
	if err != nil {
		return Page{}, fmt.Errorf("parse %s: %w", path, err)
	}
	slices.Reverse(msgs)

	if opts.Before != "" {
		if idx := slices.IndexFunc(msgs, func(m Message) bool { return m.TS == opts.Before }); idx >= 0 {
			msgs = msgs[idx+1:]
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	page := Page{Messages: msgs, HasMore: len(msgs) > limit}
	if page.HasMore {
		page.Messages = msgs[:limit]
	}
	return page, nil
}

// Delete removes the whole conversation log.
func (l *Log) Delete(ctx context.Context, userID, conversationID string) error {
	if err := validateIDs(userID, conversationID); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	path := Path(userID, conversationID)
	if err := l.objects.DeleteObject(ctx, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func parse(body []byte) ([]Message, error) {
	msgs := []Message{}
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var m Message
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, fmt.Errorf("decode line: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return msgs, nil
}

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
			return fmt.Errorf("%w: bad id %q", ErrInvalid, id)
		}
	}
	return nil
}

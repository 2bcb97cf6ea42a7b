// Package file stores each conversation as one file in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
	"github.com/zhouzirui/digital-twin/backend/internal/store"
)

const listConcurrency = 8

// ErrEmptySessionID is returned when saving without a session identifier.
var ErrEmptySessionID = errors.New("empty session id")

// Store is a directory of per-session files.
type Store struct {
	dir   string
	codec Codec
}

// New prepares dir and returns a Store writing files with codec.
func New(dir string, codec Codec) (*Store, error) {
	if codec == nil {
		codec = JSONCodec{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory %s: %w", dir, err)
	}
	return &Store{dir: dir, codec: codec}, nil
}

// path escapes the opaque session id so it always stays inside dir.
func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, fileName(sessionID)+s.codec.Ext())
}

// fileName percent-escapes path separators, '%', control bytes and a
// leading dot. Every other byte, UTF-8 included, is kept so that
// non-ASCII ids do not triple in length on disk. url.PathUnescape
// reverses it.
func fileName(sessionID string) string {
	var b strings.Builder
	b.Grow(len(sessionID))
	for i := 0; i < len(sessionID); i++ {
		c := sessionID[i]
		if needsEscape(c) || (i == 0 && c == '.') {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(c byte) bool {
	switch c {
	case '/', '\\', '%':
		return true
	}
	return c < 0x20 || c == 0x7f
}

// Load reads the session file. A missing file is an empty conversation.
func (s *Store) Load(_ context.Context, sessionID string) ([]chat.Message, error) {
	if sessionID == "" {
		return []chat.Message{}, nil
	}
	return s.read(s.path(sessionID), sessionID)
}

func (s *Store) read(path, sessionID string) ([]chat.Message, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []chat.Message{}, nil
	}
	if err != nil {
		return nil, store.Wrap(store.OpLoad, sessionID, err)
	}

	messages, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, store.Wrap(store.OpLoad, sessionID, fmt.Errorf("corrupt session file: %w", err))
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}

// Save writes the full sequence to a temp file and renames it over the
// session file, so readers never observe a partial write.
func (s *Store) Save(_ context.Context, sessionID string, messages []chat.Message) error {
	if sessionID == "" {
		return store.Wrap(store.OpSave, sessionID, ErrEmptySessionID)
	}

	data, err := s.codec.Marshal(messages)
	if err != nil {
		return store.Wrap(store.OpSave, sessionID, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return store.Wrap(store.OpSave, sessionID, err)
	}

	return store.Wrap(store.OpSave, sessionID, writeAtomic(s.dir, s.path(sessionID), data))
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// List reads every session file concurrently and summarizes it.
func (s *Store) List(ctx context.Context) ([]chat.SessionSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []chat.SessionSummary{}, nil
	}
	if err != nil {
		return nil, store.Wrap(store.OpList, "", err)
	}

	ext := s.codec.Ext()
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		names = append(names, name)
	}

	summaries := make([]chat.SessionSummary, len(names))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)

	for i, name := range names {
		g.Go(func() error {
			sessionID, err := url.PathUnescape(strings.TrimSuffix(name, ext))
			if err != nil {
				return store.Wrap(store.OpList, name, err)
			}
			messages, err := s.read(filepath.Join(s.dir, name), sessionID)
			if err != nil {
				return err
			}
			summaries[i] = chat.Summarize(sessionID, messages)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SessionID < summaries[j].SessionID
	})
	return summaries, nil
}

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)

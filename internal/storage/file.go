package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "notigate/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.inbox.jsonl    (append-only journal of inbox events)
//   - <prefix>.prefs.json     (whole-file preference snapshot)
//   - <prefix>.comments.jsonl (append-only JSON Lines)
//
// The inbox journal is replayed at open and periodically compacted.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	inboxPath   string
	inboxFile   *os.File
	items       []Item
	inboxWrites int

	prefsPath string

	commentsFile *os.File
}

type inboxEvent struct {
	Op   string `json:"op"` // "add" | "read_all"
	Item *Item  `json:"item,omitempty"`
}

const inboxCompactEvery = 512

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	inboxPath := prefix + ".inbox.jsonl"
	prefsPath := prefix + ".prefs.json"
	commentsPath := prefix + ".comments.jsonl"

	items, err := replayInbox(inboxPath)
	if err != nil {
		log.Warn("inbox journal replay failed; starting empty", logx.Err(err), logx.String("path", inboxPath))
		items = nil
	}

	inf, err := os.OpenFile(inboxPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	cf, err := os.OpenFile(commentsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = inf.Close()
		return nil, err
	}

	return &fileStore{
		log:          log,
		inboxPath:    inboxPath,
		inboxFile:    inf,
		items:        items,
		prefsPath:    prefsPath,
		commentsFile: cf,
	}, nil
}

func replayInbox(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var items []Item
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev inboxEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			// Torn tail write; stop replay here.
			break
		}
		switch ev.Op {
		case "add":
			if ev.Item != nil {
				items = append(items, *ev.Item)
			}
		case "read_all":
			for i := range items {
				items[i].Read = true
			}
		}
	}
	return items, sc.Err()
}

func (s *fileStore) appendEventLocked(ev inboxEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := s.inboxFile.Write(append(b, '\n')); err != nil {
		return err
	}
	s.inboxWrites++
	if s.inboxWrites >= inboxCompactEvery {
		s.compactInboxLocked()
	}
	return nil
}

// compactInboxLocked rewrites the journal as plain "add" events of the
// current items. Best-effort; on failure the old journal stays valid.
func (s *fileStore) compactInboxLocked() {
	tmp := s.inboxPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return
	}
	w := bufio.NewWriter(f)
	okAll := true
	for i := range s.items {
		b, err := json.Marshal(inboxEvent{Op: "add", Item: &s.items[i]})
		if err != nil {
			okAll = false
			break
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			okAll = false
			break
		}
	}
	if okAll {
		okAll = w.Flush() == nil && f.Close() == nil
	} else {
		_ = f.Close()
	}
	if !okAll {
		_ = os.Remove(tmp)
		return
	}
	old := s.inboxFile
	if err := os.Rename(tmp, s.inboxPath); err != nil {
		_ = os.Remove(tmp)
		return
	}
	_ = old.Close()
	nf, err := os.OpenFile(s.inboxPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.log.Error("inbox journal reopen failed after compaction", logx.Err(err))
		s.inboxFile = nil
		return
	}
	s.inboxFile = nf
	s.inboxWrites = 0
}

func (s *fileStore) AddNotification(ctx context.Context, it Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inboxFile == nil {
		return ErrDisabled
	}
	if err := s.appendEventLocked(inboxEvent{Op: "add", Item: &it}); err != nil {
		return err
	}
	s.items = append(s.items, it)
	return nil
}

func (s *fileStore) UnreadCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		if !it.Read {
			n++
		}
	}
	return n, nil
}

func (s *fileStore) MarkAllRead(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inboxFile == nil {
		return ErrDisabled
	}
	if err := s.appendEventLocked(inboxEvent{Op: "read_all"}); err != nil {
		return err
	}
	for i := range s.items {
		s.items[i].Read = true
	}
	return nil
}

func (s *fileStore) ListRecent(ctx context.Context, limit int) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Item, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.items[i])
	}
	return out, nil
}

func (s *fileStore) LoadPreferences(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.prefsPath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *fileStore) SavePreferences(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.prefsPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.prefsPath)
}

func (s *fileStore) AppendComment(ctx context.Context, c Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.At.IsZero() {
		c.At = time.Now()
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commentsFile == nil {
		return ErrDisabled
	}
	_, err = s.commentsFile.Write(append(b, '\n'))
	return err
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.inboxFile != nil {
		err1 = s.inboxFile.Close()
		s.inboxFile = nil
	}
	if s.commentsFile != nil {
		err2 = s.commentsFile.Close()
		s.commentsFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

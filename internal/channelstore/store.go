package channelstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/agentsd/internal/frontmatter"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a channel, thread, or message does not exist.
var ErrNotFound = errors.New("channelstore: not found")

const (
	maxReadAttempts  = 5
	initialReadDelay = 100 * time.Millisecond
)

// ReadWithRetry reads path, retrying with backoff on failure to tolerate a
// reader racing a writer's create-then-write-then-rename sequence, per
// spec.md §4.7 step 5's "read with retry" requirement. Shared by the
// watcher's classifier and this package's own message reads so both sides of
// a channel file's lifecycle use one retry policy.
func ReadWithRetry(path string) ([]byte, error) {
	var lastErr error
	delay := initialReadDelay
	for i := 0; i < maxReadAttempts; i++ {
		raw, err := os.ReadFile(path)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if i < maxReadAttempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return nil, lastErr
}

// Store is a file-backed channel/thread/message store. It performs no
// cross-process locking; safety relies on POSIX per-directory creation
// atomicity and message-id monotonicity, per spec's documented model.
// An in-process RWMutex only protects against concurrent goroutines within
// this daemon, which the filesystem alone does not serialize.
type Store struct {
	Root string // the channels/ directory
	mu   sync.RWMutex
}

// New returns a Store rooted at channelsDir, creating it if absent.
func New(channelsDir string) (*Store, error) {
	if err := os.MkdirAll(channelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("channelstore: mkdir %s: %w", channelsDir, err)
	}
	return &Store{Root: channelsDir}, nil
}

// ListChannels enumerates every channel directory under Root.
func (s *Store) ListChannels() ([]Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("channelstore: list %s: %w", s.Root, err)
	}

	var out []Channel
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) == 0 || (name[0] != '#' && name[0] != '@') {
			continue
		}
		out = append(out, Channel{Name: name[1:], Sigil: name[0], Dir: filepath.Join(s.Root, name)})
	}
	return out, nil
}

func (s *Store) channelDir(channel string) string {
	return filepath.Join(s.Root, channel)
}

// ensureChannel creates the channel directory and _metadata.yaml on first use.
func (s *Store) ensureChannel(channel, createdBy string) (string, error) {
	dir := s.channelDir(channel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("channelstore: mkdir %s: %w", dir, err)
	}

	metaPath := filepath.Join(dir, "_metadata.yaml")
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		meta := Metadata{
			Name:      strings.TrimLeft(channel, "#@"),
			CreatedBy: createdBy,
			CreatedAt: GenerateMessageID(time.Now()),
		}
		if err := writeYAML(metaPath, meta); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// LoadMetadata reads a channel's _metadata.yaml.
func (s *Store) LoadMetadata(channel string) (Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var meta Metadata
	path := filepath.Join(s.channelDir(channel), "_metadata.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, channel)
		}
		return Metadata{}, fmt.Errorf("channelstore: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("channelstore: parse %s: %w", path, err)
	}
	return meta, nil
}

// PublishMessage creates a new thread with an initial message and returns
// its id, which also serves as the thread id.
func (s *Store) PublishMessage(channel, content string, meta MessageHeader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.ensureChannel(channel, meta.From)
	if err != nil {
		return "", err
	}

	id := GenerateMessageID(time.Now())
	meta.ThreadID = id

	threadDir := filepath.Join(dir, id)
	if err := os.MkdirAll(threadDir, 0o755); err != nil {
		return "", fmt.Errorf("channelstore: mkdir %s: %w", threadDir, err)
	}

	if err := writeMessage(filepath.Join(threadDir, id+".md"), meta, content); err != nil {
		return "", err
	}
	return id, nil
}

// ReplyToMessage appends a reply file to an existing thread.
func (s *Store) ReplyToMessage(channel, threadID, content string, meta MessageHeader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threadDir := filepath.Join(s.channelDir(channel), threadID)
	if _, err := os.Stat(threadDir); err != nil {
		return "", fmt.Errorf("%w: thread %s/%s", ErrNotFound, channel, threadID)
	}

	replyID := GenerateMessageID(time.Now())
	meta.ThreadID = threadID

	if err := writeMessage(filepath.Join(threadDir, replyID+".md"), meta, content); err != nil {
		return "", err
	}
	return replyID, nil
}

// ReadOptions narrows ReadChannel's result set.
type ReadOptions struct {
	Limit    int
	Since    time.Time
	ThreadID string
}

// ReadChannel enumerates thread directories (skipping `_`-prefixed metadata
// entries), loads each initial message plus its replies, and returns them
// newest-first.
func (s *Store) ReadChannel(channel string, opts ReadOptions) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := s.channelDir(channel)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, channel)
		}
		return nil, fmt.Errorf("channelstore: read %s: %w", dir, err)
	}

	var messages []Message
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		threadID := e.Name()

		if !opts.Since.IsZero() {
			ts, err := ParseMessageID(threadID)
			if err == nil && !ts.After(opts.Since) {
				continue
			}
		}

		msg, err := s.loadThread(dir, threadID)
		if err != nil {
			continue
		}

		if opts.ThreadID != "" && msg.Meta.ThreadID != opts.ThreadID {
			continue
		}

		messages = append(messages, *msg)
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].ID > messages[j].ID })

	if opts.Limit > 0 && len(messages) > opts.Limit {
		messages = messages[:opts.Limit]
	}
	return messages, nil
}

// loadThread loads one thread's initial message plus its replies, ascending
// by reply id.
func (s *Store) loadThread(channelDir, threadID string) (*Message, error) {
	threadDir := filepath.Join(channelDir, threadID)

	initialPath := filepath.Join(threadDir, threadID+".md")
	if _, err := os.Stat(initialPath); err != nil {
		legacy := filepath.Join(threadDir, "message.md")
		if _, err := os.Stat(legacy); err != nil {
			return nil, fmt.Errorf("%w: initial message for thread %s", ErrNotFound, threadID)
		}
		initialPath = legacy
	}

	initial, err := readMessage(initialPath, threadID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(threadDir)
	if err != nil {
		return nil, fmt.Errorf("channelstore: read %s: %w", threadDir, err)
	}

	var replyPaths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		if filepath.Join(threadDir, e.Name()) == initialPath {
			continue
		}
		replyPaths = append(replyPaths, e.Name())
	}
	sort.Strings(replyPaths)

	for _, name := range replyPaths {
		replyID := strings.TrimSuffix(name, ".md")
		reply, err := readMessage(filepath.Join(threadDir, name), replyID)
		if err != nil {
			continue
		}
		initial.Replies = append(initial.Replies, *reply)
	}

	return initial, nil
}

// GetPendingMessages returns threads whose id-parsed timestamp strictly
// exceeds the channel's recorded _last_processed.yaml timestamp.
func (s *Store) GetPendingMessages(channel string) ([]Message, error) {
	lp, err := s.loadLastProcessed(channel)
	if err != nil {
		return nil, err
	}

	var since time.Time
	if lp.LastProcessedAt != "" {
		since, err = ParseMessageID(lp.LastProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("channelstore: parse last_processed_at: %w", err)
		}
	}

	all, err := s.ReadChannel(channel, ReadOptions{Since: since})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Store) loadLastProcessed(channel string) (LastProcessed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.channelDir(channel), "_last_processed.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return LastProcessed{}, nil
		}
		return LastProcessed{}, fmt.Errorf("channelstore: read %s: %w", path, err)
	}

	var lp LastProcessed
	if err := yaml.Unmarshal(raw, &lp); err != nil {
		return LastProcessed{}, fmt.Errorf("channelstore: parse %s: %w", path, err)
	}
	return lp, nil
}

// MarkChannelProcessed records the current time as the channel's
// last-processed watermark. Unlocked by design: two racing processors may
// re-process a message, a deliberately accepted at-least-once semantic.
func (s *Store) MarkChannelProcessed(channel, processedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.ensureChannel(channel, processedBy)
	if err != nil {
		return err
	}

	lp := LastProcessed{
		LastProcessedAt: GenerateMessageID(time.Now()),
		ProcessedBy:     processedBy,
	}
	return writeYAML(filepath.Join(dir, "_last_processed.yaml"), lp)
}

// GetMessage finds a single message (initial or reply) by id within channel,
// searching every thread directory for a matching file.
func (s *Store) GetMessage(channel, messageID string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := s.channelDir(channel)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, channel)
		}
		return nil, fmt.Errorf("channelstore: read %s: %w", dir, err)
	}

	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		threadDir := filepath.Join(dir, e.Name())
		path := filepath.Join(threadDir, messageID+".md")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return readMessage(path, messageID)
	}
	return nil, fmt.Errorf("%w: message %s in %s", ErrNotFound, messageID, channel)
}

// GetThreadWorkspace returns <channelDir>/<threadId>/workspace/, creating it
// lazily when create is true.
func (s *Store) GetThreadWorkspace(channel, threadID string, create bool) (string, error) {
	ws := filepath.Join(s.channelDir(channel), threadID, "workspace")
	if create {
		if err := os.MkdirAll(ws, 0o755); err != nil {
			return "", fmt.Errorf("channelstore: mkdir %s: %w", ws, err)
		}
	}
	return ws, nil
}

func readMessage(path, id string) (*Message, error) {
	raw, err := ReadWithRetry(path)
	if err != nil {
		return nil, fmt.Errorf("channelstore: read %s: %w", path, err)
	}

	var meta MessageHeader
	body, err := frontmatter.Parse(raw, &meta)
	if err != nil {
		return nil, fmt.Errorf("channelstore: parse %s: %w", path, err)
	}

	return &Message{ID: id, ThreadID: meta.ThreadID, Content: body, Meta: meta, Path: path}, nil
}

func writeMessage(path string, meta MessageHeader, content string) error {
	raw, err := frontmatter.Stringify(meta, content)
	if err != nil {
		return fmt.Errorf("channelstore: render %s: %w", path, err)
	}
	return atomicWrite(path, raw)
}

func writeYAML(path string, v interface{}) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("channelstore: marshal %s: %w", path, err)
	}
	return atomicWrite(path, raw)
}

// atomicWrite writes data via temp-file-then-rename, matching the teacher's
// session-persistence pattern (internal/sessions/manager.go).
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "msg-*.tmp")
	if err != nil {
		return fmt.Errorf("channelstore: create temp in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("channelstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("channelstore: sync temp: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("channelstore: rename into %s: %w", path, err)
	}
	cleanup = false
	return nil
}

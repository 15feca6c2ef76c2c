package sessionstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nextlevelbuilder/agentsd/internal/channelstore"
	"github.com/nextlevelbuilder/agentsd/internal/frontmatter"
)

const sessionIDLayout = "2006-01-02T15-04-05"

// Store creates and finalizes session records under a sessions/ root.
//
// Writes always use the directory-backed representation
// (sessions/<id>/session.md); the #sessions channel representation named in
// spec.md §3 is supported read-only via FromChannelThread, resolving the
// documented open question in favor of a single write path (see DESIGN.md).
type Store struct {
	Root string
}

// New returns a Store rooted at sessionsDir, creating it if absent.
func New(sessionsDir string) (*Store, error) {
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("sessionstore: mkdir %s: %w", sessionsDir, err)
	}
	return &Store{Root: sessionsDir}, nil
}

// NewSessionID returns a fresh sortable session id.
func NewSessionID(now time.Time) string {
	return now.UTC().Format(sessionIDLayout)
}

// Create starts a new session: makes its directory and writes the initial
// session.md with Started set and no Result.
func (s *Store) Create(header Header) (*Session, error) {
	id := NewSessionID(time.Now())
	dir := filepath.Join(s.Root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sessionstore: mkdir %s: %w", dir, err)
	}

	header.Started = time.Now().UTC().Format(time.RFC3339)

	sess := &Session{ID: id, Dir: dir, Header: header}
	if err := sess.persist(); err != nil {
		return nil, err
	}
	return sess, nil
}

// AppendTranscript appends text to the in-memory transcript and persists it.
func (s *Session) AppendTranscript(text string) error {
	if s.Transcript != "" {
		s.Transcript += "\n"
	}
	s.Transcript += text
	return s.persist()
}

// Finalize records the outcome and end time, then persists.
func (s *Session) Finalize(result Result, duration time.Duration) error {
	result.Duration = duration.String()
	s.Header.Ended = time.Now().UTC().Format(time.RFC3339)
	s.Header.Result = &result
	return s.persist()
}

func (s *Session) persist() error {
	path := filepath.Join(s.Dir, "session.md")
	raw, err := frontmatter.Stringify(s.Header, s.Transcript)
	if err != nil {
		return fmt.Errorf("sessionstore: render %s: %w", path, err)
	}
	return atomicWrite(path, raw)
}

// Load reads an existing session.md by id.
func (s *Store) Load(id string) (*Session, error) {
	dir := filepath.Join(s.Root, id)
	path := filepath.Join(dir, "session.md")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: read %s: %w", path, err)
	}

	var header Header
	body, err := frontmatter.Parse(raw, &header)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: parse %s: %w", path, err)
	}

	return &Session{ID: id, Dir: dir, Header: header, Transcript: body}, nil
}

// ListRecent returns up to limit sessions, most recent first.
func (s *Store) ListRecent(limit int) ([]*Session, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: read %s: %w", s.Root, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Load(id)
		if err != nil {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

// FromChannelThread reconstructs a Session-shaped view from a thread in the
// distinguished #sessions channel, supporting the read side of spec's two
// interoperable session representations.
func FromChannelThread(msg channelstore.Message) *Session {
	header := Header{
		Started: msg.ID,
	}
	body := msg.Content
	for _, reply := range msg.Replies {
		body += "\n\n" + reply.Content
	}
	return &Session{ID: strings.TrimSuffix(filepath.Base(msg.Path), ".md"), Header: header, Transcript: body}
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "session-*.tmp")
	if err != nil {
		return fmt.Errorf("sessionstore: create temp in %s: %w", dir, err)
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
		return fmt.Errorf("sessionstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sessionstore: sync temp: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("sessionstore: rename into %s: %w", path, err)
	}
	cleanup = false
	return nil
}

// Package channelstore implements the file-backed channel/thread/message
// store that serves as both the daemon's message bus and its session log,
// grounded on the teacher's internal/sessions/manager.go persistence pattern.
package channelstore

import "time"

// Metadata is the parsed shape of a channel's _metadata.yaml.
type Metadata struct {
	Name      string `yaml:"name"`
	CreatedBy string `yaml:"created_by,omitempty"`
	CreatedAt string `yaml:"created_at"`
}

// LastProcessed is the parsed shape of a channel's _last_processed.yaml.
type LastProcessed struct {
	LastProcessedAt string `yaml:"last_processed_at"`
	ProcessedBy     string `yaml:"processed_by,omitempty"`
}

// MessageHeader is the YAML header of a message Markdown file.
type MessageHeader struct {
	Host     string   `yaml:"host"`
	From     string   `yaml:"from,omitempty"`
	RunID    string   `yaml:"run_id,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	ThreadID string   `yaml:"thread_id"`
}

// Message is one loaded message file plus its appended replies.
type Message struct {
	ID       string
	ThreadID string
	Content  string
	Meta     MessageHeader
	Path     string
	Replies  []Message
}

// Channel describes a resolved channel directory.
type Channel struct {
	Name string // without sigil
	Sigil byte  // '#' or '@'
	Dir  string
}

// IsDM reports whether the channel is a direct-message channel.
func (c Channel) IsDM() bool { return c.Sigil == '@' }

// FullName re-attaches the sigil, e.g. "#general".
func (c Channel) FullName() string { return string(c.Sigil) + c.Name }

const timeLayout = "2006-01-02T15:04:05.000Z"

// GenerateMessageID returns now() formatted as an ISO-8601 millisecond
// timestamp. Callers within a single process must ensure strictly
// increasing results; collisions are an accepted, documented loss (spec's
// Open Question (b)).
func GenerateMessageID(now time.Time) string {
	return now.UTC().Format(timeLayout)
}

// ParseMessageID parses a message/thread id back into a time.Time.
func ParseMessageID(id string) (time.Time, error) {
	return time.Parse(timeLayout, id)
}

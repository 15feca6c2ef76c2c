package watcher

import (
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/agentsd/internal/channelstore"
	"github.com/nextlevelbuilder/agentsd/internal/frontmatter"
	"github.com/nextlevelbuilder/agentsd/pkg/protocol"
)

// classifyChannelFile implements spec.md §4.3's classification contract for
// one observed file under the channels root. It returns (event, true) for a
// genuine initial-message appearance, or (zero, false) when the file should
// be ignored or is a suppressed reply.
//
// depth check: <channelsRoot>/<sigil><name>/<threadId>/<file>.md
func classifyChannelFile(channelsRoot, path string) (protocol.Event, bool) {
	rel, err := filepath.Rel(channelsRoot, path)
	if err != nil {
		return protocol.Event{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return protocol.Event{}, false
	}
	channelName, threadID, file := parts[0], parts[1], parts[2]

	if !strings.HasSuffix(file, ".md") {
		return protocol.Event{}, false
	}
	if len(channelName) == 0 || (channelName[0] != '#' && channelName[0] != '@') {
		return protocol.Event{}, false
	}

	raw, err := channelstore.ReadWithRetry(path)
	if err != nil {
		return protocol.Event{}, false
	}

	var meta channelstore.MessageHeader
	if _, err := frontmatter.Parse(raw, &meta); err != nil {
		return protocol.Event{}, false
	}

	messageID := strings.TrimSuffix(file, ".md")

	// Reply filtering: an initial message's own id equals the thread
	// directory name and its own filename; anything else sharing the
	// thread's id is a reply and must be suppressed (spec.md §3's
	// invariant is the authoritative test; §4.3's looser wording is
	// satisfied by it since initial ids are always the thread id).
	isInitial := messageID == threadID && meta.ThreadID == threadID
	if !isInitial {
		return protocol.Event{}, false
	}

	eventType := protocol.EventChannelMessage
	if channelName[0] == '@' {
		eventType = protocol.EventDMReceived
	}

	return protocol.Event{
		Type:        eventType,
		Channel:     channelName,
		MessageID:   messageID,
		MessagePath: path,
	}, true
}

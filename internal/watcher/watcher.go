// Package watcher turns agents-directory mutations into typed events,
// tolerating cloud-sync latency by polling rather than trusting native OS
// notifications alone, per spec.md §4.3 and §9 ("filesystem as bus").
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nextlevelbuilder/agentsd/pkg/protocol"
)

const (
	channelPollInterval = 1 * time.Second
	treePollInterval    = 5 * time.Second
	settleThreshold     = 500 * time.Millisecond
)

// fileState snapshots one tracked file's mtime for change detection.
type fileState struct {
	modTime time.Time
	seenAt  time.Time
}

// Watcher polls the personas, workflows, and channels trees and emits
// typed events on Events. It is safe to read Events from one goroutine only.
type Watcher struct {
	PersonasRoot  string
	WorkflowsRoot string
	ChannelsRoot  string

	Events chan protocol.Event
	Logger *slog.Logger

	stopCh  chan struct{}
	signals chan struct{} // fsnotify fast-path: debounced out-of-cycle poll trigger

	personaState  map[string]fileState
	workflowState map[string]fileState
	channelSeen   map[string]bool // message file paths already emitted
}

// New constructs a Watcher over the three named roots.
func New(personasRoot, workflowsRoot, channelsRoot string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		PersonasRoot:  personasRoot,
		WorkflowsRoot: workflowsRoot,
		ChannelsRoot:  channelsRoot,
		Events:        make(chan protocol.Event, 64),
		Logger:        logger,
		stopCh:        make(chan struct{}),
		signals:       make(chan struct{}, 1),
		personaState:  map[string]fileState{},
		workflowState: map[string]fileState{},
		channelSeen:   map[string]bool{},
	}
}

// Start launches the polling loops and, if available, an fsnotify fast-path
// accelerator. Polling remains the correctness-guaranteeing source of truth;
// fsnotify only shortens latency on direct local writes (see DESIGN.md).
func (w *Watcher) Start() {
	go w.pollChannelsLoop()
	go w.pollTreesLoop()
	w.startFastPath()
}

// Stop halts both polling loops and the fsnotify fast path. Events is left
// open.
func (w *Watcher) Stop() {
	close(w.stopCh)
}

func (w *Watcher) startFastPath() {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.Logger.Warn("watcher: fsnotify unavailable, polling only", "error", err)
		return
	}

	for _, root := range []string{w.ChannelsRoot, w.PersonasRoot, w.WorkflowsRoot} {
		if root == "" {
			continue
		}
		_ = fsw.Add(root)
		addSubdirs(fsw, root)
	}

	go func() {
		defer fsw.Close()
		var debounce *time.Timer
		for {
			select {
			case <-w.stopCh:
				if debounce != nil {
					debounce.Stop()
				}
				return
			case _, ok := <-fsw.Events:
				if !ok {
					return
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(settleThreshold, w.sendSignal)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.Logger.Warn("watcher: fsnotify error", "error", err)
			}
		}
	}()
}

func addSubdirs(fsw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil || !d.IsDir() {
			return nil
		}
		_ = fsw.Add(path)
		return nil
	})
}

func (w *Watcher) sendSignal() {
	select {
	case w.signals <- struct{}{}:
	default:
	}
}

func (w *Watcher) pollChannelsLoop() {
	ticker := time.NewTicker(channelPollInterval)
	defer ticker.Stop()
	for {
		w.pollChannels()
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
		case <-w.signals:
		}
	}
}

func (w *Watcher) pollTreesLoop() {
	ticker := time.NewTicker(treePollInterval)
	defer ticker.Stop()
	for {
		w.pollPersonas()
		w.pollWorkflows()
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) emit(e protocol.Event) {
	select {
	case w.Events <- e:
	case <-w.stopCh:
	}
}

// pollChannels walks the channels tree for newly-settled message files and
// classifies each, suppressing replies per spec.md §4.3.
func (w *Watcher) pollChannels() {
	if w.ChannelsRoot == "" {
		return
	}

	channelDirs, err := os.ReadDir(w.ChannelsRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			w.Logger.Warn("watcher: read channels root", "error", err)
		}
		return
	}

	now := time.Now()
	for _, cd := range channelDirs {
		if !cd.IsDir() {
			continue
		}
		threadDirs, err := os.ReadDir(filepath.Join(w.ChannelsRoot, cd.Name()))
		if err != nil {
			continue
		}
		for _, td := range threadDirs {
			if !td.IsDir() {
				continue
			}
			threadPath := filepath.Join(w.ChannelsRoot, cd.Name(), td.Name())
			files, err := os.ReadDir(threadPath)
			if err != nil {
				continue
			}
			for _, f := range files {
				if f.IsDir() {
					continue
				}
				path := filepath.Join(threadPath, f.Name())
				if w.channelSeen[path] {
					continue
				}
				info, err := f.Info()
				if err != nil {
					continue
				}
				if now.Sub(info.ModTime()) < settleThreshold {
					continue // not yet settled; revisit next poll
				}
				w.channelSeen[path] = true

				if event, ok := classifyChannelFile(w.ChannelsRoot, path); ok {
					w.emit(event)
				}
			}
		}
	}
}

func (w *Watcher) pollPersonas() {
	w.pollDefinitionTree(w.PersonasRoot, "PERSONA.md", w.personaState,
		protocol.EventPersonaAdded, protocol.EventPersonaChanged, protocol.EventPersonaRemoved)
}

func (w *Watcher) pollWorkflows() {
	w.pollDefinitionTree(w.WorkflowsRoot, "WORKFLOW.md", w.workflowState,
		protocol.EventWorkflowAdded, protocol.EventWorkflowChanged, protocol.EventWorkflowRemoved)
}

// pollDefinitionTree diffs root/<name>/<defFile> against the last known
// state, emitting added/changed/removed events.
func (w *Watcher) pollDefinitionTree(root, defFile string, state map[string]fileState, added, changed, removed protocol.EventType) {
	if root == "" {
		return
	}

	current := map[string]fileState{}
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			w.Logger.Warn("watcher: read tree", "root", root, "error", err)
		}
		entries = nil
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name(), defFile)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		current[path] = fileState{modTime: info.ModTime(), seenAt: time.Now()}
	}

	for path, st := range current {
		prev, existed := state[path]
		switch {
		case !existed:
			w.emit(protocol.Event{Type: added, Path: path})
		case !prev.modTime.Equal(st.modTime):
			w.emit(protocol.Event{Type: changed, Path: path})
		}
	}
	for path := range state {
		if _, stillPresent := current[path]; !stillPresent {
			w.emit(protocol.Event{Type: removed, Path: path})
		}
	}

	for k := range state {
		delete(state, k)
	}
	for k, v := range current {
		state[k] = v
	}
}

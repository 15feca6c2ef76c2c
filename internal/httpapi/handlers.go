package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nextlevelbuilder/agentsd/internal/channelstore"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobs := 0
	if s.Scheduler != nil {
		jobs = len(s.Scheduler.GetJobs())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(s.StartedAt).String(),
		"jobs":    jobs,
		"version": Version,
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.Scheduler.GetJobs()})
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	job, ok := s.Scheduler.GetJob(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/trigger/")
	if name == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var body struct {
		Inputs map[string]string `json:"inputs"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}

	if s.TriggerFunc != nil {
		if runID, ok := s.TriggerFunc(name, body.Inputs); ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "triggered", "runId": runID})
			return
		}
	}

	if s.Scheduler.TriggerWorkflow(name) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "triggered"})
		return
	}
	writeError(w, http.StatusNotFound, "unknown workflow")
}

func (s *Server) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var workflows []interface{}
	if s.Workflows != nil {
		for _, wf := range s.Workflows() {
			workflows = append(workflows, map[string]interface{}{
				"name":        wf.Name,
				"description": wf.Description,
				"persona":     wf.Persona,
				"timeout":     wf.Timeout,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workflows": workflows})
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	names, err := personaNames(s.PersonasRoot)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"personas": names})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessions, err := s.Sessions.ListRecent(20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.Reload == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "nothing to reload"})
		return
	}
	if err := s.Reload(); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "reloaded"})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	channels, err := s.Channels.ListChannels()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]interface{}, 0, len(channels))
	for _, c := range channels {
		meta, _ := s.Channels.LoadMetadata(c.FullName())
		out = append(out, map[string]interface{}{"name": c.FullName(), "metadata": meta})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channels": out})
}

// handleChannelSubpath dispatches /channels/:name, /channels/:name/:messageId,
// and /channels/:name/:messageId/reply, since the stdlib mux registered here
// only supports prefix matching.
func (s *Server) handleChannelSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/channels/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	channel := parts[0]
	switch {
	case len(parts) == 1:
		s.handleChannelRoot(w, r, channel)
	case len(parts) == 2:
		s.handleChannelMessage(w, r, channel, parts[1])
	case len(parts) == 3 && parts[2] == "reply":
		s.handleChannelReply(w, r, channel, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleChannelRoot(w http.ResponseWriter, r *http.Request, channel string) {
	switch r.Method {
	case http.MethodGet:
		opts := channelstore.ReadOptions{ThreadID: r.URL.Query().Get("thread")}
		if limit := r.URL.Query().Get("limit"); limit != "" {
			if n, err := strconv.Atoi(limit); err == nil {
				opts.Limit = n
			}
		}
		if since := r.URL.Query().Get("since"); since != "" {
			if t, err := channelstore.ParseMessageID(since); err == nil {
				opts.Since = t
			}
		}

		messages, err := s.Channels.ReadChannel(channel, opts)
		if err != nil {
			writeError(w, http.StatusNotFound, "channel not found")
			return
		}
		meta, _ := s.Channels.LoadMetadata(channel)
		writeJSON(w, http.StatusOK, map[string]interface{}{"channel": channel, "metadata": meta, "messages": messages})

	case http.MethodPost:
		var body struct {
			Content  string   `json:"content"`
			From     string   `json:"from,omitempty"`
			Tags     []string `json:"tags,omitempty"`
			ThreadID string   `json:"thread_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}

		meta := channelstore.MessageHeader{From: body.From, Tags: body.Tags}
		if body.ThreadID != "" {
			replyID, err := s.Channels.ReplyToMessage(channel, body.ThreadID, body.Content, meta)
			if err != nil {
				writeError(w, http.StatusNotFound, "thread not found")
				return
			}
			writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "messageId": replyID})
			return
		}

		id, err := s.Channels.PublishMessage(channel, body.Content, meta)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "messageId": id})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleChannelMessage(w http.ResponseWriter, r *http.Request, channel, messageID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	msg, err := s.Channels.GetMessage(channel, messageID)
	if err != nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channel": channel, "message": msg})
}

func (s *Server) handleChannelReply(w http.ResponseWriter, r *http.Request, channel, threadID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Content string   `json:"content"`
		From    string   `json:"from,omitempty"`
		Tags    []string `json:"tags,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	replyID, err := s.Channels.ReplyToMessage(channel, threadID, body.Content, channelstore.MessageHeader{From: body.From, Tags: body.Tags})
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "replyId": replyID})
}

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pressdesk/internal/attachparse"
	"pressdesk/internal/invoke"
	"pressdesk/internal/pipeline"
	"pressdesk/internal/prompt"
	"pressdesk/internal/runstore"
)

// runEntry tracks one submitted run and its log subscribers.
type runEntry struct {
	id  string
	res *pipeline.Result

	mu   sync.Mutex
	subs []chan string
	done chan struct{}
	err  error
}

func (e *runEntry) broadcast(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- line:
		default: // slow subscriber, drop the line rather than block the run
		}
	}
}

// subscribe replays lines already logged, then streams new ones.
func (e *runEntry) subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	e.mu.Lock()
	for _, line := range e.res.Log.Lines() {
		select {
		case ch <- line:
		default:
		}
	}
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, c := range e.subs {
			if c == ch {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

func (e *runEntry) finish(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
	close(e.done)
}

// runHub owns every run started in this process.
type runHub struct {
	orch     *pipeline.Orchestrator
	registry *prompt.Registry
	store    *runstore.Store

	mu   sync.Mutex
	runs map[string]*runEntry
}

func newRunHub(orch *pipeline.Orchestrator, registry *prompt.Registry, store *runstore.Store) *runHub {
	return &runHub{
		orch:     orch,
		registry: registry,
		store:    store,
		runs:     make(map[string]*runEntry),
	}
}

func (h *runHub) get(id string) *runEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs[id]
}

type refPayload struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Version string `json:"version"`
}

func (p refPayload) ref() prompt.Ref {
	src := prompt.SourceLocal
	if p.Source == string(prompt.SourceRemote) {
		src = prompt.SourceRemote
	}
	version := p.Version
	if version == "" {
		version = prompt.VersionLatest
	}
	return prompt.Ref{Name: p.Name, Source: src, Version: version}
}

type runPayload struct {
	Metadata    string `json:"metadata"`
	Text        string `json:"text"`
	Attachments []struct {
		Name string `json:"name"`
		Data string `json:"data"` // base64
	} `json:"attachments"`
	Stages struct {
		Extract refPayload `json:"extract"`
		Concept refPayload `json:"concept"`
		Write   refPayload `json:"write"`
		Check   refPayload `json:"check"`
	} `json:"stages"`
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	StructuredDraft bool    `json:"structured_draft"`
}

// handleStartRun launches a run asynchronously and returns its id. The
// caller follows progress over the websocket or by polling the run.
func (h *runHub) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var payload runPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.Text == "" && len(payload.Attachments) == 0 {
		http.Error(w, "nothing to process: provide text or attachments", http.StatusBadRequest)
		return
	}

	attachments := make([]attachparse.Attachment, 0, len(payload.Attachments))
	for _, a := range payload.Attachments {
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			http.Error(w, "attachment "+a.Name+": invalid base64", http.StatusBadRequest)
			return
		}
		attachments = append(attachments, attachparse.Attachment{Name: a.Name, Data: data})
	}

	req := pipeline.Request{
		Metadata:    payload.Metadata,
		Body:        payload.Text,
		Attachments: attachments,
		Stages: pipeline.StageConfigs{
			Extract:         payload.Stages.Extract.ref(),
			Concept:         payload.Stages.Concept.ref(),
			Write:           payload.Stages.Write.ref(),
			Check:           payload.Stages.Check.ref(),
			StructuredDraft: payload.StructuredDraft,
		},
		Settings: invoke.Settings{Model: payload.Model, Temperature: payload.Temperature},
	}

	entry := &runEntry{
		id:   uuid.NewString(),
		res:  pipeline.NewResult(),
		done: make(chan struct{}),
	}
	entry.res.Log.SetNotify(entry.broadcast)
	h.mu.Lock()
	h.runs[entry.id] = entry
	h.mu.Unlock()

	go func() {
		_, err := h.orch.RunInto(context.Background(), req, entry.res)
		if err != nil {
			log.Printf("run %s failed: %v", entry.id, err)
		}
		if serr := h.store.Save(context.Background(), entry.id, entry.res); serr != nil {
			log.Printf("run %s: archive failed: %v", entry.id, serr)
		}
		entry.finish(err)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": entry.id})
}

type runView struct {
	ID      string         `json:"id"`
	State   pipeline.State `json:"state"`
	Outputs map[string]any `json:"outputs"`
	Log     []string       `json:"log"`
	Error   string         `json:"error,omitempty"`
}

// handleGetRun reports the run's state and everything produced so far.
func (h *runHub) handleGetRun(w http.ResponseWriter, r *http.Request) {
	entry := h.get(r.PathValue("id"))
	if entry == nil {
		http.Error(w, "unknown run", http.StatusNotFound)
		return
	}
	view := runView{
		ID:      entry.id,
		State:   entry.res.State(),
		Outputs: make(map[string]any),
		Log:     entry.res.Log.Lines(),
	}
	for _, name := range entry.res.Names() {
		out, _ := entry.res.Get(name)
		if out.Structured() {
			view.Outputs[name] = out.Data
		} else {
			view.Outputs[name] = out.Text
		}
	}
	entry.mu.Lock()
	if entry.err != nil {
		view.Error = entry.err.Error()
	}
	entry.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsMessage struct {
	Type  string         `json:"type"` // "log" or "done"
	Line  string         `json:"line,omitempty"`
	State pipeline.State `json:"state,omitempty"`
	Error string         `json:"error,omitempty"`
}

// handleRunLogWS streams the run log live, then a final done frame.
func (h *runHub) handleRunLogWS(w http.ResponseWriter, r *http.Request) {
	entry := h.get(r.PathValue("id"))
	if entry == nil {
		http.Error(w, "unknown run", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	lines, cancel := entry.subscribe()
	defer cancel()

	for {
		select {
		case line := <-lines:
			if err := conn.WriteJSON(wsMessage{Type: "log", Line: line}); err != nil {
				return
			}
		case <-entry.done:
			// Drain whatever arrived before completion.
			for {
				select {
				case line := <-lines:
					if err := conn.WriteJSON(wsMessage{Type: "log", Line: line}); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			final := wsMessage{Type: "done", State: entry.res.State()}
			entry.mu.Lock()
			if entry.err != nil {
				final.Error = entry.err.Error()
			}
			entry.mu.Unlock()
			_ = conn.WriteJSON(final)
			return
		case <-r.Context().Done():
			return
		}
	}
}

// handleListPrompts returns the categorized template inventory.
func (h *runHub) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	categorized := prompt.Categorize(h.registry.List(r.Context()))
	writeJSON(w, http.StatusOK, categorized)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

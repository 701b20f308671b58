package service

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"cryptomon/internal/models"
)

// TaskSource is the engine surface the API reads from and triggers against.
type TaskSource interface {
	Tasks() []*models.Task
	State(name string) (any, time.Time, bool)
	Trigger(ctx context.Context, name string) error
}

type taskView struct {
	Name         string   `json:"name"`
	Exchange     string   `json:"exchange,omitempty"`
	Function     string   `json:"function,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	IntervalSec  float64  `json:"interval_sec,omitempty"`
	Return       string   `json:"return,omitempty"`
	Condition    string   `json:"condition,omitempty"`
	Log          string   `json:"log,omitempty"`
	Action       string   `json:"action,omitempty"`
}

type stateView struct {
	Name      string `json:"name"`
	Value     any    `json:"value"`
	UpdatedAt string `json:"updated_at"`
}

// NewMux builds the task inspection API alongside the usual probes.
func NewMux(source TaskSource) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		views := make([]taskView, 0)
		for _, t := range source.Tasks() {
			if !matchFlag(q.Get("intervalable"), t.HasInterval()) ||
				!matchFlag(q.Get("loggable"), t.Log != "") ||
				!matchFlag(q.Get("actionable"), t.Action != "") {
				continue
			}
			views = append(views, taskView{
				Name:         t.Name,
				Exchange:     t.Exchange,
				Function:     t.Function,
				Dependencies: t.Dependencies,
				IntervalSec:  t.Interval.Seconds(),
				Return:       t.Return,
				Condition:    t.Condition,
				Log:          t.Log,
				Action:       t.Action,
			})
		}
		writeJSON(w, views)
	})

	mux.HandleFunc("/api/tasks/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		views := make([]stateView, 0)
		for _, t := range source.Tasks() {
			value, ts, ok := source.State(t.Name)
			if !ok {
				continue
			}
			views = append(views, stateView{
				Name:      t.Name,
				Value:     value,
				UpdatedAt: ts.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, views)
	})

	mux.HandleFunc("/api/tasks/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var req struct {
			TaskName string `json:"taskName"`
		}
		if err := sonic.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if req.TaskName == "" {
			writeError(w, http.StatusBadRequest, "taskName is required")
			return
		}
		if !hasTask(source, req.TaskName) {
			writeError(w, http.StatusNotFound, "task "+req.TaskName+" is not defined")
			return
		}
		// the tick may block on a slow exchange fetch; run it detached from
		// the request so a client disconnect cannot cancel it mid-flight
		go func() {
			_ = source.Trigger(context.Background(), req.TaskName)
		}()
		writeJSON(w, map[string]string{"status": "triggered", "name": req.TaskName})
	})

	return mux
}

func hasTask(source TaskSource, name string) bool {
	for _, t := range source.Tasks() {
		if t.Name == name {
			return true
		}
	}
	return false
}

// matchFlag keeps everything for an absent filter, otherwise compares the
// boolean query value against the task property.
func matchFlag(raw string, have bool) bool {
	if raw == "" {
		return true
	}
	want, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return want == have
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := sonic.Marshal(map[string]string{"error": msg})
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(body)
}

package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptomon/internal/models"
)

type stubSource struct {
	tasks []*models.Task
	state map[string]any

	mu        sync.Mutex
	triggered []string
}

func (s *stubSource) Tasks() []*models.Task { return s.tasks }

func (s *stubSource) State(name string) (any, time.Time, bool) {
	v, ok := s.state[name]
	return v, time.Unix(1724660000, 0), ok
}

func (s *stubSource) Trigger(_ context.Context, name string) error {
	for _, t := range s.tasks {
		if t.Name == name {
			s.mu.Lock()
			s.triggered = append(s.triggered, name)
			s.mu.Unlock()
			return nil
		}
	}
	return errors.Errorf("task %s is not defined", name)
}

func (s *stubSource) triggeredTasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.triggered...)
}

func newAPI() (*stubSource, *httptest.Server) {
	src := &stubSource{
		tasks: []*models.Task{
			{Name: "okx_btc", Exchange: "okx", Function: "fetch_ticker", Interval: 2 * time.Second},
			{Name: "spread", Dependencies: []string{"okx_btc"}, Log: "spread {spread}", Action: "notify"},
		},
		state: map[string]any{"okx_btc": 50000.0},
	}
	return src, httptest.NewServer(NewMux(src))
}

func decodeTasks(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestListTasks(t *testing.T) {
	_, srv := newAPI()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/tasks")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tasks := decodeTasks(t, resp)
	require.Len(t, tasks, 2)
	assert.Equal(t, "okx_btc", tasks[0]["name"])
	assert.Equal(t, 2.0, tasks[0]["interval_sec"])
}

func TestListTasksFilters(t *testing.T) {
	_, srv := newAPI()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/tasks?intervalable=true")
	require.NoError(t, err)
	tasks := decodeTasks(t, resp)
	require.Len(t, tasks, 1)
	assert.Equal(t, "okx_btc", tasks[0]["name"])

	resp, err = http.Get(srv.URL + "/api/tasks?loggable=true&actionable=true")
	require.NoError(t, err)
	tasks = decodeTasks(t, resp)
	require.Len(t, tasks, 1)
	assert.Equal(t, "spread", tasks[0]["name"])
}

func TestTaskState(t *testing.T) {
	_, srv := newAPI()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/tasks/state")
	require.NoError(t, err)
	states := decodeTasks(t, resp)
	require.Len(t, states, 1)
	assert.Equal(t, "okx_btc", states[0]["name"])
	assert.Equal(t, 50000.0, states[0]["value"])
}

func runTask(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/api/tasks/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestRunTask(t *testing.T) {
	src, srv := newAPI()
	defer srv.Close()

	resp := runTask(t, srv.URL, `{"taskName":"okx_btc"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ack map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	resp.Body.Close()
	assert.Equal(t, "triggered", ack["status"])

	// the trigger runs detached from the request
	require.Eventually(t, func() bool {
		got := src.triggeredTasks()
		return len(got) == 1 && got[0] == "okx_btc"
	}, time.Second, 5*time.Millisecond)
}

func TestRunTaskUnknown(t *testing.T) {
	_, srv := newAPI()
	defer srv.Close()

	resp := runTask(t, srv.URL, `{"taskName":"ghost"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "ghost")
}

func TestRunTaskBadRequest(t *testing.T) {
	src, srv := newAPI()
	defer srv.Close()

	for _, body := range []string{``, `{}`, `{"taskName":`} {
		resp := runTask(t, srv.URL, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Empty(t, src.triggeredTasks())
}

func TestRunTaskDoesNotBlockOnSlowTrigger(t *testing.T) {
	release := make(chan struct{})
	src := &stubSource{tasks: []*models.Task{{Name: "slow"}}}
	slow := &slowSource{stubSource: src, release: release}
	srv := httptest.NewServer(NewMux(slow))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	resp := runTask(t, srv.URL, `{"taskName":"slow"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Less(t, time.Since(start), time.Second, "response must not wait for the tick")
}

type slowSource struct {
	*stubSource
	release chan struct{}
}

func (s *slowSource) Trigger(ctx context.Context, name string) error {
	<-s.release
	return s.stubSource.Trigger(ctx, name)
}

func TestProbes(t *testing.T) {
	_, srv := newAPI()
	defer srv.Close()

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
}

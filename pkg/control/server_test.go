package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/small-frappuccino/zealox/pkg/module"
)

type fakeModules struct {
	loaded []module.Info
	errs   map[string]error
	calls  []string
}

func (f *fakeModules) List() []module.Info     { return f.loaded }
func (f *fakeModules) Available() []string     { return []string{"matchday_module", "staff_listen"} }
func (f *fakeModules) LoadingErrors() []string { return []string{"broken: boom"} }

func (f *fakeModules) do(op, name string) error {
	f.calls = append(f.calls, op+":"+name)
	return f.errs[name]
}

func (f *fakeModules) LoadModule(_ context.Context, name string) error   { return f.do("load", name) }
func (f *fakeModules) UnloadModule(_ context.Context, name string) error { return f.do("unload", name) }
func (f *fakeModules) ReloadModule(_ context.Context, name string) error { return f.do("reload", name) }

func newTestServer(t *testing.T, mods *fakeModules) *httptest.Server {
	t.Helper()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewServer("127.0.0.1:0", mods, func() Status {
		return Status{StartedAt: started, Uptime: "0d 1h 0m 0s", Guilds: 3, PendingTasks: 1}
	})
	if s == nil {
		t.Fatal("server is nil")
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestNewServerDisabled(t *testing.T) {
	if s := NewServer("  ", &fakeModules{}, nil); s != nil {
		t.Fatal("expected nil server for empty addr")
	}
	var s *Server
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	tests := []struct {
		path       string
		err        error
		wantStatus int
		wantOK     bool
	}{
		{"/v1/modules/staff_listen/load", nil, http.StatusOK, true},
		{"/v1/modules/staff_listen/unload", fmt.Errorf("%w: staff_listen", module.ErrNotLoaded), http.StatusConflict, false},
		{"/v1/modules/ghost/reload", fmt.Errorf("%w: ghost", module.ErrModuleNotFound), http.StatusNotFound, false},
		{"/v1/modules/matchday_module/unload", fmt.Errorf("%w: matchday_module", module.ErrRequiredModule), http.StatusConflict, false},
		{"/v1/modules/staff_listen/reload", fmt.Errorf("%w: db", module.ErrRequirementsNotMet), http.StatusUnprocessableEntity, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			mods := &fakeModules{errs: map[string]error{}}
			ts := newTestServer(t, mods)
			if tt.err != nil {
				for _, name := range []string{"staff_listen", "ghost", "matchday_module"} {
					mods.errs[name] = tt.err
				}
			}
			resp, err := http.Post(ts.URL+tt.path, "application/json", nil)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body Response
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.OK != tt.wantOK || (tt.err != nil && body.Error != tt.err.Error()) {
				t.Fatalf("body = %+v", body)
			}
			if len(mods.calls) != 1 {
				t.Fatalf("calls = %v", mods.calls)
			}
		})
	}
}

func TestRoutingRejects(t *testing.T) {
	mods := &fakeModules{}
	ts := newTestServer(t, mods)

	resp, err := http.Post(ts.URL+"/v1/modules/x/explode", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown action status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/v1/modules/x/load")
	if err != nil {
		t.Fatal(err)
	}
	var body Response
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET on lifecycle status = %d", resp.StatusCode)
	}
	if decodeErr != nil || body.OK || body.Error == "" {
		t.Fatalf("405 body = %+v (%v)", body, decodeErr)
	}

	resp, err = http.Post(ts.URL+"/v1/status", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST on status = %d", resp.StatusCode)
	}
	if len(mods.calls) != 0 {
		t.Fatalf("unexpected calls %v", mods.calls)
	}
}

func TestReadEndpoints(t *testing.T) {
	mods := &fakeModules{loaded: []module.Info{{Name: "matchday_module", Required: true}}}
	ts := newTestServer(t, mods)

	var modules struct {
		Loaded    []module.Info `json:"loaded"`
		Available []string      `json:"available"`
	}
	getJSON(t, ts.URL+"/v1/modules", &modules)
	if len(modules.Loaded) != 1 || modules.Loaded[0].Name != "matchday_module" || !modules.Loaded[0].Required {
		t.Fatalf("loaded = %+v", modules.Loaded)
	}
	if !slices.Equal(modules.Available, []string{"matchday_module", "staff_listen"}) {
		t.Fatalf("available = %v", modules.Available)
	}

	var st Status
	getJSON(t, ts.URL+"/v1/status", &st)
	if st.Modules != 1 || st.Guilds != 3 || st.PendingTasks != 1 || st.Uptime != "0d 1h 0m 0s" {
		t.Fatalf("status = %+v", st)
	}
	if !slices.Equal(st.LoadingErrors, []string{"broken: boom"}) {
		t.Fatalf("loading errors = %v", st.LoadingErrors)
	}

	var health Response
	getJSON(t, ts.URL+"/healthz", &health)
	if !health.OK {
		t.Fatal("health not ok")
	}
}

func TestStartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", &fakeModules{}, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

package module

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/small-frappuccino/zealox/pkg/discord/commands/core"
)

type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, s)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.events)
}

type fakeModule struct {
	name       string
	cog        string
	deps       []string
	commands   []string
	components []string
	setupErr   error
	reqErr     error
	eventErr   error
	j          *journal
}

func (f *fakeModule) Name() string           { return f.name }
func (f *fakeModule) CogName() string        { return f.cog }
func (f *fakeModule) Dependencies() []string { return f.deps }

func (f *fakeModule) Setup(ctx context.Context, host *Host) error {
	f.j.add("setup:" + f.name)
	return f.setupErr
}

func (f *fakeModule) Teardown(ctx context.Context) error {
	f.j.add("teardown:" + f.name)
	return nil
}

func (f *fakeModule) Commands() []core.Command {
	out := make([]core.Command, 0, len(f.commands))
	for _, c := range f.commands {
		out = append(out, core.NewSimpleCommand(c, c, nil, func(*core.Context) error { return nil }, false, false))
	}
	return out
}

func (f *fakeModule) Components() map[string]core.ComponentHandler {
	out := make(map[string]core.ComponentHandler, len(f.components))
	for _, p := range f.components {
		out[p] = core.ComponentFunc(func(*core.Context) error { return nil })
	}
	return out
}

func (f *fakeModule) CheckRequirements(*Host) error { return f.reqErr }

func (f *fakeModule) HandleEvent(ctx context.Context, ev Event) error {
	f.j.add("event:" + f.name + ":" + ev.Name)
	return f.eventErr
}

type fakeSyncer struct {
	calls int
	err   error
}

func (s *fakeSyncer) SyncCommands(context.Context) (core.SyncResult, error) {
	s.calls++
	return core.SyncResult{}, s.err
}

type fixture struct {
	mgr    *Manager
	router *core.CommandRouter
	syncer *fakeSyncer
	j      *journal
}

func newFixture(t *testing.T, mods ...fakeModule) *fixture {
	t.Helper()
	j := &journal{}
	catalog := NewCatalog()
	for _, m := range mods {
		catalog.Register(m.name, func() Module {
			c := m
			c.j = j
			return &c
		})
	}
	router := core.NewCommandRouter(nil, nil)
	syncer := &fakeSyncer{}
	mgr := NewManager(catalog, &Host{}, router, syncer, WithRequired("core"))
	return &fixture{mgr: mgr, router: router, syncer: syncer, j: j}
}

func TestLoadModulesRequiredFirst(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "core", cog: "Core", commands: []string{"matchday"}},
		fakeModule{name: "lists", cog: "Lists", commands: []string{"liste"}},
		fakeModule{name: "banner", cog: "Banner"},
	)

	report := f.mgr.LoadModules(context.Background(), []string{"lists", "banner", "lists"})
	if want := []string{"core", "lists", "banner"}; !slices.Equal(report.Loaded, want) {
		t.Fatalf("loaded = %v, want %v", report.Loaded, want)
	}
	if len(report.Failed) != 0 || report.SyncErr != nil {
		t.Fatalf("unexpected failures: %+v", report)
	}
	if f.syncer.calls != 1 {
		t.Fatalf("expected one sync, got %d", f.syncer.calls)
	}
	if names := f.router.GetRegistry().Names(); !slices.Equal(names, []string{"liste", "matchday"}) {
		t.Fatalf("registered commands = %v", names)
	}
	info := f.mgr.List()
	if len(info) != 3 || !info[0].Required || info[1].Required {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestLoadModulesCollectsErrors(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "core"},
		fakeModule{name: "broken", setupErr: errors.New("boom")},
	)
	report := f.mgr.LoadModules(context.Background(), []string{"missing", "broken"})
	if !slices.Equal(report.Failed, []string{"missing", "broken"}) {
		t.Fatalf("failed = %v", report.Failed)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("errors = %v", report.Errors)
	}
	if !strings.Contains(report.Errors[0], "Modul 'missing' nicht gefunden.") {
		t.Fatalf("unexpected first error %q", report.Errors[0])
	}
	if !strings.Contains(report.Errors[1], "boom") {
		t.Fatalf("unexpected second error %q", report.Errors[1])
	}

	// A new run starts with a clean error list.
	report = f.mgr.LoadModules(context.Background(), nil)
	if len(report.Errors) != 0 || len(f.mgr.LoadingErrors()) != 0 {
		t.Fatalf("errors not reset: %v", report.Errors)
	}
}

func TestLoadModuleResolvesDependencies(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "base"},
		fakeModule{name: "mid", deps: []string{"base"}},
		fakeModule{name: "top", deps: []string{"mid"}},
	)
	if err := f.mgr.LoadModule(context.Background(), "top"); err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"setup:base", "setup:mid", "setup:top"}
	if got := f.j.all(); !slices.Equal(got, want) {
		t.Fatalf("setup order = %v, want %v", got, want)
	}
	if f.syncer.calls != 1 {
		t.Fatalf("expected one sync, got %d", f.syncer.calls)
	}

	// Already loaded: no sync.
	if err := f.mgr.LoadModule(context.Background(), "top"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if f.syncer.calls != 1 {
		t.Fatalf("expected no additional sync, got %d", f.syncer.calls)
	}
}

func TestLoadModuleDependencyFailure(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "feature", deps: []string{"ghost"}},
	)
	err := f.mgr.LoadModule(context.Background(), "feature")
	if !errors.Is(err, ErrDependencyFailed) {
		t.Fatalf("expected ErrDependencyFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Modul 'feature' benötigt 'ghost', welches nicht geladen werden konnte.") {
		t.Fatalf("unexpected message %q", err)
	}
	if f.mgr.IsLoaded("feature") || f.syncer.calls != 0 {
		t.Fatal("failed load must not be marked loaded or synced")
	}
	if errs := f.mgr.LoadingErrors(); len(errs) != 2 {
		t.Fatalf("expected not-found and dependency errors, got %v", errs)
	}
}

func TestLoadModuleRefusesCycle(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "a", deps: []string{"b"}},
		fakeModule{name: "b", deps: []string{"a"}},
	)
	err := f.mgr.LoadModule(context.Background(), "a")
	if !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("expected ErrDependencyCycle, got %v", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> a") {
		t.Fatalf("cycle path missing: %v", err)
	}
	if len(f.j.all()) != 0 {
		t.Fatalf("no module should be set up: %v", f.j.all())
	}
}

func TestLoadModuleRequirementsAndDuplicates(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "first", cog: "Shared", commands: []string{"ping"}},
		fakeModule{name: "samecog", cog: "Shared"},
		fakeModule{name: "samecmd", cog: "Other", commands: []string{"ping"}},
		fakeModule{name: "twice", commands: []string{"x", "x"}},
		fakeModule{name: "needs", reqErr: errors.New("token missing")},
	)
	ctx := context.Background()
	if err := f.mgr.LoadModule(ctx, "first"); err != nil {
		t.Fatalf("load first: %v", err)
	}

	tests := []struct {
		name string
		want error
	}{
		{"samecog", ErrDuplicateCog},
		{"samecmd", ErrDuplicateCommand},
		{"twice", ErrDuplicateCommand},
		{"needs", ErrRequirementsNotMet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.mgr.LoadModule(ctx, tt.name); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if f.mgr.IsLoaded(tt.name) {
				t.Fatal("module must not be loaded")
			}
		})
	}

	journal := strings.Join(f.j.all(), ",")
	if !strings.Contains(journal, "teardown:samecmd") || !strings.Contains(journal, "teardown:twice") {
		t.Fatalf("modules with conflicting commands must be torn down: %s", journal)
	}
	if strings.Contains(journal, "setup:samecog") || strings.Contains(journal, "setup:needs") {
		t.Fatalf("refused modules must not be set up: %s", journal)
	}
}

func TestLoadModuleComponentConflictRollsBack(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "one", components: []string{"wizard:"}},
		fakeModule{name: "two", commands: []string{"two"}, components: []string{"alpha:", "wizard:"}},
	)
	ctx := context.Background()
	if err := f.mgr.LoadModule(ctx, "one"); err != nil {
		t.Fatalf("load one: %v", err)
	}
	if err := f.mgr.LoadModule(ctx, "two"); !errors.Is(err, ErrDuplicateCommand) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, ok := f.router.GetRegistry().GetCommand("two"); ok {
		t.Fatal("command of rejected module stayed registered")
	}
	// alpha: was rolled back, so a module can claim it now.
	if err := f.router.RegisterComponent("alpha:", core.ComponentFunc(func(*core.Context) error { return nil })); err != nil {
		t.Fatalf("alpha: still registered: %v", err)
	}
}

func TestUnloadModuleRefusals(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "core"},
		fakeModule{name: "base", cog: "Base", commands: []string{"base"}},
		fakeModule{name: "child", deps: []string{"base"}},
	)
	ctx := context.Background()
	f.mgr.LoadModules(ctx, []string{"child"})

	if err := f.mgr.UnloadModule(ctx, "nope"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if err := f.mgr.UnloadModule(ctx, "core"); !errors.Is(err, ErrRequiredModule) {
		t.Fatalf("expected ErrRequiredModule, got %v", err)
	}
	err := f.mgr.UnloadModule(ctx, "base")
	if !errors.Is(err, ErrHasDependents) || !strings.Contains(err.Error(), "Abhängige Module: child") {
		t.Fatalf("expected ErrHasDependents listing child, got %v", err)
	}

	syncs := f.syncer.calls
	if err := f.mgr.UnloadModule(ctx, "child"); err != nil {
		t.Fatalf("unload child: %v", err)
	}
	if err := f.mgr.UnloadModule(ctx, "base"); err != nil {
		t.Fatalf("unload base: %v", err)
	}
	if f.syncer.calls != syncs+2 {
		t.Fatalf("expected a sync per unload, got %d", f.syncer.calls-syncs)
	}
	if _, ok := f.router.GetRegistry().GetCommand("base"); ok {
		t.Fatal("command not unregistered")
	}
	// The cog name is free again.
	if err := f.mgr.LoadModule(ctx, "base"); err != nil {
		t.Fatalf("reload base after unload: %v", err)
	}
}

func TestReloadModuleRestoresDependents(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "core"},
		fakeModule{name: "base", cog: "Base", commands: []string{"base"}},
		fakeModule{name: "child", deps: []string{"base"}, commands: []string{"child"}},
		fakeModule{name: "grandchild", deps: []string{"child"}},
	)
	ctx := context.Background()
	f.mgr.LoadModules(ctx, []string{"grandchild"})
	before := len(f.j.all())
	syncs := f.syncer.calls

	if err := f.mgr.ReloadModule(ctx, "base"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := f.j.all()[before:]
	want := []string{
		"teardown:grandchild", "teardown:child", "teardown:base",
		"setup:base", "setup:child", "setup:grandchild",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("reload sequence = %v, want %v", got, want)
	}
	if f.syncer.calls != syncs+1 {
		t.Fatalf("expected one sync for reload, got %d", f.syncer.calls-syncs)
	}
	for _, name := range []string{"base", "child", "grandchild"} {
		if !f.mgr.IsLoaded(name) {
			t.Fatalf("%s not loaded after reload", name)
		}
	}

	if err := f.mgr.ReloadModule(ctx, "ghost"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	// Required modules can be reloaded.
	if err := f.mgr.ReloadModule(ctx, "core"); err != nil {
		t.Fatalf("reload required: %v", err)
	}
}

func TestLoadModuleFailureSyncsLoadedDependencies(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "dep", commands: []string{"depcmd"}},
		fakeModule{name: "app", deps: []string{"dep"}, setupErr: errors.New("boom")},
	)
	err := f.mgr.LoadModule(context.Background(), "app")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected setup error, got %v", err)
	}
	if !f.mgr.IsLoaded("dep") || f.mgr.IsLoaded("app") {
		t.Fatalf("loaded dep=%v app=%v", f.mgr.IsLoaded("dep"), f.mgr.IsLoaded("app"))
	}
	if f.syncer.calls != 1 {
		t.Fatalf("dependency commands not synced: %d syncs", f.syncer.calls)
	}

	// Nothing new loaded: no sync.
	if err := f.mgr.LoadModule(context.Background(), "app"); err == nil {
		t.Fatal("expected setup error again")
	}
	if f.syncer.calls != 1 {
		t.Fatalf("unexpected sync without a change: %d syncs", f.syncer.calls)
	}
}

func TestReloadModuleFailureSyncs(t *testing.T) {
	j := &journal{}
	builds := 0
	catalog := NewCatalog()
	catalog.Register("base", func() Module {
		builds++
		m := &fakeModule{name: "base", commands: []string{"base"}, j: j}
		if builds > 1 {
			m.setupErr = errors.New("broken on reload")
		}
		return m
	})
	catalog.Register("top", func() Module {
		return &fakeModule{name: "top", deps: []string{"base"}, commands: []string{"top"}, j: j}
	})
	router := core.NewCommandRouter(nil, nil)
	syncer := &fakeSyncer{}
	mgr := NewManager(catalog, &Host{}, router, syncer)
	ctx := context.Background()

	if err := mgr.LoadModule(ctx, "top"); err != nil {
		t.Fatalf("load: %v", err)
	}
	syncs := syncer.calls

	err := mgr.ReloadModule(ctx, "base")
	if err == nil || !strings.Contains(err.Error(), "broken on reload") {
		t.Fatalf("expected reload error, got %v", err)
	}
	if mgr.IsLoaded("base") || mgr.IsLoaded("top") {
		t.Fatal("failed reload left modules loaded")
	}
	if names := router.GetRegistry().Names(); len(names) != 0 {
		t.Fatalf("registered commands = %v", names)
	}
	if syncer.calls != syncs+1 {
		t.Fatalf("expected a sync after the failed reload, got %d", syncer.calls-syncs)
	}
}

func TestSyncFailureKeepsChange(t *testing.T) {
	f := newFixture(t, fakeModule{name: "extra", commands: []string{"extra"}})
	f.syncer.err = errors.New("discord down")

	err := f.mgr.LoadModule(context.Background(), "extra")
	if !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}
	if !f.mgr.IsLoaded("extra") {
		t.Fatal("sync failure must not roll back the load")
	}
}

func TestDispatchEventContinuesPastErrors(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "core"},
		fakeModule{name: "noisy", eventErr: errors.New("fail")},
		fakeModule{name: "quiet"},
	)
	ctx := context.Background()
	f.mgr.LoadModules(ctx, []string{"noisy", "quiet"})
	before := len(f.j.all())

	f.mgr.DispatchEvent(ctx, Event{Name: EventGuildJoin})
	got := f.j.all()[before:]
	want := []string{"event:core:guild_join", "event:noisy:guild_join", "event:quiet:guild_join"}
	if !slices.Equal(got, want) {
		t.Fatalf("dispatch = %v, want %v", got, want)
	}
}

func TestTeardownAllReverseOrder(t *testing.T) {
	f := newFixture(t,
		fakeModule{name: "core"},
		fakeModule{name: "a"},
		fakeModule{name: "b", deps: []string{"a"}},
	)
	ctx := context.Background()
	f.mgr.LoadModules(ctx, []string{"b"})
	before := len(f.j.all())

	f.mgr.TeardownAll(ctx)
	got := f.j.all()[before:]
	if want := []string{"teardown:b", "teardown:a", "teardown:core"}; !slices.Equal(got, want) {
		t.Fatalf("teardown = %v, want %v", got, want)
	}
	if len(f.mgr.List()) != 0 {
		t.Fatal("modules still listed after teardown")
	}
}

func TestAvailableIsSorted(t *testing.T) {
	f := newFixture(t, fakeModule{name: "zeta"}, fakeModule{name: "alpha"})
	if got := f.mgr.Available(); !slices.Equal(got, []string{"alpha", "zeta"}) {
		t.Fatalf("available = %v", got)
	}
}

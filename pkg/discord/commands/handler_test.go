package commands

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/small-frappuccino/zealox/pkg/discord/discordtest"
	"github.com/small-frappuccino/zealox/pkg/module"
)

type noModules struct{}

func (noModules) List() []module.Info                        { return nil }
func (noModules) Available() []string                        { return nil }
func (noModules) IsLoaded(string) bool                       { return false }
func (noModules) LoadModule(context.Context, string) error   { return nil }
func (noModules) UnloadModule(context.Context, string) error { return nil }
func (noModules) ReloadModule(context.Context, string) error { return nil }

func TestSetupCommands(t *testing.T) {
	s, _ := discordtest.New(t)
	ch := NewCommandHandler(s, nil)

	if err := ch.SetupCommands(nil, time.Now(), nil); err == nil {
		t.Fatal("expected error without module manager")
	}
	if err := ch.SetupCommands(noModules{}, time.Now(), nil); err != nil {
		t.Fatal(err)
	}
	names := ch.GetCommandManager().GetRouter().GetRegistry().Names()
	if !slices.Equal(names, []string{"admin", "help"}) {
		t.Fatalf("registered = %v", names)
	}
	if ch.detach == nil {
		t.Fatal("interaction handler not attached")
	}
	if err := ch.Shutdown(); err != nil || ch.detach != nil {
		t.Fatalf("shutdown: err=%v detach=%v", err, ch.detach != nil)
	}
}

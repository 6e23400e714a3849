package stafflist

import (
	"context"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/discord/discordtest"
)

func TestSnapshotPartialCacheFetchesMembers(t *testing.T) {
	s, srv := discordtest.New(t)
	if err := s.State.GuildAdd(&discordgo.Guild{
		ID:          guildID,
		MemberCount: 500,
		Roles:       []*discordgo.Role{{ID: "r1", Name: "Mods"}},
		Members:     []*discordgo.Member{member(discordtest.AppID, "zealox")},
	}); err != nil {
		t.Fatal(err)
	}
	srv.Handle(http.MethodGet, "guilds/*/roles", func(discordtest.Request) (int, any) {
		return http.StatusOK, []*discordgo.Role{{ID: "r1", Name: "Mods"}}
	})
	srv.Handle(http.MethodGet, "guilds/*/members", func(discordtest.Request) (int, any) {
		return http.StatusOK, []*discordgo.Member{
			member("u1", "alice", "r1"),
			member("u2", "bob", "r1"),
		}
	})

	g, err := sessionDirectory{session: s}.Snapshot(context.Background(), guildID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := len(g.RoleMembers("r1")); got != 2 {
		t.Fatalf("r1 holders = %d, want 2", got)
	}
	if got := len(srv.Find(http.MethodGet, "guilds/*/members")); got != 1 {
		t.Fatalf("member requests = %d, want 1", got)
	}
}

func TestSnapshotCompleteCacheSkipsREST(t *testing.T) {
	s, srv := discordtest.New(t)
	if err := s.State.GuildAdd(&discordgo.Guild{
		ID:          guildID,
		MemberCount: 2,
		Roles:       []*discordgo.Role{{ID: "r1", Name: "Mods"}},
		Members:     []*discordgo.Member{member("u1", "alice", "r1"), member("u2", "bob")},
	}); err != nil {
		t.Fatal(err)
	}

	g, err := sessionDirectory{session: s}.Snapshot(context.Background(), guildID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(g.Members) != 2 || len(g.RoleMembers("r1")) != 1 {
		t.Fatalf("snapshot = %d members, %d in r1", len(g.Members), len(g.RoleMembers("r1")))
	}
	if n := len(srv.Requests()); n != 0 {
		t.Fatalf("REST requests = %d, want 0", n)
	}
}

package stafflist

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const membersPageSize = 1000

// Directory provides guild snapshots for rendering.
type Directory interface {
	Snapshot(ctx context.Context, guildID string) (Guild, error)
}

// sessionDirectory reads roles and members from the state cache when it
// holds the whole guild and pages through the members over REST otherwise.
// Large guilds only carry a few members in GUILD_CREATE.
type sessionDirectory struct {
	session *discordgo.Session
}

func (d sessionDirectory) Snapshot(ctx context.Context, guildID string) (Guild, error) {
	if snap, ok := d.cached(guildID); ok {
		return snap, nil
	}

	roles, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return Guild{}, fmt.Errorf("fetch roles: %w", err)
	}
	var (
		members []*discordgo.Member
		after   string
	)
	for {
		batch, err := d.session.GuildMembers(guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return Guild{}, fmt.Errorf("fetch members: %w", err)
		}
		members = append(members, batch...)
		if len(batch) < membersPageSize || batch[len(batch)-1].User == nil {
			break
		}
		after = batch[len(batch)-1].User.ID
	}
	return Guild{Roles: roleMap(roles), Members: members}, nil
}

// cached returns the state snapshot of guildID when its member list is
// complete.
func (d sessionDirectory) cached(guildID string) (Guild, bool) {
	if d.session.State == nil {
		return Guild{}, false
	}
	g, err := d.session.State.Guild(guildID)
	if err != nil {
		return Guild{}, false
	}
	d.session.State.RLock()
	defer d.session.State.RUnlock()
	if len(g.Members) == 0 || len(g.Members) < g.MemberCount {
		return Guild{}, false
	}
	return Guild{Roles: roleMap(g.Roles), Members: append([]*discordgo.Member(nil), g.Members...)}, true
}

func roleMap(roles []*discordgo.Role) map[string]*discordgo.Role {
	out := make(map[string]*discordgo.Role, len(roles))
	for _, r := range roles {
		out[r.ID] = r
	}
	return out
}

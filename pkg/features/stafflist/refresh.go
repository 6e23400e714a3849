package stafflist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/module"
	"github.com/small-frappuccino/zealox/pkg/storage"
	"github.com/small-frappuccino/zealox/pkg/task"
)

// refreshDelay collects bursts of member updates into one refresh per guild.
const refreshDelay = 3 * time.Second

// render builds the pages of list from a fresh guild snapshot.
func (m *Module) render(ctx context.Context, list storage.MemberList) ([]*discordgo.MessageEmbed, error) {
	roles, err := m.store.RolesForList(ctx, list.ID)
	if err != nil {
		return nil, err
	}
	g, err := m.dir.Snapshot(ctx, list.GuildID)
	if err != nil {
		return nil, err
	}
	return BuildEmbeds(list, roles, g), nil
}

// refreshPosted rewrites the posted message of list, keeping the page the
// message currently shows. It reports whether the message was edited.
func (m *Module) refreshPosted(ctx context.Context, list storage.MemberList) bool {
	if !list.Posted() {
		return false
	}
	s := m.host.Session
	msg, err := s.ChannelMessage(list.ChannelID, list.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		m.logger.Debug("Posted list message unavailable", "list", list.Name, "error", err)
		return false
	}
	embeds, err := m.render(ctx, list)
	if err != nil {
		m.logger.Warn("Could not render list", "list", list.Name, "error", err)
		return false
	}

	page := 0
	components := []discordgo.MessageComponent{}
	if len(msg.Components) > 0 || len(embeds) > 1 {
		page = messagePage(msg, len(embeds))
		components = pager(page, len(embeds))
	}
	_, err = s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         list.MessageID,
		Channel:    list.ChannelID,
		Embeds:     &[]*discordgo.MessageEmbed{embeds[page]},
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		m.logger.Debug("Posted list message not edited", "list", list.Name, "error", err)
		return false
	}
	return true
}

// refreshByName re-reads a list after a mutation and refreshes its message.
func (m *Module) refreshByName(ctx context.Context, guildID, name string) {
	list, err := m.store.ListByName(ctx, guildID, name)
	if err != nil {
		return
	}
	m.refreshPosted(ctx, list)
}

// refreshGuild refreshes every posted list of a guild and returns how many
// were edited out of how many lists exist.
func (m *Module) refreshGuild(ctx context.Context, guildID string) (updated, total int, err error) {
	lists, err := m.store.ListsForGuild(ctx, guildID)
	if err != nil {
		return 0, 0, err
	}
	for _, l := range lists {
		if m.refreshPosted(ctx, l) {
			updated++
		}
	}
	return updated, len(lists), nil
}

func (m *Module) listForMessage(ctx context.Context, guildID, messageID string) (storage.MemberList, bool, error) {
	lists, err := m.store.ListsForGuild(ctx, guildID)
	if err != nil {
		return storage.MemberList{}, false, err
	}
	for _, l := range lists {
		if l.MessageID == messageID {
			return l, true, nil
		}
	}
	return storage.MemberList{}, false, nil
}

func (m *Module) runRefresh(ctx context.Context, payload any) error {
	guildID, ok := payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	updated, total, err := m.refreshGuild(ctx, guildID)
	if err != nil {
		return err
	}
	m.logger.Debug("Member lists refreshed", "guild", guildID, "updated", updated, "total", total)
	return nil
}

// HandleEvent refreshes posted lists when a member's roles change.
func (m *Module) HandleEvent(ctx context.Context, ev module.Event) error {
	if ev.Name != module.EventMemberUpdate {
		return nil
	}
	upd, ok := ev.Payload.(*discordgo.GuildMemberUpdate)
	if !ok || upd.Member == nil {
		return nil
	}
	changed := upd.Roles
	if upd.BeforeUpdate != nil {
		if sameRoles(upd.BeforeUpdate.Roles, upd.Roles) {
			return nil
		}
		changed = append(slices.Clone(upd.Roles), upd.BeforeUpdate.Roles...)
	}

	affected, err := m.affectsPostedList(ctx, upd.GuildID, changed)
	if err != nil || !affected {
		return err
	}
	return m.scheduleRefresh(ctx, upd.GuildID)
}

func sameRoles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func (m *Module) affectsPostedList(ctx context.Context, guildID string, roleIDs []string) (bool, error) {
	lists, err := m.store.ListsForGuild(ctx, guildID)
	if err != nil {
		return false, err
	}
	for _, l := range lists {
		if !l.Posted() {
			continue
		}
		roles, err := m.store.RolesForList(ctx, l.ID)
		if err != nil {
			return false, err
		}
		for _, r := range roles {
			if slices.Contains(roleIDs, r.RoleID) {
				return true, nil
			}
		}
	}
	return false, nil
}

// scheduleRefresh debounces refreshes per guild through the task router.
// Without a router the refresh runs inline.
func (m *Module) scheduleRefresh(ctx context.Context, guildID string) error {
	if m.host.Tasks == nil {
		return m.runRefresh(ctx, guildID)
	}
	err := m.host.Tasks.Dispatch(ctx, task.Task{
		Type:    taskRefresh,
		Payload: guildID,
		Options: task.TaskOptions{
			GroupKey:       "stafflist:" + guildID,
			IdempotencyKey: "stafflist:refresh:" + guildID,
			Delay:          refreshDelay,
			MaxAttempts:    1,
		},
	})
	if errors.Is(err, task.ErrDuplicateTask) {
		return nil
	}
	return err
}

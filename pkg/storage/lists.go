package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// MemberList is one configured role list of a guild.
type MemberList struct {
	ID                  int64
	GuildID             string
	Name                string
	Title               string
	Color               string
	SortingAlphabetical bool
	ShowUsernames       bool
	MessageID           string
	ChannelID           string
}

// Posted reports whether the list has been sent to a channel.
func (l MemberList) Posted() bool {
	return l.MessageID != "" && l.ChannelID != ""
}

// ListRole is a role attached to a list with an optional display name.
type ListRole struct {
	RoleID     string
	CustomName string
}

const listColumns = `id, guild_id, name, title, color, sorting_alphabetical, message_id, channel_id, show_usernames`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanList(row rowScanner) (MemberList, error) {
	var (
		l                  MemberList
		sorting, usernames sql.NullInt64
		messageID          sql.NullString
		channelID          sql.NullString
	)
	if err := row.Scan(&l.ID, &l.GuildID, &l.Name, &l.Title, &l.Color, &sorting, &messageID, &channelID, &usernames); err != nil {
		return MemberList{}, err
	}
	l.SortingAlphabetical = sorting.Int64 != 0
	l.ShowUsernames = usernames.Int64 != 0
	l.MessageID = messageID.String
	l.ChannelID = channelID.String
	return l, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListsForGuild returns every list of a guild ordered by creation.
func (s *Store) ListsForGuild(ctx context.Context, guildID string) ([]MemberList, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+listColumns+` FROM lists WHERE guild_id=? ORDER BY id`, guildID)
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	var out []MemberList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListByName returns the named list of a guild or ErrListNotFound.
func (s *Store) ListByName(ctx context.Context, guildID, name string) (MemberList, error) {
	if s.db == nil {
		return MemberList{}, ErrNotInitialized
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE guild_id=? AND name=?`, guildID, name)
	l, err := scanList(row)
	if errors.Is(err, sql.ErrNoRows) {
		return MemberList{}, ErrListNotFound
	}
	if err != nil {
		return MemberList{}, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

// CreateList inserts a list and returns its id.
func (s *Store) CreateList(ctx context.Context, l MemberList) (int64, error) {
	if s.db == nil {
		return 0, ErrNotInitialized
	}
	if _, err := s.ListByName(ctx, l.GuildID, l.Name); err == nil {
		return 0, ErrListExists
	} else if !errors.Is(err, ErrListNotFound) {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lists (guild_id, name, title, color, sorting_alphabetical, show_usernames) VALUES (?, ?, ?, ?, ?, ?)`,
		l.GuildID, l.Name, l.Title, l.Color, boolInt(l.SortingAlphabetical), boolInt(l.ShowUsernames),
	)
	if err != nil {
		return 0, fmt.Errorf("insert list: %w", err)
	}
	return res.LastInsertId()
}

// DeleteList removes a list; its roles go with it.
func (s *Store) DeleteList(ctx context.Context, listID int64) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM lists WHERE id=?`, listID); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// RolesForList returns the roles of a list in insertion order.
func (s *Store) RolesForList(ctx context.Context, listID int64) ([]ListRole, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := s.db.QueryContext(ctx, `SELECT role_id, custom_name FROM list_roles WHERE list_id=? ORDER BY id`, listID)
	if err != nil {
		return nil, fmt.Errorf("query list roles: %w", err)
	}
	defer rows.Close()

	var out []ListRole
	for rows.Next() {
		var (
			r    ListRole
			name sql.NullString
		)
		if err := rows.Scan(&r.RoleID, &name); err != nil {
			return nil, fmt.Errorf("scan list role: %w", err)
		}
		r.CustomName = name.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddRoleToList attaches a role. When the role is already attached and
// customName is non-nil, the display name is updated instead. The boolean
// reports whether a new row was inserted.
func (s *Store) AddRoleToList(ctx context.Context, listID int64, roleID string, customName *string) (bool, error) {
	if s.db == nil {
		return false, ErrNotInitialized
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM list_roles WHERE list_id=? AND role_id=?`, listID, roleID).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		var name any
		if customName != nil {
			name = nullable(*customName)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO list_roles (list_id, role_id, custom_name) VALUES (?, ?, ?)`, listID, roleID, name); err != nil {
			return false, fmt.Errorf("insert list role: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("lookup list role: %w", err)
	}

	if customName != nil {
		if _, err := s.UpdateRoleCustomName(ctx, listID, roleID, *customName); err != nil {
			return false, err
		}
	}
	return false, nil
}

// RemoveRoleFromList detaches a role and reports whether it was attached.
func (s *Store) RemoveRoleFromList(ctx context.Context, listID int64, roleID string) (bool, error) {
	return s.execAffected(ctx, "remove list role", `DELETE FROM list_roles WHERE list_id=? AND role_id=?`, listID, roleID)
}

// UpdateRoleCustomName sets the display name of an attached role; an empty
// name resets it to the role's own name.
func (s *Store) UpdateRoleCustomName(ctx context.Context, listID int64, roleID, customName string) (bool, error) {
	return s.execAffected(ctx, "update role name", `UPDATE list_roles SET custom_name=? WHERE list_id=? AND role_id=?`, nullable(customName), listID, roleID)
}

// UpdateListSorting toggles alphabetical role ordering.
func (s *Store) UpdateListSorting(ctx context.Context, listID int64, alphabetical bool) (bool, error) {
	return s.execAffected(ctx, "update sorting", `UPDATE lists SET sorting_alphabetical=? WHERE id=?`, boolInt(alphabetical), listID)
}

// UpdateListUsernameDisplay toggles the "| Name" suffix of member lines.
func (s *Store) UpdateListUsernameDisplay(ctx context.Context, listID int64, show bool) (bool, error) {
	return s.execAffected(ctx, "update username display", `UPDATE lists SET show_usernames=? WHERE id=?`, boolInt(show), listID)
}

// UpdateListMessage records where the list was posted. Empty ids clear it.
func (s *Store) UpdateListMessage(ctx context.Context, listID int64, messageID, channelID string) (bool, error) {
	return s.execAffected(ctx, "update message info", `UPDATE lists SET message_id=?, channel_id=? WHERE id=?`, nullable(messageID), nullable(channelID), listID)
}

// UpdateListAppearance changes title and/or color; empty values are kept.
func (s *Store) UpdateListAppearance(ctx context.Context, listID int64, title, color string) (bool, error) {
	var (
		fields []string
		args   []any
	)
	if title != "" {
		fields = append(fields, "title=?")
		args = append(args, title)
	}
	if color != "" {
		fields = append(fields, "color=?")
		args = append(args, color)
	}
	if len(fields) == 0 {
		return false, nil
	}
	args = append(args, listID)
	return s.execAffected(ctx, "update list", `UPDATE lists SET `+strings.Join(fields, ", ")+` WHERE id=?`, args...)
}

func (s *Store) execAffected(ctx context.Context, what, query string, args ...any) (bool, error) {
	if s.db == nil {
		return false, ErrNotInitialized
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", what, err)
	}
	return n > 0, nil
}

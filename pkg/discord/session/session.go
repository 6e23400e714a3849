// Package session creates and opens the Discord gateway session.
package session

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/log"
)

// Error messages
const (
	ErrSessionCreationFailed   = "failed to create Discord session: %w"
	ErrSessionConnectionFailed = "failed to connect to Discord: %w"
)

// Intents are the gateway intents the bot identifies with.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentMessageContent

var (
	newSession   = func(token string) (*discordgo.Session, error) { return discordgo.New("Bot " + token) }
	openSession  = func(s *discordgo.Session) error { return s.Open() }
	closeSession = func(s *discordgo.Session) error { return s.Close() }
)

// New creates a session with the bot intents without connecting.
func New(token string) (*discordgo.Session, error) {
	if token == "" {
		log.ErrorLoggerRaw().Error("❌ Discord bot token is empty. Please set the token before starting the bot.")
		return nil, errors.New("discord bot token is empty")
	}
	s, err := newSession(token)
	if err != nil {
		return nil, fmt.Errorf(ErrSessionCreationFailed, err)
	}
	s.Identify.Intents = Intents
	s.StateEnabled = true
	return s, nil
}

// Open connects s to the gateway. The session is closed again when the
// handshake fails so that a later attempt starts clean.
func Open(s *discordgo.Session) error {
	log.DiscordLogger().Info("🔗 Connecting to Discord...")
	if err := openSession(s); err != nil {
		if cerr := closeSession(s); cerr != nil {
			log.DiscordLogger().Debug("Close after failed connect", "err", cerr)
		}
		return fmt.Errorf(ErrSessionConnectionFailed, err)
	}
	log.DiscordLogger().Info("✅ Connected to Discord successfully")
	return nil
}

// NewDiscordSession creates a session and opens it.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	s, err := New(token)
	if err != nil {
		return nil, err
	}
	if err := Open(s); err != nil {
		return nil, err
	}
	return s, nil
}

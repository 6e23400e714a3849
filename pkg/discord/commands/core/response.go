package core

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/zealox/pkg/theme"
)

// MaxAutocompleteChoices is the platform limit for one autocomplete answer.
const MaxAutocompleteChoices = 25

// ResponseType selects prefix, title and color of a standard reply.
type ResponseType int

const (
	ResponseSuccess ResponseType = iota
	ResponseError
	ResponseWarning
	ResponseInfo
	ResponseLoading
)

// ResponseConfig configures the next reply.
type ResponseConfig struct {
	Ephemeral   bool
	Title       string
	Color       int
	WithEmbed   bool
	Footer      string
	Timestamp   bool
	Components  []discordgo.MessageComponent
	Attachments []*discordgo.File
}

// ResponseManager sends every kind of interaction reply.
type ResponseManager struct {
	session *discordgo.Session
	config  ResponseConfig
}

// NewResponseManager creates a response manager for session.
func NewResponseManager(session *discordgo.Session) *ResponseManager {
	return &ResponseManager{session: session}
}

// WithConfig returns a copy that applies config to its replies.
func (rm *ResponseManager) WithConfig(config ResponseConfig) *ResponseManager {
	return &ResponseManager{
		session: rm.session,
		config:  config,
	}
}

// Success sends a success reply.
func (rm *ResponseManager) Success(i *discordgo.InteractionCreate, message string) error {
	return rm.sendResponse(i, message, ResponseSuccess)
}

// Error sends an error reply.
func (rm *ResponseManager) Error(i *discordgo.InteractionCreate, message string) error {
	return rm.sendResponse(i, message, ResponseError)
}

// Warning sends a warning reply.
func (rm *ResponseManager) Warning(i *discordgo.InteractionCreate, message string) error {
	return rm.sendResponse(i, message, ResponseWarning)
}

// Info sends an informational reply.
func (rm *ResponseManager) Info(i *discordgo.InteractionCreate, message string) error {
	return rm.sendResponse(i, message, ResponseInfo)
}

// Loading sends a loading reply.
func (rm *ResponseManager) Loading(i *discordgo.InteractionCreate, message string) error {
	return rm.sendResponse(i, message, ResponseLoading)
}

// Ephemeral sends a plain ephemeral message without prefix.
func (rm *ResponseManager) Ephemeral(i *discordgo.InteractionCreate, message string) error {
	return rm.respond(i, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{
		Content: message,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

// Custom sends content and embeds with the configured components and files.
func (rm *ResponseManager) Custom(i *discordgo.InteractionCreate, content string, embeds []*discordgo.MessageEmbed) error {
	return rm.respond(i, discordgo.InteractionResponseChannelMessageWithSource, rm.data(content, embeds))
}

// Embed sends a single embed.
func (rm *ResponseManager) Embed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error {
	cfg := rm.config
	cfg.Ephemeral = ephemeral
	return rm.WithConfig(cfg).Custom(i, "", []*discordgo.MessageEmbed{embed})
}

func (rm *ResponseManager) data(content string, embeds []*discordgo.MessageEmbed) *discordgo.InteractionResponseData {
	var flags discordgo.MessageFlags
	if rm.config.Ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponseData{
		Content:    content,
		Embeds:     embeds,
		Flags:      flags,
		Components: rm.config.Components,
		Files:      rm.config.Attachments,
	}
}

func (rm *ResponseManager) respond(i *discordgo.InteractionCreate, typ discordgo.InteractionResponseType, data *discordgo.InteractionResponseData) error {
	return rm.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{Type: typ, Data: data})
}

func (rm *ResponseManager) sendResponse(i *discordgo.InteractionCreate, message string, responseType ResponseType) error {
	if rm.config.WithEmbed {
		return rm.Custom(i, "", []*discordgo.MessageEmbed{rm.createEmbed(message, responseType)})
	}
	return rm.Custom(i, formatTextMessage(message, responseType), nil)
}

func formatTextMessage(message string, responseType ResponseType) string {
	switch responseType {
	case ResponseSuccess:
		return "✅ " + message
	case ResponseError:
		return "❌ " + message
	case ResponseWarning:
		return "⚠️ " + message
	case ResponseInfo:
		return "ℹ️ " + message
	case ResponseLoading:
		return "⏳ " + message
	default:
		return message
	}
}

func (rm *ResponseManager) createEmbed(message string, responseType ResponseType) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       rm.config.Title,
		Description: message,
		Color:       rm.config.Color,
	}
	if embed.Title == "" {
		embed.Title = titleForType(responseType)
	}
	if embed.Color == 0 {
		embed.Color = colorForType(responseType)
	}
	if rm.config.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: rm.config.Footer}
	}
	if rm.config.Timestamp {
		embed.Timestamp = time.Now().Format(time.RFC3339)
	}
	return embed
}

func colorForType(responseType ResponseType) int {
	switch responseType {
	case ResponseSuccess:
		return theme.Success()
	case ResponseError:
		return theme.Error()
	case ResponseWarning:
		return theme.Warning()
	case ResponseInfo:
		return theme.Info()
	case ResponseLoading:
		return theme.Loading()
	default:
		return theme.Muted()
	}
}

func titleForType(responseType ResponseType) string {
	switch responseType {
	case ResponseSuccess:
		return "Erfolg"
	case ResponseError:
		return "Fehler"
	case ResponseWarning:
		return "Warnung"
	case ResponseInfo:
		return "Information"
	case ResponseLoading:
		return "Lädt..."
	default:
		return ""
	}
}

// Autocomplete answers an autocomplete request, capped at 25 choices.
func (rm *ResponseManager) Autocomplete(i *discordgo.InteractionCreate, choices []*discordgo.ApplicationCommandOptionChoice) error {
	if len(choices) > MaxAutocompleteChoices {
		choices = choices[:MaxAutocompleteChoices]
	}
	if choices == nil {
		choices = []*discordgo.ApplicationCommandOptionChoice{}
	}
	return rm.respond(i, discordgo.InteractionApplicationCommandAutocompleteResult, &discordgo.InteractionResponseData{Choices: choices})
}

// Modal opens a modal dialog.
func (rm *ResponseManager) Modal(i *discordgo.InteractionCreate, customID, title string, rows ...discordgo.MessageComponent) error {
	return rm.respond(i, discordgo.InteractionResponseModal, &discordgo.InteractionResponseData{
		CustomID:   customID,
		Title:      title,
		Components: rows,
	})
}

// UpdateMessage replaces the message a component belongs to.
func (rm *ResponseManager) UpdateMessage(i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) error {
	return rm.respond(i, discordgo.InteractionResponseUpdateMessage, data)
}

// DeferUpdate acknowledges a component interaction without changing the message.
func (rm *ResponseManager) DeferUpdate(i *discordgo.InteractionCreate) error {
	return rm.respond(i, discordgo.InteractionResponseDeferredMessageUpdate, nil)
}

// DeferResponse defers the reply for long-running work.
func (rm *ResponseManager) DeferResponse(i *discordgo.InteractionCreate, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return rm.respond(i, discordgo.InteractionResponseDeferredChannelMessageWithSource, &discordgo.InteractionResponseData{Flags: flags})
}

// EditResponse replaces the content of the original reply.
func (rm *ResponseManager) EditResponse(i *discordgo.InteractionCreate, content string) error {
	_, err := rm.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
	return err
}

// EditResponseWithEmbed replaces the original reply with an embed.
func (rm *ResponseManager) EditResponseWithEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	_, err := rm.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
	return err
}

// EditResponseWithFiles replaces the original reply with embeds and attachments.
func (rm *ResponseManager) EditResponseWithFiles(i *discordgo.InteractionCreate, content string, embeds []*discordgo.MessageEmbed, files []*discordgo.File) error {
	_, err := rm.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &embeds,
		Files:   files,
	})
	return err
}

// FollowUp sends a follow-up message.
func (rm *ResponseManager) FollowUp(i *discordgo.InteractionCreate, content string, ephemeral bool) error {
	_, err := rm.FollowUpMessage(i, &discordgo.WebhookParams{Content: content}, ephemeral)
	return err
}

// FollowUpWithEmbed sends a follow-up embed.
func (rm *ResponseManager) FollowUpWithEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error {
	_, err := rm.FollowUpMessage(i, &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}, ephemeral)
	return err
}

// FollowUpMessage sends arbitrary follow-up params and returns the created message.
func (rm *ResponseManager) FollowUpMessage(i *discordgo.InteractionCreate, params *discordgo.WebhookParams, ephemeral bool) (*discordgo.Message, error) {
	if ephemeral {
		params.Flags |= discordgo.MessageFlagsEphemeral
	}
	return rm.session.FollowupMessageCreate(i.Interaction, true, params)
}

// DeleteFollowUp removes a follow-up message.
func (rm *ResponseManager) DeleteFollowUp(i *discordgo.InteractionCreate, messageID string) error {
	return rm.session.FollowupMessageDelete(i.Interaction, messageID)
}

// DeleteResponse deletes the original reply.
func (rm *ResponseManager) DeleteResponse(i *discordgo.InteractionCreate) error {
	return rm.session.InteractionResponseDelete(i.Interaction)
}

// ResponseBuilder builds a configured ResponseManager fluently.
type ResponseBuilder struct {
	manager *ResponseManager
	config  ResponseConfig
}

// NewResponseBuilder creates a builder for session.
func NewResponseBuilder(session *discordgo.Session) *ResponseBuilder {
	return &ResponseBuilder{manager: NewResponseManager(session)}
}

func (rb *ResponseBuilder) Ephemeral() *ResponseBuilder {
	rb.config.Ephemeral = true
	return rb
}

func (rb *ResponseBuilder) WithEmbed() *ResponseBuilder {
	rb.config.WithEmbed = true
	return rb
}

func (rb *ResponseBuilder) WithTitle(title string) *ResponseBuilder {
	rb.config.Title = title
	return rb
}

func (rb *ResponseBuilder) WithColor(color int) *ResponseBuilder {
	rb.config.Color = color
	return rb
}

func (rb *ResponseBuilder) WithFooter(footer string) *ResponseBuilder {
	rb.config.Footer = footer
	return rb
}

func (rb *ResponseBuilder) WithTimestamp() *ResponseBuilder {
	rb.config.Timestamp = true
	return rb
}

func (rb *ResponseBuilder) WithComponents(components ...discordgo.MessageComponent) *ResponseBuilder {
	rb.config.Components = components
	return rb
}

func (rb *ResponseBuilder) WithAttachments(files ...*discordgo.File) *ResponseBuilder {
	rb.config.Attachments = files
	return rb
}

// Build returns the configured ResponseManager.
func (rb *ResponseBuilder) Build() *ResponseManager {
	return rb.manager.WithConfig(rb.config)
}

func (rb *ResponseBuilder) Success(i *discordgo.InteractionCreate, message string) error {
	return rb.Build().Success(i, message)
}

func (rb *ResponseBuilder) Error(i *discordgo.InteractionCreate, message string) error {
	return rb.Build().Error(i, message)
}

func (rb *ResponseBuilder) Info(i *discordgo.InteractionCreate, message string) error {
	return rb.Build().Info(i, message)
}

func (rb *ResponseBuilder) Warning(i *discordgo.InteractionCreate, message string) error {
	return rb.Build().Warning(i, message)
}

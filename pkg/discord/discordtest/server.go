// Package discordtest provides a fake Discord REST API for tests.
package discordtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
)

// AppID is the application/bot user id of sessions created by New.
const AppID = "100000000000000001"

// Request is one recorded REST call.
type Request struct {
	Method      string
	Path        string // relative to the API root, e.g. "channels/1/messages"
	ContentType string
	Body        []byte
}

// JSON decodes the request payload into v. Multipart bodies are decoded
// from their payload_json part.
func (r Request) JSON(v any) error {
	payload := r.Body
	mediaType, params, _ := mime.ParseMediaType(r.ContentType)
	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(bytes.NewReader(r.Body), params["boundary"])
		payload = nil
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			if part.FormName() == "payload_json" {
				payload, _ = io.ReadAll(part)
				break
			}
		}
		if payload == nil {
			return fmt.Errorf("multipart body without payload_json")
		}
	}
	return json.Unmarshal(payload, v)
}

// FileNames returns the attachment file names of a multipart request.
func (r Request) FileNames() []string {
	mediaType, params, _ := mime.ParseMediaType(r.ContentType)
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil
	}
	var names []string
	mr := multipart.NewReader(bytes.NewReader(r.Body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			return names
		}
		if fn := part.FileName(); fn != "" {
			names = append(names, fn)
		}
	}
}

// HandlerFunc answers a request with a status code and a JSON-encodable body.
type HandlerFunc func(r Request) (status int, body any)

type route struct {
	method  string
	pattern string
	fn      HandlerFunc
}

// Server is a fake Discord API. Unrouted requests get 200 and "{}".
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	routes   []route
}

// New starts a fake API and returns a session whose HTTP client talks to it.
func New(t testing.TB) (*discordgo.Session, *Server) {
	t.Helper()

	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	session, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	target, _ := url.Parse(s.URL)
	session.Client = &http.Client{Transport: rewriteTransport{target: target}}
	session.State.User = &discordgo.User{ID: AppID, Username: "zealox", Bot: true}
	return session, s
}

// Handle routes method + pattern (path.Match syntax over the API-relative
// path) to fn. Later registrations win.
func (s *Server) Handle(method, pattern string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append([]route{{method: method, pattern: pattern, fn: fn}}, s.routes...)
}

// Requests returns every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Find returns the recorded requests matching method and pattern.
func (s *Server) Find(method, pattern string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if ok, _ := path.Match(pattern, r.Path); ok && (method == "" || r.Method == method) {
			out = append(out, r)
		}
	}
	return out
}

// ResponseData is the decoded subset of an interaction callback payload.
// Components stay raw since discordgo cannot decode them into interfaces.
type ResponseData struct {
	Content    string                                      `json:"content"`
	Embeds     []*discordgo.MessageEmbed                   `json:"embeds"`
	Flags      discordgo.MessageFlags                      `json:"flags"`
	CustomID   string                                      `json:"custom_id"`
	Title      string                                      `json:"title"`
	Choices    []*discordgo.ApplicationCommandOptionChoice `json:"choices"`
	Components json.RawMessage                             `json:"components"`
}

// InteractionResponse is a decoded interaction callback.
type InteractionResponse struct {
	Type discordgo.InteractionResponseType `json:"type"`
	Data ResponseData                      `json:"data"`
}

// Ephemeral reports whether the ephemeral flag is set.
func (r InteractionResponse) Ephemeral() bool {
	return r.Data.Flags&discordgo.MessageFlagsEphemeral != 0
}

// Text returns the content followed by embed titles and descriptions.
func (r InteractionResponse) Text() string {
	var b strings.Builder
	b.WriteString(r.Data.Content)
	for _, e := range r.Data.Embeds {
		b.WriteString("\n" + e.Title + "\n" + e.Description)
		for _, f := range e.Fields {
			b.WriteString("\n" + f.Name + "\n" + f.Value)
		}
	}
	return b.String()
}

// InteractionResponses decodes every interaction callback.
func (s *Server) InteractionResponses() []InteractionResponse {
	var out []InteractionResponse
	for _, r := range s.Find(http.MethodPost, "interactions/*/*/callback") {
		var resp InteractionResponse
		if err := r.JSON(&resp); err == nil {
			out = append(out, resp)
		}
	}
	return out
}

func apiRelative(p string) string {
	p = strings.TrimPrefix(p, "/")
	if strings.HasPrefix(p, "api/") {
		p = strings.TrimPrefix(p, "api/")
		if strings.HasPrefix(p, "v") {
			if i := strings.IndexByte(p, '/'); i >= 0 {
				p = p[i+1:]
			}
		}
	}
	return p
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := Request{
		Method:      r.Method,
		Path:        apiRelative(r.URL.Path),
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	routes := append([]route(nil), s.routes...)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	for _, rt := range routes {
		if rt.method != "" && rt.method != r.Method {
			continue
		}
		if ok, _ := path.Match(rt.pattern, req.Path); !ok {
			continue
		}
		status, out := rt.fn(req)
		w.WriteHeader(status)
		if out != nil {
			_ = json.NewEncoder(w).Encode(out)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}

type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	out := r.Clone(r.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

// Interaction builds a slash command interaction.
func Interaction(command, guildID, userID string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      "interaction-" + command,
			AppID:   AppID,
			Token:   "token",
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: guildID,
			Member:  &discordgo.Member{User: &discordgo.User{ID: userID, Username: "user-" + userID}},
			Data: discordgo.ApplicationCommandInteractionData{
				ID:      "cmd-" + command,
				Name:    command,
				Options: options,
			},
		},
	}
}

// SubCommand wraps options into a subcommand option.
func SubCommand(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommand,
		Options: options,
	}
}

// StringOption builds a string option value.
func StringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

// Component builds a button or select interaction.
func Component(customID, guildID, userID string, values ...string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-" + customID,
			AppID:     AppID,
			Token:     "token",
			Type:      discordgo.InteractionMessageComponent,
			GuildID:   guildID,
			ChannelID: "channel",
			Member:    &discordgo.Member{User: &discordgo.User{ID: userID, Username: "user-" + userID}},
			Message:   &discordgo.Message{ID: "message", ChannelID: "channel"},
			Data: discordgo.MessageComponentInteractionData{
				CustomID: customID,
				Values:   values,
			},
		},
	}
}

// ModalSubmit builds a modal submit interaction with the given text inputs.
func ModalSubmit(customID, guildID, userID string, inputs map[string]string) *discordgo.InteractionCreate {
	var rows []discordgo.MessageComponent
	for id, value := range inputs {
		rows = append(rows, &discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: id, Value: value},
		}})
	}
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-" + customID,
			AppID:     AppID,
			Token:     "token",
			Type:      discordgo.InteractionModalSubmit,
			GuildID:   guildID,
			ChannelID: "channel",
			Member:    &discordgo.Member{User: &discordgo.User{ID: userID, Username: "user-" + userID}},
			Data: discordgo.ModalSubmitInteractionData{
				CustomID:   customID,
				Components: rows,
			},
		},
	}
}

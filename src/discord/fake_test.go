package discord

import (
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

type fakeSession struct {
	mu        sync.Mutex
	openErr   error
	openDelay time.Duration
	opens     int
	handlers  []interface{}

	botID      string
	members    map[string]*discordgo.Member
	roles      []*discordgo.Role
	roleAddErr error
	added      []string
	channelErr error
	sendErr    error
	sent       map[string][]*discordgo.MessageSend
	webhooks   []*discordgo.WebhookParams
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		botID: "900",
		members: map[string]*discordgo.Member{
			"900":          {User: &discordgo.User{ID: "900"}, Roles: []string{"bot-role"}},
			"555666777888": {User: &discordgo.User{ID: "555666777888", Username: "Alice"}},
		},
		roles: []*discordgo.Role{
			{ID: "bot-role", Name: "Review Bot", Position: 10},
			{ID: "mod", Name: "Moderator", Position: 5},
			{ID: "admin", Name: "Admin", Position: 20},
		},
		sent: make(map[string][]*discordgo.MessageSend),
	}
}

func restErr(status, code int) error {
	return &discordgo.RESTError{
		Response:     &http.Response{Status: http.StatusText(status), StatusCode: status},
		ResponseBody: []byte(`{"message":"error","code":0}`),
		Message:      &discordgo.APIErrorMessage{Code: code, Message: "error"},
	}
}

func (f *fakeSession) fire(ev interface{}) {
	f.mu.Lock()
	hs := append([]interface{}{}, f.handlers...)
	f.mu.Unlock()
	for _, h := range hs {
		switch fn := h.(type) {
		case func(*discordgo.Session, *discordgo.Ready):
			if e, ok := ev.(*discordgo.Ready); ok {
				fn(nil, e)
			}
		case func(*discordgo.Session, *discordgo.Resumed):
			if e, ok := ev.(*discordgo.Resumed); ok {
				fn(nil, e)
			}
		case func(*discordgo.Session, *discordgo.Disconnect):
			if e, ok := ev.(*discordgo.Disconnect); ok {
				fn(nil, e)
			}
		}
	}
}

func (f *fakeSession) Open() error {
	if f.openDelay > 0 {
		time.Sleep(f.openDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	return f.openErr
}

func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) AddHandler(h interface{}) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
	return func() {}
}

func (f *fakeSession) User(userID string, _ ...discordgo.RequestOption) (*discordgo.User, error) {
	if userID == "@me" {
		return &discordgo.User{ID: f.botID, Bot: true}, nil
	}
	return &discordgo.User{ID: userID}, nil
}

func (f *fakeSession) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return nil, restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMember)
	}
	cp := *m
	cp.Roles = append([]string{}, m.Roles...)
	return &cp, nil
}

func (f *fakeSession) GuildRoles(string, ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return f.roles, nil
}

func (f *fakeSession) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roleAddErr != nil {
		return f.roleAddErr
	}
	f.added = append(f.added, userID+":"+roleID)
	if m, ok := f.members[userID]; ok {
		m.Roles = append(m.Roles, roleID)
	}
	return nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent[channelID] = append(f.sent[channelID], data)
	return &discordgo.Message{ID: "m1", ChannelID: channelID}, nil
}

func (f *fakeSession) WebhookExecute(_, _ string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, data)
	return nil, nil
}

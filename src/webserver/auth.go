package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/stake-plus/mod-review/src/config"
	"github.com/stake-plus/mod-review/src/data"
)

const discordUserURL = "https://discord.com/api/users/@me"

// StateStore keeps single-use OAuth state nonces.
type StateStore interface {
	New(ctx context.Context, redirect string) (string, error)
	Consume(ctx context.Context, state string) (string, error)
}

type Auth struct {
	oauth       *oauth2.Config
	userInfoURL string
	states      StateStore
	roles       RoleChecker
	adminIDs    []string
	adminRoleID string
	jwtSecret   []byte
	secure      bool
	log         *zap.Logger
	now         func() time.Time
}

func NewAuth(cfg config.ReviewConfig, deps Deps, log *zap.Logger) *Auth {
	endpoint := deps.OAuthEndpoint
	if endpoint.TokenURL == "" {
		endpoint = endpoints.Discord
	}
	userURL := deps.UserInfoURL
	if userURL == "" {
		userURL = discordUserURL
	}
	var states StateStore = newMemoryStates()
	if deps.Redis != nil {
		states = redisStates{rdb: deps.Redis}
	}
	return &Auth{
		oauth: &oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       []string{"identify"},
			Endpoint:     endpoint,
		},
		userInfoURL: userURL,
		states:      states,
		roles:       deps.Roles,
		adminIDs:    cfg.AdminIDs,
		adminRoleID: cfg.AdminRoleID,
		jwtSecret:   []byte(cfg.JWTSecret),
		secure:      cfg.CookieSecure,
		log:         log,
		now:         time.Now,
	}
}

func (a *Auth) Login(c *gin.Context) {
	state, err := a.states.New(c.Request.Context(), safeRedirect(c.Query("redirect")))
	if err != nil {
		a.log.Error("oauth state not stored", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to start login"})
		return
	}
	c.Redirect(http.StatusFound, a.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "none")))
}

func (a *Auth) Callback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "discord login declined: " + e})
		return
	}
	redirect, err := a.states.Consume(c.Request.Context(), c.Query("state"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid or expired login state"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	tok, err := a.oauth.Exchange(ctx, c.Query("code"))
	if err != nil {
		a.log.Warn("oauth exchange failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"err": "token exchange failed"})
		return
	}
	user, err := a.fetchUser(ctx, tok)
	if err != nil {
		a.log.Warn("discord user lookup failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"err": "could not read discord profile"})
		return
	}

	if !a.isAdmin(ctx, user.ID) {
		a.log.Warn("non-admin login refused", zap.String("discord_id", user.ID), zap.String("username", user.Username))
		c.JSON(http.StatusForbidden, gin.H{"err": "admin access required"})
		return
	}

	signed, err := issueToken(a.jwtSecret, user.ID, user.displayName(), true, a.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to issue session"})
		return
	}
	a.log.Info("admin logged in", zap.String("discord_id", user.ID), zap.String("username", user.Username))
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, signed, int(sessionTTL.Seconds()), "/", "", a.secure, true)
	c.Redirect(http.StatusFound, redirect)
}

func (a *Auth) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", a.secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *Auth) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"discordId": c.GetString(ctxDiscordID),
		"username":  c.GetString(ctxReviewer),
		"admin":     c.GetBool(ctxAdmin),
	})
}

func (a *Auth) isAdmin(ctx context.Context, discordID string) bool {
	if slices.Contains(a.adminIDs, discordID) {
		return true
	}
	if a.roles == nil || a.adminRoleID == "" {
		return false
	}
	ok, err := a.roles.HasRole(ctx, discordID, a.adminRoleID)
	if err != nil {
		a.log.Warn("admin role check failed", zap.String("discord_id", discordID), zap.Error(err))
		return false
	}
	return ok
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

func (u discordUser) displayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.GlobalName
}

func (a *Auth) fetchUser(ctx context.Context, tok *oauth2.Token) (*discordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("users/@me: %s", resp.Status)
	}
	var u discordUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errors.New("users/@me: empty id")
	}
	return &u, nil
}

// safeRedirect keeps post-login redirects on this origin.
func safeRedirect(r string) string {
	if !strings.HasPrefix(r, "/") || strings.HasPrefix(r, "//") || strings.HasPrefix(r, "/\\") {
		return "/"
	}
	return r
}

type redisStates struct{ rdb *redis.Client }

func (s redisStates) New(ctx context.Context, redirect string) (string, error) {
	return data.NewOAuthState(ctx, s.rdb, redirect)
}

func (s redisStates) Consume(ctx context.Context, state string) (string, error) {
	return data.ConsumeOAuthState(ctx, s.rdb, state)
}

// memoryStates serves single-instance deployments without redis.
type memoryStates struct {
	mu     sync.Mutex
	states map[string]memoryState
	ttl    time.Duration
}

type memoryState struct {
	redirect string
	expires  time.Time
}

func newMemoryStates() *memoryStates {
	return &memoryStates{states: make(map[string]memoryState), ttl: 5 * time.Minute}
}

func (s *memoryStates) New(_ context.Context, redirect string) (string, error) {
	now := time.Now()
	state := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.states {
		if now.After(v.expires) {
			delete(s.states, k)
		}
	}
	s.states[state] = memoryState{redirect: redirect, expires: now.Add(s.ttl)}
	return state, nil
}

func (s *memoryStates) Consume(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.states[state]
	delete(s.states, state)
	if !ok || time.Now().After(v.expires) {
		return "", data.ErrStateNotFound
	}
	return v.redirect, nil
}

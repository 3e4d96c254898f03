package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/mod-review/src/audit"
	"github.com/stake-plus/mod-review/src/config"
	"github.com/stake-plus/mod-review/src/data"
	"github.com/stake-plus/mod-review/src/discord"
	"github.com/stake-plus/mod-review/src/logging"
	"github.com/stake-plus/mod-review/src/metrics"
	"github.com/stake-plus/mod-review/src/review"
	"github.com/stake-plus/mod-review/src/store"
	"github.com/stake-plus/mod-review/src/supabase"
	"github.com/stake-plus/mod-review/src/webclient"
	"github.com/stake-plus/mod-review/src/webserver"
)

// Services is the assembled review service.
type Services struct {
	Store   store.Repository
	Engine  *review.Engine
	Discord *discord.Client
	Redis   *redis.Client
	Router  http.Handler

	log *zap.Logger
}

// Open builds every collaborator from cfg. db may be nil unless the mysql
// backend is selected. Nothing touches Discord until the bot module starts.
func Open(ctx context.Context, cfg config.ReviewConfig, db *gorm.DB, log *zap.Logger) (*Services, error) {
	log = logging.OrNop(log)
	svc := &Services{log: log}

	repo, err := OpenStore(cfg, db)
	if err != nil {
		return nil, err
	}
	svc.Store = repo

	if cfg.RedisURL != "" {
		rdb, err := data.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		svc.Redis = rdb
	}

	if cfg.Token != "" {
		dc, err := discord.New(discord.Config{
			Token:   cfg.Token,
			GuildID: cfg.GuildID,
			RoleID:  cfg.RoleID,
			Logger:  log.Named("discord"),
		})
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.Discord = dc
	}

	var locker review.Locker = review.NewKeyedMutex()
	if svc.Redis != nil {
		locker = review.NewRedisLocker(svc.Redis, 2*cfg.StoreTimeout+3*cfg.DiscordTimeout)
	}

	var notifier review.Notifier
	if svc.Discord != nil {
		notifier = svc.Discord
	}

	engine, err := review.NewEngine(review.Config{
		Store:        repo,
		Notifier:     notifier,
		Sink:         auditSinks(cfg, svc.Discord, svc.Redis),
		Locker:       locker,
		IsSynthetic:  review.NewIdentityPredicate(cfg.Placeholders),
		Messages:     cfg.Messages,
		CallTimeout:  cfg.DiscordTimeout,
		StoreTimeout: cfg.StoreTimeout,
		LockTimeout:  cfg.LockTimeout,
		Logger:       log.Named("review"),
		Recorder:     metrics.Recorder{},
	})
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Engine = engine

	deps := webserver.Deps{
		Store:  repo,
		Engine: engine,
		Redis:  svc.Redis,
		Logger: log.Named("http"),
	}
	if svc.Discord != nil {
		deps.Roles = svc.Discord
		deps.Gateway = svc.Discord
	}
	svc.Router = webserver.New(cfg, deps)
	return svc, nil
}

// OpenStore picks the record store for cfg.StoreBackend.
func OpenStore(cfg config.ReviewConfig, db *gorm.DB) (store.Repository, error) {
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		client, err := supabase.New(supabase.Config{
			URL:        cfg.SupabaseURL,
			APIKey:     cfg.SupabaseKey,
			HTTPClient: webclient.NewDefault(cfg.StoreTimeout),
		})
		if err != nil {
			return nil, err
		}
		return store.NewSupabaseStore(client, cfg.SupabaseTable), nil
	case config.BackendMySQL:
		if db == nil {
			return nil, errors.New("mysql store selected but MYSQL_DSN is not set")
		}
		return store.NewGormStore(db), nil
	case config.BackendMemory, "":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func auditSinks(cfg config.ReviewConfig, dc *discord.Client, rdb *redis.Client) review.Sink {
	var sinks audit.Multi
	if dc != nil && cfg.LogChannelID != "" {
		sinks = append(sinks, audit.DiscordChannel{Poster: dc, ChannelID: cfg.LogChannelID})
	}
	if dc != nil && cfg.WebhookURL != "" {
		sinks = append(sinks, audit.Webhook{Poster: dc, URL: cfg.WebhookURL})
	}
	if rdb != nil {
		sinks = append(sinks, audit.Stream{Redis: rdb, MaxLen: cfg.StreamMaxLen})
	}
	if len(sinks) == 0 {
		return audit.Nop{}
	}
	return sinks
}

// Modules returns the lifecycle modules for svc, listening on addr.
func (s *Services) Modules(addr string, openTimeout time.Duration) []Module {
	var mods []Module
	if s.Discord != nil {
		mods = append(mods, NewBotModule(s.Discord, openTimeout, s.log.Named("discord")))
	}
	mods = append(mods, NewHTTPModule(addr, s.Router, s.log.Named("http")))
	return mods
}

// Close releases the redis connection. The Discord session is owned by the bot module.
func (s *Services) Close() {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.log.Warn("redis close", zap.Error(err))
		}
	}
}

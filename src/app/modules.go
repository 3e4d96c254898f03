package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stake-plus/mod-review/src/logging"
)

// Gateway is the Discord connection owned by the bot module.
type Gateway interface {
	EnsureReady(ctx context.Context) error
	Close() error
}

type botModule struct {
	gw          Gateway
	openTimeout time.Duration
	log         *zap.Logger
}

// NewBotModule opens the Discord gateway on Start. A failed open is logged, not
// fatal: transitions reconnect on demand and still commit while Discord is down.
func NewBotModule(gw Gateway, openTimeout time.Duration, log *zap.Logger) Module {
	if openTimeout <= 0 {
		openTimeout = 10 * time.Second
	}
	return &botModule{gw: gw, openTimeout: openTimeout, log: logging.OrNop(log)}
}

func (m *botModule) Name() string { return "discord" }

func (m *botModule) Start(ctx context.Context) error {
	openCtx, cancel := context.WithTimeout(ctx, m.openTimeout)
	defer cancel()
	if err := m.gw.EnsureReady(openCtx); err != nil {
		m.log.Warn("discord gateway unavailable at startup", zap.Error(err))
	}
	return nil
}

func (m *botModule) Stop(context.Context) {
	if err := m.gw.Close(); err != nil {
		m.log.Warn("discord close", zap.Error(err))
	}
}

type httpModule struct {
	addr string
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
	log  *zap.Logger
}

// NewHTTPModule serves handler on addr. The listener is bound in Start so a
// port clash fails startup instead of a background goroutine.
func NewHTTPModule(addr string, handler http.Handler, log *zap.Logger) Module {
	return &httpModule{
		addr: addr,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: logging.OrNop(log),
	}
}

func (m *httpModule) Name() string { return "http" }

// Addr is the bound address, useful when addr asked for port 0.
func (m *httpModule) Addr() string {
	if m.ln == nil {
		return m.addr
	}
	return m.ln.Addr().String()
}

func (m *httpModule) Start(context.Context) error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", m.addr, err)
	}
	m.ln = ln
	m.done = make(chan struct{})
	m.log.Info("review API listening", zap.String("addr", ln.Addr().String()))
	go func() {
		defer close(m.done)
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (m *httpModule) Stop(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := m.srv.Shutdown(shutdownCtx); err != nil {
		m.log.Warn("http shutdown", zap.Error(err))
		_ = m.srv.Close()
	}
	if m.done != nil {
		<-m.done
	}
}

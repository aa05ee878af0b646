// Package server wires the vault runtime and HTTP lifecycle.
package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/louisbranch/legacyvault/internal/auth"
	"github.com/louisbranch/legacyvault/internal/platform/config"
	"github.com/louisbranch/legacyvault/internal/platform/timeouts"
	"github.com/louisbranch/legacyvault/internal/vault/api/httpapi"
	"github.com/louisbranch/legacyvault/internal/vault/engine"
	vaultsqlite "github.com/louisbranch/legacyvault/internal/vault/storage/sqlite"
)

type serverEnv struct {
	DBPath      string `env:"LEGACY_VAULT_DB_PATH"`
	TokenSecret string `env:"LEGACY_VAULT_TOKEN_SECRET"`
	TokenIssuer string `env:"LEGACY_VAULT_TOKEN_ISSUER"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "vault.db")
	}
	if strings.TrimSpace(cfg.TokenIssuer) == "" {
		cfg.TokenIssuer = "legacyvault"
	}
	return cfg
}

// Server hosts the vault HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *vaultsqlite.Store
}

// New creates a configured vault server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured vault server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	srvEnv := loadServerEnv()

	secret, err := decodeTokenSecret(srvEnv.TokenSecret)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(secret, srvEnv.TokenIssuer)
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("configure token issuer: %w", err)
	}

	store, err := openVaultStore(srvEnv.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	eng := engine.New(store, store, store, store)
	handler := httpapi.NewHandler(eng, store, store, store, tokens,
		httpapi.WithReadiness(store.Ping))

	httpServer := &http.Server{
		Handler:           otelhttp.NewHandler(handler.Router(), "vault"),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		listener:   listener,
		httpServer: httpServer,
		store:      store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a vault server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("vault server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// Close releases vault server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close vault store: %v", err)
		}
	}
}

func decodeTokenSecret(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, errors.New("LEGACY_VAULT_TOKEN_SECRET is required")
	}
	secret, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode LEGACY_VAULT_TOKEN_SECRET: %w", err)
	}
	return secret, nil
}

func openVaultStore(path string) (*vaultsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := vaultsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vault sqlite store: %w", err)
	}
	return store, nil
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jrsteele09/deepsight-client/api"
	"github.com/jrsteele09/deepsight-client/auth"
	"github.com/jrsteele09/deepsight-client/client"
	"github.com/jrsteele09/deepsight-client/internal/config"
	"github.com/jrsteele09/deepsight-client/sessions"
	"github.com/jrsteele09/deepsight-client/sessions/filestore"
	"github.com/jrsteele09/deepsight-client/sessions/redisstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app holds what every command needs. It is filled in by setup before a
// command runs.
type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	storeKind string

	config    config.Config
	store     sessions.Store
	session   *client.SessionClient
	api       *api.Client
	validator *auth.Validator
	closers   []func() error
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:        bufio.NewReader(in),
		out:       out,
		errOut:    errOut,
		validator: auth.NewValidator(),
	}
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.config = cfg
	log.Logger = newLogger(a.errOut, cfg.GetEnv(), cfg.GetLogLevel())

	kind := a.storeKind
	if kind == "" {
		kind = cfg.GetStoreKind()
	}
	if a.store, err = a.newStore(ctx, cfg, kind); err != nil {
		return err
	}

	a.session, err = client.New(cfg, a.store, client.WithLogger(log.With().Str("component", "session").Logger()))
	if err != nil {
		return err
	}
	a.api = api.New(a.session)
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Error closing resource")
		}
	}
	a.closers = nil
}

// newStore builds the token store selected by kind.
func (a *app) newStore(ctx context.Context, cfg config.StoreConfig, kind string) (sessions.Store, error) {
	switch kind {
	case config.StoreMemory:
		log.Warn().Msg("Using the memory token store, the session ends with this command")
		return sessions.NewMemoryStore(), nil
	case config.StoreFile:
		log.Debug().Str("path", cfg.GetStorePath()).Msg("Using the file token store")
		return filestore.New(cfg.GetStorePath(), cfg.GetStorePassphrase()), nil
	case config.StoreRedis:
		s, err := redisstore.New(ctx, redisstore.Options{
			Addr:      cfg.GetRedisAddr(),
			Password:  cfg.GetRedisPassword(),
			DB:        cfg.GetRedisDB(),
			KeyPrefix: cfg.GetRedisKeyPrefix(),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	}
	return nil, fmt.Errorf("unknown token store %q (want %s, %s or %s)", kind, config.StoreMemory, config.StoreFile, config.StoreRedis)
}

// newLogger writes human readable lines in the DEV environment and JSON
// everywhere else.
func newLogger(w io.Writer, env, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if strings.EqualFold(env, "DEV") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// prompt prints label and reads one line from the input.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// valueOrPrompt returns value when set, otherwise asks for it.
func (a *app) valueOrPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.prompt(label)
}

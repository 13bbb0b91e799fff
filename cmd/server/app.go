package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-sso-server/auth"
	"github.com/jrsteele09/go-sso-server/clients"
	"github.com/jrsteele09/go-sso-server/internal/config"
	"github.com/jrsteele09/go-sso-server/internal/database"
	"github.com/jrsteele09/go-sso-server/kvstore"
	"github.com/jrsteele09/go-sso-server/risk"
	"github.com/jrsteele09/go-sso-server/sessions"
	"github.com/jrsteele09/go-sso-server/token"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// app holds the wired services shared by every subcommand
type app struct {
	store    kvstore.Store
	db       *gorm.DB
	services struct {
		auth     *auth.AuthorizationService
		sessions *sessions.Manager
		access   *risk.Engine
		repos    auth.Repos
	}
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	signer, err := newSigner(cfg)
	if err != nil {
		return nil, err
	}

	store, err := kvstore.Open(ctx, kvstore.Options{
		Backend:             cfg.GetStoreBackend(),
		RedisAddr:           cfg.GetRedisAddr(),
		RedisPassword:       cfg.GetRedisPassword(),
		RedisDB:             cfg.GetRedisDB(),
		AllowMemoryFallback: cfg.GetStoreMemoryFallback(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("[newApp] store: %w", err)
	}

	db, err := database.Open(cfg.GetDatabaseDriver(), cfg.GetDatabaseDSN(), logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("[newApp] database: %w", err)
	}

	a := &app{store: store, db: db}
	history := database.NewSessionHistoryRepo(db)
	a.services.repos = auth.Repos{
		Users:   database.NewUserRepo(db),
		Clients: clients.NewKVRepo(store),
	}

	codec := token.NewCodec(signer, token.WithIssuer(cfg.GetBaseURL()))
	a.services.sessions = sessions.NewManager(store, codec,
		sessions.WithTimeouts(cfg.GetSessionTimeout(), cfg.GetRefreshTokenTimeout()),
		sessions.WithEndedRetention(cfg.GetEndedSessionRetention()),
		sessions.WithHistory(history),
		sessions.WithLogger(logger),
	)

	a.services.auth, err = auth.NewAuthorizationService(a.services.repos, a.services.sessions, store,
		auth.WithAuthCodeTimeout(cfg.GetAuthCodeTimeout()),
		auth.WithRequirePKCE(cfg.GetRequirePKCE()),
		auth.WithLogger(logger),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	profiles, err := risk.NewProfileCache(history,
		risk.WithCacheSize(cfg.GetProfileCacheSize()),
		risk.WithCacheTTL(cfg.GetProfileCacheTTL()),
		risk.WithSampleSize(cfg.GetProfileSampleSize()),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.services.access, err = risk.NewEngine(profiles, database.NewPolicyRepo(db), database.NewAccessLogRepo(db),
		risk.WithFailedAttemptWindow(cfg.GetFailedAttemptWindow()),
		risk.WithLogger(logger),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.store.Close()
}

func (a *app) pingDatabase(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// newSigner prefers an RSA key file and falls back to the shared HMAC secret
func newSigner(cfg config.Config) (token.Signer, error) {
	if path := cfg.GetSigningKeyFile(); path != "" {
		keyPair, err := token.LoadRSAKeyPair(cfg.GetSigningKeyID(), path)
		if err != nil {
			return nil, err
		}
		return token.NewKeyPairSigner(keyPair)
	}
	if cfg.GetSigningSecret() == "" {
		return nil, errors.New("[newSigner] SSO_SIGNING_SECRET or SSO_SIGNING_KEY_FILE is required")
	}
	return token.NewHMACSigner(cfg.GetSigningSecret())
}

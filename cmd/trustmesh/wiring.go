package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"   // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/archive"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/attest"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/config"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/engine"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/observability"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/reputation"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/store/ledger"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/telemetry"
)

// subsystems holds everything a command needs, plus its teardown.
type subsystems struct {
	engine  *engine.Engine
	obs     *observability.Provider
	closers []func() error
}

func (s *subsystems) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.WarnContext(ctx, "shutdown step failed", "error", err)
		}
	}
	_ = s.obs.Shutdown(ctx)
}

func buildSubsystems(ctx context.Context, cfg *config.Config) (*subsystems, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &subsystems{}
	logger := slog.Default()

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.OTelEnabled
	obsCfg.OTLPEndpoint = cfg.OTelEndpoint
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, err
	}
	s.obs = obs

	l, err := openLedger(ctx, cfg, s)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	profiles, err := config.LoadCropProfiles(cfg.CropProfiles)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	var gen *telemetry.Generator
	if cfg.TelemetrySeed != nil {
		gen = telemetry.NewSeededGenerator(*cfg.TelemetrySeed, telemetry.WithProfiles(profiles))
	} else {
		gen = telemetry.NewTimeSeededGenerator(telemetry.WithProfiles(profiles))
	}

	minterOpts := []certificate.MinterOption{}
	if cfg.GradeRule != "" {
		rule, err := certificate.NewGradeRule(cfg.GradeRule)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("GRADE_RULE: %w", err)
		}
		if !rule.MatchesDefaultBoundary() {
			logger.WarnContext(ctx, "GRADE_RULE overrides the default Grade A cut",
				"rule", rule.String(), "default", certificate.DefaultGradeRule)
		}
		minterOpts = append(minterOpts, certificate.WithGradeRule(rule))
	}

	history, err := reputation.New(reputation.Policy(cfg.ReputationSource), l)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	opts := []engine.Option{
		engine.WithGenerator(gen),
		engine.WithMinter(certificate.NewMinter(minterOpts...)),
		engine.WithReputation(history),
		engine.WithObservability(obs),
		engine.WithLogger(logger),
	}

	store, err := archive.NewStore(ctx, archive.Config{
		Type:       archive.StoreType(cfg.ArchiveType),
		Dir:        cfg.ArchiveDir,
		S3Bucket:   cfg.ArchiveS3Bucket,
		S3Region:   cfg.ArchiveS3Region,
		S3Endpoint: cfg.ArchiveS3Endpoint,
		S3Prefix:   cfg.ArchiveS3Prefix,
		GCSBucket:  cfg.ArchiveGCSBucket,
		GCSPrefix:  cfg.ArchiveGCSPrefix,
	})
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	if store != nil {
		opts = append(opts, engine.WithArchive(store))
	}

	if cfg.AttestationEnabled {
		a, err := attest.LoadOrGenerate(cfg.AttestationKey)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		logger.InfoContext(ctx, "attestation enabled", "public_key", a.PublicKeyHex())
		opts = append(opts, engine.WithAttestor(a))
	}

	s.engine = engine.New(l, opts...)
	logger.DebugContext(ctx, "engine ready",
		"ledger_backend", cfg.LedgerBackend,
		"reputation_source", history.Policy(),
		"archive", cfg.ArchiveType,
	)
	return s, nil
}

func openLedger(ctx context.Context, cfg *config.Config, s *subsystems) (ledger.Ledger, error) {
	switch cfg.LedgerBackend {
	case "file", "":
		if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create ledger dir: %w", err)
		}
		fl := ledger.NewFileLedger(cfg.LedgerPath)
		return fl, fl.Init(ctx)

	case "sqlite":
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		db, err := sql.Open("sqlite", filepath.Join(cfg.DataDir, "trustmesh.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		s.closers = append(s.closers, db.Close)
		sl := ledger.NewSQLLedger(db, ledger.DialectSQLite)
		return sl, sl.Init(ctx)

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres ledger")
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("%w: ping postgres: %w", ledger.ErrStorageUnavailable, err)
		}
		pl := ledger.NewSQLLedger(db, ledger.DialectPostgres)
		return pl, pl.Init(ctx)

	case "redis":
		rl := ledger.NewRedisLedgerFromAddr(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey)
		s.closers = append(s.closers, rl.Close)
		return rl, rl.Init(ctx)

	default:
		return nil, fmt.Errorf("unsupported LEDGER_BACKEND: %s", cfg.LedgerBackend)
	}
}

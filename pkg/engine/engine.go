// Package engine runs the certification pipeline: telemetry, trust scoring,
// reputation lookup, minting and the durable ledger append.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/archive"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/attest"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/observability"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/reputation"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/store/ledger"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/telemetry"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/trust"
)

// MaxIdentifierLen bounds farm ids and crop names, in runes.
const MaxIdentifierLen = 128

var (
	// ErrInvalidInput is returned for a farm id or crop that cannot be certified.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAttestationDisabled is returned when no attestor is configured.
	ErrAttestationDisabled = errors.New("attestation disabled")
	// ErrNotFound is returned when the requested certificate does not exist.
	ErrNotFound = errors.New("certificate not found")
)

// SeriesGenerator produces the telemetry history of a farm node.
type SeriesGenerator interface {
	Generate(farmID, crop string) (telemetry.Series, int)
}

// Issuance is the result of a successful IssueCertificate call.
type Issuance struct {
	Certificate certificate.Certificate `json:"certificate"`
	AgenticLog  []string                `json:"agentic_log"`
	StressDays  int                     `json:"stress_days"`
	ArchiveRef  string                  `json:"archive_ref,omitempty"`
}

// FarmReputation aggregates the certified harvests of one farm node.
type FarmReputation struct {
	FarmNodeID string `json:"farm_node_id"`
	certificate.Reputation
}

// Engine issues and serves certificates.
type Engine struct {
	generator SeriesGenerator
	minter    *certificate.Minter
	ledger    ledger.Ledger
	history   reputation.Source
	archive   archive.Store
	attestor  *attest.Attestor
	obs       *observability.Provider
	logger    *slog.Logger

	// issueMu serializes history read, mint and append.
	issueMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

func WithGenerator(g SeriesGenerator) Option { return func(e *Engine) { e.generator = g } }

func WithMinter(m *certificate.Minter) Option { return func(e *Engine) { e.minter = m } }

// WithReputation replaces the default ledger-derived history source.
func WithReputation(s reputation.Source) Option { return func(e *Engine) { e.history = s } }

func WithArchive(s archive.Store) Option { return func(e *Engine) { e.archive = s } }

func WithAttestor(a *attest.Attestor) Option { return func(e *Engine) { e.attestor = a } }

func WithObservability(p *observability.Provider) Option { return func(e *Engine) { e.obs = p } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// New creates an engine over l.
func New(l ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{ledger: l}
	for _, opt := range opts {
		opt(e)
	}
	if e.generator == nil {
		e.generator = telemetry.NewTimeSeededGenerator()
	}
	if e.minter == nil {
		e.minter = certificate.NewMinter()
	}
	if e.history == nil {
		e.history = reputation.NewLedgerSource(l)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// ReputationPolicy reports which history source is active.
func (e *Engine) ReputationPolicy() reputation.Policy {
	return e.history.Policy()
}

// IssueCertificate certifies one harvest. The certificate is returned only
// after it has been durably appended; on any failure nothing is returned and
// nothing is written.
func (e *Engine) IssueCertificate(ctx context.Context, farmID, crop string) (_ *Issuance, err error) {
	if err := validate("farm_id", farmID); err != nil {
		return nil, err
	}
	if err := validate("crop", crop); err != nil {
		return nil, err
	}
	farmID, crop = certificate.Normalize(farmID), certificate.Normalize(crop)

	attrs := []attribute.KeyValue{observability.AttrFarmID.String(farmID), observability.AttrCrop.String(crop)}
	ctx, done := e.obs.TrackOperation(ctx, "engine.IssueCertificate", attrs...)
	defer func() { done(err) }()

	var series telemetry.Series
	_ = e.stage(ctx, "generate", attrs, func(context.Context) error {
		series, _ = e.generator.Generate(farmID, crop)
		return nil
	})
	var assessment trust.Assessment
	_ = e.stage(ctx, "evaluate", attrs, func(context.Context) error {
		assessment = trust.Evaluate(series)
		return nil
	})

	e.issueMu.Lock()
	cert, err := e.mintAndAppend(ctx, farmID, crop, assessment.Score, attrs)
	e.issueMu.Unlock()
	if err != nil {
		e.logger.ErrorContext(ctx, "certificate issuance failed", "farm_node_id", farmID, "crop", crop, "error", err)
		return nil, err
	}

	e.obs.RecordIssued(ctx, cert.CurrentHarvest.Grade, cert.CurrentHarvest.TrustScore, attrs...)
	e.logger.InfoContext(ctx, "certificate issued",
		"certificate_id", cert.CertificateID,
		"farm_node_id", farmID,
		"crop", crop,
		"trust_score", cert.CurrentHarvest.TrustScore,
		"grade", cert.CurrentHarvest.Grade,
		"stress_days", assessment.StressDays,
	)

	return &Issuance{
		Certificate: cert,
		AgenticLog:  assessment.Log,
		StressDays:  assessment.StressDays,
		ArchiveRef:  e.archiveCertificate(ctx, cert),
	}, nil
}

func (e *Engine) mintAndAppend(ctx context.Context, farmID, crop string, score int, attrs []attribute.KeyValue) (certificate.Certificate, error) {
	var history []certificate.HarvestRecord
	err := e.stage(ctx, "history", attrs, func(ctx context.Context) (err error) {
		history, err = e.history.History(ctx, farmID)
		return err
	})
	if err != nil {
		return certificate.Certificate{}, err
	}

	var cert certificate.Certificate
	err = e.stage(ctx, "mint", attrs, func(context.Context) (err error) {
		cert, err = e.minter.Mint(farmID, crop, score, history)
		if err != nil {
			return fmt.Errorf("mint certificate: %w", err)
		}
		return nil
	})
	if err != nil {
		return certificate.Certificate{}, err
	}

	err = e.stage(ctx, "append", attrs, func(ctx context.Context) error {
		return e.ledger.Append(ctx, cert)
	})
	if err != nil {
		return certificate.Certificate{}, err
	}
	return cert, nil
}

// stage runs fn as one tracked pipeline step named engine.<name>.
func (e *Engine) stage(ctx context.Context, name string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	stageAttrs := append(attrs[:len(attrs):len(attrs)], observability.AttrStage.String(name))
	ctx, done := e.obs.TrackOperation(ctx, "engine."+name, stageAttrs...)
	err := fn(ctx)
	done(err)
	return err
}

// archiveCertificate stores a canonical copy. Failures are logged only.
func (e *Engine) archiveCertificate(ctx context.Context, cert certificate.Certificate) string {
	if e.archive == nil {
		return ""
	}
	ref, err := archive.PutJSON(ctx, e.archive, cert)
	if err != nil {
		e.logger.WarnContext(ctx, "certificate archive failed", "certificate_id", cert.CertificateID, "error", err)
		return ""
	}
	return ref
}

// LatestCertificate returns the most recently issued certificate, or nil when
// none has been issued.
func (e *Engine) LatestCertificate(ctx context.Context) (*certificate.Certificate, error) {
	return e.ledger.Latest(ctx)
}

// ListCertificates returns every issued certificate, oldest first.
func (e *Engine) ListCertificates(ctx context.Context) ([]certificate.Certificate, error) {
	return e.ledger.List(ctx)
}

// FarmCertificates returns the certificates of one farm node, oldest first.
func (e *Engine) FarmCertificates(ctx context.Context, farmID string) ([]certificate.Certificate, error) {
	if err := validate("farm_id", farmID); err != nil {
		return nil, err
	}
	return e.ledger.ListByFarm(ctx, farmID)
}

// Reputation aggregates the farm's prior harvests from the active source.
// A farm with no history has zero totals.
func (e *Engine) Reputation(ctx context.Context, farmID string) (*FarmReputation, error) {
	if err := validate("farm_id", farmID); err != nil {
		return nil, err
	}
	farmID = certificate.Normalize(farmID)

	history, err := e.history.History(ctx, farmID)
	if err != nil {
		return nil, err
	}

	rep := certificate.Reputation{ScoreHistory: history}
	if history == nil {
		rep.ScoreHistory = []certificate.HarvestRecord{}
	}
	if len(history) > 0 {
		sum := 0
		for _, h := range history {
			sum += h.Score
		}
		rep.TotalHarvestsVerified = len(history)
		rep.AverageScore = sum / len(history)
	}
	return &FarmReputation{FarmNodeID: farmID, Reputation: rep}, nil
}

func validate(field, v string) error {
	switch {
	case !utf8.ValidString(v):
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidInput, field)
	case certificate.Normalize(v) == "":
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	case utf8.RuneCountInString(v) > MaxIdentifierLen:
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidInput, field, MaxIdentifierLen)
	}
	for _, r := range v {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %s contains control characters", ErrInvalidInput, field)
		}
	}
	return nil
}

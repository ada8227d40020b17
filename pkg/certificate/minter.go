// Package certificate mints content-addressed quality certificates.
//
// The identity hash is SHA-256 over the RFC 8785 canonical JSON of
// {farm_node_id, crop, trust_score, issued_at}. It derives identity only;
// it is not a signature and offers no tamper evidence.
package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// Minter issues certificates.
type Minter struct {
	grade *GradeRule
	clock func() time.Time
}

// MinterOption configures a Minter.
type MinterOption func(*Minter)

// WithGradeRule replaces the default grade rule.
func WithGradeRule(r *GradeRule) MinterOption {
	return func(m *Minter) {
		if r != nil {
			m.grade = r
		}
	}
}

// WithClock sets the issuance clock.
func WithClock(clock func() time.Time) MinterOption {
	return func(m *Minter) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewMinter creates a Minter using the default grade rule and wall clock.
func NewMinter(opts ...MinterOption) *Minter {
	m := &Minter{
		grade: MustDefaultGradeRule(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// identityInput is the hashed subset of a certificate.
type identityInput struct {
	FarmNodeID string `json:"farm_node_id"`
	Crop       string `json:"crop"`
	TrustScore int    `json:"trust_score"`
	IssuedAt   string `json:"issued_at"`
}

// Mint builds a certificate for the given score over the farm's prior harvests.
// The hash is recomputed on every call from the current issuance instant.
func (m *Minter) Mint(farmID, crop string, score int, history []HarvestRecord) (Certificate, error) {
	farmID, crop = Normalize(farmID), Normalize(crop)
	issuedAt := m.clock().UTC().Round(0)

	digest, err := IdentityHash(farmID, crop, score, issuedAt)
	if err != nil {
		return Certificate{}, err
	}
	grade, err := m.grade.Grade(score)
	if err != nil {
		return Certificate{}, err
	}

	return Certificate{
		CertificateID: IDPrefix + strings.ToUpper(digest[:idHexLen]),
		FarmNodeID:    farmID,
		CurrentHarvest: Harvest{
			Crop:               crop,
			TrustScore:         score,
			VerificationMethod: VerificationMethod,
			Grade:              grade,
		},
		FarmerReputation: Summarize(history, score),
		BlockchainHash:   HashPrefix + digest,
		IssuedAt:         issuedAt,
	}, nil
}

// IdentityHash returns the hex SHA-256 identity digest for the given fields.
func IdentityHash(farmID, crop string, score int, issuedAt time.Time) (string, error) {
	raw, err := json.Marshal(identityInput{
		FarmNodeID: farmID,
		Crop:       crop,
		TrustScore: score,
		IssuedAt:   issuedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("certificate: marshal identity: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("certificate: canonicalize identity: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyIdentity reports whether c's id and hash derive from its own fields.
func VerifyIdentity(c Certificate) bool {
	digest, err := IdentityHash(c.FarmNodeID, c.CurrentHarvest.Crop, c.CurrentHarvest.TrustScore, c.IssuedAt)
	if err != nil {
		return false
	}
	return c.BlockchainHash == HashPrefix+digest &&
		c.CertificateID == IDPrefix+strings.ToUpper(digest[:idHexLen])
}

// Summarize aggregates prior harvests with the current score. The average is floored.
func Summarize(history []HarvestRecord, score int) Reputation {
	records := make([]HarvestRecord, len(history))
	copy(records, history)

	sum := score
	for _, h := range records {
		sum += h.Score
	}
	total := len(records) + 1

	return Reputation{
		TotalHarvestsVerified: total,
		AverageScore:          sum / total,
		ScoreHistory:          records,
	}
}

// Normalize trims and NFC-normalizes an identifier so visually identical
// inputs hash identically.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Package attest signs scan-verifiable attestations over issued certificates.
//
// An attestation is an EdDSA JWT carrying the certificate's identity fields.
// It is layered on top of a certificate and never feeds the identity hash.
package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
)

const (
	// Issuer is the iss claim of every attestation.
	Issuer = "trustmesh"
	// Audience is the aud claim expected by scan verifiers.
	Audience = "trustmesh.scan"
)

// ErrInvalidAttestation wraps every verification failure.
var ErrInvalidAttestation = errors.New("invalid attestation")

// Claims are the attested certificate fields.
type Claims struct {
	jwt.RegisteredClaims
	CertificateID  string `json:"certificate_id"`
	BlockchainHash string `json:"blockchain_hash"`
	FarmNodeID     string `json:"farm_node_id"`
	Crop           string `json:"crop"`
	TrustScore     int    `json:"trust_score"`
	Grade          string `json:"grade"`
}

// Matches reports whether the claims describe c.
func (c *Claims) Matches(cert certificate.Certificate) bool {
	return c.CertificateID == cert.CertificateID &&
		c.BlockchainHash == cert.BlockchainHash &&
		c.FarmNodeID == cert.FarmNodeID &&
		c.TrustScore == cert.CurrentHarvest.TrustScore
}

// Attestor signs and verifies attestations with one Ed25519 key.
type Attestor struct {
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	clock func() time.Time
}

// New wraps an existing private key.
func New(priv ed25519.PrivateKey) *Attestor {
	return &Attestor{
		priv:  priv,
		pub:   priv.Public().(ed25519.PublicKey),
		clock: time.Now,
	}
}

// LoadOrGenerate reads a hex-encoded Ed25519 seed from keyPath, creating one
// (mode 0600) when the file does not exist.
func LoadOrGenerate(keyPath string) (*Attestor, error) {
	if keyHex, err := os.ReadFile(keyPath); err == nil {
		seed, err := hex.DecodeString(strings.TrimSpace(string(keyHex)))
		if err != nil {
			return nil, fmt.Errorf("invalid attestation key format: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("invalid attestation key: seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
		}
		return New(ed25519.NewKeyFromSeed(seed)), nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read attestation key: %w", err)
	}

	slog.Default().With("component", "attest").Warn("generating new attestation key", "path", keyPath)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create key dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(priv.Seed())), 0600); err != nil {
		return nil, fmt.Errorf("failed to save attestation key: %w", err)
	}
	return New(priv), nil
}

// PublicKeyHex returns the verification key for out-of-band scanners.
func (a *Attestor) PublicKeyHex() string {
	return hex.EncodeToString(a.pub)
}

// Attest signs a token for c.
func (a *Attestor) Attest(c certificate.Certificate) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       c.CertificateID,
			Subject:  c.FarmNodeID,
			Issuer:   Issuer,
			Audience: jwt.ClaimStrings{Audience},
			IssuedAt: jwt.NewNumericDate(a.clock().UTC()),
		},
		CertificateID:  c.CertificateID,
		BlockchainHash: c.BlockchainHash,
		FarmNodeID:     c.FarmNodeID,
		Crop:           c.CurrentHarvest.Crop,
		TrustScore:     c.CurrentHarvest.TrustScore,
		Grade:          c.CurrentHarvest.Grade,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(a.priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign attestation: %w", err)
	}
	return token, nil
}

// Verify checks the signature, issuer and audience of token.
func (a *Attestor) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return a.pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithTimeFunc(a.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAttestation, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAttestation, jwt.ErrTokenSignatureInvalid)
	}
	return claims, nil
}

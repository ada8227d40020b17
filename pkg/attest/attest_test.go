package attest

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
)

func mint(t *testing.T) certificate.Certificate {
	t.Helper()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	c, err := certificate.NewMinter(certificate.WithClock(func() time.Time { return at })).
		Mint("F-001", "Tomato", 90, nil)
	require.NoError(t, err)
	return c
}

func TestAttestVerify(t *testing.T) {
	a, err := LoadOrGenerate(filepath.Join(t.TempDir(), "keys", "attest.key"))
	require.NoError(t, err)
	c := mint(t)

	token, err := a.Attest(c)
	require.NoError(t, err)

	claims, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, c.CertificateID, claims.CertificateID)
	assert.Equal(t, c.BlockchainHash, claims.BlockchainHash)
	assert.Equal(t, certificate.GradeA, claims.Grade)
	assert.True(t, claims.Matches(c))

	other := c
	other.BlockchainHash = "0x00"
	assert.False(t, claims.Matches(other))
}

func TestLoadOrGenerate_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attest.key")
	a, err := LoadOrGenerate(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	b, err := LoadOrGenerate(path)
	require.NoError(t, err)
	assert.Equal(t, a.PublicKeyHex(), b.PublicKeyHex())

	token, err := a.Attest(mint(t))
	require.NoError(t, err)
	_, err = b.Verify(token)
	assert.NoError(t, err)
}

func TestLoadOrGenerate_BadKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attest.key")
	require.NoError(t, os.WriteFile(path, []byte("zz"), 0600))
	_, err := LoadOrGenerate(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("abcd"), 0600))
	_, err = LoadOrGenerate(path)
	assert.ErrorContains(t, err, "seed")
}

func TestVerify_Rejects(t *testing.T) {
	_, k1, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, k2, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	a, b := New(k1), New(k2)

	token, err := a.Attest(mint(t))
	require.NoError(t, err)

	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidAttestation)

	parts := strings.Split(token, ".")
	_, err = a.Verify(parts[0] + "." + parts[1] + ".AAAA")
	assert.ErrorIs(t, err, ErrInvalidAttestation)

	_, err = a.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidAttestation)

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = a.Verify(hs)
	assert.ErrorIs(t, err, ErrInvalidAttestation)
}

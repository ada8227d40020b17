package engine

import (
	"context"
	"errors"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/attest"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
)

// Attestation is a signed scan token for a certificate.
type Attestation struct {
	CertificateID string `json:"certificate_id"`
	Token         string `json:"token"`
}

// Verification is the outcome of checking a scanned token.
type Verification struct {
	Valid  bool           `json:"valid"`
	Reason string         `json:"reason,omitempty"`
	Claims *attest.Claims `json:"claims,omitempty"`
}

// LatestAttestation signs the latest certificate. It returns ErrNotFound when
// nothing has been issued.
func (e *Engine) LatestAttestation(ctx context.Context) (*Attestation, error) {
	if e.attestor == nil {
		return nil, ErrAttestationDisabled
	}
	latest, err := e.ledger.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	token, err := e.attestor.Attest(*latest)
	if err != nil {
		return nil, err
	}
	return &Attestation{CertificateID: latest.CertificateID, Token: token}, nil
}

// VerifyAttestation checks token's signature and that it describes a
// certificate present in the ledger. Invalid tokens are reported in the
// result, not as errors.
func (e *Engine) VerifyAttestation(ctx context.Context, token string) (*Verification, error) {
	if e.attestor == nil {
		return nil, ErrAttestationDisabled
	}

	claims, err := e.attestor.Verify(token)
	if err != nil {
		if errors.Is(err, attest.ErrInvalidAttestation) {
			return &Verification{Valid: false, Reason: "signature invalid"}, nil
		}
		return nil, err
	}

	cert, err := e.findCertificate(ctx, claims.FarmNodeID, claims.CertificateID)
	if err != nil {
		return nil, err
	}
	switch {
	case cert == nil:
		return &Verification{Valid: false, Reason: "certificate not in ledger", Claims: claims}, nil
	case !claims.Matches(*cert) || !certificate.VerifyIdentity(*cert):
		return &Verification{Valid: false, Reason: "certificate mismatch", Claims: claims}, nil
	}
	return &Verification{Valid: true, Claims: claims}, nil
}

func (e *Engine) findCertificate(ctx context.Context, farmID, id string) (*certificate.Certificate, error) {
	certs, err := e.ledger.ListByFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	for i := range certs {
		if certs[i].CertificateID == id {
			return &certs[i], nil
		}
	}
	return nil, nil
}

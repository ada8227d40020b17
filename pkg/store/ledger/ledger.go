// Package ledger persists issued certificates in append-only order.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
)

var (
	// ErrStorageUnavailable is returned when the backing medium cannot be read or written.
	ErrStorageUnavailable = errors.New("ledger storage unavailable")
	// ErrStorageCorrupt is returned when the store exists but cannot be decoded.
	// A corrupt store is never reset.
	ErrStorageCorrupt = errors.New("ledger storage corrupt")
)

// Ledger is the durable, append-only store of issued certificates.
// Entries are never mutated or deleted after Append returns.
type Ledger interface {
	// Append durably adds c after every existing entry.
	Append(ctx context.Context, c certificate.Certificate) error

	// Latest returns the most recently appended certificate, or nil when
	// nothing has been issued yet (including a store that was never initialized).
	Latest(ctx context.Context) (*certificate.Certificate, error)

	// List returns every certificate, oldest first.
	List(ctx context.Context) ([]certificate.Certificate, error)

	// ListByFarm returns the certificates of one farm node, oldest first.
	ListByFarm(ctx context.Context, farmID string) ([]certificate.Certificate, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageCorrupt, what, err)
}

func filterFarm(certs []certificate.Certificate, farmID string) []certificate.Certificate {
	farmID = certificate.Normalize(farmID)
	out := make([]certificate.Certificate, 0)
	for _, c := range certs {
		if c.FarmNodeID == farmID {
			out = append(out, c)
		}
	}
	return out
}

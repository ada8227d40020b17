package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
)

var baseTime = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func mintAt(t *testing.T, farm string, score int, offset time.Duration) certificate.Certificate {
	t.Helper()
	m := certificate.NewMinter(certificate.WithClock(func() time.Time { return baseTime.Add(offset) }))
	c, err := m.Mint(farm, "Tomato", score, nil)
	require.NoError(t, err)
	return c
}

func jsonDoc(c certificate.Certificate) (string, error) {
	b, err := json.Marshal(c)
	return string(b), err
}

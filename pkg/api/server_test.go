package api

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/attest"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/engine"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/store/ledger"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/telemetry"
)

type stressedDays int

func (n stressedDays) Generate(farmID, crop string) (telemetry.Series, int) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(telemetry.Series, telemetry.SeriesDays)
	for i := range series {
		series[i] = telemetry.Reading{
			Date:           start.AddDate(0, 0, i).Format(telemetry.DateLayout),
			SoilMoisture:   60,
			Temperature:    24,
			Humidity:       50,
			StressDetected: i < int(n),
		}
	}
	return series, int(n)
}

// brokenLedger fails every operation with err.
type brokenLedger struct{ err error }

func (b brokenLedger) Append(context.Context, certificate.Certificate) error { return b.err }
func (b brokenLedger) Latest(context.Context) (*certificate.Certificate, error) {
	return nil, b.err
}
func (b brokenLedger) List(context.Context) ([]certificate.Certificate, error) { return nil, b.err }
func (b brokenLedger) ListByFarm(context.Context, string) ([]certificate.Certificate, error) {
	return nil, b.err
}

func newTestServer(t *testing.T, opts ...engine.Option) http.Handler {
	t.Helper()
	l := ledger.NewFileLedger(filepath.Join(t.TempDir(), "ledger.json"))
	opts = append([]engine.Option{engine.WithGenerator(stressedDays(4))}, opts...)
	return NewServer(engine.New(l, opts...), nil).Handler(nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestIssueAndLatest(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/v1/certificates/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	decodeProblem(t, rec)

	rec = do(t, h, http.MethodPost, "/v1/certificates", `{"farm_id":"F-001","crop":"Tomato"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var issued engine.Issuance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	assert.Equal(t, 80, issued.Certificate.CurrentHarvest.TrustScore)
	assert.Equal(t, certificate.GradeB, issued.Certificate.CurrentHarvest.Grade)
	assert.Equal(t, 4, issued.StressDays)
	assert.NotEmpty(t, issued.AgenticLog)
	assert.Equal(t, "/v1/farms/F-001/certificates", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/v1/certificates/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest certificate.Certificate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, issued.Certificate, latest)
}

func TestIssue_BadRequests(t *testing.T) {
	h := newTestServer(t)
	cases := map[string]string{
		"not json":      `{`,
		"missing crop":  `{"farm_id":"F-001"}`,
		"wrong type":    `{"farm_id":7,"crop":"Tomato"}`,
		"extra field":   `{"farm_id":"F-001","crop":"Tomato","score":100}`,
		"blank farm id": `{"farm_id":"   ","crop":"Tomato"}`,
		"control char":  `{"farm_id":"F-\u0007","crop":"Tomato"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/certificates", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, "/v1/certificates", p.Instance)
		})
	}

	rec := do(t, h, http.MethodGet, "/v1/certificates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListAndFarmViews(t *testing.T) {
	h := newTestServer(t)
	for _, body := range []string{
		`{"farm_id":"F-001","crop":"Tomato"}`,
		`{"farm_id":"F-002","crop":"Wheat"}`,
		`{"farm_id":"F-001","crop":"Onion"}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/v1/certificates", body).Code)
	}

	var all []certificate.Certificate
	rec := do(t, h, http.MethodGet, "/v1/certificates", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	var farm []certificate.Certificate
	rec = do(t, h, http.MethodGet, "/v1/farms/F-001/certificates", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &farm))
	require.Len(t, farm, 2)
	assert.Equal(t, "Onion", farm[1].CurrentHarvest.Crop)

	var rep engine.FarmReputation
	rec = do(t, h, http.MethodGet, "/v1/farms/F-001/reputation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, 2, rep.TotalHarvestsVerified)
	assert.Equal(t, 80, rep.AverageScore)
}

func TestStorageErrors(t *testing.T) {
	unavailable := fmt.Errorf("%w: connection refused", ledger.ErrStorageUnavailable)
	corrupt := fmt.Errorf("%w: bad json", ledger.ErrStorageCorrupt)

	h := NewServer(engine.New(brokenLedger{err: unavailable}, engine.WithGenerator(stressedDays(0))), nil).Handler(nil)
	rec := do(t, h, http.MethodPost, "/v1/certificates", `{"farm_id":"F-001","crop":"Tomato"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")

	h = NewServer(engine.New(brokenLedger{err: corrupt}), nil).Handler(nil)
	rec = do(t, h, http.MethodGet, "/v1/certificates/latest", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	p := decodeProblem(t, rec)
	assert.NotContains(t, p.Detail, "bad json")
}

func TestAttestationEndpoints(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/v1/certificates/latest/attestation", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	h = newTestServer(t, engine.WithAttestor(attest.New(priv)))

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/v1/certificates", `{"farm_id":"F-001","crop":"Tomato"}`).Code)

	rec = do(t, h, http.MethodGet, "/v1/certificates/latest/attestation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var a engine.Attestation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.NotEmpty(t, a.Token)

	body, err := json.Marshal(VerifyRequest{Token: a.Token})
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/v1/attestations/verify", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	var v engine.Verification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.Valid)
	assert.Equal(t, a.CertificateID, v.Claims.CertificateID)

	rec = do(t, h, http.MethodPost, "/v1/attestations/verify", `{"token":"abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.False(t, v.Valid)

	rec = do(t, h, http.MethodPost, "/v1/attestations/verify", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/certificates/latest", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	p := decodeProblem(t, rec)
	assert.Equal(t, "req-123", p.TraceID)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Stop()

	l := ledger.NewFileLedger(filepath.Join(t.TempDir(), "ledger.json"))
	h := NewServer(engine.New(l), nil).Handler(rl)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, h, http.MethodGet, "/health", "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

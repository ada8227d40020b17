package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/engine"
)

// Service is the engine surface served over HTTP.
type Service interface {
	IssueCertificate(ctx context.Context, farmID, crop string) (*engine.Issuance, error)
	LatestCertificate(ctx context.Context) (*certificate.Certificate, error)
	ListCertificates(ctx context.Context) ([]certificate.Certificate, error)
	FarmCertificates(ctx context.Context, farmID string) ([]certificate.Certificate, error)
	Reputation(ctx context.Context, farmID string) (*engine.FarmReputation, error)
	LatestAttestation(ctx context.Context) (*engine.Attestation, error)
	VerifyAttestation(ctx context.Context, token string) (*engine.Verification, error)
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc    Service
	logger *slog.Logger
}

func NewServer(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, logger: logger.With("component", "api")}
}

// IssueRequest is the body of POST /v1/certificates.
type IssueRequest struct {
	FarmID string `json:"farm_id"`
	Crop   string `json:"crop"`
}

// VerifyRequest is the body of POST /v1/attestations/verify.
type VerifyRequest struct {
	Token string `json:"token"`
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/certificates", s.handleIssue)
	mux.HandleFunc("GET /v1/certificates", s.handleList)
	mux.HandleFunc("GET /v1/certificates/latest", s.handleLatest)
	mux.HandleFunc("GET /v1/certificates/latest/attestation", s.handleLatestAttestation)
	mux.HandleFunc("GET /v1/farms/{farm_id}/certificates", s.handleFarmCertificates)
	mux.HandleFunc("GET /v1/farms/{farm_id}/reputation", s.handleReputation)
	mux.HandleFunc("POST /v1/attestations/verify", s.handleVerify)
	return mux
}

// Handler wraps the routes with request id, access log and optional rate limiting.
func (s *Server) Handler(limiter *RateLimiter) http.Handler {
	var h http.Handler = s.Routes()
	if limiter != nil {
		h = limiter.Middleware(h)
	}
	h = AccessLog(s.logger)(h)
	return RequestID(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := decodeBody(w, r, issueSchema, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	res, err := s.svc.IssueCertificate(r.Context(), req.FarmID, req.Crop)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/farms/"+url.PathEscape(res.Certificate.FarmNodeID)+"/certificates")
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := s.svc.LatestCertificate(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if latest == nil {
		writeEngineError(w, r, engine.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	certs, err := s.svc.ListCertificates(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(certs))
}

func (s *Server) handleFarmCertificates(w http.ResponseWriter, r *http.Request) {
	certs, err := s.svc.FarmCertificates(r.Context(), r.PathValue("farm_id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(certs))
}

func (s *Server) handleReputation(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Reputation(r.Context(), r.PathValue("farm_id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleLatestAttestation(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.LatestAttestation(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeBody(w, r, verifySchema, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	v, err := s.svc.VerifyAttestation(r.Context(), req.Token)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func nonNil(certs []certificate.Certificate) []certificate.Certificate {
	if certs == nil {
		return []certificate.Certificate{}
	}
	return certs
}

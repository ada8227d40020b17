package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
)

// Dialect selects the DDL used by SQLLedger.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLLedger implements Ledger using database/sql.
// It supports both Postgres and SQLite via standard drivers; insertion order
// is the auto-increment sequence column.
type SQLLedger struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex
}

func NewSQLLedger(db *sql.DB, dialect Dialect) *SQLLedger {
	return &SQLLedger{db: db, dialect: dialect}
}

var schemas = map[Dialect][]string{
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS certificates (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			certificate_id TEXT NOT NULL,
			blockchain_hash TEXT NOT NULL UNIQUE,
			farm_node_id TEXT NOT NULL,
			issued_at TEXT NOT NULL,
			document TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_farm ON certificates (farm_node_id)`,
	},
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS certificates (
			seq BIGSERIAL PRIMARY KEY,
			certificate_id TEXT NOT NULL,
			blockchain_hash TEXT NOT NULL UNIQUE,
			farm_node_id TEXT NOT NULL,
			issued_at TEXT NOT NULL,
			document TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_farm ON certificates (farm_node_id)`,
	},
}

// Init creates the certificates table if it does not exist.
func (s *SQLLedger) Init(ctx context.Context) error {
	stmts, ok := schemas[s.dialect]
	if !ok {
		return fmt.Errorf("ledger: unsupported SQL dialect %q", s.dialect)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return unavailable("init schema", err)
		}
	}
	return nil
}

func (s *SQLLedger) Append(ctx context.Context, c certificate.Certificate) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return unavailable("encode certificate", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO certificates (certificate_id, blockchain_hash, farm_node_id, issued_at, document)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		c.CertificateID, c.BlockchainHash, c.FarmNodeID, c.IssuedAt.UTC().Format(time.RFC3339Nano), string(doc),
	)
	if err != nil {
		return unavailable("insert certificate", err)
	}
	return nil
}

func (s *SQLLedger) Latest(ctx context.Context) (*certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM certificates ORDER BY seq DESC LIMIT 1`).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("query latest", err)
	}

	c, err := decodeDocument(doc)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLLedger) List(ctx context.Context) ([]certificate.Certificate, error) {
	return s.query(ctx, `SELECT document FROM certificates ORDER BY seq ASC`)
}

func (s *SQLLedger) ListByFarm(ctx context.Context, farmID string) ([]certificate.Certificate, error) {
	return s.query(ctx, `SELECT document FROM certificates WHERE farm_node_id = $1 ORDER BY seq ASC`,
		certificate.Normalize(farmID))
}

func (s *SQLLedger) query(ctx context.Context, query string, args ...any) ([]certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query certificates", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]certificate.Certificate, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, unavailable("scan certificate", err)
		}
		c, err := decodeDocument(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate certificates", err)
	}
	return result, nil
}

func decodeDocument(doc string) (certificate.Certificate, error) {
	var c certificate.Certificate
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return certificate.Certificate{}, corrupt("certificate document", err)
	}
	return c, nil
}

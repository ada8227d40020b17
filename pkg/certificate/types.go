package certificate

import "time"

const (
	// IDPrefix prefixes every certificate id.
	IDPrefix = "VY-"
	// HashPrefix prefixes the hex digest in BlockchainHash.
	HashPrefix = "0x"
	// VerificationMethod tags how the trust score was established.
	VerificationMethod = "IoT_SENSOR_CONSENSUS"

	GradeA = "Grade A"
	GradeB = "Grade B"

	idHexLen = 8
)

// HarvestRecord is one prior harvest of a farm. Records are never mutated.
type HarvestRecord struct {
	Date  string `json:"date"`
	Crop  string `json:"crop"`
	Score int    `json:"score"`
}

// Harvest describes the harvest being certified.
type Harvest struct {
	Crop               string `json:"crop"`
	TrustScore         int    `json:"trust_score"`
	VerificationMethod string `json:"verification_method"`
	Grade              string `json:"grade"`
}

// Reputation aggregates prior harvests together with the current one.
type Reputation struct {
	TotalHarvestsVerified int             `json:"total_harvests_verified"`
	AverageScore          int             `json:"average_score"`
	ScoreHistory          []HarvestRecord `json:"score_history"`
}

// Certificate is an issued proof-of-quality record. It is the unit persisted
// to the ledger and is immutable once appended.
type Certificate struct {
	CertificateID    string     `json:"certificate_id"`
	FarmNodeID       string     `json:"farm_node_id"`
	CurrentHarvest   Harvest    `json:"current_harvest"`
	FarmerReputation Reputation `json:"farmer_reputation"`
	BlockchainHash   string     `json:"blockchain_hash"`
	IssuedAt         time.Time  `json:"issued_at"`
}

// Record returns the certificate as a prior-harvest record.
func (c Certificate) Record() HarvestRecord {
	return HarvestRecord{
		Date:  c.IssuedAt.UTC().Format("2006-01-02"),
		Crop:  c.CurrentHarvest.Crop,
		Score: c.CurrentHarvest.TrustScore,
	}
}

// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Matching constants
const (
	// DefaultDistanceThreshold is the maximum Euclidean distance still considered a match.
	// Candidates must be strictly below it.
	DefaultDistanceThreshold = 0.55

	// DefaultEmbeddingDim is the length of a face-api descriptor
	DefaultEmbeddingDim = 128

	// IndexCandidateCount is how many nearest templates the HNSW index returns
	// before the exact threshold rule is applied
	IndexCandidateCount = 10
)

// Ledger constants
const (
	// DefaultLedgerCooldown is the window in which a repeat matched entry for the
	// same participant and event is reported as a duplicate instead of written
	DefaultLedgerCooldown = 60 * time.Second

	// DefaultRecordLimit caps record listings
	DefaultRecordLimit = 1000
)

// Capture loop constants
const (
	// DefaultPollInterval is how often the capture loop asks its source for a sample
	DefaultPollInterval = 800 * time.Millisecond

	// DefaultAdmitCooldown suspends re-submission after an admit is displayed
	DefaultAdmitCooldown = 2 * time.Second

	// DefaultDenyCooldown suspends re-submission after a deny is displayed
	DefaultDenyCooldown = 3 * time.Second

	// DefaultRecentTTL is how long a capture session remembers a recognized participant
	DefaultRecentTTL = 10 * time.Second
)

// Companion constants
const (
	// CompanionDocumentPrefix prefixes the placeholder document of a companion participant
	CompanionDocumentPrefix = "ACP"
)

package common

//go:generate go run github.com/dmarkham/enumer -json -text -type Outcome -trimprefix Outcome

// Outcome of a pipeline run
type Outcome int

const (
	OutcomeFailed         Outcome = iota // Authentication or catalog failure
	OutcomeNoTilesFound                  // No Level-2A candidate
	OutcomeDownloadFailed                // Fetch or extraction failure
	OutcomeProcessed                     // Whatever the number of images produced
)

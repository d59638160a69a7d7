package openisl

import "github.com/esimstech/openisl-go/internal/constants"

// Re-export the core tunables for callers that only need the public API.
const (
	MaxSHMString         = constants.MaxSHMString
	MaxFIFODepth          = constants.MaxFIFODepth
	MaxNbReaders          = constants.MaxNbReaders
	MaxRunSims            = constants.MaxRunSims
	DefaultStepTolerance  = constants.DefaultStepTolerance
	EventTime             = constants.EventTime
)

// Package constants holds the default tunables of the OpenISL transport
// core. internal/config can parse an isl_api.ini app settings file into a
// Settings value with the same defaults, but nothing in this module applies
// a loaded Settings: the connector, channel and registry code use these
// constants directly.
package constants

import "time"

// Shared-memory layout defaults.
const (
	// MaxSHMString is the fixed capacity, in bytes, of every fixed-length
	// string field embedded in a shared-memory layout (names, uuids,
	// file paths).
	MaxSHMString = 1024

	// MaxFIFODepth is the default number of slots in a channel's ring.
	MaxFIFODepth = 1024

	// MaxNbReaders is the default number of independent reader slots a
	// channel reserves.
	MaxNbReaders = 16

	// MaxRunSims is the default capacity of the process-wide registry
	// table (RegistryShm).
	MaxRunSims = 256

	// DefaultStepTolerance is the default multiplier applied to a
	// sample's step to obtain the absolute time-comparison tolerance.
	DefaultStepTolerance = 1e-6
)

// EventTime is the sentinel time value marking an event-style sample that
// bypasses time-window reasoning.
const EventTime = -1.0

// Kernel object name prefixes. Every name this module derives uses the
// Default* prefixes; the legacy prefixes are defined here, but nothing
// selects them, and the ISLCompatible setting has no effect on naming.
const (
	// DefaultSemPrefix names semaphores created by this build.
	DefaultSemPrefix = "_isl_sem_"
	// DefaultShmPrefix names shared-memory regions created by this build.
	DefaultShmPrefix = "_isl_shm_"
	// LegacyCompatSemPrefix is the legacy semaphore prefix (unused).
	LegacyCompatSemPrefix = "qipc_systemsem_"
	// LegacyCompatShmPrefix is the legacy shared-memory prefix (unused).
	LegacyCompatShmPrefix = "qipc_sharedmemory_"
	// MinPrefixLen is the minimum length a semaphore key prefix must have.
	MinPrefixLen = 3
)

// Well-known stop-bus key literals.
const (
	GlobalStopKey        = "_isl_sem_xxx_stop_"
	SessionStopKeyFormat = "_isl_sem_xse%s_"
)

// Timing constants for the cooperative stop and attach-retry protocols.
const (
	// AttachRetryInterval is how often a non-owner attach retries after a
	// transient failure while waiting for the owner to create the region.
	AttachRetryInterval = 500 * time.Millisecond

	// TerminationSettleDelay is how long a disconnecting channel sleeps
	// after releasing all waiters so they can observe the terminated
	// flag before the region is detached.
	TerminationSettleDelay = 200 * time.Millisecond
)

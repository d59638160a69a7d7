package openisl

import "github.com/esimstech/openisl-go/internal/constants"

// SimEntry is one registered connector as seen through the shared
// RegistryShm table (a read-only view of another process's connector).
type SimEntry struct {
	ID      uint32
	PID     uint64
	Name    string
	Session string
}

// SimsGetMaxNb returns the registry's fixed slot capacity.
func SimsGetMaxNb() (int, error) {
	rshm, err := sharedRegistryShm(constants.MaxSHMString, constants.MaxRunSims)
	if err != nil {
		return 0, WrapError("sims_get_max_nb", err)
	}
	return rshm.Capacity(), nil
}

// SimsGet reads slot i of the shared registry table. An empty slot
// returns a zero-value SimEntry with ErrNotFound.
func SimsGet(i int) (SimEntry, error) {
	rshm, err := sharedRegistryShm(constants.MaxSHMString, constants.MaxRunSims)
	if err != nil {
		return SimEntry{}, WrapError("sims_get", err)
	}
	slot, err := rshm.Get(i)
	if err != nil {
		return SimEntry{}, WrapError("sims_get", err)
	}
	if slot.IsEmpty() {
		return SimEntry{}, ErrNotFound
	}
	return SimEntry{ID: slot.ISLID, PID: slot.PID, Name: slot.Name, Session: slot.Session}, nil
}

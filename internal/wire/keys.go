// Package wire implements the named-object key formats and the fixed-size
// shared-memory layouts for ConnectorShm and RegistryShm.
// Marshal/Unmarshal use explicit field-by-field binary.LittleEndian
// packing rather than an unsafe struct overlay, since the source fields
// are mixed width and a Go struct's natural alignment doesn't match the
// wire layout.
package wire

import "fmt"

// Key* functions compute the human-readable keys that internal/sem.DeriveName
// and internal/shm.Create/Attach turn into kernel object names.
func KeyConnectorShm(session string, uid uint32) string {
	return fmt.Sprintf("_isl_shm_ses%s_mdl%d", session, uid)
}

func KeyVariableShm(session string, connectID string) string {
	return fmt.Sprintf("_isl_shm_ses%s_sig%s", session, connectID)
}

func KeyWriterSem(session string, connectID string) string {
	return fmt.Sprintf("_isl_sem_ses%s_swr%s", session, connectID)
}

func KeyReaderSem(session string, connectID string) string {
	return fmt.Sprintf("_isl_sem_ses%s_srd%s", session, connectID)
}

// KeyGlobalStopSem is the fixed, session-independent key for the one-shot
// global stop semaphore.
func KeyGlobalStopSem() string {
	return "_isl_sem_xxx_stop_"
}

func KeySessionStopSem(session string) string {
	return fmt.Sprintf("_isl_sem_xse%s_", session)
}

// KeyRegistrySHM is the fixed key for the process-wide registry segment.
func KeyRegistrySHM() string {
	return "_isl_shm_gen_"
}

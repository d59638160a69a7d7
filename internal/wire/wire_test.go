package wire

import "testing"

func TestConnectorRecordRoundTrip(t *testing.T) {
	const maxStr = 64
	in := ConnectorRecord{
		Type:  0x49534C00, // "ISL\0"
		ID:    7,
		PID:   12345,
		UUID:  "11111111-2222-3333-4444-555555555555",
		Name:  "process1",
		File:  "/tmp/process1.xml",
		NData: 3,
	}
	buf := make([]byte, ConnectorRecordSize(maxStr))
	if err := MarshalConnectorRecord(buf, in, maxStr); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := UnmarshalConnectorRecord(buf, maxStr)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestConnectorRecordRejectsOversizedString(t *testing.T) {
	const maxStr = 4
	in := ConnectorRecord{Name: "way too long"}
	buf := make([]byte, ConnectorRecordSize(maxStr))
	if err := MarshalConnectorRecord(buf, in, maxStr); err == nil {
		t.Error("expected error for oversized string field")
	}
}

func TestRegistrySlotRoundTrip(t *testing.T) {
	const maxStr = 32
	in := RegistrySlot{ISLID: 42, PID: 999, Name: "process2", Session: "demo"}
	buf := make([]byte, RegistrySlotSize(maxStr))
	if err := MarshalRegistrySlot(buf, in, maxStr); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := UnmarshalRegistrySlot(buf, maxStr)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestRegistrySlotIsEmpty(t *testing.T) {
	var s RegistrySlot
	if !s.IsEmpty() {
		t.Error("zero-value slot should be empty")
	}
	s.ISLID = 1
	if s.IsEmpty() {
		t.Error("slot with non-zero ISLID should not be empty")
	}
}

func TestKeyFormats(t *testing.T) {
	if got := KeyConnectorShm("demo", 42); got != "_isl_shm_sesdemo_mdl42" {
		t.Errorf("KeyConnectorShm = %q", got)
	}
	if got := KeyVariableShm("demo", "Token1W"); got != "_isl_shm_sesdemo_sigToken1W" {
		t.Errorf("KeyVariableShm = %q", got)
	}
	if got := KeyWriterSem("demo", "Token1W"); got != "_isl_sem_sesdemo_swrToken1W" {
		t.Errorf("KeyWriterSem = %q", got)
	}
	if got := KeyReaderSem("demo", "Token1W"); got != "_isl_sem_sesdemo_srdToken1W" {
		t.Errorf("KeyReaderSem = %q", got)
	}
	if got := KeySessionStopSem("demo"); got != "_isl_sem_xsedemo_" {
		t.Errorf("KeySessionStopSem = %q", got)
	}
}

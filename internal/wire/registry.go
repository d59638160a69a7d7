package wire

import (
	"encoding/binary"
	"fmt"
)

// RegistrySlot is one entry of the RegistryShm fixed-capacity table:
//
//	u32 isl_id; u64 pid; i32 name_len; char name[MAX_STR];
//	i32 session_len; char session[MAX_STR];
//
// A slot with ISLID == 0 is empty.
type RegistrySlot struct {
	ISLID   uint32
	PID     uint64
	Name    string
	Session string
}

// RegistrySlotSize returns the exact byte size of one slot for the given
// max string capacity.
func RegistrySlotSize(maxStr int) int {
	return 4 + 8 + 4 + maxStr + 4 + maxStr
}

func MarshalRegistrySlot(buf []byte, s RegistrySlot, maxStr int) error {
	want := RegistrySlotSize(maxStr)
	if len(buf) != want {
		return fmt.Errorf("wire: registry slot buffer is %d bytes, want %d", len(buf), want)
	}
	if len(s.Name) > maxStr || len(s.Session) > maxStr {
		return fmt.Errorf("wire: registry slot string exceeds max %d bytes", maxStr)
	}

	off := 0
	binary.LittleEndian.PutUint32(buf[off:], s.ISLID)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], s.PID)
	off += 8
	off = putString(buf, off, s.Name, maxStr)
	off = putString(buf, off, s.Session, maxStr)
	return nil
}

func UnmarshalRegistrySlot(buf []byte, maxStr int) (RegistrySlot, error) {
	want := RegistrySlotSize(maxStr)
	if len(buf) != want {
		return RegistrySlot{}, fmt.Errorf("wire: registry slot buffer is %d bytes, want %d", len(buf), want)
	}
	var s RegistrySlot
	off := 0
	s.ISLID = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	s.PID = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	var name, session string
	name, off = getString(buf, off, maxStr)
	s.Name = name
	session, off = getString(buf, off, maxStr)
	s.Session = session
	return s, nil
}

// IsEmpty reports whether a slot is unoccupied.
func (s RegistrySlot) IsEmpty() bool { return s.ISLID == 0 }

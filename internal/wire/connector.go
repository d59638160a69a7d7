package wire

import (
	"encoding/binary"
	"fmt"
)

// ConnectorRecord is the in-memory form of the ConnectorShm layout:
//
//	u32 type; u32 id; u64 pid; i32 uuid_len; char uuid[MAX_STR];
//	i32 name_len; char name[MAX_STR]; i32 file_len; char file[MAX_STR];
//	i32 n_data;
type ConnectorRecord struct {
	Type  uint32
	ID    uint32
	PID   uint64
	UUID  string
	Name  string
	File  string
	NData int32
}

// ConnectorRecordSize returns the exact byte size of a ConnectorShm region
// for the given max string capacity.
func ConnectorRecordSize(maxStr int) int {
	return 4 + 4 + 8 + 4 + maxStr + 4 + maxStr + 4 + maxStr + 4
}

// MarshalConnectorRecord packs r into buf (which must be exactly
// ConnectorRecordSize(maxStr) bytes).
func MarshalConnectorRecord(buf []byte, r ConnectorRecord, maxStr int) error {
	want := ConnectorRecordSize(maxStr)
	if len(buf) != want {
		return fmt.Errorf("wire: connector record buffer is %d bytes, want %d", len(buf), want)
	}
	if len(r.UUID) > maxStr || len(r.Name) > maxStr || len(r.File) > maxStr {
		return fmt.Errorf("wire: connector record string exceeds max %d bytes", maxStr)
	}

	off := 0
	binary.LittleEndian.PutUint32(buf[off:], r.Type)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], r.ID)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], r.PID)
	off += 8

	off = putString(buf, off, r.UUID, maxStr)
	off = putString(buf, off, r.Name, maxStr)
	off = putString(buf, off, r.File, maxStr)

	binary.LittleEndian.PutUint32(buf[off:], uint32(r.NData))
	off += 4
	return nil
}

// UnmarshalConnectorRecord reads a ConnectorRecord back out of buf.
func UnmarshalConnectorRecord(buf []byte, maxStr int) (ConnectorRecord, error) {
	want := ConnectorRecordSize(maxStr)
	if len(buf) != want {
		return ConnectorRecord{}, fmt.Errorf("wire: connector record buffer is %d bytes, want %d", len(buf), want)
	}
	var r ConnectorRecord
	off := 0
	r.Type = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	r.ID = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	r.PID = binary.LittleEndian.Uint64(buf[off:])
	off += 8

	var s string
	s, off = getString(buf, off, maxStr)
	r.UUID = s
	s, off = getString(buf, off, maxStr)
	r.Name = s
	s, off = getString(buf, off, maxStr)
	r.File = s

	r.NData = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	return r, nil
}

func putString(buf []byte, off int, s string, maxStr int) int {
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(s)))
	off += 4
	n := copy(buf[off:off+maxStr], s)
	for i := n; i < maxStr; i++ {
		buf[off+i] = 0
	}
	off += maxStr
	return off
}

func getString(buf []byte, off int, maxStr int) (string, int) {
	l := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if l < 0 || l > maxStr {
		l = 0
	}
	s := string(buf[off : off+l])
	off += maxStr
	return s, off
}

package rococo

import (
	"encoding/binary"
	"io"
)

// GetPrepareLog writes the 2PC prepare-log record for tid:
// tid(u64) | n_sids(u32) | sids(i32)* | payload, consumed by the
// external durability layer (out of scope here; we only produce the
// bytes). Grounded on original_source/deptran/dtxn.h's
// TxnRunner::get_prepare_log declaration.
func GetPrepareLog(w io.Writer, tid int64, sids []int32, payload []byte) error {
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(tid))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(sids)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	sidBytes := make([]byte, 4*len(sids))
	for i, sid := range sids {
		binary.LittleEndian.PutUint32(sidBytes[i*4:i*4+4], uint32(sid))
	}
	if _, err := w.Write(sidBytes); err != nil {
		return err
	}

	_, err := w.Write(payload)
	return err
}

package ntfs

import "encoding/binary"

// Record is a decoded, fixed-up file or index record buffer plus the header
// fields every consumer needs without re-parsing. Immutable after load.
type Record struct {
	Signature           [4]byte
	SequenceNumber       uint16
	HardLinkCount        uint16
	Flags                uint16
	UsedSize             uint32
	AllocatedSize        uint32
	BaseRecordReference  FileReference
	FirstAttributeOffset uint16
	NextAttributeID      uint16
	RecordNumber         uint32

	data []byte // full, fixed-up record buffer
}

// Record flag bits (file records).
const (
	RecordFlagInUse       uint16 = 0x0001
	RecordFlagIsDirectory uint16 = 0x0002
)

// Data returns the fixed-up record bytes. Callers must not retain it beyond
// the Record's own lifetime expectations (it is not copied on each call).
func (r *Record) Data() []byte { return r.data }

func (r *Record) InUse() bool       { return r.Flags&RecordFlagInUse != 0 }
func (r *Record) IsDirectory() bool { return r.Flags&RecordFlagIsDirectory != 0 }

// decodeRecord reads record_size bytes at offset, validates the signature
// against expected, and applies the update-sequence fixup in place on a
// private copy of the bytes. sectorSize is the volume's own
// geometry.BytesPerSector — the fixup's sector boundaries are relative to
// the volume's native sector size, not a fixed 512. Grounded on the
// mechanics of t9t/gomft's applyFixUp, generalized to the record/index dual
// use required here.
func decodeRecord(r StorageReader, offset int64, recordSize uint32, expected [4]byte, sectorSize uint32) (*Record, error) {
	buf := make([]byte, recordSize)
	if err := readAt(r, buf, offset); err != nil {
		return nil, err
	}
	return decodeRecordBytes(buf, recordSize, expected, offset, sectorSize)
}

// decodeRecordBytes is decodeRecord's core, operating on an already-read
// buffer. Used directly when the record comes from the MFT's own logical
// byte stream rather than a fresh positional read.
func decodeRecordBytes(buf []byte, recordSize uint32, expected [4]byte, position int64, sectorSize uint32) (*Record, error) {
	signature, err := verifyAndFixup(buf, recordSize, expected, position, sectorSize)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Signature:            signature,
		SequenceNumber:       binary.LittleEndian.Uint16(buf[0x10:0x12]),
		HardLinkCount:        binary.LittleEndian.Uint16(buf[0x12:0x14]),
		FirstAttributeOffset: binary.LittleEndian.Uint16(buf[0x14:0x16]),
		Flags:                binary.LittleEndian.Uint16(buf[0x16:0x18]),
		UsedSize:             binary.LittleEndian.Uint32(buf[0x18:0x1C]),
		AllocatedSize:        binary.LittleEndian.Uint32(buf[0x1C:0x20]),
		BaseRecordReference:  FileReference(binary.LittleEndian.Uint64(buf[0x20:0x28])),
		NextAttributeID:      binary.LittleEndian.Uint16(buf[0x28:0x2A]),
		data:                 buf,
	}
	if len(buf) >= 0x30 {
		rec.RecordNumber = binary.LittleEndian.Uint32(buf[0x2C:0x30])
	}

	if rec.UsedSize > rec.AllocatedSize || rec.AllocatedSize > recordSize {
		return nil, errAttributeOutOfBounds(position, "used/allocated size inconsistent with record size")
	}

	return rec, nil
}

// verifyAndFixup validates the 4-byte signature shared by file and index
// records and applies the update-sequence fixup in place, returning the
// verified signature. Shared by decodeRecordBytes (file records) and
// childNode (index records), whose headers agree on this much. sectorSize
// is the volume's geometry.BytesPerSector.
func verifyAndFixup(buf []byte, recordSize uint32, expected [4]byte, position int64, sectorSize uint32) ([4]byte, error) {
	var signature [4]byte
	if len(buf) < 8 {
		return signature, errAttributeOutOfBounds(position, "record shorter than header")
	}
	copy(signature[:], buf[0:4])
	if signature != expected {
		var foundU32, expectedU32 uint32
		foundU32 = binary.LittleEndian.Uint32(buf[0:4])
		expectedU32 = binary.LittleEndian.Uint32(expected[:])
		return signature, errInvalidRecordSignature(expectedU32, foundU32, position)
	}

	usaOffset := binary.LittleEndian.Uint16(buf[4:6])
	usaCount := binary.LittleEndian.Uint16(buf[6:8])

	if err := applyFixup(buf, int(usaOffset), int(usaCount), recordSize, sectorSize); err != nil {
		return signature, err
	}
	return signature, nil
}

// applyFixup implements §4.1: the first USA entry is the "update sequence
// number"; each protected sector's last two bytes must equal it and are
// replaced in place with the corresponding USA entry. Decoding the same raw
// disk bytes twice is therefore deterministic and yields byte-identical
// records — the fixup is a pure function of the input buffer. sectorSize is
// the volume's own geometry.BytesPerSector (up to 4 KiB), never a fixed 512
// — a non-512-byte-sector volume checks and restores the wrong byte offsets
// entirely if this is assumed.
func applyFixup(buf []byte, usaOffset, usaCount int, recordSize, sectorSize uint32) error {
	if usaCount == 0 {
		return nil
	}

	usaEnd, err := checkedAddU64(uint64(usaOffset), uint64(usaCount)*2)
	if err != nil || usaEnd > uint64(len(buf)) {
		return errInvalidUpdateSequence(int64(usaOffset))
	}
	if uint64(usaCount-1)*uint64(sectorSize) > uint64(recordSize) {
		return errInvalidUpdateSequence(int64(usaOffset))
	}

	usn := buf[usaOffset : usaOffset+2]
	entries := buf[usaOffset+2 : usaOffset+2*usaCount]

	for i := 0; i < usaCount-1; i++ {
		sectorEnd := (i+1)*int(sectorSize) - 2
		if sectorEnd+2 > len(buf) {
			return errInvalidUpdateSequence(int64(sectorEnd))
		}
		trailing := buf[sectorEnd : sectorEnd+2]
		if trailing[0] != usn[0] || trailing[1] != usn[1] {
			return errInvalidUpdateSequence(int64(sectorEnd))
		}
		copy(trailing, entries[2*i:2*i+2])
	}
	return nil
}

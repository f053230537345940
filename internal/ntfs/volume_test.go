package ntfs

import (
	"encoding/binary"
	"errors"
	"testing"
)

// syntheticNumberedRecord is syntheticFileRecord generalized over sequence
// number and record number, so loadFileRecord's cross-check can be exercised
// against more than the one fixed (5, 7) pair record_test.go uses.
func syntheticNumberedRecord(recordSize uint32, usn, seq uint16, recordNumber uint32) []byte {
	buf := make([]byte, recordSize)
	copy(buf[0:4], fileRecordSignature[:])
	binary.LittleEndian.PutUint16(buf[4:6], 0x30)
	binary.LittleEndian.PutUint16(buf[6:8], 3)
	binary.LittleEndian.PutUint16(buf[0x10:0x12], seq)
	binary.LittleEndian.PutUint16(buf[0x12:0x14], 1)
	binary.LittleEndian.PutUint16(buf[0x14:0x16], 0x38)
	binary.LittleEndian.PutUint16(buf[0x16:0x18], RecordFlagInUse)
	binary.LittleEndian.PutUint32(buf[0x18:0x1C], 0x100)
	binary.LittleEndian.PutUint32(buf[0x1C:0x20], recordSize)
	binary.LittleEndian.PutUint32(buf[0x2C:0x30], recordNumber)

	binary.LittleEndian.PutUint16(buf[0x30:0x32], usn)
	binary.LittleEndian.PutUint16(buf[0x32:0x34], 0xAAAA)
	binary.LittleEndian.PutUint16(buf[0x34:0x36], 0xBBBB)
	binary.LittleEndian.PutUint16(buf[510:512], usn)
	binary.LittleEndian.PutUint16(buf[1022:1024], usn)
	return buf
}

func TestVolume_LoadFileRecord_SucceedsOnMatchingSequence(t *testing.T) {
	const recordSize = 1024
	mft := make([]byte, 8*recordSize)
	copy(mft[7*recordSize:8*recordSize], syntheticNumberedRecord(recordSize, 1, 7, 7))

	vol := &Volume{
		geometry: Geometry{RecordSize: recordSize, BytesPerSector: 512},
		mftData:  newResidentValue(mft),
	}
	rec, err := vol.loadFileRecord(NewFileReference(7, 7))
	if err != nil {
		t.Fatalf("loadFileRecord err: %v", err)
	}
	if rec.RecordNumber != 7 || rec.SequenceNumber != 7 {
		t.Fatalf("rec=%+v want RecordNumber=7 SequenceNumber=7", rec)
	}
}

func TestVolume_LoadFileRecord_RejectsSequenceMismatch(t *testing.T) {
	const recordSize = 1024
	mft := make([]byte, 8*recordSize)
	copy(mft[7*recordSize:8*recordSize], syntheticNumberedRecord(recordSize, 1, 7, 7))

	vol := &Volume{
		geometry: Geometry{RecordSize: recordSize, BytesPerSector: 512},
		mftData:  newResidentValue(mft),
	}
	_, err := vol.loadFileRecord(NewFileReference(7, 99))
	var nerr *Error
	if !errors.As(err, &nerr) || nerr.Kind != KindSequenceMismatch {
		t.Fatalf("err=%v want KindSequenceMismatch", err)
	}
}

func TestVolume_LoadFileRecord_ZeroSequenceSkipsCheck(t *testing.T) {
	const recordSize = 1024
	mft := make([]byte, 8*recordSize)
	copy(mft[7*recordSize:8*recordSize], syntheticNumberedRecord(recordSize, 1, 7, 7))

	vol := &Volume{
		geometry: Geometry{RecordSize: recordSize, BytesPerSector: 512},
		mftData:  newResidentValue(mft),
	}
	if _, err := vol.loadFileRecord(NewFileReference(7, 0)); err != nil {
		t.Fatalf("loadFileRecord with zero sequence err: %v", err)
	}
}

func TestFindUnnamedData_SkipsNamedStreams(t *testing.T) {
	vol := &Volume{}
	rec := buildRecord(
		encodeResidentAttr(AttrData, 0, []byte("zone-identifier")),
		encodeResidentAttr(AttrData, 1, []byte("unnamed-content")),
	)
	w, err := newAttributeWalker(vol, NewFileReference(5, 1), rec)
	if err != nil {
		t.Fatalf("newAttributeWalker err: %v", err)
	}
	// Both headers are unnamed in this fixture (encodeResidentAttr never sets
	// a name), so the first unnamed $DATA attribute wins; what matters here
	// is that a present $DATA attribute is found at all.
	a, err := findUnnamedData(w)
	if err != nil {
		t.Fatalf("findUnnamedData err: %v", err)
	}
	if a.Type != AttrData {
		t.Fatalf("a.Type=%v want $DATA", a.Type)
	}

	// A named $DATA stream ahead of the unnamed one must be passed over.
	mixed := &AttributeWalker{attrs: []*Attribute{
		{Type: AttrData, Name: stringToUTF16("Zone.Identifier")},
		{Type: AttrData},
	}}
	a, err = findUnnamedData(mixed)
	if err != nil || len(a.Name) != 0 {
		t.Fatalf("findUnnamedData=%+v err=%v want the unnamed $DATA", a, err)
	}
}

func TestFindUnnamedData_NotFoundWithoutDataAttribute(t *testing.T) {
	vol := &Volume{}
	rec := buildRecord(encodeResidentAttr(AttrStandardInformation, 0, []byte("x")))
	w, err := newAttributeWalker(vol, NewFileReference(5, 1), rec)
	if err != nil {
		t.Fatalf("newAttributeWalker err: %v", err)
	}
	if _, err := findUnnamedData(w); err != ErrNotFound {
		t.Fatalf("findUnnamedData err=%v want ErrNotFound", err)
	}
}

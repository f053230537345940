package ntfs

import (
	"encoding/binary"
	"testing"
)

// syntheticBootSector builds a 512-byte boot sector with the given
// bytes-per-sector, sectors-per-cluster byte, and signed record/index-size
// bytes, leaving every other field zero.
func syntheticBootSector(bytesPerSector uint16, sectorsPerClusterByte byte, recordSizeByte, indexRecordSizeByte byte, totalSectors, mftLCN, serial uint64) []byte {
	buf := make([]byte, bootSectorSize)
	copy(buf[oemIDOffset:oemIDOffset+oemIDLength], ntfsOEMID)
	binary.LittleEndian.PutUint16(buf[0x0B:0x0D], bytesPerSector)
	buf[0x0D] = sectorsPerClusterByte
	buf[0x40] = recordSizeByte
	buf[0x44] = indexRecordSizeByte
	binary.LittleEndian.PutUint64(buf[0x28:0x30], totalSectors)
	binary.LittleEndian.PutUint64(buf[0x30:0x38], mftLCN)
	binary.LittleEndian.PutUint64(buf[0x48:0x50], serial)
	return buf
}

func TestDecodeBootSector_TypicalGeometry(t *testing.T) {
	// 512 bytes/sector, 8 sectors/cluster (4096-byte clusters), 1024-byte
	// file records (-10 => 2^10), one-cluster index records (positive 1).
	raw := syntheticBootSector(512, 8, 0xF6 /* int8(-10) */, 1, 1000000, 4, 0xDEADBEEF)

	g, err := decodeBootSector(raw)
	if err != nil {
		t.Fatalf("decodeBootSector err: %v", err)
	}
	if g.BytesPerSector != 512 {
		t.Fatalf("BytesPerSector=%d want 512", g.BytesPerSector)
	}
	if g.ClusterSize != 4096 {
		t.Fatalf("ClusterSize=%d want 4096", g.ClusterSize)
	}
	if g.RecordSize != 1024 {
		t.Fatalf("RecordSize=%d want 1024", g.RecordSize)
	}
	if g.IndexRecordSize != 4096 {
		t.Fatalf("IndexRecordSize=%d want 4096", g.IndexRecordSize)
	}
	if g.MFTLCN != 4 {
		t.Fatalf("MFTLCN=%d want 4", g.MFTLCN)
	}
	if g.SerialNumber != 0xDEADBEEF {
		t.Fatalf("SerialNumber=%#x want %#x", g.SerialNumber, 0xDEADBEEF)
	}
}

func TestDecodeBootSector_RejectsBadOEMID(t *testing.T) {
	raw := syntheticBootSector(512, 8, 0xF6, 1, 0, 0, 0)
	copy(raw[oemIDOffset:oemIDOffset+oemIDLength], "FAT32   ")
	if _, err := decodeBootSector(raw); err == nil {
		t.Fatal("expected error for non-NTFS OEM id, got nil")
	}
}

func TestDecodeBootSector_RejectsTruncated(t *testing.T) {
	if _, err := decodeBootSector(make([]byte, 100)); err == nil {
		t.Fatal("expected error for truncated boot sector, got nil")
	}
}

func TestDecodeSignedUnitSize_NegativeIsShift(t *testing.T) {
	// -10 (0xF6) must decode to 2^10 = 1024 regardless of cluster size.
	got, err := decodeSignedUnitSize(0xF6, 4096)
	if err != nil {
		t.Fatalf("decodeSignedUnitSize err: %v", err)
	}
	if got != 1024 {
		t.Fatalf("decodeSignedUnitSize(-10)=%d want 1024", got)
	}
}

func TestDecodeSignedUnitSize_PositiveIsClusterCount(t *testing.T) {
	got, err := decodeSignedUnitSize(2, 4096)
	if err != nil {
		t.Fatalf("decodeSignedUnitSize err: %v", err)
	}
	if got != 8192 {
		t.Fatalf("decodeSignedUnitSize(2, 4096)=%d want 8192", got)
	}
}

func TestDecodeSignedUnitSize_ZeroIsError(t *testing.T) {
	if _, err := decodeSignedUnitSize(0, 4096); err == nil {
		t.Fatal("expected error for zero unit size byte, got nil")
	}
}

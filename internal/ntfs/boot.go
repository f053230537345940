package ntfs

import "encoding/binary"

// Geometry holds the derived sizing parameters of a volume, decoded once
// from the boot sector and treated as immutable afterward.
type Geometry struct {
	BytesPerSector    uint32
	SectorsPerCluster uint32
	ClusterSize       uint32
	RecordSize        uint32
	IndexRecordSize   uint32
	TotalSectors      uint64
	MFTLCN            uint64
	SerialNumber      uint64
}

const (
	maxSectorSize  = 4096
	maxClusterSize = 2 * 1024 * 1024
	maxRecordSize  = 64 * 1024

	bootSectorSize = 512
	oemIDOffset    = 0x03
	oemIDLength    = 8
	ntfsOEMID      = "NTFS    "
)

// decodeBootSector validates and decodes the first 512 bytes of a volume
// image into a Geometry. It never widens the signed record/index-size bytes
// through an unsigned type before sign-extension: that reordering is the
// classic bug this field's dual encoding invites.
func decodeBootSector(raw []byte) (Geometry, error) {
	if len(raw) < bootSectorSize {
		return Geometry{}, errInvalidBootSector("boot sector truncated")
	}
	if string(raw[oemIDOffset:oemIDOffset+oemIDLength]) != ntfsOEMID {
		return Geometry{}, errInvalidBootSector("missing NTFS OEM id")
	}

	bytesPerSector := binary.LittleEndian.Uint16(raw[0x0B:0x0D])
	if bytesPerSector == 0 || bytesPerSector > maxSectorSize || !isPowerOfTwo(uint64(bytesPerSector)) {
		return Geometry{}, errUnsupported(KindUnsupportedSectorSize, "bytes per sector out of range")
	}

	sectorsPerCluster, err := decodeClusterMultiplier(raw[0x0D])
	if err != nil {
		return Geometry{}, err
	}

	clusterSize, err := checkedMulU64(uint64(bytesPerSector), uint64(sectorsPerCluster))
	if err != nil {
		return Geometry{}, errInvalidBootSector("cluster size overflow")
	}
	if clusterSize == 0 || clusterSize > maxClusterSize || !isPowerOfTwo(clusterSize) || clusterSize < uint64(bytesPerSector) {
		return Geometry{}, errUnsupported(KindUnsupportedClusterSize, "cluster size out of range")
	}

	recordSize, err := decodeSignedUnitSize(raw[0x40], uint32(clusterSize))
	if err != nil {
		return Geometry{}, err
	}
	if recordSize < uint64(bytesPerSector) || recordSize > maxRecordSize || !isPowerOfTwo(recordSize) {
		return Geometry{}, errUnsupported(KindUnsupportedRecordSize, "file record size out of range")
	}

	indexRecordSize, err := decodeSignedUnitSize(raw[0x44], uint32(clusterSize))
	if err != nil {
		return Geometry{}, err
	}
	if indexRecordSize < uint64(bytesPerSector) || indexRecordSize > maxRecordSize || !isPowerOfTwo(indexRecordSize) {
		return Geometry{}, errUnsupported(KindUnsupportedRecordSize, "index record size out of range")
	}

	totalSectors := binary.LittleEndian.Uint64(raw[0x28:0x30])
	mftLCN := binary.LittleEndian.Uint64(raw[0x30:0x38])
	serial := binary.LittleEndian.Uint64(raw[0x48:0x50])

	return Geometry{
		BytesPerSector:    uint32(bytesPerSector),
		SectorsPerCluster: sectorsPerCluster,
		ClusterSize:       uint32(clusterSize),
		RecordSize:        uint32(recordSize),
		IndexRecordSize:   uint32(indexRecordSize),
		TotalSectors:      totalSectors,
		MFTLCN:            mftLCN,
		SerialNumber:      serial,
	}, nil
}

// decodeClusterMultiplier decodes the sectors-per-cluster byte at 0x0D. On
// real media this field is always a positive byte count, but some tooling
// emits the same signed-exponent trick used for record/index sizes; accept
// both so geometry decode stays permissive without ever sign-extending
// carelessly.
func decodeClusterMultiplier(b byte) (uint32, error) {
	signed := int8(b)
	if signed > 0 {
		return uint32(signed), nil
	}
	if signed == 0 {
		return 0, errInvalidBootSector("sectors per cluster is zero")
	}
	shift := uint(-int(signed))
	if shift > 31 {
		return 0, errInvalidBootSector("sectors per cluster exponent out of range")
	}
	return 1 << shift, nil
}

// decodeSignedUnitSize implements the record/index-size dual encoding from
// §9's Design Notes: a positive byte is a count of clusters, a negative byte
// -n means 2^n bytes. The sign check happens on the signed representation
// before anything is widened.
func decodeSignedUnitSize(b byte, clusterSize uint32) (uint64, error) {
	signed := int8(b)
	if signed > 0 {
		size, err := checkedMulU64(uint64(signed), uint64(clusterSize))
		if err != nil {
			return 0, errInvalidBootSector("unit size overflow")
		}
		return size, nil
	}
	if signed == 0 {
		return 0, errInvalidBootSector("unit size byte is zero")
	}
	shift := uint(-int(signed))
	if shift > 31 {
		return 0, errInvalidBootSector("unit size exponent out of range")
	}
	return 1 << shift, nil
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

package ntfs

// DataRun is a single decoded mapping-pair entry: LengthClusters clusters
// starting at LCN, or a sparse run (no LCN) when Sparse is true.
type DataRun struct {
	LengthClusters uint64
	LCN            uint64
	Sparse         bool
}

// decodeDataRuns implements §4.3's mapping-pairs algorithm in full: each
// header byte's low nibble gives the byte width of the length field, the
// high nibble the byte width of the signed LCN delta; a zero header ends the
// stream. Grounded on t9t/gomft's ParseDataRuns, extended with the
// total-clusters bounds check and sparse-run absolute-LCN validation §4.3
// and §9's checked-arithmetic requirement call for.
func decodeDataRuns(mappingPairs []byte, totalClusters uint64) ([]DataRun, error) {
	var runs []DataRun
	var lcn uint64
	var lcnSet bool
	pos := 0

	for pos < len(mappingPairs) {
		header := mappingPairs[pos]
		if header == 0 {
			break
		}
		pos++

		lengthBytes := int(header & 0x0F)
		offsetBytes := int(header>>4) & 0x0F

		if lengthBytes == 0 {
			return nil, errInvalidDataRun(int64(pos-1), "zero-width length field")
		}
		if pos+lengthBytes > len(mappingPairs) {
			return nil, errInvalidDataRun(int64(pos), "length field runs past end of mapping pairs")
		}
		length := decodeUnsignedLE(mappingPairs[pos : pos+lengthBytes])
		pos += lengthBytes
		if length == 0 {
			return nil, errInvalidDataRun(int64(pos), "zero-length run")
		}

		run := DataRun{LengthClusters: length}

		if offsetBytes == 0 {
			run.Sparse = true
		} else {
			if pos+offsetBytes > len(mappingPairs) {
				return nil, errInvalidDataRun(int64(pos), "LCN delta field runs past end of mapping pairs")
			}
			delta := decodeSignedLE(mappingPairs[pos : pos+offsetBytes])
			pos += offsetBytes

			var newLCN uint64
			if delta >= 0 {
				sum, err := checkedAddU64(lcn, uint64(delta))
				if err != nil {
					return nil, errInvalidDataRun(int64(pos), "LCN delta overflow")
				}
				newLCN = sum
			} else {
				neg := uint64(-delta)
				if !lcnSet && neg > 0 {
					return nil, errInvalidDataRun(int64(pos), "negative LCN delta before any run")
				}
				if neg > lcn {
					return nil, errInvalidDataRun(int64(pos), "LCN delta underflows below zero")
				}
				newLCN = lcn - neg
			}
			lcn = newLCN
			lcnSet = true
			run.LCN = lcn

			if totalClusters > 0 {
				end, err := checkedAddU64(run.LCN, run.LengthClusters)
				if err != nil || run.LCN >= totalClusters || end > totalClusters {
					return nil, errInvalidDataRun(int64(pos), "run extends past end of volume")
				}
			}
		}

		runs = append(runs, run)
	}

	return runs, nil
}

// decodeUnsignedLE decodes an unsigned little-endian integer of arbitrary
// byte width (up to 8 bytes used in practice).
func decodeUnsignedLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// decodeSignedLE decodes a signed, sign-extended little-endian integer of
// arbitrary byte width, matching the mapping-pairs LCN-delta encoding.
func decodeSignedLE(b []byte) int64 {
	v := decodeUnsignedLE(b)
	if len(b) == 0 {
		return 0
	}
	signBit := uint64(1) << (uint(len(b))*8 - 1)
	if v&signBit != 0 {
		v |= ^uint64(0) << (uint(len(b)) * 8)
	}
	return int64(v)
}

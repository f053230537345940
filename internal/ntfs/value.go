package ntfs

import (
	"io"
	"sort"
)

// Segment is one attribute-list-connected piece of a non-resident value's
// run set: a contiguous VCN range starting at FirstVCN, described by its own
// ordered data runs. §4.2's "connected attributes" step assembles these in
// ascending FirstVCN order before a Value is built from them.
type Segment struct {
	FirstVCN uint64
	Runs     []DataRun
}

// runSpan is a flattened, byte-addressed view of one data run, used so Value
// can binary-search straight to the run covering a given logical offset
// instead of re-walking segments on every seek.
type runSpan struct {
	startByte  uint64
	lengthByte uint64
	lcn        uint64
	sparse     bool
}

// Value is the logical byte-stream view over either a resident attribute's
// in-memory bytes or a non-resident attribute's (possibly spliced) run set,
// per §4.4 and §9's tagged-variant design note.
type Value struct {
	vol             *Volume
	resident        []byte
	nonResident     bool
	dataSize        uint64
	initializedSize uint64
	clusterSize     uint64
	spans           []runSpan

	pos      uint64
	posValid bool
}

// newResidentValue wraps a resident attribute's value bytes in the same
// read/seek surface a non-resident value exposes, per §4.4's closing
// paragraph.
func newResidentValue(data []byte) *Value {
	return &Value{
		resident:        data,
		dataSize:        uint64(len(data)),
		initializedSize: uint64(len(data)),
		posValid:        true,
	}
}

// newNonResidentValue flattens already-VCN-tiled segments into byte-ordered
// spans and validates every non-sparse run's LCN range against clusterCount.
func newNonResidentValue(vol *Volume, segments []Segment, dataSize, initializedSize uint64, clusterSize uint32, clusterCount uint64) (*Value, error) {
	v := &Value{
		vol:             vol,
		nonResident:     true,
		dataSize:        dataSize,
		initializedSize: initializedSize,
		clusterSize:     uint64(clusterSize),
		posValid:        true,
	}

	var byteCursor uint64
	for _, seg := range segments {
		for _, run := range seg.Runs {
			lengthBytes, err := checkedMulU64(run.LengthClusters, uint64(clusterSize))
			if err != nil {
				return nil, errInvalidDataRun(0, "run length overflows in bytes")
			}
			span := runSpan{startByte: byteCursor, lengthByte: lengthBytes, sparse: run.Sparse}
			if !run.Sparse {
				if clusterCount > 0 {
					runEnd, err := checkedAddU64(run.LCN, run.LengthClusters)
					if err != nil || run.LCN >= clusterCount || runEnd > clusterCount {
						return nil, errInvalidDataRun(0, "run LCN outside volume")
					}
				}
				span.lcn = run.LCN
			}
			v.spans = append(v.spans, span)
			next, err := checkedAddU64(byteCursor, lengthBytes)
			if err != nil {
				return nil, errInvalidDataRun(0, "cumulative run length overflows")
			}
			byteCursor = next
		}
	}

	return v, nil
}

// Size returns data_size, the logical length of the value.
func (v *Value) Size() uint64 { return v.dataSize }

// Position reports the current byte offset, or ok=false once the stream has
// been sought to or past data_size — the explicit null position §4.4 asks
// for, distinguishing "past the end" from any real in-range byte.
func (v *Value) Position() (offset uint64, ok bool) {
	return v.pos, v.posValid
}

// Seek implements io.Seeker semantics over [0, data_size], clamping a target
// at or beyond data_size per §4.4 and rejecting a net-negative result.
func (v *Value) Seek(offset int64, whence int) (int64, error) {
	var base uint64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = v.pos
	case io.SeekEnd:
		base = v.dataSize
	default:
		return 0, ErrSeekOutOfBounds
	}

	target := int64(base) + offset
	if target < 0 {
		return 0, ErrSeekOutOfBounds
	}

	if uint64(target) >= v.dataSize {
		v.pos = v.dataSize
		v.posValid = false
		return int64(v.pos), nil
	}

	v.pos = uint64(target)
	v.posValid = true
	return int64(v.pos), nil
}

// Read implements io.Reader. A zero-length read is a documented no-op and
// must not touch position state — forgetting this caused an infinite loop
// historically (§4.4).
func (v *Value) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if v.pos >= v.dataSize {
		return 0, io.EOF
	}

	total := 0
	for total < len(p) && v.pos < v.dataSize {
		n, err := v.readChunk(p[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
		v.pos += uint64(n)
	}
	if v.pos >= v.dataSize {
		v.posValid = false
	} else {
		v.posValid = true
	}
	return total, nil
}

// readChunk reads as many contiguous bytes as possible starting at v.pos
// without crossing a run boundary, the initialized/data_size boundary, or
// the caller's buffer length.
func (v *Value) readChunk(p []byte) (int, error) {
	limit := v.dataSize
	if v.pos >= v.initializedSize {
		// Zero-fill tail: everything from initialized_size to data_size
		// reads as zero regardless of what, if anything, backs it on disk.
		end := limit
		if uint64(len(p)) < end-v.pos {
			end = v.pos + uint64(len(p))
		}
		n := int(end - v.pos)
		for i := 0; i < n; i++ {
			p[i] = 0
		}
		return n, nil
	}

	if !v.nonResident {
		end := v.initializedSize
		if uint64(len(p)) < end-v.pos {
			end = v.pos + uint64(len(p))
		}
		n := copy(p[:end-v.pos], v.resident[v.pos:end])
		return n, nil
	}

	span, offsetInSpan, err := v.findSpan(v.pos)
	if err != nil {
		return 0, err
	}

	remaining := span.lengthByte - offsetInSpan
	n := uint64(len(p))
	if n > remaining {
		n = remaining
	}
	if v.pos+n > v.initializedSize {
		n = v.initializedSize - v.pos
	}
	if n == 0 {
		return 0, nil
	}

	if span.sparse {
		for i := uint64(0); i < n; i++ {
			p[i] = 0
		}
		return int(n), nil
	}

	absoluteByte, err := checkedMulU64(span.lcn, v.clusterSize)
	if err != nil {
		return 0, errInvalidDataRun(0, "lcn*cluster_size overflow")
	}
	absoluteByte, err = checkedAddU64(absoluteByte, offsetInSpan)
	if err != nil {
		return 0, errInvalidDataRun(0, "absolute byte offset overflow")
	}

	if err := readAt(v.vol.reader, p[:n], int64(absoluteByte)); err != nil {
		return 0, err
	}
	return int(n), nil
}

// findSpan locates the run span covering logical byte offset pos.
func (v *Value) findSpan(pos uint64) (runSpan, uint64, error) {
	i := sort.Search(len(v.spans), func(i int) bool {
		return v.spans[i].startByte+v.spans[i].lengthByte > pos
	})
	if i >= len(v.spans) {
		return runSpan{}, 0, errInvalidDataRun(int64(pos), "position not covered by any run")
	}
	span := v.spans[i]
	if pos < span.startByte {
		return runSpan{}, 0, errInvalidDataRun(int64(pos), "position falls in a gap between runs")
	}
	return span, pos - span.startByte, nil
}

package ntfs

import (
	"encoding/binary"
	"sort"
)

// AttributeType enumerates the attribute type codes this package recognizes,
// values matching their well-known on-disk codes.
type AttributeType uint32

const (
	AttrStandardInformation AttributeType = 0x10
	AttrAttributeList       AttributeType = 0x20
	AttrFileName            AttributeType = 0x30
	AttrObjectID            AttributeType = 0x40
	AttrVolumeName          AttributeType = 0x60
	AttrVolumeInformation   AttributeType = 0x70
	AttrData                AttributeType = 0x80
	AttrIndexRoot           AttributeType = 0x90
	AttrIndexAllocation     AttributeType = 0xA0
	AttrBitmap              AttributeType = 0xB0
	AttrReparsePoint        AttributeType = 0xC0
	AttrEAInformation       AttributeType = 0xD0
	AttrEA                  AttributeType = 0xE0
	AttrLoggedUtilityStream AttributeType = 0x100
	AttrEnd                 AttributeType = 0xFFFFFFFF
)

func (t AttributeType) String() string {
	switch t {
	case AttrStandardInformation:
		return "$STANDARD_INFORMATION"
	case AttrAttributeList:
		return "$ATTRIBUTE_LIST"
	case AttrFileName:
		return "$FILE_NAME"
	case AttrObjectID:
		return "$OBJECT_ID"
	case AttrVolumeName:
		return "$VOLUME_NAME"
	case AttrVolumeInformation:
		return "$VOLUME_INFORMATION"
	case AttrData:
		return "$DATA"
	case AttrIndexRoot:
		return "$INDEX_ROOT"
	case AttrIndexAllocation:
		return "$INDEX_ALLOCATION"
	case AttrBitmap:
		return "$BITMAP"
	case AttrReparsePoint:
		return "$REPARSE_POINT"
	case AttrEAInformation:
		return "$EA_INFORMATION"
	case AttrEA:
		return "$EA"
	case AttrLoggedUtilityStream:
		return "$LOGGED_UTILITY_STREAM"
	case AttrEnd:
		return "End"
	}
	return "unknown"
}

// Attribute flag bits.
const (
	AttrFlagCompressed uint16 = 0x0001
	AttrFlagEncrypted  uint16 = 0x4000
	AttrFlagSparse     uint16 = 0x8000
)

// Attribute is a fully-resolved logical attribute: a single resident value,
// or the concatenation of one or more non-resident run segments spliced
// across attribute-list entries per §4.2 step 3.
type Attribute struct {
	Type     AttributeType
	Name     []uint16
	Instance uint16
	Flags    uint16
	Resident bool
	Indexed  bool

	AllocatedSize   uint64
	UsedSize        uint64
	InitializedSize uint64

	residentData []byte
	segments     []Segment

	vol *Volume
}

func (a *Attribute) NameString() string { return utf16ToString(a.Name) }

func (a *Attribute) IsCompressed() bool { return a.Flags&AttrFlagCompressed != 0 }
func (a *Attribute) IsEncrypted() bool  { return a.Flags&AttrFlagEncrypted != 0 }
func (a *Attribute) IsSparse() bool     { return a.Flags&AttrFlagSparse != 0 }

// Value builds the byte-stream view over this attribute's data.
func (a *Attribute) Value() (*Value, error) {
	if a.Resident {
		return newResidentValue(a.residentData), nil
	}
	clusterCount := uint64(0)
	if a.vol.geometry.ClusterSize > 0 && a.vol.reader.Size() > 0 {
		clusterCount = uint64(a.vol.reader.Size()) / uint64(a.vol.geometry.ClusterSize)
	}
	return newNonResidentValue(a.vol, a.segments, a.UsedSize, a.InitializedSize, a.vol.geometry.ClusterSize, clusterCount)
}

// rawAttrHeader is the decoded, still record-relative form of one attribute
// header, before attribute-list connection.
type rawAttrHeader struct {
	typ         AttributeType
	name        []uint16
	instance    uint16
	flags       uint16
	resident    bool
	indexed     bool
	residentData []byte

	firstVCN        uint64
	lastVCN         uint64
	allocatedSize   uint64
	usedSize        uint64
	initializedSize uint64
	mappingPairs    []byte
}

const (
	minResidentAttrHeader    = 24
	minNonResidentAttrHeader = 64
)

// parseAttributeAt decodes one attribute header starting at offset within
// rec.Data(), validating bounds per §4.2 step 1. Returns the next offset and
// isEnd=true when the End sentinel is reached.
func parseAttributeAt(rec *Record, offset int) (*rawAttrHeader, int, bool, error) {
	buf := rec.Data()
	used := int(rec.UsedSize)
	if offset+4 > used {
		return nil, 0, false, errAttributeOutOfBounds(int64(offset), "header does not fit before used size")
	}

	typ := AttributeType(binary.LittleEndian.Uint32(buf[offset : offset+4]))
	if typ == AttrEnd {
		return nil, offset + 4, true, nil
	}

	if offset+16 > used {
		return nil, 0, false, errAttributeOutOfBounds(int64(offset), "header truncated")
	}
	totalLength := binary.LittleEndian.Uint32(buf[offset+4 : offset+8])
	if totalLength%8 != 0 || totalLength < minResidentAttrHeader {
		return nil, 0, false, errAttributeOutOfBounds(int64(offset), "total length not 8-byte aligned or too small")
	}
	end := offset + int(totalLength)
	if end > used || end < offset {
		return nil, 0, false, errAttributeOutOfBounds(int64(offset), "attribute extends past used size")
	}

	nonResidentFlag := buf[offset+8]
	nameLength := buf[offset+9]
	nameOffset := binary.LittleEndian.Uint16(buf[offset+10 : offset+12])
	flags := binary.LittleEndian.Uint16(buf[offset+12 : offset+14])
	instance := binary.LittleEndian.Uint16(buf[offset+14 : offset+16])

	var name []uint16
	if nameLength > 0 {
		nameStart := offset + int(nameOffset)
		nameEnd := nameStart + int(nameLength)*2
		if nameStart < offset || nameEnd > end {
			return nil, 0, false, errAttributeOutOfBounds(int64(offset), "name runs outside attribute")
		}
		name = decodeUTF16LE(buf[nameStart:nameEnd])
	}

	h := &rawAttrHeader{typ: typ, name: name, instance: instance, flags: flags}

	if nonResidentFlag == 0 {
		if offset+16+8 > end {
			return nil, 0, false, errAttributeOutOfBounds(int64(offset), "resident header truncated")
		}
		valueLength := binary.LittleEndian.Uint32(buf[offset+16 : offset+20])
		valueOffset := binary.LittleEndian.Uint16(buf[offset+20 : offset+22])
		indexedFlag := buf[offset+22]

		valStart := offset + int(valueOffset)
		valEnd := valStart + int(valueLength)
		if valStart < offset || valEnd > end {
			return nil, 0, false, errAttributeOutOfBounds(int64(offset), "resident value runs outside attribute")
		}

		h.resident = true
		h.indexed = indexedFlag != 0
		h.residentData = append([]byte(nil), buf[valStart:valEnd]...)
		h.usedSize = uint64(valueLength)
		h.allocatedSize = uint64(valueLength)
		h.initializedSize = uint64(valueLength)
	} else {
		if offset+minNonResidentAttrHeader > end {
			return nil, 0, false, errAttributeOutOfBounds(int64(offset), "non-resident header truncated")
		}
		firstVCN := binary.LittleEndian.Uint64(buf[offset+16 : offset+24])
		lastVCN := binary.LittleEndian.Uint64(buf[offset+24 : offset+32])
		mappingPairsOffset := binary.LittleEndian.Uint16(buf[offset+32 : offset+34])
		compressionUnit := binary.LittleEndian.Uint16(buf[offset+34 : offset+36])
		allocatedSize := binary.LittleEndian.Uint64(buf[offset+40 : offset+48])
		usedSize := binary.LittleEndian.Uint64(buf[offset+48 : offset+56])
		initializedSize := binary.LittleEndian.Uint64(buf[offset+56 : offset+64])

		if firstVCN > lastVCN && !(firstVCN == 0 && lastVCN == 0) {
			return nil, 0, false, errAttributeOutOfBounds(int64(offset), "first VCN greater than last VCN")
		}
		if compressionUnit != 0 {
			return nil, 0, false, errUnsupported(KindUnsupportedCompression, "non-zero compression unit")
		}

		mpStart := offset + int(mappingPairsOffset)
		if mpStart < offset || mpStart > end {
			return nil, 0, false, errAttributeOutOfBounds(int64(offset), "mapping pairs offset outside attribute")
		}

		h.firstVCN = firstVCN
		h.lastVCN = lastVCN
		h.allocatedSize = allocatedSize
		h.usedSize = usedSize
		h.initializedSize = initializedSize
		h.mappingPairs = append([]byte(nil), buf[mpStart:end]...)
	}

	return h, end, false, nil
}

// scanRecordAttributes walks one record's attribute list directly (no
// attribute-list indirection) and returns every header plus, if present, the
// raw $ATTRIBUTE_LIST header for the caller to decide whether to switch mode.
func scanRecordAttributes(rec *Record) ([]*rawAttrHeader, *rawAttrHeader, error) {
	var headers []*rawAttrHeader
	var attrList *rawAttrHeader

	offset := int(rec.FirstAttributeOffset)
	for {
		h, next, isEnd, err := parseAttributeAt(rec, offset)
		if err != nil {
			return nil, nil, err
		}
		if isEnd {
			break
		}
		if h.typ == AttrAttributeList {
			attrList = h
		}
		headers = append(headers, h)
		offset = next
		if offset <= 0 || offset > int(rec.UsedSize) {
			break
		}
	}
	return headers, attrList, nil
}

// attributeListEntry is one decoded $ATTRIBUTE_LIST entry, per the on-disk
// ATTRIBUTE_LIST_ENTRY layout: type(4) length(2) name_length(1) name_offset(1)
// starting_vcn(8) file_reference(8) instance(2) name(name_length*2).
type attributeListEntry struct {
	typ       AttributeType
	lowestVCN uint64
	reference FileReference
	instance  uint16
	name      []uint16
}

func parseAttributeListEntries(data []byte) ([]attributeListEntry, error) {
	var entries []attributeListEntry
	pos := 0
	for pos < len(data) {
		if pos+8 > len(data) {
			return nil, errInvalidAttributeList("entry header truncated", int64(pos))
		}
		typ := AttributeType(binary.LittleEndian.Uint32(data[pos : pos+4]))
		length := binary.LittleEndian.Uint16(data[pos+4 : pos+6])
		nameLength := data[pos+6]
		nameOffset := data[pos+7]
		if length < 26 || pos+int(length) > len(data) {
			return nil, errInvalidAttributeList("entry length invalid", int64(pos))
		}
		if pos+26 > len(data) {
			return nil, errInvalidAttributeList("entry fixed part truncated", int64(pos))
		}
		lowestVCN := binary.LittleEndian.Uint64(data[pos+8 : pos+16])
		reference := FileReference(binary.LittleEndian.Uint64(data[pos+16 : pos+24]))
		instance := binary.LittleEndian.Uint16(data[pos+24 : pos+26])

		var name []uint16
		if nameLength > 0 {
			nameStart := pos + int(nameOffset)
			nameEnd := nameStart + int(nameLength)*2
			if nameStart < pos || nameEnd > pos+int(length) {
				return nil, errInvalidAttributeList("entry name outside entry", int64(pos))
			}
			name = decodeUTF16LE(data[nameStart:nameEnd])
		}

		entries = append(entries, attributeListEntry{
			typ:       typ,
			lowestVCN: lowestVCN,
			reference: reference,
			instance:  instance,
			name:      name,
		})
		pos += int(length)
	}
	return entries, nil
}

// AttributeWalker exposes the logical, attribute-list-resolved sequence of
// attributes belonging to one file, in disk order, per §4.2.
type AttributeWalker struct {
	attrs []*Attribute
	idx   int
}

// Reset rewinds the walker to the beginning of its sequence.
func (w *AttributeWalker) Reset() { w.idx = 0 }

// Next returns the next attribute, or (nil, nil) once the sequence is
// exhausted.
func (w *AttributeWalker) Next() (*Attribute, error) {
	if w.idx >= len(w.attrs) {
		return nil, nil
	}
	a := w.attrs[w.idx]
	w.idx++
	return a, nil
}

// All returns a copy of the whole sequence, regardless of where Next has
// got to, without disturbing Reset/Next semantics for callers that prefer a
// slice.
func (w *AttributeWalker) All() []*Attribute {
	return append([]*Attribute(nil), w.attrs...)
}

type visitedKey struct {
	record   uint64
	instance uint16
}

// newAttributeWalker implements the full §4.2 protocol: direct scan, switch
// to attribute-list mode when one is present, connect multi-segment
// non-resident attributes, detect cycles and duplicate/sequence errors.
func newAttributeWalker(vol *Volume, baseRef FileReference, baseRecord *Record) (*AttributeWalker, error) {
	directHeaders, attrListHeader, err := scanRecordAttributes(baseRecord)
	if err != nil {
		return nil, err
	}

	if attrListHeader == nil {
		attrs := make([]*Attribute, 0, len(directHeaders))
		for _, h := range directHeaders {
			a, err := finalizeDirectAttribute(vol, h)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, a)
		}
		return &AttributeWalker{attrs: attrs}, nil
	}

	listAttr, err := finalizeDirectAttribute(vol, attrListHeader)
	if err != nil {
		return nil, err
	}
	listValue, err := listAttr.Value()
	if err != nil {
		return nil, err
	}
	listBytes, err := readAllValue(listValue)
	if err != nil {
		return nil, err
	}
	entries, err := parseAttributeListEntries(listBytes)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		typ  AttributeType
		name string
	}
	order := make([]groupKey, 0)
	groups := make(map[groupKey][]attributeListEntry)
	for _, e := range entries {
		k := groupKey{typ: e.typ, name: utf16ToString(e.name)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	visited := make(map[visitedKey]bool)
	recordCache := make(map[uint64]*Record)
	recordCache[baseRef.RecordNumber()] = baseRecord

	loadRecord := func(ref FileReference) (*Record, error) {
		if rec, ok := recordCache[ref.RecordNumber()]; ok {
			return rec, nil
		}
		rec, err := vol.loadFileRecord(ref)
		if err != nil {
			return nil, err
		}
		recordCache[ref.RecordNumber()] = rec
		return rec, nil
	}

	attrs := make([]*Attribute, 0, len(order))
	for _, k := range order {
		es := groups[k]

		// Duplicate entries at identical (type, name, lowest_vcn): keep the
		// one with the lowest record number, stable otherwise.
		sort.SliceStable(es, func(i, j int) bool {
			if es[i].lowestVCN != es[j].lowestVCN {
				return es[i].lowestVCN < es[j].lowestVCN
			}
			return es[i].reference.RecordNumber() < es[j].reference.RecordNumber()
		})
		dedup := es[:0:0]
		for i, e := range es {
			if i > 0 && e.lowestVCN == es[i-1].lowestVCN {
				continue
			}
			dedup = append(dedup, e)
		}

		var segments []Segment
		var resolved *rawAttrHeader
		for _, e := range dedup {
			vk := visitedKey{record: e.reference.RecordNumber(), instance: e.instance}
			if visited[vk] {
				return nil, &Error{Kind: KindAttributeListCycle, HasRef: true, Reference: e.reference}
			}
			visited[vk] = true

			rec, err := loadRecord(e.reference)
			if err != nil {
				return nil, err
			}
			if rec.SequenceNumber != e.reference.SequenceNumber() {
				return nil, errSequenceMismatch(e.reference.SequenceNumber(), rec.SequenceNumber, e.reference)
			}

			h, err := findAttributeByInstance(rec, e.typ, e.instance)
			if err != nil {
				return nil, err
			}

			if h.resident {
				resolved = h
				break
			}
			runs, err := decodeDataRuns(h.mappingPairs, 0)
			if err != nil {
				return nil, err
			}
			segments = append(segments, Segment{FirstVCN: h.firstVCN, Runs: runs})
			resolved = h
		}

		if resolved == nil {
			continue
		}

		if resolved.resident {
			a, err := finalizeDirectAttribute(vol, resolved)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, a)
			continue
		}

		if err := validateSegmentTiling(segments); err != nil {
			return nil, err
		}

		attrs = append(attrs, &Attribute{
			Type:            resolved.typ,
			Name:            resolved.name,
			Instance:        resolved.instance,
			Flags:           resolved.flags,
			Resident:        false,
			AllocatedSize:   resolved.allocatedSize,
			UsedSize:        resolved.usedSize,
			InitializedSize: resolved.initializedSize,
			segments:        segments,
			vol:             vol,
		})
	}

	return &AttributeWalker{attrs: attrs}, nil
}

func findAttributeByInstance(rec *Record, typ AttributeType, instance uint16) (*rawAttrHeader, error) {
	headers, _, err := scanRecordAttributes(rec)
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		if h.typ == typ && h.instance == instance {
			return h, nil
		}
	}
	return nil, &Error{Kind: KindNotFound, Reason: "attribute list entry not found in referenced record"}
}

func finalizeDirectAttribute(vol *Volume, h *rawAttrHeader) (*Attribute, error) {
	a := &Attribute{
		Type:            h.typ,
		Name:            h.name,
		Instance:        h.instance,
		Flags:           h.flags,
		Resident:        h.resident,
		Indexed:         h.indexed,
		AllocatedSize:   h.allocatedSize,
		UsedSize:        h.usedSize,
		InitializedSize: h.initializedSize,
		vol:             vol,
	}
	if h.resident {
		a.residentData = h.residentData
		return a, nil
	}
	runs, err := decodeDataRuns(h.mappingPairs, 0)
	if err != nil {
		return nil, err
	}
	a.segments = []Segment{{FirstVCN: h.firstVCN, Runs: runs}}
	return a, nil
}

// validateSegmentTiling checks §4.2 step 3's invariant: segments' VCN ranges
// must tile the full range without gaps or overlaps.
func validateSegmentTiling(segments []Segment) error {
	sort.Slice(segments, func(i, j int) bool { return segments[i].FirstVCN < segments[j].FirstVCN })
	var nextVCN uint64
	for i, seg := range segments {
		if i == 0 {
			nextVCN = seg.FirstVCN
		}
		if seg.FirstVCN != nextVCN {
			return errInvalidAttributeList("attribute-list segments do not tile VCN range", 0)
		}
		var clusters uint64
		for _, r := range seg.Runs {
			clusters += r.LengthClusters
		}
		nextVCN = seg.FirstVCN + clusters
	}
	return nil
}

// readAllValue drains a Value fully into memory; used for $ATTRIBUTE_LIST
// (bounded by a file's own attribute count, never unbounded) per §5's "no
// unbounded allocations beyond per-record buffers" rule.
func readAllValue(v *Value) ([]byte, error) {
	buf := make([]byte, v.Size())
	off := 0
	for off < len(buf) {
		n, err := v.Read(buf[off:])
		if n > 0 {
			off += n
		}
		if err != nil {
			if off == len(buf) {
				break
			}
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return buf[:off], nil
}

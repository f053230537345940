package ntfs

import (
	"encoding/binary"
	"io"
	"testing"
)

func align8(n int) int { return (n + 7) &^ 7 }

// encodeResidentAttr builds one resident attribute header (no name) per the
// layout parseAttributeAt expects: a 24-byte fixed header followed
// immediately by the value bytes.
func encodeResidentAttr(typ AttributeType, instance uint16, data []byte) []byte {
	const headerLen = 24
	totalLen := align8(headerLen + len(data))
	buf := make([]byte, totalLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(typ))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen))
	buf[8] = 0 // resident
	binary.LittleEndian.PutUint16(buf[14:16], instance)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(data)))
	binary.LittleEndian.PutUint16(buf[20:22], uint16(headerLen))
	copy(buf[headerLen:headerLen+len(data)], data)
	return buf
}

// encodeNonResidentAttr builds one non-resident attribute header (no name)
// with mappingPairs placed right after the fixed 64-byte header.
func encodeNonResidentAttr(typ AttributeType, instance uint16, firstVCN, lastVCN uint64, mappingPairs []byte, allocatedSize, usedSize, initializedSize uint64) []byte {
	const headerLen = 64
	totalLen := align8(headerLen + len(mappingPairs))
	buf := make([]byte, totalLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(typ))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen))
	buf[8] = 1 // non-resident
	binary.LittleEndian.PutUint16(buf[14:16], instance)
	binary.LittleEndian.PutUint64(buf[16:24], firstVCN)
	binary.LittleEndian.PutUint64(buf[24:32], lastVCN)
	binary.LittleEndian.PutUint16(buf[32:34], uint16(headerLen))
	binary.LittleEndian.PutUint64(buf[40:48], allocatedSize)
	binary.LittleEndian.PutUint64(buf[48:56], usedSize)
	binary.LittleEndian.PutUint64(buf[56:64], initializedSize)
	copy(buf[headerLen:], mappingPairs)
	return buf
}

var endMarker = []byte{0xFF, 0xFF, 0xFF, 0xFF}

func buildRecord(attrs ...[]byte) *Record {
	var data []byte
	for _, a := range attrs {
		data = append(data, a...)
	}
	data = append(data, endMarker...)
	return &Record{FirstAttributeOffset: 0, UsedSize: uint32(len(data)), data: data}
}

func TestParseAttributeAt_ResidentHeader(t *testing.T) {
	rec := buildRecord(encodeResidentAttr(AttrStandardInformation, 5, []byte("hello")))

	h, next, isEnd, err := parseAttributeAt(rec, 0)
	if err != nil {
		t.Fatalf("parseAttributeAt err: %v", err)
	}
	if isEnd {
		t.Fatal("isEnd=true want false")
	}
	if !h.resident || h.typ != AttrStandardInformation || h.instance != 5 {
		t.Fatalf("h=%+v", h)
	}
	if string(h.residentData) != "hello" {
		t.Fatalf("residentData=%q want %q", h.residentData, "hello")
	}

	_, _, isEnd, err = parseAttributeAt(rec, next)
	if err != nil {
		t.Fatalf("parseAttributeAt end marker err: %v", err)
	}
	if !isEnd {
		t.Fatal("expected end marker at next offset")
	}
}

func TestParseAttributeAt_NonResidentHeader(t *testing.T) {
	mp := []byte{0x31, 0x10, 0x64, 0x00, 0x00, 0x00} // length=16, delta=+100
	rec := buildRecord(encodeNonResidentAttr(AttrData, 1, 0, 15, mp, 16*512, 16*512, 16*512))

	h, _, isEnd, err := parseAttributeAt(rec, 0)
	if err != nil {
		t.Fatalf("parseAttributeAt err: %v", err)
	}
	if isEnd || h.resident {
		t.Fatalf("h=%+v want non-resident, not end", h)
	}
	if h.firstVCN != 0 || h.lastVCN != 15 {
		t.Fatalf("firstVCN=%d lastVCN=%d want 0,15", h.firstVCN, h.lastVCN)
	}

	runs, err := decodeDataRuns(h.mappingPairs, 0)
	if err != nil {
		t.Fatalf("decodeDataRuns err: %v", err)
	}
	if len(runs) != 1 || runs[0].LengthClusters != 16 || runs[0].LCN != 100 {
		t.Fatalf("runs=%+v want single {16 100 false}", runs)
	}
}

func TestParseAttributeAt_RejectsHeaderPastUsedSize(t *testing.T) {
	rec := buildRecord(encodeResidentAttr(AttrStandardInformation, 0, []byte("x")))
	rec.UsedSize = 8 // truncate so the header can't fit
	if _, _, _, err := parseAttributeAt(rec, 0); err == nil {
		t.Fatal("expected error for header exceeding used size, got nil")
	}
}

func TestScanRecordAttributes_CollectsHeadersAndFindsAttributeList(t *testing.T) {
	rec := buildRecord(
		encodeResidentAttr(AttrStandardInformation, 0, []byte("std-info")),
		encodeResidentAttr(AttrAttributeList, 1, []byte("list-bytes")),
	)
	headers, attrList, err := scanRecordAttributes(rec)
	if err != nil {
		t.Fatalf("scanRecordAttributes err: %v", err)
	}
	if len(headers) != 2 {
		t.Fatalf("len(headers)=%d want 2", len(headers))
	}
	if attrList == nil || attrList.typ != AttrAttributeList {
		t.Fatalf("attrList=%+v want $ATTRIBUTE_LIST header", attrList)
	}
}

func encodeAttrListEntry(typ AttributeType, lowestVCN uint64, ref FileReference, instance uint16, name []uint16) []byte {
	const fixedLen = 26
	length := fixedLen + len(name)*2
	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(typ))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(length))
	buf[6] = byte(len(name))
	buf[7] = fixedLen
	binary.LittleEndian.PutUint64(buf[8:16], lowestVCN)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(ref))
	binary.LittleEndian.PutUint16(buf[24:26], instance)
	for i, u := range name {
		binary.LittleEndian.PutUint16(buf[fixedLen+i*2:fixedLen+i*2+2], u)
	}
	return buf
}

func TestParseAttributeListEntries_DecodesEntries(t *testing.T) {
	data := append(
		encodeAttrListEntry(AttrData, 0, NewFileReference(5, 1), 2, stringToUTF16("stream")),
		encodeAttrListEntry(AttrData, 10, NewFileReference(5, 1), 3, stringToUTF16("stream"))...,
	)
	entries, err := parseAttributeListEntries(data)
	if err != nil {
		t.Fatalf("parseAttributeListEntries err: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries)=%d want 2", len(entries))
	}
	if entries[0].lowestVCN != 0 || entries[1].lowestVCN != 10 {
		t.Fatalf("lowestVCN sequence = %d, %d want 0, 10", entries[0].lowestVCN, entries[1].lowestVCN)
	}
	if utf16ToString(entries[0].name) != "stream" {
		t.Fatalf("name=%q want %q", utf16ToString(entries[0].name), "stream")
	}
}

func TestValidateSegmentTiling_AcceptsContiguousRanges(t *testing.T) {
	segments := []Segment{
		{FirstVCN: 10, Runs: []DataRun{{LengthClusters: 10, LCN: 100}}},
		{FirstVCN: 0, Runs: []DataRun{{LengthClusters: 10, LCN: 0}}},
	}
	if err := validateSegmentTiling(segments); err != nil {
		t.Fatalf("validateSegmentTiling err: %v", err)
	}
}

func TestValidateSegmentTiling_RejectsGap(t *testing.T) {
	segments := []Segment{
		{FirstVCN: 0, Runs: []DataRun{{LengthClusters: 10, LCN: 0}}},
		{FirstVCN: 15, Runs: []DataRun{{LengthClusters: 10, LCN: 100}}},
	}
	if err := validateSegmentTiling(segments); err == nil {
		t.Fatal("expected error for non-tiling segments, got nil")
	}
}

func TestNewAttributeWalker_DirectAttributesNoAttributeList(t *testing.T) {
	rec := buildRecord(
		encodeResidentAttr(AttrStandardInformation, 0, []byte("std")),
		encodeResidentAttr(AttrFileName, 1, []byte("name-bytes")),
	)
	vol := &Volume{}
	w, err := newAttributeWalker(vol, NewFileReference(5, 1), rec)
	if err != nil {
		t.Fatalf("newAttributeWalker err: %v", err)
	}
	all := w.All()
	if len(all) != 2 {
		t.Fatalf("len(all)=%d want 2", len(all))
	}
	if all[0].Type != AttrStandardInformation || all[1].Type != AttrFileName {
		t.Fatalf("types = %v, %v", all[0].Type, all[1].Type)
	}

	val, err := all[0].Value()
	if err != nil {
		t.Fatalf("Value err: %v", err)
	}
	buf := make([]byte, 3)
	if _, err := io.ReadFull(val, buf); err != nil {
		t.Fatalf("read err: %v", err)
	}
	if string(buf) != "std" {
		t.Fatalf("read %q want %q", buf, "std")
	}
}

func TestAttributeWalker_ResetAllowsRepeatedIteration(t *testing.T) {
	rec := buildRecord(encodeResidentAttr(AttrStandardInformation, 0, []byte("x")))
	w, err := newAttributeWalker(&Volume{}, NewFileReference(5, 1), rec)
	if err != nil {
		t.Fatalf("newAttributeWalker err: %v", err)
	}
	first, _ := w.Next()
	if first == nil {
		t.Fatal("first Next() = nil want an attribute")
	}
	if a, _ := w.Next(); a != nil {
		t.Fatal("expected exhausted walker after one attribute")
	}
	w.Reset()
	if a, _ := w.Next(); a == nil {
		t.Fatal("expected walker to re-yield the attribute after Reset")
	}
}

package ntfs

import (
	"encoding/binary"
	"io"
)

// CollationRule identifies the ordering function an index uses, per §4.5.
type CollationRule uint32

const (
	CollationBinary        CollationRule = 0x00
	CollationFilename      CollationRule = 0x01
	CollationUnicodeString CollationRule = 0x02
	CollationULong         CollationRule = 0x10
	CollationSID           CollationRule = 0x11
	CollationSecurityHash  CollationRule = 0x12
	CollationULongs        CollationRule = 0x13
	CollationGUID          CollationRule = 0x14
)

// Index entry flag bits, per §6's "Index entry" layout.
const (
	indexEntryHasSubnode uint32 = 0x01
	indexEntryIsLast     uint32 = 0x02
)

// IndexEntry is one decoded B+ tree entry: an optional key, optional
// reference/data header, and an optional subnode pointer, per §3's Index
// entity.
type IndexEntry struct {
	Reference  FileReference
	Key        []byte
	Data       []byte
	HasSubnode bool
	IsLast     bool
	SubnodeVCN uint64
}

// indexNode is one decoded level of the tree: either the root's inline
// entries or one fixed-up $INDEX_ALLOCATION record's entries.
type indexNode struct {
	entries []IndexEntry
}

// IndexWalker traverses a typed on-disk B+ tree rooted in $INDEX_ROOT with
// overflow in $INDEX_ALLOCATION, per §4.5. It is parameterized by the small
// "capability set" design note in §9: a collation rule and (for filename
// indexes) the volume's $UpCase table, rather than by subclassing.
type IndexWalker struct {
	vol             *Volume
	collation       CollationRule
	indexRecordSize uint32
	root            indexNode
	allocation      *Value // nil when the whole tree fits in $INDEX_ROOT

	// iteration state: a path stack of (node, cursor)
	stack []indexFrame
	began bool
}

type indexFrame struct {
	node         indexNode
	cursor       int
	childVisited bool
}

const indexRootHeaderSize = 0x10
const indexNodeHeaderSize = 0x10

// newIndexWalker locates name's $INDEX_ROOT (and optional $INDEX_ALLOCATION)
// among w's attributes and decodes the root node.
func newIndexWalker(vol *Volume, w *AttributeWalker, name string) (*IndexWalker, error) {
	var rootAttr, allocAttr *Attribute
	target := stringToUTF16(name)
	for _, a := range w.All() {
		if !nameEquals(vol, a.Name, target) {
			continue
		}
		switch a.Type {
		case AttrIndexRoot:
			rootAttr = a
		case AttrIndexAllocation:
			allocAttr = a
		}
	}
	if rootAttr == nil {
		return nil, &Error{Kind: KindNotFound, Reason: "index root not found: " + name}
	}

	rootVal, err := rootAttr.Value()
	if err != nil {
		return nil, err
	}
	rootBytes, err := readAllValue(rootVal)
	if err != nil {
		return nil, err
	}
	if len(rootBytes) < indexRootHeaderSize {
		return nil, errInvalidAttributeList("$INDEX_ROOT truncated", 0)
	}

	collation := CollationRule(binary.LittleEndian.Uint32(rootBytes[0x04:0x08]))
	indexRecordSize := binary.LittleEndian.Uint32(rootBytes[0x08:0x0C])

	entries, err := parseIndexNodeEntries(rootBytes, indexRootHeaderSize)
	if err != nil {
		return nil, err
	}

	iw := &IndexWalker{
		vol:             vol,
		collation:       collation,
		indexRecordSize: indexRecordSize,
		root:            indexNode{entries: entries},
	}

	if allocAttr != nil {
		allocVal, err := allocAttr.Value()
		if err != nil {
			return nil, err
		}
		iw.allocation = allocVal
	}

	return iw, nil
}

func nameEquals(vol *Volume, a, b []uint16) bool {
	if vol.upcase != nil {
		return vol.upcase.EqualFold(a, b)
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// parseIndexNodeEntries decodes the INDEX_HEADER at headerStart and the
// entries it describes, per §6's index-entry layout: file reference (8),
// entry length (2), key length (2), flags (4), key bytes, optional 8-byte
// subnode VCN.
func parseIndexNodeEntries(buf []byte, headerStart int) ([]IndexEntry, error) {
	if headerStart+indexNodeHeaderSize > len(buf) {
		return nil, errInvalidAttributeList("index header truncated", int64(headerStart))
	}
	entriesOffset := binary.LittleEndian.Uint32(buf[headerStart : headerStart+4])
	totalSize := binary.LittleEndian.Uint32(buf[headerStart+4 : headerStart+8])

	start := headerStart + int(entriesOffset)
	end := headerStart + int(totalSize)
	if start < headerStart || end > len(buf) || start > end {
		return nil, errInvalidAttributeList("index entries run outside node", int64(headerStart))
	}

	var entries []IndexEntry
	pos := start
	for pos < end {
		if pos+16 > end {
			return nil, errInvalidAttributeList("index entry header truncated", int64(pos))
		}
		refOrData := binary.LittleEndian.Uint64(buf[pos : pos+8])
		entryLength := binary.LittleEndian.Uint16(buf[pos+8 : pos+10])
		keyLength := binary.LittleEndian.Uint16(buf[pos+10 : pos+12])
		flags := binary.LittleEndian.Uint32(buf[pos+12 : pos+16])

		if entryLength < 16 || pos+int(entryLength) > end {
			return nil, errInvalidAttributeList("index entry length invalid", int64(pos))
		}

		entry := IndexEntry{
			Reference:  FileReference(refOrData),
			HasSubnode: flags&indexEntryHasSubnode != 0,
			IsLast:     flags&indexEntryIsLast != 0,
		}

		keyStart := pos + 16
		keyEnd := keyStart + int(keyLength)
		if !entry.IsLast {
			if keyEnd > pos+int(entryLength) {
				return nil, errInvalidAttributeList("index entry key runs past entry", int64(pos))
			}
			entry.Key = append([]byte(nil), buf[keyStart:keyEnd]...)
		}

		if entry.HasSubnode {
			vcnStart := pos + int(entryLength) - 8
			if vcnStart < keyEnd {
				return nil, errInvalidAttributeList("index entry missing subnode VCN", int64(pos))
			}
			entry.SubnodeVCN = binary.LittleEndian.Uint64(buf[vcnStart : vcnStart+8])
		}

		entries = append(entries, entry)
		pos += int(entryLength)
	}

	return entries, nil
}

// childNode reads the $INDEX_ALLOCATION block at the given subnode VCN. The
// VCN is in index-record units: byte offset = vcn * indexRecordSize within
// the $INDEX_ALLOCATION logical stream. Subnode VCN 0 is a valid pointer.
func (w *IndexWalker) childNode(vcn uint64) (indexNode, error) {
	if w.allocation == nil {
		return indexNode{}, errInvalidAttributeList("subnode reference with no $INDEX_ALLOCATION", 0)
	}
	byteOffset, err := checkedMulU64(vcn, uint64(w.indexRecordSize))
	if err != nil {
		return indexNode{}, errInvalidAttributeList("subnode VCN overflows", 0)
	}
	if byteOffset+uint64(w.indexRecordSize) > w.allocation.Size() {
		return indexNode{}, errInvalidAttributeList("subnode VCN outside $INDEX_ALLOCATION", int64(byteOffset))
	}

	buf := make([]byte, w.indexRecordSize)
	if _, err := w.allocation.Seek(int64(byteOffset), io.SeekStart); err != nil {
		return indexNode{}, err
	}
	if _, err := readFullValue(w.allocation, buf); err != nil {
		return indexNode{}, err
	}

	if _, err := verifyAndFixup(buf, w.indexRecordSize, indexRecordSignature, int64(byteOffset), w.vol.geometry.BytesPerSector); err != nil {
		return indexNode{}, err
	}

	entries, err := parseIndexNodeEntries(buf, 0x18)
	if err != nil {
		return indexNode{}, err
	}
	return indexNode{entries: entries}, nil
}

// readFullValue reads exactly len(p) bytes from v, the Value equivalent of
// io.ReadFull.
func readFullValue(v *Value, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := v.Read(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, errInvalidDataRun(0, "short read materializing index node")
		}
	}
	return total, nil
}

// Reset rewinds in-order iteration to the beginning.
func (w *IndexWalker) Reset() {
	w.stack = nil
	w.began = false
}

// Next implements §4.5's in-order iteration: a path stack of (node, cursor)
// descends into a subnode (smaller keys) before emitting its entry's own
// key, and pops once a node's cursor is exhausted — visiting each key
// exactly once in collation order.
func (w *IndexWalker) Next() (*IndexEntry, error) {
	if !w.began {
		w.stack = []indexFrame{{node: w.root}}
		w.began = true
	}

	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		if top.cursor >= len(top.node.entries) {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		entry := top.node.entries[top.cursor]

		if entry.HasSubnode && !top.childVisited {
			child, err := w.childNode(entry.SubnodeVCN)
			if err != nil {
				return nil, err
			}
			top.childVisited = true
			w.stack = append(w.stack, indexFrame{node: child})
			continue
		}

		top.cursor++
		top.childVisited = false

		if !entry.IsLast {
			e := entry
			return &e, nil
		}
		// keyless sentinel: its subnode, if any, was already drained above.
	}
	return nil, nil
}

// Lookup implements §4.5's keyed lookup: binary-descend using the declared
// collation rule, returning the matching entry or NotFound. Under filename
// collation a key that differs from the target only in case matches.
func (w *IndexWalker) Lookup(key []byte) (*IndexEntry, error) {
	node := w.root
	for {
		found, idx, err := w.searchNode(node, key)
		if err != nil {
			return nil, err
		}
		if found {
			e := node.entries[idx]
			return &e, nil
		}
		if idx >= len(node.entries) {
			return nil, ErrNotFound
		}
		entry := node.entries[idx]
		if !entry.HasSubnode {
			return nil, ErrNotFound
		}
		child, err := w.childNode(entry.SubnodeVCN)
		if err != nil {
			return nil, err
		}
		node = child
	}
}

// searchNode finds the first entry in node whose key is >= target. found is
// true when that entry's key equals target exactly or, under filename
// collation, when an entry's key equals target after $UpCase folding.
func (w *IndexWalker) searchNode(node indexNode, target []byte) (found bool, idx int, err error) {
	for i, e := range node.entries {
		if e.IsLast {
			return false, i, nil
		}
		cmp, cerr := w.compareKeys(e.Key, target)
		if cerr != nil {
			return false, 0, cerr
		}
		if cmp == 0 {
			return true, i, nil
		}
		if w.collation == CollationFilename && w.vol.upcase.EqualFold(decodeUTF16LE(e.Key), decodeUTF16LE(target)) {
			return true, i, nil
		}
		if cmp > 0 {
			return false, i, nil
		}
	}
	return false, len(node.entries), nil
}

// compareKeys dispatches on the index's collation rule, per §4.5.
func (w *IndexWalker) compareKeys(a, b []byte) (int, error) {
	switch w.collation {
	case CollationFilename:
		if w.vol.upcase == nil {
			return 0, errUnsupported(KindUnsupportedCollationRule, "filename collation requires a loaded $UpCase table")
		}
		ua, ub := decodeUTF16LE(a), decodeUTF16LE(b)
		return w.vol.upcase.CompareFold(ua, ub), nil
	case CollationULong:
		return compareULong(a, b), nil
	case CollationSecurityHash:
		return compareSecurityHash(a, b), nil
	case CollationSID, CollationGUID, CollationBinary, CollationUnicodeString, CollationULongs:
		return compareBytesLexical(a, b), nil
	default:
		return 0, &Error{Kind: KindUnsupportedCollationRule, Reason: "unrecognized collation rule"}
	}
}

func compareULong(a, b []byte) int {
	av, bv := decodeUnsignedLE(a), decodeUnsignedLE(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

// compareSecurityHash compares the 4-byte hash first, then the 4-byte
// security ID, per the on-disk SECURITY_HASH_KEY layout.
func compareSecurityHash(a, b []byte) int {
	if len(a) < 8 || len(b) < 8 {
		return compareBytesLexical(a, b)
	}
	hashA := binary.LittleEndian.Uint32(a[0:4])
	hashB := binary.LittleEndian.Uint32(b[0:4])
	if hashA != hashB {
		if hashA < hashB {
			return -1
		}
		return 1
	}
	idA := binary.LittleEndian.Uint32(a[4:8])
	idB := binary.LittleEndian.Uint32(b[4:8])
	switch {
	case idA < idB:
		return -1
	case idA > idB:
		return 1
	default:
		return 0
	}
}

func compareBytesLexical(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

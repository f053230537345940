package ntfs

import "encoding/binary"

// UpcaseTableEntries is the fixed size of the $UpCase table: one uppercase
// mapping per 16-bit code unit.
const UpcaseTableEntries = 65536

// UpcaseTable is the in-memory case-folding table loaded from $UpCase's
// unnamed $DATA stream. Read-only and safely shareable once built.
type UpcaseTable struct {
	entries [UpcaseTableEntries]uint16
}

// newUpcaseTable decodes a raw little-endian uint16 table. Short input is
// padded with identity mappings so a truncated $UpCase stream degrades to
// "leave unmapped code units alone" instead of panicking on index access.
func newUpcaseTable(raw []byte) *UpcaseTable {
	t := &UpcaseTable{}
	n := len(raw) / 2
	if n > UpcaseTableEntries {
		n = UpcaseTableEntries
	}
	for i := 0; i < n; i++ {
		t.entries[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
	}
	for i := n; i < UpcaseTableEntries; i++ {
		t.entries[i] = uint16(i)
	}
	return t
}

// Upper returns the uppercase form of a single UTF-16 code unit.
func (t *UpcaseTable) Upper(codeUnit uint16) uint16 {
	return t.entries[codeUnit]
}

// UpperString uppercases a UTF-16LE code-unit slice in place on a copy,
// leaving the input untouched.
func (t *UpcaseTable) UpperString(s []uint16) []uint16 {
	out := make([]uint16, len(s))
	for i, c := range s {
		out[i] = t.entries[c]
	}
	return out
}

// EqualFold reports whether a and b are equal after upper-casing every code
// unit via this table — the comparison §4.5 calls "Filename" collation's
// primary key.
func (t *UpcaseTable) EqualFold(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if t.entries[a[i]] != t.entries[b[i]] {
			return false
		}
	}
	return true
}

// CompareFold performs the two-stage comparison §4.5 requires for filename
// collation: primary comparison on upper-cased code units, with a
// case-sensitive tiebreak on exact equality of the folded form so that names
// differing only in case remain distinct and ordered deterministically.
func (t *UpcaseTable) CompareFold(a, b []uint16) int {
	la, lb := len(a), len(b)
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		fa, fb := t.entries[a[i]], t.entries[b[i]]
		if fa != fb {
			if fa < fb {
				return -1
			}
			return 1
		}
	}
	if la != lb {
		if la < lb {
			return -1
		}
		return 1
	}
	// Folded forms are identical; break the tie case-sensitively so two
	// names differing only in case still sort deterministically.
	for i := 0; i < la; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// decodeUTF16LE converts a little-endian UTF-16 byte slice (an odd trailing
// byte, if any, is dropped) into code units without attempting surrogate
// pairing — NTFS names are compared and stored code-unit-wise, not rune-wise.
func decodeUTF16LE(raw []byte) []uint16 {
	n := len(raw) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
	}
	return out
}

// stringToUTF16 converts a Go string (ASCII/BMP subset is all NTFS name
// comparisons in this package ever need) into UTF-16 code units for
// comparison against on-disk names.
func stringToUTF16(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		if r <= 0xFFFF {
			units = append(units, uint16(r))
			continue
		}
		r -= 0x10000
		units = append(units, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return units
}

// utf16ToString renders UTF-16 code units as a Go string for display,
// surrogate pairs included; it is a presentation helper only and is never
// used by the comparison path above.
func utf16ToString(units []uint16) string {
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) {
			v := units[i+1]
			if v >= 0xDC00 && v <= 0xDFFF {
				r := (rune(u-0xD800) << 10) + rune(v-0xDC00) + 0x10000
				runes = append(runes, r)
				i++
				continue
			}
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}

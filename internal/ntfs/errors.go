// Package ntfs implements read-only NTFS volume, record, attribute, data-run
// and index traversal, as described by the on-disk structures in ECMA/NTFS
// documentation. The package never mutates the backing storage and never
// panics on malformed input; every failure surfaces through *Error.
package ntfs

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an Error, mirroring the taxonomy a caller
// needs to decide whether to skip an attribute, skip a record, or abort.
type Kind int

const (
	KindIO Kind = iota
	KindUnsupportedClusterSize
	KindUnsupportedRecordSize
	KindUnsupportedSectorSize
	KindInvalidBootSector
	KindInvalidRecordSignature
	KindInvalidUpdateSequence
	KindAttributeOutOfBounds
	KindUnknownAttributeType
	KindUnsupportedCompression
	KindInvalidAttributeList
	KindSequenceMismatch
	KindAttributeListCycle
	KindInvalidDataRun
	KindSeekOutOfBounds
	KindNotFound
	KindUnsupportedCollationRule
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindUnsupportedClusterSize:
		return "unsupported cluster size"
	case KindUnsupportedRecordSize:
		return "unsupported record size"
	case KindUnsupportedSectorSize:
		return "unsupported sector size"
	case KindInvalidBootSector:
		return "invalid boot sector"
	case KindInvalidRecordSignature:
		return "invalid record signature"
	case KindInvalidUpdateSequence:
		return "invalid update sequence"
	case KindAttributeOutOfBounds:
		return "attribute out of bounds"
	case KindUnknownAttributeType:
		return "unknown attribute type"
	case KindUnsupportedCompression:
		return "unsupported compression"
	case KindInvalidAttributeList:
		return "invalid attribute list"
	case KindSequenceMismatch:
		return "sequence mismatch"
	case KindAttributeListCycle:
		return "attribute list cycle"
	case KindInvalidDataRun:
		return "invalid data run"
	case KindSeekOutOfBounds:
		return "seek out of bounds"
	case KindNotFound:
		return "not found"
	case KindUnsupportedCollationRule:
		return "unsupported collation rule"
	}
	return "unknown error"
}

// Error is the single error type returned by this package. Position, when
// HasPosition is true, is an absolute or record-relative byte offset useful
// for diagnosing malformed media. Err, when non-nil, is the underlying cause
// (typically an I/O error from the caller's StorageReader).
type Error struct {
	Kind        Kind
	HasPosition bool
	Position    int64
	Expected    uint64
	Found       uint64
	HasValues   bool
	Reason      string
	Reference   FileReference
	HasRef      bool
	Err         error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.HasValues {
		msg += fmt.Sprintf(" (expected %d, found %d)", e.Expected, e.Found)
	}
	if e.HasRef {
		msg += fmt.Sprintf(" (reference %d/%d)", e.Reference.RecordNumber(), e.Reference.SequenceNumber())
	}
	if e.HasPosition {
		msg += fmt.Sprintf(" at position %d", e.Position)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, ntfs.ErrNotFound) style checks keyed on Kind alone.
func (e *Error) Is(target error) bool {
	var o *Error
	if errors.As(target, &o) && o.Err == nil && !o.HasPosition && !o.HasValues && !o.HasRef {
		return e.Kind == o.Kind
	}
	return false
}

// Sentinel errors usable with errors.Is for callers that only care about Kind.
var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrSeekOutOfBounds      = &Error{Kind: KindSeekOutOfBounds}
	ErrUnsupportedCollation = &Error{Kind: KindUnsupportedCollationRule}
)

func errIO(err error) *Error {
	return &Error{Kind: KindIO, Err: err}
}

func errInvalidBootSector(reason string) *Error {
	return &Error{Kind: KindInvalidBootSector, Reason: reason}
}

func errUnsupported(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func errInvalidRecordSignature(expected, found uint32, position int64) *Error {
	return &Error{
		Kind:        KindInvalidRecordSignature,
		HasPosition: true,
		Position:    position,
		HasValues:   true,
		Expected:    uint64(expected),
		Found:       uint64(found),
	}
}

func errInvalidUpdateSequence(position int64) *Error {
	return &Error{Kind: KindInvalidUpdateSequence, HasPosition: true, Position: position}
}

func errAttributeOutOfBounds(position int64, reason string) *Error {
	return &Error{Kind: KindAttributeOutOfBounds, HasPosition: true, Position: position, Reason: reason}
}

func errUnknownAttributeType(value uint32, position int64) *Error {
	return &Error{Kind: KindUnknownAttributeType, HasPosition: true, Position: position, HasValues: true, Found: uint64(value)}
}

func errInvalidAttributeList(reason string, position int64) *Error {
	return &Error{Kind: KindInvalidAttributeList, HasPosition: true, Position: position, Reason: reason}
}

func errSequenceMismatch(expected, found uint16, ref FileReference) *Error {
	return &Error{
		Kind:      KindSequenceMismatch,
		HasValues: true,
		Expected:  uint64(expected),
		Found:     uint64(found),
		HasRef:    true,
		Reference: ref,
	}
}

func errInvalidDataRun(position int64, reason string) *Error {
	return &Error{Kind: KindInvalidDataRun, HasPosition: true, Position: position, Reason: reason}
}

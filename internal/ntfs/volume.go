package ntfs

import "io"

// File record numbers with fixed meaning, per the GLOSSARY.
const (
	RecordNumberMFT     = 0
	RecordNumberRootDir = 5
	RecordNumberUpcase  = 10
)

var fileRecordSignature = [4]byte{'F', 'I', 'L', 'E'}
var indexRecordSignature = [4]byte{'I', 'N', 'D', 'X'}

// Volume is the top-level handle: geometry, the storage reader, and the
// lazily-loaded $UpCase table, per §3's Volume entity and §4.7's Volume
// Facade.
type Volume struct {
	reader   StorageReader
	geometry Geometry

	mftOffset int64
	mftData   *Value

	upcase *UpcaseTable
}

// OpenVolume validates the boot sector, bootstraps access to the Master File
// Table by reading its own base record directly (record 0 always begins at
// the literal MFT LCN — it is never itself fragmented away from its start),
// and returns a ready-to-use Volume. $UpCase is not loaded yet; call
// LoadUpcaseTable explicitly per §3's lazy-initialization lifecycle.
func OpenVolume(r StorageReader) (*Volume, error) {
	boot := make([]byte, bootSectorSize)
	if err := readAt(r, boot, 0); err != nil {
		return nil, err
	}
	geometry, err := decodeBootSector(boot)
	if err != nil {
		return nil, err
	}

	mftOffset, err := checkedMulU64(geometry.MFTLCN, uint64(geometry.ClusterSize))
	if err != nil {
		return nil, errInvalidBootSector("MFT offset overflows")
	}

	vol := &Volume{
		reader:    r,
		geometry:  geometry,
		mftOffset: int64(mftOffset),
	}

	mftRecord, err := decodeRecord(r, vol.mftOffset, geometry.RecordSize, fileRecordSignature, geometry.BytesPerSector)
	if err != nil {
		return nil, err
	}

	walker, err := newAttributeWalker(vol, NewFileReference(RecordNumberMFT, mftRecord.SequenceNumber), mftRecord)
	if err != nil {
		return nil, err
	}
	dataAttr, err := findUnnamedData(walker)
	if err != nil {
		return nil, err
	}
	mftValue, err := dataAttr.Value()
	if err != nil {
		return nil, err
	}
	vol.mftData = mftValue

	return vol, nil
}

func findUnnamedData(w *AttributeWalker) (*Attribute, error) {
	for _, a := range w.All() {
		if a.Type == AttrData && len(a.Name) == 0 {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

// Geometry returns the volume's decoded boot-sector parameters.
func (v *Volume) Geometry() Geometry { return v.geometry }

// Upcase returns the loaded $UpCase table, or nil if LoadUpcaseTable has not
// been called yet.
func (v *Volume) Upcase() *UpcaseTable { return v.upcase }

// LoadUpcaseTable reads $UpCase (record 10)'s unnamed $DATA stream into a
// 65536-entry case-folding table and retains it on the Volume for the
// remainder of its lifetime, per §4.7's read_upcase.
func (v *Volume) LoadUpcaseTable() error {
	rec, err := v.loadFileRecord(NewFileReference(RecordNumberUpcase, 0))
	if err != nil {
		return err
	}
	walker, err := newAttributeWalker(v, NewFileReference(RecordNumberUpcase, rec.SequenceNumber), rec)
	if err != nil {
		return err
	}
	dataAttr, err := findUnnamedData(walker)
	if err != nil {
		return err
	}
	val, err := dataAttr.Value()
	if err != nil {
		return err
	}
	raw, err := readAllValue(val)
	if err != nil {
		return err
	}
	v.upcase = newUpcaseTable(raw)
	return nil
}

// RootDirectory returns the File facade for record 5, the volume's root
// directory, per §4.7's root_directory.
func (v *Volume) RootDirectory() (*File, error) {
	return v.OpenFile(NewFileReference(RecordNumberRootDir, 0))
}

// loadFileRecord materializes the file record named by ref. When the
// sequence number in ref is non-zero it is cross-checked against the loaded
// record's own sequence number; a zero sequence number means "don't care",
// used for the handful of fixed, well-known record numbers a caller
// addresses directly (root directory, $UpCase, the MFT itself).
func (v *Volume) loadFileRecord(ref FileReference) (*Record, error) {
	recordNumber := ref.RecordNumber()

	byteOffset, err := checkedMulU64(recordNumber, uint64(v.geometry.RecordSize))
	if err != nil {
		return nil, errAttributeOutOfBounds(0, "record offset overflows")
	}

	var rec *Record
	if v.mftData == nil {
		// Still bootstrapping: only record 0 can be requested this way.
		rec, err = decodeRecord(v.reader, v.mftOffset, v.geometry.RecordSize, fileRecordSignature, v.geometry.BytesPerSector)
	} else {
		buf := make([]byte, v.geometry.RecordSize)
		if _, serr := v.mftData.Seek(int64(byteOffset), io.SeekStart); serr != nil {
			return nil, serr
		}
		if _, rerr := io.ReadFull(v.mftData, buf); rerr != nil {
			return nil, errIO(rerr)
		}
		rec, err = decodeRecordBytes(buf, v.geometry.RecordSize, fileRecordSignature, int64(byteOffset), v.geometry.BytesPerSector)
	}
	if err != nil {
		return nil, err
	}

	if ref.SequenceNumber() != 0 && rec.SequenceNumber != ref.SequenceNumber() {
		return nil, errSequenceMismatch(ref.SequenceNumber(), rec.SequenceNumber, ref)
	}

	return rec, nil
}

// OpenFile resolves ref to a File facade, per §4.6.
func (v *Volume) OpenFile(ref FileReference) (*File, error) {
	rec, err := v.loadFileRecord(ref)
	if err != nil {
		return nil, err
	}
	fullRef := NewFileReference(ref.RecordNumber(), rec.SequenceNumber)
	walker, err := newAttributeWalker(v, fullRef, rec)
	if err != nil {
		return nil, err
	}
	return &File{vol: v, ref: fullRef, record: rec, walker: walker}, nil
}

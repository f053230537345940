package ntfs

import (
	"encoding/binary"
	"testing"
)

func encodeStandardInfo(creation, modification, mftMod, access uint64, attrs uint32) []byte {
	buf := make([]byte, 0x24)
	binary.LittleEndian.PutUint64(buf[0x00:0x08], creation)
	binary.LittleEndian.PutUint64(buf[0x08:0x10], modification)
	binary.LittleEndian.PutUint64(buf[0x10:0x18], mftMod)
	binary.LittleEndian.PutUint64(buf[0x18:0x20], access)
	binary.LittleEndian.PutUint32(buf[0x20:0x24], attrs)
	return buf
}

func encodeFileNameAttr(parent FileReference, namespace uint8, name string) []byte {
	units := stringToUTF16(name)
	buf := make([]byte, 0x42+len(units)*2)
	binary.LittleEndian.PutUint64(buf[0x00:0x08], uint64(parent))
	buf[0x40] = byte(len(units))
	buf[0x41] = namespace
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[0x42+i*2:0x42+i*2+2], u)
	}
	return buf
}

func newTestFile(vol *Volume, attrs ...[]byte) *File {
	rec := buildRecord(attrs...)
	rec.Flags = RecordFlagInUse
	w, err := newAttributeWalker(vol, NewFileReference(5, 1), rec)
	if err != nil {
		panic(err)
	}
	return &File{vol: vol, ref: NewFileReference(5, 1), record: rec, walker: w}
}

func TestFile_Info_DecodesStandardInformationAndFileName(t *testing.T) {
	f := newTestFile(&Volume{},
		encodeResidentAttr(AttrStandardInformation, 0, encodeStandardInfo(100, 200, 300, 400, FileAttrArchive)),
		encodeResidentAttr(AttrFileName, 1, encodeFileNameAttr(NewFileReference(5, 1), NamespaceWin32, "report.txt")),
	)
	info, err := f.Info()
	if err != nil {
		t.Fatalf("Info err: %v", err)
	}
	if info.Standard.CreationTime != 100 || info.Standard.FileAttributes != FileAttrArchive {
		t.Fatalf("Standard=%+v", info.Standard)
	}
	if len(info.FileNames) != 1 || info.FileNames[0].String() != "report.txt" {
		t.Fatalf("FileNames=%+v", info.FileNames)
	}
}

func TestFile_Name_PrefersWin32OverDOSForSameParent(t *testing.T) {
	parent := NewFileReference(5, 1)
	f := newTestFile(&Volume{},
		encodeResidentAttr(AttrFileName, 0, encodeFileNameAttr(parent, NamespaceDOS, "REPORT~1.TXT")),
		encodeResidentAttr(AttrFileName, 1, encodeFileNameAttr(parent, NamespaceWin32, "report.txt")),
	)
	name, err := f.Name(parent)
	if err != nil {
		t.Fatalf("Name err: %v", err)
	}
	if name != "report.txt" {
		t.Fatalf("Name=%q want %q", name, "report.txt")
	}
}

func TestFile_Name_FallsBackWhenNoFileNameMatchesParent(t *testing.T) {
	other := NewFileReference(99, 1)
	f := newTestFile(&Volume{},
		encodeResidentAttr(AttrFileName, 0, encodeFileNameAttr(NewFileReference(5, 1), NamespaceWin32, "report.txt")),
	)
	name, err := f.Name(other)
	if err != nil {
		t.Fatalf("Name err: %v", err)
	}
	if name != "report.txt" {
		t.Fatalf("Name=%q want fallback %q", name, "report.txt")
	}
}

func TestFile_Data_MatchesStreamNameCaseInsensitively(t *testing.T) {
	f := newTestFile(&Volume{},
		encodeResidentAttr(AttrData, 0, []byte("unnamed-stream")),
	)
	v, err := f.Data("")
	if err != nil {
		t.Fatalf("Data(\"\") err: %v", err)
	}
	buf, err := readAllValue(v)
	if err != nil || string(buf) != "unnamed-stream" {
		t.Fatalf("buf=%q err=%v", buf, err)
	}

	if _, err := f.Data("nonexistent"); err != ErrNotFound {
		t.Fatalf("Data(nonexistent) err=%v want ErrNotFound", err)
	}

	named := &File{vol: &Volume{}, walker: &AttributeWalker{attrs: []*Attribute{
		{Type: AttrData, Name: stringToUTF16("Zone.Identifier"), Resident: true, residentData: []byte("zone")},
	}}}
	nv, err := named.Data("ZONE.IDENTIFIER")
	if err != nil {
		t.Fatalf("Data(ZONE.IDENTIFIER) err: %v", err)
	}
	if buf, err := readAllValue(nv); err != nil || string(buf) != "zone" {
		t.Fatalf("named stream buf=%q err=%v want %q", buf, err, "zone")
	}
}

func TestFile_DirectoryIndex_RejectsNonDirectory(t *testing.T) {
	f := newTestFile(&Volume{}, encodeResidentAttr(AttrStandardInformation, 0, encodeStandardInfo(1, 1, 1, 1, 0)))
	if _, err := f.DirectoryIndex(); err == nil {
		t.Fatal("expected error calling DirectoryIndex on a non-directory record")
	}
}

func TestFile_InUseAndIsDirectoryReflectRecordFlags(t *testing.T) {
	rec := buildRecord(encodeResidentAttr(AttrStandardInformation, 0, []byte("x")))
	rec.Flags = RecordFlagInUse | RecordFlagIsDirectory
	w, err := newAttributeWalker(&Volume{}, NewFileReference(5, 1), rec)
	if err != nil {
		t.Fatalf("newAttributeWalker err: %v", err)
	}
	f := &File{vol: &Volume{}, ref: NewFileReference(5, 1), record: rec, walker: w}
	if !f.InUse() || !f.IsDirectory() {
		t.Fatalf("InUse=%v IsDirectory=%v want both true", f.InUse(), f.IsDirectory())
	}
}

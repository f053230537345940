package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	pkgntfs "github.com/s0up4200/ntfsgo/pkg/ntfs"
)

func (s *session) cmdCd(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: cd <path>")
		return
	}
	target := s.resolve(args[0])
	f, err := s.vol.Open(target)
	if err != nil {
		fmt.Printf("cd: %v\n", err)
		return
	}
	if !f.IsDir() {
		fmt.Printf("cd: %s is not a directory\n", target)
		return
	}
	s.cwd = target
}

func (s *session) cmdDir(args []string) {
	target := s.cwd
	if len(args) == 1 {
		target = s.resolve(args[0])
	}
	f, err := s.vol.Open(target)
	if err != nil {
		fmt.Printf("dir: %v\n", err)
		return
	}
	if !f.IsDir() {
		fmt.Printf("dir: %s is not a directory\n", target)
		return
	}
	idx, err := f.Inner().DirectoryIndex()
	if err != nil {
		fmt.Printf("dir: %v\n", err)
		return
	}
	idx.Reset()
	for {
		entry, err := idx.Next()
		if err != nil {
			fmt.Printf("dir: %v\n", err)
			return
		}
		if entry == nil {
			break
		}
		child, err := s.vol.Inner().OpenFile(entry.Reference)
		if err != nil {
			fmt.Printf("  <error opening %v: %v>\n", entry.Reference, err)
			continue
		}
		name, err := pkgntfs.FromCore(s.vol, child).Name()
		if err != nil {
			continue
		}
		kind := "file"
		if child.IsDirectory() {
			kind = "dir "
		}
		fmt.Printf("  %s  %s\n", kind, name)
	}
}

func (s *session) cmdAttr(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: attr <path>")
		return
	}
	f, err := s.vol.Open(s.resolve(args[0]))
	if err != nil {
		fmt.Printf("attr: %v\n", err)
		return
	}
	for _, a := range f.Inner().Attributes().All() {
		res := "resident"
		if !a.Resident {
			res = "non-resident"
		}
		fmt.Printf("  %-24s name=%q %s size=%d\n", a.Type.String(), a.NameString(), res, a.UsedSize)
	}
}

func (s *session) cmdAttrRuns(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: attr_runs <path> <attr-type-name, e.g. DATA>")
		return
	}
	f, err := s.vol.Open(s.resolve(args[0]))
	if err != nil {
		fmt.Printf("attr_runs: %v\n", err)
		return
	}
	for _, a := range f.Inner().Attributes().All() {
		if !strings.EqualFold(strings.TrimPrefix(a.Type.String(), "$"), args[1]) {
			continue
		}
		if a.Resident {
			fmt.Println("  (resident, no data runs)")
			return
		}
		v, err := a.Value()
		if err != nil {
			fmt.Printf("attr_runs: %v\n", err)
			return
		}
		fmt.Printf("  size=%d\n", v.Size())
		return
	}
	fmt.Printf("attr_runs: attribute %q not found\n", args[1])
}

func (s *session) cmdFileInfo(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: fileinfo <path>")
		return
	}
	f, err := s.vol.Open(s.resolve(args[0]))
	if err != nil {
		fmt.Printf("fileinfo: %v\n", err)
		return
	}
	info, err := f.Inner().Info()
	if err != nil {
		fmt.Printf("fileinfo: %v\n", err)
		return
	}
	fmt.Printf("  reference: %#x\n", uint64(f.Inner().Reference()))
	fmt.Printf("  directory: %v\n", f.IsDir())
	fmt.Printf("  in use:    %v\n", f.Inner().InUse())
	fmt.Printf("  attributes: %#x\n", info.Standard.FileAttributes)
	for _, fn := range info.FileNames {
		fmt.Printf("  name: %-30s namespace=%d parent=%#x\n", fn.String(), fn.Namespace, uint64(fn.Parent))
	}
}

func (s *session) cmdFsInfo() {
	g := s.vol.Inner().Geometry()
	fmt.Printf("  bytes/sector:       %d\n", g.BytesPerSector)
	fmt.Printf("  sectors/cluster:    %d\n", g.SectorsPerCluster)
	fmt.Printf("  cluster size:       %d\n", g.ClusterSize)
	fmt.Printf("  record size:        %d\n", g.RecordSize)
	fmt.Printf("  index record size:  %d\n", g.IndexRecordSize)
	fmt.Printf("  total sectors:      %d\n", g.TotalSectors)
	fmt.Printf("  MFT LCN:            %d\n", g.MFTLCN)
	fmt.Printf("  serial number:      %#x\n", g.SerialNumber)
}

func (s *session) cmdGet(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: get <path> <local-dest>")
		return
	}
	f, err := s.vol.Open(s.resolve(args[0]))
	if err != nil {
		fmt.Printf("get: %v\n", err)
		return
	}
	v, err := f.Open("")
	if err != nil {
		fmt.Printf("get: %v\n", err)
		return
	}
	out, err := os.Create(args[1])
	if err != nil {
		fmt.Printf("get: %v\n", err)
		return
	}
	defer out.Close()

	buf := make([]byte, 64*1024)
	for {
		n, rerr := v.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				fmt.Printf("get: %v\n", werr)
				return
			}
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				fmt.Printf("get: %v\n", rerr)
			}
			break
		}
	}
	fmt.Printf("get: wrote %s\n", args[1])
}

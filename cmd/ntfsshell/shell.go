package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/s0up4200/ntfsgo/internal/blockio"
	pkgntfs "github.com/s0up4200/ntfsgo/pkg/ntfs"
)

// session holds the shell's working state: the open volume and the current
// directory path, mirroring the teacher's bdrom.BDROM as the one long-lived
// handle commands operate against.
type session struct {
	reader *blockio.FileReader
	vol    *pkgntfs.Volume
	cwd    string
}

func runShell(imagePath string) error {
	reader, err := blockio.OpenFile(imagePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	vol, err := pkgntfs.Open(reader)
	if err != nil {
		return fmt.Errorf("open volume: %w", err)
	}

	s := &session{reader: reader, vol: vol, cwd: "/"}

	fmt.Printf("ntfsshell: %s opened, type 'help' for commands\n", imagePath)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s> ", s.cwd)
		if !scanner.Scan() {
			fmt.Println()
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		rest := fields[1:]

		switch cmd {
		case "exit", "quit":
			return nil
		case "help":
			printHelp()
		case "cd":
			s.cmdCd(rest)
		case "dir":
			s.cmdDir(rest)
		case "attr":
			s.cmdAttr(rest)
		case "attr_runs":
			s.cmdAttrRuns(rest)
		case "fileinfo":
			s.cmdFileInfo(rest)
		case "fsinfo":
			s.cmdFsInfo()
		case "get":
			s.cmdGet(rest)
		default:
			fmt.Printf("unknown command %q, try 'help'\n", cmd)
		}
	}
}

func printHelp() {
	fmt.Println(`commands:
  cd <path>          change current directory
  dir [path]         list directory entries (default: current directory)
  attr <path>        list attributes of a file or directory
  attr_runs <path> <type>
                     print the data size of a non-resident attribute
                     (the runs themselves are not listed)
  fileinfo <path>    print $STANDARD_INFORMATION and $FILE_NAME details
  fsinfo             print volume geometry
  get <path> <dest>  copy a file's unnamed $DATA stream to a local file
  help               show this message
  exit, quit         leave the shell

paths may be a slash-separated name, relative to the current directory, or
/<record-number> (decimal, or 0x-prefixed hex) to address a record directly.`)
}

// resolve turns a possibly-relative path argument into an absolute path the
// way cd and dir both need it resolved before calling vol.Open.
func (s *session) resolve(p string) string {
	if p == "" {
		return s.cwd
	}
	if strings.HasPrefix(p, "/") {
		return p
	}
	if s.cwd == "/" {
		return "/" + p
	}
	return s.cwd + "/" + p
}

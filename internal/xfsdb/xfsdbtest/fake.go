// Package xfsdbtest provides an in-process stand-in for an xfs_db session,
// speaking the same prompt-terminated protocol over pipes.
package xfsdbtest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

const prompt = "xfs_db> "

// Inode describes what the fake prints for one inode.
type Inode struct {
	// Extents are raw records such as "0:[0,100,3,0]". Nil means the dump
	// has no extent map line.
	Extents []string
}

// Server answers xfs_db commands from canned geometry and inode data.
type Server struct {
	DBlocks   uint64
	BlockSize uint64
	InodeSize uint64
	Inodes    map[uint64]Inode

	// ChunkSize splits every response into writes of at most this many
	// bytes. Zero writes each response in one piece.
	ChunkSize int

	mu       sync.Mutex
	commands []string
}

// Start runs the server on a fresh pipe pair. The returned writer and
// reader are the client's ends. Closing the writer stops the server.
func (s *Server) Start() (io.WriteCloser, io.ReadCloser) {
	cmdR, cmdW := io.Pipe()
	respR, respW := io.Pipe()
	go s.serve(cmdR, respW)
	return cmdW, respR
}

// Commands returns every command line received so far, without newlines.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) serve(in io.ReadCloser, out *io.PipeWriter) {
	defer out.Close()
	defer in.Close()

	if !s.write(out, prompt) {
		return
	}

	var (
		cur uint64
		typ string
	)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := sc.Text()
		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		fields := strings.Fields(line)
		var reply string
		switch {
		case len(fields) == 2 && fields[0] == "inode":
			n, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				reply = fmt.Sprintf("bad inode number %s\n", fields[1])
				break
			}
			cur = n
		case len(fields) == 2 && fields[0] == "type":
			typ = fields[1]
		case len(fields) == 1 && fields[0] == "print":
			reply = s.dump(cur, typ)
		default:
			reply = fmt.Sprintf("command %q not found\n", line)
		}

		if !s.write(out, reply+prompt) {
			return
		}
	}
}

func (s *Server) dump(inum uint64, typ string) string {
	var b strings.Builder
	switch typ {
	case "sb":
		fmt.Fprintf(&b, "magicnum = 0x58465342\n")
		fmt.Fprintf(&b, "blocksize = %d\n", s.BlockSize)
		fmt.Fprintf(&b, "dblocks = %d\n", s.DBlocks)
		fmt.Fprintf(&b, "rblocks = 0\n")
		fmt.Fprintf(&b, "inodesize = %d\n", s.InodeSize)
		fmt.Fprintf(&b, "inopblock = 16\n")
	case "inode":
		fmt.Fprintf(&b, "core.magic = 0x494e\n")
		fmt.Fprintf(&b, "core.mode = 0100644\n")
		fmt.Fprintf(&b, "core.format = 2 (extents)\n")
		ino, ok := s.Inodes[inum]
		if ok && ino.Extents != nil {
			fmt.Fprintf(&b, "core.nextents = %d\n", len(ino.Extents))
			fmt.Fprintf(&b, "u.bmx[0-%d] = [startoff,startblock,blockcount,extentflag] %s\n",
				len(ino.Extents)-1, strings.Join(ino.Extents, " "))
		} else {
			fmt.Fprintf(&b, "core.nextents = 0\n")
		}
	default:
		fmt.Fprintf(&b, "no current type\n")
	}
	return b.String()
}

func (s *Server) write(w io.Writer, msg string) bool {
	if s.ChunkSize <= 0 {
		_, err := io.WriteString(w, msg)
		return err == nil
	}
	for len(msg) > 0 {
		n := min(s.ChunkSize, len(msg))
		if _, err := io.WriteString(w, msg[:n]); err != nil {
			return false
		}
		msg = msg[n:]
	}
	return true
}

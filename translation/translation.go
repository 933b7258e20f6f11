// Package translation parses the dnxvm translation file format (spec.md
// §6): simple line-oriented text, one string per significant line.
package translation

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/loomtale/dnxvm/vmerr"
)

// Load reads a translation file from r and returns its ordered list of
// strings, replacing a VM's translation_table wholesale (spec.md §6).
// Lines beginning with '#' or '@' and blank lines are ignored. Each
// remaining line has its first and last characters stripped (the
// enclosing quotes the format requires).
func Load(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if line[0] == '#' || line[0] == '@' {
			continue
		}
		if len(line) < 2 {
			return nil, vmerr.Load("translation line too short to strip quotes: %q", line)
		}
		out = append(out, line[1:len(line)-1])
	}
	if err := sc.Err(); err != nil {
		return nil, vmerr.LoadWrap(err, "reading translation file")
	}
	return out, nil
}

// LoadFile opens path and parses it with Load.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, vmerr.LoadWrap(err, "opening translation file %s", path)
	}
	defer f.Close()
	return Load(f)
}

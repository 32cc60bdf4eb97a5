package trsp

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SatelliteFile describes one file in the transponder directory.
type SatelliteFile struct {
	CatalogNumber int32     `json:"norad_cat_id"`
	Transponders  int       `json:"transponders"`
	Size          int64     `json:"size"`
	Modified      time.Time `json:"modified"`
}

// Transponder is one block read back from a satellite file. Fields holds the
// KEY=value lines in file order.
type Transponder struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
	Order  []string          `json:"order"`
}

// List returns every satellite file under the transponder directory, sorted
// by catalog number. A directory that does not exist yet holds no files.
func (e *Engine) List() ([]SatelliteFile, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []SatelliteFile
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, FileExt) {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSuffix(name, FileExt), 10, 32)
		if err != nil || n <= 0 {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		b, err := os.ReadFile(filepath.Join(e.dir, name))
		if err != nil {
			continue
		}
		out = append(out, SatelliteFile{
			CatalogNumber: int32(n),
			Transponders:  bytes.Count(b, []byte("\n[")),
			Size:          info.Size(),
			Modified:      info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CatalogNumber < out[j].CatalogNumber })
	return out, nil
}

// Read parses the satellite file for catnum.
func (e *Engine) Read(catnum int32) ([]Transponder, error) {
	path, err := satellitePath(e.dir, catnum, e.maxPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTransponders(b), nil
}

// ParseTransponders reads blocks in the satellite file format. Lines outside
// a block and lines without '=' are ignored.
func ParseTransponders(b []byte) []Transponder {
	var (
		out []Transponder
		cur *Transponder
	)
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			out = append(out, Transponder{
				Name:   line[1 : len(line)-1],
				Fields: map[string]string{},
			})
			cur = &out[len(out)-1]
			continue
		}
		if cur == nil {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		cur.Fields[k] = v
		cur.Order = append(cur.Order, k)
	}
	return out
}

package trsp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/buger/jsonparser"
	"github.com/sugawarayuuta/sonnet"

	"github.com/large-farva/groundstation/internal/hashindex"
)

// Mode is one entry of the modulation mode table.
type Mode struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`
}

type modeItem struct {
	ID   *int32  `json:"id"`
	Name *string `json:"name"`
}

// LoadModes reads the cached mode table at path into a new index. A missing,
// empty or unreadable file yields an empty index, so every mode later falls
// back to its numeric id. Parsing stops at the first item that is not a
// well-formed {id, name} object; the items before it are kept.
func LoadModes(path string, logger *log.Logger) (*hashindex.Index[*Mode], int) {
	modes := hashindex.New[*Mode](hashindex.Upsert, nil)

	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Printf("trsp: mode table unreadable, using numeric modes: %v", err)
		}
		return modes, 0
	}
	if len(b) <= 1 {
		return modes, 0
	}

	n, stop := walkModes(b, func(m *Mode) bool {
		return modes.Insert(m.ID, m) == nil
	})
	if stop != "" {
		logger.Printf("trsp: mode table %s: stopped after %d entries: %s", filepath.Base(path), n, stop)
	}
	return modes, modes.Len()
}

// walkModes feeds each well-formed mode to fn until the array ends, an item
// is malformed, or fn returns false. It returns how many items fn accepted
// and, if the walk ended early, why.
func walkModes(doc []byte, fn func(*Mode) bool) (int, string) {
	var (
		n    int
		stop string
		done bool
	)
	if !isArray(doc) {
		return 0, errNotArray.Error()
	}
	_, err := jsonparser.ArrayEach(doc, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if done {
			return
		}
		if dataType != jsonparser.Object {
			done, stop = true, fmt.Sprintf("item %d is %s, not an object", n, dataType)
			return
		}
		var it modeItem
		if err := sonnet.Unmarshal(value, &it); err != nil {
			done, stop = true, fmt.Sprintf("item %d: %v", n, err)
			return
		}
		if it.ID == nil || it.Name == nil {
			done, stop = true, fmt.Sprintf("item %d: missing id or name", n)
			return
		}
		if !fn(&Mode{ID: *it.ID, Name: clipText(*it.Name)}) {
			done, stop = true, fmt.Sprintf("item %d rejected", n)
			return
		}
		n++
	})
	if err != nil && !done {
		stop = err.Error()
	}
	return n, stop
}

// resolveMode returns the mode name for id, or the id itself in decimal.
func resolveMode(modes *hashindex.Index[*Mode], id int32) string {
	if m, ok := modes.Lookup(id); ok {
		return m.Name
	}
	return fmt.Sprintf("%d", id)
}

// ReadModes returns the cached mode table as a slice, in file order, for
// display. Entries after the first malformed item are not returned.
func ReadModes(path string) ([]Mode, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []Mode
	if len(b) <= 1 {
		return out, nil
	}
	walkModes(b, func(m *Mode) bool {
		out = append(out, *m)
		return true
	})
	return out, nil
}

// RefreshModes downloads the mode table from url and atomically replaces the
// cache at path. The existing cache is left alone unless the download holds
// at least one valid mode.
func RefreshModes(ctx context.Context, f Fetcher, url, path string) (int, error) {
	body, err := f.Get(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("refresh modes: %w", err)
	}

	n, stop := walkModes(body, func(*Mode) bool { return true })
	if n == 0 {
		if stop == "" {
			stop = "no entries"
		}
		return 0, fmt.Errorf("refresh modes: unusable mode table: %s", stop)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("refresh modes: %w", err)
	}
	if err := writeFileAtomic(path, body); err != nil {
		return 0, fmt.Errorf("refresh modes: %w", err)
	}
	return n, nil
}

package trsp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/buger/jsonparser"
	"github.com/google/uuid"

	"github.com/large-farva/groundstation/internal/hashindex"
)

// writeState tracks a satellite already seen in the current run.
type writeState struct {
	records int
}

// Sync ingests an already-fetched transmitters document.
func (e *Engine) Sync(ctx context.Context, doc []byte) (Summary, error) {
	return e.run(ctx, SourceBuffer, func(context.Context) ([]byte, error) {
		return doc, nil
	})
}

// FetchAndSync downloads the feed and ingests it. A download failure ends
// the run before anything on disk is touched. A successful download is also
// kept as the feed cache for SyncCached.
func (e *Engine) FetchAndSync(ctx context.Context) (Summary, error) {
	return e.run(ctx, SourceNetwork, func(ctx context.Context) ([]byte, error) {
		if e.fetcher == nil {
			return nil, errors.New("trsp: no fetcher configured")
		}
		e.state(StateFetching)
		doc, err := e.fetcher.Get(ctx, e.feedURL)
		if err != nil {
			return nil, fmt.Errorf("fetch feed: %w", err)
		}
		if e.feedCache != "" {
			if err := SaveFeed(e.feedCache, doc); err != nil {
				e.log.Printf("trsp: feed cache not updated: %v", err)
			}
		}
		return doc, nil
	})
}

// SyncCached replays the last successfully fetched feed.
func (e *Engine) SyncCached(ctx context.Context) (Summary, error) {
	return e.run(ctx, SourceCache, func(context.Context) ([]byte, error) {
		if e.feedCache == "" {
			return nil, ErrNoFeedCache
		}
		e.state(StateFetching)
		return LoadFeed(e.feedCache)
	})
}

func (e *Engine) run(ctx context.Context, source string, load func(context.Context) ([]byte, error)) (sum Summary, err error) {
	if !e.running.CompareAndSwap(false, true) {
		return Summary{Source: source, StartedAt: time.Now().UTC(), Error: ErrBusy.Error()}, ErrBusy
	}
	defer e.running.Store(false)

	sum = Summary{
		RunID:     uuid.NewString(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		sum.DurationMS = time.Since(sum.StartedAt).Milliseconds()
		if err != nil {
			sum.Error = err.Error()
		}
		e.state(StateIdle)
	}()

	doc, err := load(ctx)
	if err != nil {
		e.log.Printf("trsp: run %s: %v", sum.RunID, err)
		return sum, err
	}

	err = e.ingest(ctx, doc, &sum)
	if err != nil {
		e.log.Printf("trsp: run %s aborted after %d items: %v", sum.RunID, sum.Items, err)
		return sum, err
	}
	e.log.Printf("trsp: run %s done: %d items, %d written, %d skipped, %d malformed, %d failed, %d satellites",
		sum.RunID, sum.Items, sum.Written, sum.Skipped, sum.Malformed, sum.Failed, sum.Satellites)
	return sum, nil
}

func (e *Engine) ingest(ctx context.Context, doc []byte, sum *Summary) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrDirectory, err)
	}

	e.state(StateLoadingModes)
	modes, n := LoadModes(e.ModesPath(), e.log)
	sum.Modes = n

	sats := hashindex.New[*writeState](hashindex.Upsert, nil)
	defer func() {
		e.state(StateCleanup)
		sum.Satellites = sats.Len()
		sats.Destroy()
		modes.Destroy()
	}()

	e.state(StateIngesting)
	items, err := splitItems(doc)
	if err != nil {
		sum.DocumentMalformed = true
		e.log.Printf("trsp: feed is not a JSON array, nothing ingested: %v", err)
		return nil
	}

	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync interrupted at item %d of %d: %w", i, len(items), err)
		}
		sum.Items++

		if it.typ != jsonparser.Object {
			sum.Malformed++
			e.log.Printf("trsp: item %d skipped: %s is not an object", i, it.typ)
			continue
		}
		rec, err := decodeRecord(it.raw)
		if err != nil {
			if errors.Is(err, errMalformedItem) {
				sum.Malformed++
			} else {
				sum.Skipped++
			}
			e.log.Printf("trsp: item %d skipped: %v", i, err)
			continue
		}
		rec.Mode = resolveMode(modes, rec.ModeID)

		path, err := satellitePath(e.dir, rec.CatalogNumber, e.maxPath)
		if err != nil {
			return err
		}

		st, seen := sats.Lookup(rec.CatalogNumber)
		if !seen {
			if err := resetFile(path); err != nil {
				sum.Failed++
				e.log.Printf("trsp: item %d: reset %s: %v", i, path, err)
				continue
			}
			st = &writeState{}
			if err := sats.Insert(rec.CatalogNumber, st); err != nil {
				sum.Failed++
				e.log.Printf("trsp: item %d: track %d: %v", i, rec.CatalogNumber, err)
				continue
			}
		}

		if err := appendRecord(path, rec); err != nil {
			sum.Failed++
			e.log.Printf("trsp: item %d: write %s: %v", i, path, err)
			continue
		}
		st.records++
		sum.Written++
	}
	return nil
}

type feedElem struct {
	raw []byte
	typ jsonparser.ValueType
}

// splitItems returns the raw elements of the top-level array. Nothing is
// returned unless the whole array parses.
func splitItems(doc []byte) ([]feedElem, error) {
	if !isArray(doc) {
		return nil, errNotArray
	}
	var (
		items []feedElem
		cbErr error
	)
	_, err := jsonparser.ArrayEach(doc, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if err != nil {
			if cbErr == nil {
				cbErr = err
			}
			return
		}
		items = append(items, feedElem{raw: value, typ: dataType})
	})
	if err == nil {
		err = cbErr
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

var errNotArray = errors.New("document is not a JSON array")

func isArray(doc []byte) bool {
	doc = bytes.TrimLeft(doc, " \t\r\n")
	return len(doc) > 0 && doc[0] == '['
}

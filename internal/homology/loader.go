package homology

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"orthoinfer/internal/blob/core"
	"orthoinfer/internal/logging"
)

// ConfigurationError reports input that makes a whole species unprocessable,
// such as an unreadable homology file or an unknown species.
type ConfigurationError struct {
	Species string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for species %s: %v", e.Species, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// FeedPrefix is the blob prefix every homology and gene table lives under.
const FeedPrefix = "orthopairs/"

// MappingKey is the blob key of the source-to-target homology table.
func MappingKey(source, target string) string {
	return fmt.Sprintf("%s%s_%s_mapping.txt", FeedPrefix, source, target)
}

// GeneMappingKey is the blob key of the target gene/protein table.
func GeneMappingKey(target string) string {
	return fmt.Sprintf("%s%s_gene_protein_mapping.txt", FeedPrefix, target)
}

// Bundle is everything loaded for one target species.
type Bundle struct {
	Table *Table
	Genes *GeneTable
}

// Loader reads homology tables from a blob store.
type Loader struct {
	store       core.Store
	log         logging.Logger
	concurrency int
}

// NewLoader returns a loader reading from store. A concurrency of 0 or less
// means one goroutine per species.
func NewLoader(store core.Store, log logging.Logger, concurrency int) *Loader {
	if log == nil {
		log = logging.Noop()
	}
	return &Loader{store: store, log: log, concurrency: concurrency}
}

// Load reads the homology and gene tables for one target species. Any
// failure is returned as a *ConfigurationError.
func (l *Loader) Load(ctx context.Context, source, target string) (Bundle, error) {
	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}
	raw, err := core.ReadAll(ctx, l.store, MappingKey(source, target))
	if err != nil {
		return Bundle{}, &ConfigurationError{Species: target, Err: fmt.Errorf("read homology table: %w", err)}
	}
	table, err := ParseTable(bytes.NewReader(raw), source, target)
	if err != nil {
		return Bundle{}, &ConfigurationError{Species: target, Err: err}
	}
	raw, err = core.ReadAll(ctx, l.store, GeneMappingKey(target))
	if err != nil {
		return Bundle{}, &ConfigurationError{Species: target, Err: fmt.Errorf("read gene table: %w", err)}
	}
	genes, err := ParseGeneTable(bytes.NewReader(raw), target)
	if err != nil {
		return Bundle{}, &ConfigurationError{Species: target, Err: err}
	}
	l.log.Debug(ctx, "homology loaded",
		logging.String("source", source), logging.String("target", target), logging.Int("proteins", table.Len()))
	return Bundle{Table: table, Genes: genes}, nil
}

// LoadAll loads every target concurrently. Species that fail are returned in
// the second map keyed by species; only context cancellation aborts the whole
// load. Targets whose tables are absent from the feed listing fail without
// being read.
func (l *Loader) LoadAll(ctx context.Context, source string, targets []string) (map[string]Bundle, map[string]error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	failures := make(map[string]error)
	pending := targets
	if available, err := l.feed(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		l.log.Warn(ctx, "homology feed listing failed", logging.Err(err))
	} else {
		pending = make([]string, 0, len(targets))
		for _, target := range targets {
			if missing := missingKeys(available, source, target); len(missing) > 0 {
				failures[target] = &ConfigurationError{
					Species: target,
					Err:     fmt.Errorf("%s: %w", strings.Join(missing, ", "), core.ErrNotFound),
				}
				continue
			}
			pending = append(pending, target)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if l.concurrency > 0 {
		g.SetLimit(l.concurrency)
	}
	var mu sync.Mutex
	bundles := make(map[string]Bundle, len(pending))
	for _, target := range pending {
		target := target
		g.Go(func() error {
			b, err := l.Load(gctx, source, target)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				mu.Lock()
				failures[target] = err
				mu.Unlock()
				return nil
			}
			mu.Lock()
			bundles[target] = b
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return bundles, failures, nil
}

// feed returns the set of keys under FeedPrefix.
func (l *Loader) feed(ctx context.Context) (map[string]struct{}, error) {
	infos, err := l.store.List(ctx, FeedPrefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", FeedPrefix, err)
	}
	keys := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		keys[info.Key] = struct{}{}
	}
	return keys, nil
}

func missingKeys(available map[string]struct{}, source, target string) []string {
	var missing []string
	for _, key := range []string{MappingKey(source, target), GeneMappingKey(target)} {
		if _, ok := available[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// FailedSpecies lists the keys of a failure map in sorted order.
func FailedSpecies(failures map[string]error) []string {
	out := make([]string, 0, len(failures))
	for s := range failures {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

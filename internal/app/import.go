package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"p2pwatcher/internal/storage"
)

// Import merges CSV files from the legacy collector (or earlier exports)
// into the persisted snapshot. The merged history is sorted by time,
// de-duplicated by timestamp and trimmed to the history capacity.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	if len(opts.Paths) == 0 {
		return errors.New("at least one CSV file must be provided")
	}
	loc, err := a.Config.Location()
	if err != nil {
		return err
	}

	var imported []storage.Sample
	for _, path := range opts.Paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		samples, skipped, err := readLegacyFile(path, loc)
		if err != nil {
			return err
		}
		a.Logger.Info().Str("file", path).Int("samples", len(samples)).Int("skipped", skipped).Msg("csv parsed")
		imported = append(imported, samples...)
	}

	gw, closeGw, err := a.openGateway(ctx)
	if err != nil {
		return err
	}
	defer closeGw()
	if gw == nil {
		return errors.New("persistence.driver is none; nothing to import into")
	}

	existing, err := gw.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load existing history: %w", err)
	}

	merged := mergeSamples(existing, imported, a.Config.Sampling.HistoryCapacity)
	a.Logger.Info().
		Int("existing", len(existing)).
		Int("imported", len(imported)).
		Int("merged", len(merged)).
		Bool("dry_run", opts.DryRun).
		Msg("import prepared")

	if opts.DryRun {
		a.Logger.Warn().Msg("import dry-run: snapshot not written")
		return nil
	}

	if err := gw.SaveAll(ctx, merged); err != nil {
		return fmt.Errorf("save merged history: %w", err)
	}
	if store, ok := gw.(*storage.Store); ok {
		if count, err := store.CountSamples(ctx); err == nil {
			a.Logger.Info().Int64("rows", count).Msg("postgres snapshot written")
		}
	}
	return nil
}

func readLegacyFile(path string, loc *time.Location) ([]storage.Sample, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	samples, skipped, err := storage.ReadLegacyCSV(file, loc)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return samples, skipped, nil
}

// mergeSamples keeps the first sample seen per timestamp (existing wins),
// sorts by time and keeps the newest capacity entries.
func mergeSamples(existing, imported []storage.Sample, capacity int) []storage.Sample {
	seen := make(map[int64]struct{}, len(existing)+len(imported))
	merged := make([]storage.Sample, 0, len(existing)+len(imported))
	for _, batch := range [][]storage.Sample{existing, imported} {
		for _, s := range batch {
			key := s.Timestamp.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, s)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	if capacity > 0 && len(merged) > capacity {
		merged = merged[len(merged)-capacity:]
	}
	return merged
}

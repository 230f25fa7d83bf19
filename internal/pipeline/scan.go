package pipeline

import (
	"context"
	"path/filepath"
)

// ScanAll processes every pending directory in the watch directories of the
// enabled sections, one at a time. It returns each run's result and the most
// severe outcome seen.
func (o *Orchestrator) ScanAll(ctx context.Context) ([]Result, Outcome) {
	var (
		results []Result
		worst   = Success
	)

	for _, section := range o.registry.All() {
		if section.WatchDir == "" {
			continue
		}

		dirs, err := o.scanner.PendingDirs(section.WatchDir)
		if err != nil {
			o.logger.Error().Err(err).Str("section", section.Name).Str("watch_dir", section.WatchDir).
				Msg("could not read watch directory")
			worst = Failed
			continue
		}

		o.logger.Info().Str("section", section.Name).Int("dirs", len(dirs)).Msg("scanning watch directory")

		for _, dir := range dirs {
			if ctx.Err() != nil {
				return results, Worst(worst, Failed)
			}

			res := o.Process(ctx, Request{
				Dir:      dir,
				Name:     filepath.Base(dir),
				Category: section.Category,
				Client:   ClientManual,
			})
			results = append(results, res)
			worst = Worst(worst, res.Outcome)
		}
	}

	return results, worst
}

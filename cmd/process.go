package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/seedreap/postreap/internal/pipeline"
)

func newProcessCommand() *cobra.Command {
	var req pipeline.Request

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process one download",
		Long: `Process one download described by flags. Without --client the run is
manual: there is no wait before dispatch and no completion polling.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			res, err := processRequest(ctx, req)
			if err != nil {
				return err
			}
			return outcomeError(res.Outcome, res.Err())
		},
	}

	cmd.Flags().StringVar(&req.Dir, "dir", "", "directory or file of the download")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name of the download")
	cmd.Flags().StringVar(&req.Category, "category", "", "category of the download")
	cmd.Flags().BoolVar(&req.Failed, "failed", false, "the download failed")
	cmd.Flags().StringVar(&req.Client, "client", pipeline.ClientManual, "invoking download client")
	cmd.Flags().StringVar(&req.DownloadID, "download-id", "", "download client identifier (info hash for torrents)")
	cmd.Flags().StringVar(&req.TorrentID, "torrent-id", "", "numeric torrent id")
	cmd.Flags().BoolVar(&req.Torrent, "torrent", false, "the download came from a torrent client")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func newScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Process every pending download in the watch directories",
		Long: `Process every subdirectory of each enabled section's watchDir, one at a
time. Loose media files are moved into folders of their own first. The
command fails if any download failed.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			o, err := newOrchestrator()
			if err != nil {
				return err
			}

			var (
				results []pipeline.Result
				outcome pipeline.Outcome
			)
			err = withRunLock(ctx, func() error {
				results, outcome = o.ScanAll(ctx)
				return nil
			})
			if err != nil {
				return err
			}

			var errs []error
			for _, res := range results {
				logTimeline(o.Timeline(), res.RunID)
				if err := res.Err(); err != nil {
					errs = append(errs, err)
				}
			}
			return outcomeError(outcome, errors.Join(errs...))
		},
	}
}

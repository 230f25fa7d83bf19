package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/seedreap/postreap/internal/invoke"
	"github.com/seedreap/postreap/internal/pipeline"
)

func newNZBGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "nzbget",
		Short: "Post-process an NZBGet download",
		Long: `Run as an NZBGet post-processing script. The download is read from the
NZBPP_* environment and the exit code follows NZBGet's convention:
93 for success, 94 for failure and 95 when there was nothing to do.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			log.Info().Msg("script triggered from NZBGet")

			job, err := invoke.NZBGet(os.LookupEnv, afero.NewOsFs(), log.Logger)
			if err != nil {
				return &exitError{code: invoke.NZBGetError, err: err}
			}
			if job.Skip {
				return &exitError{code: invoke.NZBGetNone}
			}

			res, err := processRequest(ctx, job.Request)
			if err != nil {
				return &exitError{code: invoke.NZBGetError, err: err}
			}
			if res.Outcome != pipeline.Success {
				return &exitError{code: invoke.NZBGetError, err: res.Err()}
			}
			return &exitError{code: invoke.NZBGetSuccess}
		},
	}
}

func newSABnzbdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sabnzbd DIR NZB_NAME CLEAN_NAME REPORT CATEGORY GROUP STATUS [FAILURE_URL]",
		Short: "Post-process a SABnzbd download",
		Args:  cobra.RangeArgs(7, 8),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			log.Info().Msg("script triggered from SABnzbd")

			req, err := invoke.SABnzbd(args)
			if err != nil {
				return err
			}

			res, err := processRequest(ctx, req)
			if err != nil {
				return err
			}
			return outcomeError(res.Outcome, res.Err())
		},
	}
}

func newTorrentCommand() *cobra.Command {
	var client string

	cmd := &cobra.Command{
		Use:   "torrent [ARGS...]",
		Short: "Post-process a finished torrent",
		Long: `Run from a torrent client's completion hook. The arguments depend on
the client:

  rtorrent, qbittorrent  DIR [NAME [LABEL [HASH]]]
  utorrent               DIR NAME [LABEL [HASH]]
  deluge                 ID NAME DIR
  transmission           none, TR_TORRENT_* environment variables are read
  other                  DIR

--client defaults to torrent.client from the config file.`,
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			if client == "" {
				client = appConfig.Torrent.Client
			}
			if client == "" {
				client = invoke.ClientOther
			}

			req, err := invoke.Torrent(client, args, os.LookupEnv)
			if err != nil {
				return err
			}

			log.Info().Str("client", req.Client).Str("dir", req.Dir).Msg("script triggered from torrent client")

			res, err := processRequest(ctx, req)
			if err != nil {
				return err
			}
			return outcomeError(res.Outcome, res.Err())
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "invoking torrent client (rtorrent, utorrent, deluge, transmission, qbittorrent, other)")
	return cmd
}

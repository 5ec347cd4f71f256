package enrich

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/llehouerou/bpmdata/internal/app"
	"github.com/llehouerou/bpmdata/internal/catalogue"
	"github.com/llehouerou/bpmdata/internal/errmsg"
	"github.com/llehouerou/bpmdata/internal/musicbrainz"
)

// Command looks up MusicBrainz ids for catalogued artists and releases.
func Command(actx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Fill missing MusicBrainz ids of artists and releases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := actx.Logger()

			s, err := actx.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			cat := catalogue.New(s.DB(), s.Driver())
			if err := cat.CreateTables(ctx); err != nil {
				return errmsg.Error(errmsg.OpCreateTables, err)
			}

			var opts []musicbrainz.Option
			mbCfg := actx.Config.MusicBrainz
			if mbCfg.BaseURL != "" {
				opts = append(opts, musicbrainz.WithBaseURL(mbCfg.BaseURL))
			}
			if mbCfg.UserAgent != "" {
				opts = append(opts, musicbrainz.WithUserAgent(mbCfg.UserAgent))
			}

			stats, err := cat.Enrich(ctx, musicbrainz.NewClient(opts...), logger)
			if err != nil {
				return errmsg.Error(errmsg.OpEnrich, err)
			}

			logger.Info("enrich finished",
				"artists", stats.Artists,
				"releases", stats.Releases,
				"unmatched", stats.Unmatched,
				"failed", stats.Failed,
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Enriched %d artists and %d releases (%d unmatched, %d failed lookups)\n",
				stats.Artists, stats.Releases, stats.Unmatched, stats.Failed)
			return nil
		},
	}
}

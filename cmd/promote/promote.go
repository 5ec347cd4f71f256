package promote

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/bpmdata/internal/app"
	"github.com/llehouerou/bpmdata/internal/catalogue"
	"github.com/llehouerou/bpmdata/internal/errmsg"
)

// Command promotes scanned records into the catalogue.
func Command(actx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "promote",
		Short: "Create catalogue entries from scanned tracks with an artist and a title",
		Long: "Reads every scanned track carrying both an artist and a title and creates the\n" +
			"matching artist, genre, release and track rows. Running it again is safe.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
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

			stats, err := cat.Promote(ctx, s, logger)
			if err != nil {
				return errmsg.Error(errmsg.OpPromote, err)
			}

			logger.Info("promote finished",
				"scanned", stats.Scanned,
				"created", stats.Created,
				"existing", stats.Existing,
				"skipped", stats.Skipped,
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Promoted %s scanned tracks: %s created, %s already catalogued, %s skipped\n",
				humanize.Comma(int64(stats.Scanned)),
				humanize.Comma(int64(stats.Created)),
				humanize.Comma(int64(stats.Existing)),
				humanize.Comma(int64(stats.Skipped)),
			)
			return nil
		},
	}
}

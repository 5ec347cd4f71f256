package serve

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/llehouerou/bpmdata/internal/app"
	"github.com/llehouerou/bpmdata/internal/catalogue"
	"github.com/llehouerou/bpmdata/internal/errmsg"
	"github.com/llehouerou/bpmdata/internal/metrics"
	"github.com/llehouerou/bpmdata/internal/server"
)

// Command serves the read-only JSON API.
func Command(actx *app.Context) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalogue and scanned tracks over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if listen == "" {
				listen = actx.Config.ListenAddr()
			}

			s, err := actx.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			cat := catalogue.New(s.DB(), s.Driver())
			if err := cat.CreateTables(ctx); err != nil {
				return errmsg.Error(errmsg.OpCreateTables, err)
			}

			m, err := metrics.New()
			if err != nil {
				return errmsg.Error(errmsg.OpServe, err)
			}

			srv := server.New(server.Config{
				Catalogue: cat,
				Scanned:   s,
				Logger:    actx.Logger(),
				Metrics:   m.Handler(),
			})
			if err := srv.Run(ctx, listen); err != nil {
				return errmsg.Error(errmsg.OpServe, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config, 127.0.0.1:8080)")
	return cmd
}

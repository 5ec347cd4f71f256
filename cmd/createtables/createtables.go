package createtables

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llehouerou/bpmdata/internal/app"
	"github.com/llehouerou/bpmdata/internal/catalogue"
	"github.com/llehouerou/bpmdata/internal/errmsg"
)

// Command creates the schema of the record store and the catalogue.
func Command(actx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "create-tables",
		Short: "Create the scanned-track and catalogue tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			// Opening the store creates the scanned-track schema.
			s, err := actx.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := catalogue.New(s.DB(), s.Driver()).CreateTables(ctx); err != nil {
				return errmsg.Error(errmsg.OpCreateTables, err)
			}

			actx.Logger().Info("tables created", "driver", s.Driver())
			fmt.Fprintln(cmd.OutOrStdout(), "Tables created.")
			return nil
		},
	}
}

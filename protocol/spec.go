package protocol

import (
	"github.com/spf13/cobra"

	"github.com/nodefeed/nodefeed/client"
	"github.com/nodefeed/nodefeed/traversal"
	"github.com/nodefeed/nodefeed/utils"
	"github.com/nodefeed/nodefeed/utils/logger"
)

// specCmd emits the configuration surface as a fully populated example with
// every default applied, so a host can template its own config from it.
var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "spec command",
	RunE: func(_ *cobra.Command, _ []string) error {
		sample := &traversal.Config{
			Dialect: "mssql",
			Admin: &client.ConnConfig{
				Host:     "localhost",
				Port:     1433,
				Database: "contentdb",
				Username: "admin-user",
				Password: "admin-password",
			},
			Impersonated: &client.ConnConfig{
				Host:     "localhost",
				Port:     1433,
				Database: "contentdb",
				Username: "crawl-user",
				Password: "crawl-password",
			},
			IncludedLocationNodes: "2000",
			ExcludedVolumeTypes:   "161,162",
			TrackDeletes:          true,
			UseAncestorTable:      true,
			FuzzDays:              1,
		}
		if err := sample.Validate(); err != nil {
			return err
		}
		logger.Info(utils.ToJSON(map[string]any{"spec": sample}))
		return nil
	},
}

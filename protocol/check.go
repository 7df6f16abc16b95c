package protocol

import (
	"github.com/spf13/cobra"

	"github.com/nodefeed/nodefeed/traversal"
	"github.com/nodefeed/nodefeed/types"
	"github.com/nodefeed/nodefeed/utils"
	"github.com/nodefeed/nodefeed/utils/logger"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "check command",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return loadConfig()
	},
	Run: func(cmd *cobra.Command, _ []string) {
		err := func() error {
			manager, err := traversal.NewManager(cmd.Context(), config)
			if err != nil {
				return err
			}
			return manager.Close()
		}()

		// log success
		message := types.Message{
			Type: types.ConnectionStatusMessage,
			ConnectionStatus: &types.StatusRow{
				Status: types.ConnectionSucceed,
			},
		}
		if err != nil {
			message.ConnectionStatus.Message = err.Error()
			message.ConnectionStatus.Status = types.ConnectionFailed
		}
		logger.Info(utils.ToJSON(message))
	},
}

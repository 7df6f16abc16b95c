package protocol

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nodefeed/nodefeed/traversal"
	"github.com/nodefeed/nodefeed/types"
	"github.com/nodefeed/nodefeed/utils"
	"github.com/nodefeed/nodefeed/utils/logger"
)

// syncCmd drives the traversal until the source is caught up, emitting one
// BATCH message per produced batch and checkpointing the state file after
// every call.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "sync command",
	Long:  `Sync traverses the change feed from the persisted checkpoint and emits batches until nothing new remains`,
	Example: `
// Base command:
nodefeed sync --config path/to/config.json

// With explicit state:
nodefeed sync --config path/to/config.json --state path/to/state.json
`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return loadConfig()
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		syncID := uuid.New().String()
		logger.Infof("starting sync %s", syncID)

		manager, err := traversal.NewManager(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer manager.Close()
		if batchHint > 0 {
			if err := manager.SetBatchHint(int(batchHint)); err != nil {
				return err
			}
		}

		state, err := loadState()
		if err != nil {
			return err
		}

		for cmd.Context().Err() == nil {
			var batch *types.Batch
			if state.Cursor == "" {
				batch, err = manager.StartTraversal(cmd.Context())
			} else {
				batch, err = manager.ResumeTraversal(cmd.Context(), state.Cursor)
			}
			if err != nil {
				return err
			}

			state.Cursor = batch.NextCursor
			if err := persistState(state); err != nil {
				return err
			}

			switch batch.Outcome {
			case types.BatchReady:
				logger.Info(utils.ToJSON(types.Message{Type: types.BatchMessage, Batch: batch}))
			case types.BatchEmptyAdvance:
				// nothing produced but the cursor moved; go again
			case types.BatchNothingNew:
				logger.Infof("sync %s caught up at checkpoint %q", syncID, batch.NextCursor)
				return nil
			}
		}
		return cmd.Context().Err()
	},
}

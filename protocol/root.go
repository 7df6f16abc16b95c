package protocol

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nodefeed/nodefeed/constants"
	"github.com/nodefeed/nodefeed/traversal"
	"github.com/nodefeed/nodefeed/utils"
	"github.com/nodefeed/nodefeed/utils/logger"
)

var (
	configPath string
	statePath  string
	batchHint  int64
	timeout    int64 // timeout in seconds
	noSave     bool

	config *traversal.Config

	commands = []*cobra.Command{}
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "nodefeed",
	Short: "incremental change-feed traversal over a content server node hierarchy",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// set global variables

		viper.SetDefault(constants.ConfigFolder, os.TempDir())
		viper.SetDefault(constants.StatePath, filepath.Join(os.TempDir(), "state.json"))
		if !noSave && configPath != "not-set" {
			configFolder := filepath.Dir(configPath)
			statePathEnv := utils.Ternary(statePath == "", filepath.Join(configFolder, "state.json"), statePath).(string)
			viper.Set(constants.ConfigFolder, configFolder)
			viper.Set(constants.StatePath, statePathEnv)
		}

		// logger uses CONFIG_FOLDER; with --no-save the package-level
		// console logger stays in effect and no log file is written
		if !noSave {
			logger.Init()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func Execute() {
	RootCmd.AddCommand(commands...)
	// Disable Cobra CLI's built-in usage and error handling
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
	if err := RootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
}

func loadConfig() error {
	if configPath == "not-set" {
		return fmt.Errorf("no source config provided, use --config")
	}
	config = &traversal.Config{}
	if err := utils.UnmarshalFile(configPath, config); err != nil {
		return err
	}
	if timeout > 0 {
		config.TimeBudgetSeconds = int(timeout)
	}
	return config.Validate()
}

func init() {
	commands = append(commands, specCmd, checkCmd, syncCmd)
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "", "not-set", "(Required) Config for the source")
	RootCmd.PersistentFlags().StringVarP(&statePath, "state", "", "", "(Optional) State file holding the last checkpoint")
	RootCmd.PersistentFlags().Int64VarP(&batchHint, "batch-size", "", 0, "(Optional) Batch size hint; 0 keeps the configured size")
	RootCmd.PersistentFlags().Int64VarP(&timeout, "timeout", "", -1, "(Optional) Timeout to override the scan budget (in seconds)")
	RootCmd.PersistentFlags().BoolVarP(&noSave, "no-save", "", false, "(Optional) Flag to skip writing the state file and log files")
}

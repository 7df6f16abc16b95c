package protocol

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/nodefeed/nodefeed/constants"
	"github.com/nodefeed/nodefeed/utils"
)

// State is the persisted traversal position. The cursor string is opaque;
// it is stored and replayed verbatim.
type State struct {
	Cursor string `json:"cursor"`
}

func loadState() (*State, error) {
	state := &State{}
	path := viper.GetString(constants.StatePath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return state, nil
	}
	if err := utils.UnmarshalFile(path, state); err != nil {
		return nil, err
	}
	return state, nil
}

// persistState writes the state file unless --no-save disabled artifacts.
func persistState(s *State) error {
	if noSave {
		return nil
	}
	return s.Save()
}

func (s *State) Save() error {
	content, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %s", err)
	}
	path := viper.GetString(constants.StatePath)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write state file %s: %s", path, err)
	}
	return nil
}

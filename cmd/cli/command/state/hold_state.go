package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"
)

// HoldState describes an uplink kept open by `uplinkctl connect`
type HoldState struct {
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	ConnectedAt time.Time `json:"connected_at"`
	PID         int       `json:"pid"` // process holding the uplink
}

func GetStateFilePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".uplinkhub", "hold_state.json")
}

func SaveHoldState(state *HoldState) error {
	stateDir := filepath.Dir(GetStateFilePath())
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(GetStateFilePath(), data, 0600)
}

// LoadHoldState returns nil, nil when no uplink is being held
func LoadHoldState() (*HoldState, error) {
	data, err := os.ReadFile(GetStateFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var state HoldState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func ClearHoldState() error {
	err := os.Remove(GetStateFilePath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsProcessRunning checks if the process holding the uplink is still alive
func (s *HoldState) IsProcessRunning() bool {
	if s.PID == 0 {
		return false
	}

	process, err := os.FindProcess(s.PID)
	if err != nil {
		return false
	}

	if runtime.GOOS == "windows" {
		// FindProcess opens a handle on Windows and fails for a dead PID,
		// Signal(0) is not supported there
		process.Release()
		return true
	}

	// On Unix, signal 0 checks that the process exists
	return process.Signal(syscall.Signal(0)) == nil
}

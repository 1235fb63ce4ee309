// Package main provides a transition hook that shows a desktop notification
// whenever the tree changes state.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Event represents the input from the hook executor.
type Event struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	To        string `json:"to"`
	Cause     string `json:"cause"`
	Timestamp string `json:"timestamp"`
}

// Response represents the output to the hook executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

var messages = map[string]string{
	"CLOSED":   "The tree gathered itself back together.",
	"EXPLODED": "The tree burst into a cloud of ornaments.",
	"ZOOMED":   "A photo floated up for a closer look.",
}

func main() {
	var ev Event
	if err := json.NewDecoder(os.Stdin).Decode(&ev); err != nil {
		writeResponse(fmt.Errorf("failed to decode event: %w", err))
		return
	}

	body, ok := messages[ev.To]
	if !ok {
		writeResponse(fmt.Errorf("unknown state: %s", ev.To))
		return
	}

	writeResponse(notify("Tinsel", body))
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// notify shows a desktop notification with notify-send or AppleScript.
func notify(title, body string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		cmd = exec.Command("osascript", "-e", fmt.Sprintf("display notification %q with title %q", body, title))
	} else {
		cmd = exec.Command("notify-send", title, body)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

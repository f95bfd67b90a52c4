package commands

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ashmit2704/taskboard/internal/events"
	"github.com/ashmit2704/taskboard/internal/printer"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the live board event stream",
	Long: `Tail the live board event stream.

Connects to the server's websocket and prints every broadcast event:
edits, status moves, deletions, lock activity and conflict resolutions.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// wireEvent mirrors the server's event envelope with the payload left raw.
type wireEvent struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return printer.Error("Cannot connect", err.Error(), []string{
			"Check that boardd is running at " + serverURL,
		})
	}
	defer conn.Close()

	// Bind our identity to the connection.
	if err := conn.WriteJSON(map[string]string{
		"action":   "hello",
		"userId":   userID,
		"userName": userName,
	}); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	printer.Info("Watching %s (ctrl-c to stop)\n", wsURL)
	for {
		var ev wireEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if ev.Type == "" || ev.Type == "connected" {
			continue
		}
		printer.Println(printer.EventLine(events.Kind(ev.Type), eventDetail(ev)))
	}
}

// websocketURL rewrites the HTTP base URL onto the /ws endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// eventDetail pulls a human line out of the payload for each event kind.
func eventDetail(ev wireEvent) string {
	switch events.Kind(ev.Type) {
	case events.KindActivityLogged:
		var p events.ActivityPayload
		if json.Unmarshal(ev.Data, &p) == nil {
			return p.DisplayText
		}
	case events.KindTaskUpdated:
		var p events.TaskPayload
		if json.Unmarshal(ev.Data, &p) == nil && p.Task != nil {
			return fmt.Sprintf("%q is now v%d", p.Task.Title, p.Task.Version)
		}
	case events.KindStatusUpdated:
		var p events.StatusPayload
		if json.Unmarshal(ev.Data, &p) == nil && p.Task != nil {
			return fmt.Sprintf("%q moved to %s (v%d)", p.Task.Title, p.NewStatus, p.Task.Version)
		}
	case events.KindTaskDeleted:
		var p events.DeletedPayload
		if json.Unmarshal(ev.Data, &p) == nil {
			return fmt.Sprintf("task %s removed", p.TaskID)
		}
	case events.KindTaskLocked:
		var p events.LockedPayload
		if json.Unmarshal(ev.Data, &p) == nil {
			return fmt.Sprintf("task %s being edited by %s", p.TaskID, p.EditorName)
		}
	case events.KindTaskUnlocked:
		var p events.UnlockedPayload
		if json.Unmarshal(ev.Data, &p) == nil {
			return fmt.Sprintf("task %s unlocked", p.TaskID)
		}
	case events.KindConflictDetected:
		var p events.ConflictDetectedPayload
		if json.Unmarshal(ev.Data, &p) == nil {
			return fmt.Sprintf("task %s has conflicting edits (v%d vs v%d)", p.TaskID, p.ClaimedVersion, p.CurrentVersion)
		}
	case events.KindConflictResolved:
		var p events.ConflictResolvedPayload
		if json.Unmarshal(ev.Data, &p) == nil && p.Task != nil {
			return fmt.Sprintf("%q resolved via %s (v%d)", p.Task.Title, p.Resolution, p.Task.Version)
		}
	}
	return string(ev.Data)
}

package commands

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ashmit2704/taskboard/internal/models"
	"github.com/ashmit2704/taskboard/internal/printer"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the tasks on the board",
	RunE:  runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	req, err := http.NewRequest(http.MethodGet, serverURL+"/tasks", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-ID", userID)
	req.Header.Set("X-User-Name", userName)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return printer.Error("Cannot reach server", err.Error(), []string{
			"Check that boardd is running at " + serverURL,
			"Pass --server to point at another address",
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return printer.Error("Server error", resp.Status, nil)
	}

	var tasks []*models.Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return err
	}

	if len(tasks) == 0 {
		printer.Info("No tasks on the board.\n")
		return nil
	}
	for _, task := range tasks {
		printer.Println(printer.TaskLine(task))
	}
	return nil
}

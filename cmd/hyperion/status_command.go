package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"hyperion/internal/api"
	"hyperion/internal/config"
	"hyperion/internal/queue"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cluster health and worker fleet state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				view, err := api.FleetStatus(cmd.Context(), cfg, store)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				health := view.Health
				if shouldColorize(out) {
					health = colorizeHealth(health)
				}
				fmt.Fprintf(out, "Cluster: %s (%d active, %d working, %d queued)\n\n",
					health, view.Active, view.Working, view.QueueDepth)

				rows := make([][]string, 0, len(view.Units))
				for _, unit := range view.Units {
					rows = append(rows, []string{
						strconv.FormatInt(unit.ID, 10),
						unit.Name,
						unit.State,
						shortTaskID(unit.CurrentTaskID),
						strconv.Itoa(unit.DailyTaskCount),
						unit.LastPing,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{
						{title: "ID", numeric: true},
						{title: "Name"},
						{title: "State"},
						{title: "Task"},
						{title: "Today", numeric: true},
						{title: "Last Ping"},
					},
					rows,
				))

				if len(view.TaskStats) > 0 {
					statRows := make([][]string, 0, len(view.TaskStats))
					for _, status := range queue.AllStatuses() {
						if count, ok := view.TaskStats[string(status)]; ok {
							statRows = append(statRows, []string{string(status), strconv.Itoa(count)})
						}
					}
					fmt.Fprintln(out, renderTable(
						[]column{{title: "Status"}, {title: "Count", numeric: true}},
						statRows,
					))
				}
				return nil
			})
		},
	}
}

func colorizeHealth(health string) string {
	switch health {
	case "Optimal":
		return ansiGreen + health + ansiReset
	case "Stressed":
		return ansiYellow + health + ansiReset
	case "Degraded":
		return ansiRed + health + ansiReset
	default:
		return health
	}
}

func shortTaskID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

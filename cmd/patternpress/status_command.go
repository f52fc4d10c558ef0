package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"patternpress/internal/api"
)

var titleCaser = cases.Title(language.English)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			queueStatus, err := client.QueueStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Field", "Value"},
				[][]string{
					{"Daemon", titleCaser.String(health.Status)},
					{"Editor Running", yesNo(health.EditorRunning)},
					{"Queue Length", strconv.Itoa(queueStatus.QueueLength)},
					{"Processing", yesNo(queueStatus.IsProcessing)},
					{"Current Job", formatJobID(queueStatus.CurrentJobID)},
				},
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func formatJobID(id int64) string {
	if id == 0 {
		return "-"
	}
	return "#" + strconv.FormatInt(id, 10)
}

func statusLabel(status string) string {
	return titleCaser.String(status)
}

func queueRows(jobs []api.QueueJob) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := job.ProgressMessage
		if job.ErrorMessage != "" {
			detail = job.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.SourceName,
			statusLabel(job.Status),
			fmt.Sprintf("%.0f%%", job.ProgressPercent),
			detail,
		})
	}
	return rows
}

package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/cron"
)

// CronTool schedules reminders and recurring tasks for the current
// session.
type CronTool struct {
	Service *cron.Service
}

// NewCronTool creates a new CronTool.
func NewCronTool(service *cron.Service) *CronTool {
	return &CronTool{Service: service}
}

func (t *CronTool) Name() string {
	return "cron"
}

func (t *CronTool) Description() string {
	return "Schedule reminders and recurring tasks. Actions: add, list, remove."
}

func (t *CronTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"add", "list", "remove"},
				"description": "Action to perform",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Reminder message (for add)",
			},
			"every_seconds": map[string]any{
				"type":        "integer",
				"description": "Interval in seconds (for recurring tasks)",
			},
			"run_in_seconds": map[string]any{
				"type":        "integer",
				"description": "Run once after N seconds (for one-time tasks)",
			},
			"cron_expr": map[string]any{
				"type":        "string",
				"description": "Cron expression like '0 9 * * *' (for scheduled tasks)",
			},
			"job_id": map[string]any{
				"type":        "string",
				"description": "Job ID (for remove)",
			},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(_ context.Context, tc *ToolContext, args map[string]any) (string, error) {
	action := args["action"].(string)

	message, _ := args["message"].(string)
	everySeconds, _ := args["every_seconds"].(float64)
	runInSeconds, _ := args["run_in_seconds"].(float64)
	cronExpr, _ := args["cron_expr"].(string)
	jobID, _ := args["job_id"].(string)

	switch action {
	case "add":
		return t.addJob(tc, message, int(everySeconds), int(runInSeconds), cronExpr)
	case "list":
		return t.listJobs()
	case "remove":
		return t.removeJob(jobID)
	}
	return fmt.Sprintf("Unknown action: %s", action), nil
}

func (t *CronTool) addJob(tc *ToolContext, message string, everySeconds, runInSeconds int, cronExpr string) (string, error) {
	if message == "" {
		return "Error: message is required for add", nil
	}

	var schedule cron.Schedule
	deleteAfterRun := false
	switch {
	case runInSeconds > 0:
		schedule = cron.Schedule{
			Kind: "at",
			AtMs: time.Now().UnixNano()/int64(time.Millisecond) + int64(runInSeconds)*1000,
		}
		deleteAfterRun = true
	case everySeconds > 0:
		schedule = cron.Schedule{Kind: "every", EveryMs: int64(everySeconds) * 1000}
	case cronExpr != "":
		schedule = cron.Schedule{Kind: "cron", Expr: cronExpr}
	default:
		return "Error: either every_seconds, run_in_seconds, or cron_expr is required", nil
	}

	name := message
	if len(name) > 30 {
		name = name[:30]
	}

	job := t.Service.AddJob(name, schedule, message, true, tc.SessionKey, deleteAfterRun)
	return fmt.Sprintf("Created job '%s' (id: %s)", job.Name, job.ID), nil
}

func (t *CronTool) listJobs() (string, error) {
	jobs := t.Service.ListJobs()
	if len(jobs) == 0 {
		return "No scheduled jobs.", nil
	}

	var sb strings.Builder
	sb.WriteString("Scheduled jobs:\n")
	for _, j := range jobs {
		sb.WriteString(fmt.Sprintf("- %s (id: %s, %s)\n", j.Name, j.ID, j.Schedule.Kind))
	}
	return sb.String(), nil
}

func (t *CronTool) removeJob(jobID string) (string, error) {
	if jobID == "" {
		return "Error: job_id is required for remove", nil
	}
	if t.Service.RemoveJob(jobID) {
		return fmt.Sprintf("Removed job %s", jobID), nil
	}
	return fmt.Sprintf("Job %s not found", jobID), nil
}

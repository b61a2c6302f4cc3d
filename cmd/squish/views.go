package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"squish/internal/ipc"
)

var statusTitler = cases.Title(language.Und)

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return statusTitler.String(strings.ReplaceAll(status, "_", " "))
}

func formatProgress(status string, progress float64) string {
	switch status {
	case "running", "paused":
		return fmt.Sprintf("%3.0f%%", progress*100)
	case "completed":
		return "100%"
	default:
		return "-"
	}
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func buildJobRows(jobs []ipc.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		title := strings.TrimSpace(job.MediaTitle)
		if title == "" {
			title = job.MediaID
		}
		path := job.ChosenPath
		if path == "" {
			path = "-"
		}
		rows = append(rows, []string{
			shortID(job.ID),
			title,
			job.Preset,
			formatStatusLabel(job.Status),
			formatProgress(job.Status, job.Progress),
			path,
			fmt.Sprintf("%d", job.Priority),
			formatDisplayTime(job.QueuedAt),
		})
	}
	return rows
}

func buildStatsRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildHardwareRows(report ipc.HardwareReport) [][]string {
	rows := make([][]string, 0, len(report.Capabilities))
	for _, capability := range report.Capabilities {
		state := "no"
		if capability.Working {
			state = "yes"
		}
		detail := capability.Detail
		if detail == "" {
			detail = "-"
		}
		device := capability.Device
		if device == "" {
			device = "-"
		}
		rows = append(rows, []string{capability.Backend, state, device, detail})
	}
	return rows
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
)

func colorizeRunning(text string, running, colorize bool) string {
	if !colorize {
		return text
	}
	if running {
		return ansiGreen + text + ansiReset
	}
	return ansiRed + text + ansiReset
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"vigil/internal/backend"
)

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatConfidence(confidence float64) string {
	return fmt.Sprintf("%.0f%%", confidence*100)
}

func formatMediaID(mediaID *int64) string {
	if mediaID == nil {
		return "-"
	}
	return strconv.FormatInt(*mediaID, 10)
}

// parseAnswerFlags turns repeated key=value flags into the questionnaire map.
func parseAnswerFlags(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	answers := make(map[string]string, len(values))
	for _, value := range values {
		key, val, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("answer %q is not key=value", value)
		}
		answers[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return answers, nil
}

func joinTaskIDs(tasks []backend.BulkTask) string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.TaskID)
	}
	return strings.Join(ids, ",")
}

func protestIDFlag(value int64) *int64 {
	if value <= 0 {
		return nil
	}
	return &value
}

// Package stats summarizes a results file after a tracked run: task outcome
// counts, dataset/resource totals, and overall elapsed wall time.
package stats

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hotosm/tm-extractor/internal/domain"
)

// Summary is the aggregate view over one results file.
type Summary struct {
	TotalTasks      int            `json:"total_tasks"`
	SuccessfulTasks int            `json:"successful_tasks"`
	FailedTasks     int            `json:"failed_tasks"`
	TotalDatasets   int            `json:"total_datasets"`
	TotalResources  int            `json:"total_resources"`
	TotalElapsed    string         `json:"total_elapsed_time"`
	DatasetCounts   map[string]int `json:"dataset_counts"`
}

// taskResult is the raw-data API success payload shape the summary reads.
// Datasets entries are single-key mappings from dataset name to its resources.
type taskResult struct {
	StartedAt   string                        `json:"started_at"`
	ElapsedTime string                        `json:"elapsed_time"`
	Datasets    []map[string]datasetResources `json:"datasets"`
}

type datasetResources struct {
	Resources []json.RawMessage `json:"resources"`
}

// Summarize aggregates a report. String entries (failure markers and the
// no-result placeholder) count as failed; object entries are success payloads.
func Summarize(report domain.Report) (*Summary, error) {
	summary := &Summary{
		TotalTasks:    len(report),
		DatasetCounts: make(map[string]int),
	}

	var startTimes, endTimes []time.Time

	for taskID, raw := range report {
		var marker string
		if err := json.Unmarshal(raw, &marker); err == nil {
			summary.FailedTasks++
			continue
		}

		var result taskResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unreadable result for task %s: %w", taskID, err)
		}
		summary.SuccessfulTasks++

		if startedAt, err := time.Parse(time.RFC3339, result.StartedAt); err == nil {
			startTimes = append(startTimes, startedAt)
			endTimes = append(endTimes, startedAt.Add(parseElapsed(result.ElapsedTime)))
		}

		summary.TotalDatasets += len(result.Datasets)
		for _, dataset := range result.Datasets {
			for name, contents := range dataset {
				summary.TotalResources += len(contents.Resources)
				summary.DatasetCounts[name] += len(contents.Resources)
			}
		}
	}

	summary.TotalElapsed = totalElapsed(startTimes, endTimes).String()
	return summary, nil
}

// elapsedPattern matches the humanized durations the raw-data API reports:
// "2 minutes", "3 seconds", "a minute", "an hour".
var elapsedPattern = regexp.MustCompile(`^(?:(\d+) (\w+)|an? (\w+))`)

var unitSeconds = map[string]int{
	"second": 1,
	"minute": 60,
	"hour":   3600,
	"day":    86400,
}

// parseElapsed converts a humanized elapsed-time string to a duration.
// Unknown units fall back to seconds.
func parseElapsed(s string) time.Duration {
	match := elapsedPattern.FindStringSubmatch(s)
	if match == nil {
		return 0
	}

	value := 1
	unit := match[3]
	if match[1] != "" {
		value, _ = strconv.Atoi(match[1])
		unit = match[2]
	}

	unit = strings.TrimSuffix(unit, "s")
	seconds, ok := unitSeconds[unit]
	if !ok {
		seconds = 1
	}
	return time.Duration(value*seconds) * time.Second
}

// totalElapsed is the wall-time span from the earliest start to the latest end.
func totalElapsed(starts, ends []time.Time) time.Duration {
	if len(starts) == 0 || len(ends) == 0 {
		return 0
	}
	earliest := starts[0]
	for _, t := range starts[1:] {
		if t.Before(earliest) {
			earliest = t
		}
	}
	latest := ends[0]
	for _, t := range ends[1:] {
		if t.After(latest) {
			latest = t
		}
	}
	return latest.Sub(earliest)
}

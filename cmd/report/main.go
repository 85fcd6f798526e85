package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/hotosm/tm-extractor/internal/domain"
	"github.com/hotosm/tm-extractor/internal/logger"
	"github.com/hotosm/tm-extractor/internal/stats"
)

func main() {
	path := flag.String("file", "result.json", "Path to the results file to summarize")
	flag.Parse()

	appLogger := logger.New(logger.LoadFromEnv())

	data, err := os.ReadFile(*path)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to read results file")
	}

	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		appLogger.WithError(err).Fatal("Failed to parse results file")
	}

	summary, err := stats.Summarize(report)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to summarize results")
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to encode summary")
	}
	fmt.Println(string(out))
}

package service

import (
	"io"

	"github.com/hotosm/tm-extractor/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{
		Level:  "error",
		Format: "text",
		Output: io.Discard,
	})
}

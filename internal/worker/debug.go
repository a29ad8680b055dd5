package worker

import (
	"os"
	"strings"

	"servicechat/internal/observability"
)

var workerDebugEnabled = strings.EqualFold(os.Getenv("SERVICECHAT_WORKER_DEBUG"), "1")

func debugLog(msg string, args ...any) {
	if workerDebugEnabled {
		observability.WithFields("component", "worker").Info(msg, args...)
		return
	}
	observability.WithFields("component", "worker").Debug(msg, args...)
}

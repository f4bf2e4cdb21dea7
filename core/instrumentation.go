package orchestration

import (
	"go.opentelemetry.io/otel"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/duplexkit/voice-core/core"

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

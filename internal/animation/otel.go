package animation

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/vfproof/keyframer/internal/animation"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

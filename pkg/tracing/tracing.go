package tracing

import (
	"fmt"

	"github.com/opentracing/opentracing-go"
	jCfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

type Config struct {
	ServiceName string
	Host        string
	Port        int
}

// InitTracer registers a Jaeger tracer as the global opentracing tracer.
// The returned func flushes and closes the reporter.
func InitTracer(conf Config) (opentracing.Tracer, func() error, error) {
	cfg := &jCfg.Configuration{
		ServiceName: conf.ServiceName,
		Sampler: &jCfg.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &jCfg.ReporterConfig{
			LogSpans:           true,
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	jMetricsFactory := metrics.NullFactory
	tracer, closer, err := cfg.NewTracer(
		jCfg.Metrics(jMetricsFactory),
	)
	if err != nil {
		return nil, nil, err
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer.Close, nil
}

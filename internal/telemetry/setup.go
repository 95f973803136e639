package telemetry

import (
	"context"
	"errors"
	"net/http"
)

// Setup installs the tracer and meter providers for a service. The returned
// shutdown flushes both.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (http.Handler, func(context.Context) error, error) {
	shutdownTracer, err := InitTracerProvider(ctx, serviceName, serviceVersion, endpoint)
	if err != nil {
		return nil, nil, err
	}

	metricsHandler, shutdownMeter, err := InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		_ = shutdownTracer(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(shutdownMeter(ctx), shutdownTracer(ctx))
	}
	return metricsHandler, shutdown, nil
}

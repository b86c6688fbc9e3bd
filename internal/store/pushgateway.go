package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushMetrics replaces the metrics of job on the Pushgateway at url with
// everything g gathers.
func PushMetrics(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if url == "" {
		return errors.New("pushgateway url is required")
	}
	if job == "" {
		return errors.New("pushgateway job is required")
	}
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

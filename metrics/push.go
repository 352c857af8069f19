package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-nodeprops/metrics/public"
)

// PushConfig configures pushing of public metrics to a prometheus push gateway.
type PushConfig struct {
	URL      string            `mapstructure:"metrics-push"`
	Period   time.Duration     `mapstructure:"metrics-push-period"`
	User     string            `mapstructure:"metrics-push-user"`
	Password string            `mapstructure:"metrics-push-pass"`
	Headers  map[string]string `mapstructure:"metrics-push-header"`
}

// StartPushingMetrics pushes the public registry every period until ctx is canceled.
func StartPushingMetrics(ctx context.Context, logger *zap.Logger, cfg PushConfig, nodeID string) {
	header := http.Header{}
	for k, v := range cfg.Headers {
		header.Add(k, v)
	}
	pusher := push.New(cfg.URL, "nodeprops").Gatherer(public.Registry).
		Grouping("node", nodeID).
		Header(header)
	if cfg.User != "" && cfg.Password != "" {
		pusher = pusher.BasicAuth(cfg.User, cfg.Password)
	}
	ticker := time.NewTicker(cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pusher.PushContext(ctx); err != nil {
				logger.Warn("failed to push metrics", zap.Error(err))
			}
		}
	}
}

package events

import (
	"context"

	"github.com/smallbiznis/importduty/internal/clock"
	"github.com/smallbiznis/importduty/internal/config"
	"github.com/smallbiznis/importduty/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

type publisherParams struct {
	fx.In

	Lc      fx.Lifecycle
	Cfg     config.Config
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewPublisher(p publisherParams) Publisher {
	if len(p.Cfg.Kafka.Brokers) == 0 {
		p.Log.Info("kafka brokers not configured, events disabled")
		return NoopPublisher{}
	}

	pub := NewKafkaPublisher(p.Cfg.Kafka.Brokers, p.Cfg.Kafka.VehiclesTopic, p.Clock, p.Log, p.Metrics)
	p.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub
}

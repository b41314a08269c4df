package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dshills/stickybus/internal/config"
	"github.com/dshills/stickybus/internal/event"
)

// BusOptions maps a bus configuration to event options. Unset fields keep
// the event package defaults. A nil reg leaves the bus metrics unregistered.
func BusOptions(bc config.BusConfig, logger *zap.SugaredLogger, reg prometheus.Registerer) []event.Option {
	opts := []event.Option{event.WithLogger(logger)}
	if reg != nil {
		opts = append(opts, event.WithMetrics(reg))
	}

	if bc.Resolver == config.ResolverNaming {
		opts = append(opts, event.WithResolver(event.NewNamingResolver(event.WithResolverLogger(logger))))
	}
	if bc.AsyncWorkers > 0 {
		opts = append(opts, event.WithAsyncWorkers(bc.AsyncWorkers))
	}
	if bc.AsyncQueueSize > 0 {
		opts = append(opts, event.WithAsyncQueueSize(bc.AsyncQueueSize))
	}
	if bc.EventInheritance != nil {
		opts = append(opts, event.WithEventInheritance(*bc.EventInheritance))
	}
	if bc.LogSubscriberExceptions != nil {
		opts = append(opts, event.WithLogSubscriberExceptions(*bc.LogSubscriberExceptions))
	}
	if bc.SendSubscriberExceptionEvent != nil {
		opts = append(opts, event.WithSubscriberExceptionEvent(*bc.SendSubscriberExceptionEvent))
	}
	if bc.LogNoSubscriberMessages != nil {
		opts = append(opts, event.WithLogNoSubscriberMessages(*bc.LogNoSubscriberMessages))
	}
	if bc.SendNoSubscriberEvent != nil {
		opts = append(opts, event.WithNoSubscriberEvent(*bc.SendNoSubscriberEvent))
	}
	return opts
}

package master

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuemby/colony/pkg/broker"
	"github.com/cuemby/colony/pkg/metrics"
	"github.com/cuemby/colony/pkg/registry"
	"github.com/cuemby/colony/pkg/results"
)

// registerBrokerHealth reports whether cfg.BrokerRef resolves in this
// process's registry. The master and its re-exec'd children share the
// same binary and the same init()-populated registry, so a lookup here
// predicts what a freshly spawned worker will find without needing to
// wait for one to crash with colonyerr.ExitImport first.
func (m *Master) registerBrokerHealth() {
	if _, ok := registry.Lookup[broker.Broker](m.cfg.BrokerRef); ok {
		metrics.RegisterComponent("broker", true, "")
	} else {
		metrics.RegisterComponent("broker", false, "not registered: "+m.cfg.BrokerRef)
	}
}

// registerCanteenHealth reports the canteen's state; called once it has
// either been opened or the caller has given up on it.
func (m *Master) registerCanteenHealth(err error) {
	if err != nil {
		metrics.RegisterComponent("canteen", false, err.Error())
		return
	}
	metrics.RegisterComponent("canteen", true, "")
}

// openResultsBackend builds the results.Backend cfg.ResultsBackend
// names and reports its health. The returned closer is non-nil only for
// backends that own a live connection (Redis); Memory has none.
func (m *Master) openResultsBackend(ctx context.Context) (results.Backend, io.Closer) {
	dsn := m.cfg.ResultsBackend
	switch {
	case strings.HasPrefix(dsn, "redis://"):
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			metrics.RegisterComponent("results", false, "parse results-backend: "+err.Error())
			return nil, nil
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			m.log.Warn().Err(err).Msg("results backend unreachable, continuing without readiness")
			metrics.RegisterComponent("results", false, err.Error())
		} else {
			metrics.RegisterComponent("results", true, "")
		}
		return results.NewRedis(client, m.cfg.ResultsNamespace), client

	default: // "memory://", validated by config.Validate
		metrics.RegisterComponent("results", true, "")
		return results.NewMemory(), nil
	}
}

// Package backend picks the Local or Remote InstanceFactory per spec
// §4.6's "Backend selection": a single environment switch at Registry
// construction time, never per-thread.
package backend

import (
	"log/slog"
	"net/http"

	"github.com/webitel/im-thread-gateway/internal/backend/local"
	"github.com/webitel/im-thread-gateway/internal/backend/remote"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
	"github.com/webitel/im-thread-gateway/internal/registry"
)

type Config struct {
	UseAgentOS bool
	AgentOSURL string
}

const replayCacheSize = 512

// NewFactory returns the registry.InstanceFactory matching cfg, closing
// over the shared collaborators (runtime factory / remote client) each
// backend needs.
func NewFactory(cfg Config, runtimeFactory local.Factory, logger *slog.Logger) registry.InstanceFactory {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UseAgentOS {
		client := remote.NewClient(cfg.AgentOSURL, http.DefaultClient)
		return func(base *instance.Base) instance.Instance {
			return remote.New(base, client, logger)
		}
	}

	if runtimeFactory == nil {
		runtimeFactory = local.NewEchoRuntimeFactory()
	}
	cache := local.NewReplayCache(replayCacheSize)
	return func(base *instance.Base) instance.Instance {
		rt := runtimeFactory(base.ThreadID(), base.ProjectName(), base.Username())
		return local.New(base, rt, cache, logger)
	}
}

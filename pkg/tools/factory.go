package tools

import (
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/ZaynJarvis/vikingbot/pkg/cron"
	"github.com/ZaynJarvis/vikingbot/pkg/viking"
)

// Deps are the collaborators the built-in tools need. Optional fields
// may be nil; the tools depending on them are then skipped.
type Deps struct {
	Config    *config.Config
	Bus       *bus.MessageBus
	Cron      *cron.Service
	Subagents SubagentSpawner
	Viking    viking.Client
}

func registerCommon(r *Registry, deps Deps) {
	r.Register(&ReadFileTool{})
	r.Register(&WriteFileTool{})
	r.Register(&EditFileTool{})
	r.Register(&AppendFileTool{})
	r.Register(&ListDirTool{})

	r.Register(NewExecTool(time.Duration(deps.Config.Tools.Exec.Timeout) * time.Second))
	r.Register(NewWebSearchTool(deps.Config.Tools.Web.Search.APIKey, deps.Config.Tools.Web.Search.MaxResults))
	r.Register(NewWebFetchTool(0))

	if deps.Viking != nil {
		r.Register(&VikingReadTool{Client: deps.Viking})
		r.Register(&VikingListTool{Client: deps.Viking})
		r.Register(&VikingSearchTool{Client: deps.Viking})
		r.Register(&VikingGrepTool{Client: deps.Viking})
		r.Register(&VikingGlobTool{Client: deps.Viking})
		r.Register(&VikingSearchUserMemoryTool{Client: deps.Viking})
	}
}

// RegisterDefaultTools registers the full tool set for the main agent.
func RegisterDefaultTools(r *Registry, deps Deps) {
	registerCommon(r, deps)

	if deps.Bus != nil {
		r.Register(NewMessageTool(deps.Bus))
	}
	if deps.Subagents != nil {
		r.Register(NewSpawnTool(deps.Subagents))
	}
	if deps.Cron != nil {
		r.Register(NewCronTool(deps.Cron))
	}
	r.Register(NewGenerateImageTool(deps.Config))
	if deps.Viking != nil {
		r.Register(&VikingMemoryCommitTool{Client: deps.Viking})
	}
}

// RegisterSubagentTools registers the reduced tool set for subagents:
// no messaging, no spawning, no scheduling, no image generation, and no
// knowledge-base writes.
func RegisterSubagentTools(r *Registry, deps Deps) {
	registerCommon(r, deps)
}

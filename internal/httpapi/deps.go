package httpapi

import (
	"context"
	"sync/atomic"

	"talentpipe-engine/internal/config"
	"talentpipe-engine/internal/emailstyle"
	"talentpipe-engine/internal/events"
	"talentpipe-engine/internal/pipeline"
	"talentpipe-engine/internal/searchstring"
)

type Deps struct {
	Board        *pipeline.Board
	Orchestrator *searchstring.Orchestrator
	Peek         *searchstring.PagePeek

	Hub *events.Hub

	// Atomic store, holds config.Config
	CfgVal      *atomic.Value
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// nil when email sampling is disabled
	CreatePersona func(ctx context.Context, userID, name string) (emailstyle.Persona, error)
}

// viewerScope derives the board scope from the portal-supplied viewer
// headers. Session verification happens upstream in the data service;
// the engine trusts its local caller.
func viewerScope(userID, companyID, role string) pipeline.Scope {
	return pipeline.Scope{
		UserID:    userID,
		CompanyID: companyID,
		Admin:     role == "admin",
	}
}

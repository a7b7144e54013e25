// Package flows assembles the sub-flow engines into the routing registry.
package flows

import (
	"intake-workers/internal/common/config"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/intake/flow"
	"intake-workers/internal/intake/flows/carfinance"
	"intake-workers/internal/intake/flows/docrequest"
	"intake-workers/internal/intake/flows/fileintake"
	"intake-workers/internal/intake/flows/negotiation"
	"intake-workers/internal/intake/flows/screening"
)

// Dependencies are the collaborators the engines need.
type Dependencies struct {
	Ingestor flow.Ingestor
	Requests flow.RequestLister
}

// NewRegistry builds every engine and fails if any routed state or service
// type is left without exactly one owner.
func NewRegistry(cfg config.IntakeConfig, deps Dependencies, log logger.Logger) (*flow.Registry, error) {
	return flow.NewRegistry(
		docrequest.New(deps.Ingestor, log),
		negotiation.New(deps.Ingestor, log),
		screening.New(log),
		fileintake.New(deps.Requests, cfg.RecentRequestLimit, log),
		carfinance.New(deps.Ingestor, carfinance.Options{
			MaxAttachments:     cfg.CarMaxAttachments,
			CompletionKeywords: cfg.CompletionKeywords,
		}, log),
	)
}

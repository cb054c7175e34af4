// Package categorize assigns category labels to transaction descriptions.
// A keyword-rule table handles the common merchants locally; an optional
// remote Gemini classifier covers the long tail. Classification can degrade
// but never fails: the chain always lands on a category, worst case "Other".
package categorize

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/finboard/backend/internal/model"
)

// Categorizer labels one transaction description.
type Categorizer interface {
	Categorize(ctx context.Context, description string) (model.Category, error)
}

// Chain tries the remote classifier first and falls back to the local rule
// table on any failure. Remote errors are logged and swallowed; import must
// not fail because the classifier collaborator is unreachable.
type Chain struct {
	remote Categorizer
	local  *RuleCategorizer
	log    zerolog.Logger
}

// NewChain builds the fallback chain. remote may be nil, in which case only
// the rule table runs.
func NewChain(remote Categorizer, local *RuleCategorizer, log zerolog.Logger) *Chain {
	return &Chain{remote: remote, local: local, log: log}
}

// Categorize never returns an error; the fallback chain bottoms out at
// CategoryOther.
func (c *Chain) Categorize(ctx context.Context, description string) (model.Category, error) {
	if c.remote != nil {
		cat, err := c.remote.Categorize(ctx, description)
		if err == nil && model.ValidCategory(cat) {
			return cat, nil
		}
		if err != nil {
			c.log.Warn().Err(err).Str("description", description).
				Msg("[categorize] remote classifier failed, falling back to rules")
		}
	}

	cat, err := c.local.Categorize(ctx, description)
	if err != nil || !model.ValidCategory(cat) {
		return model.CategoryOther, nil
	}
	return cat, nil
}

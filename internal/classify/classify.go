// ABOUTME: Query classifier mapping free-text queries onto category tags
// ABOUTME: Degrades to an empty category set on any inference failure

package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chorushq/chorus-orchestrator/internal/llm"
)

// Classifier predicts the category set for a user query. Classification is
// best-effort: a failed or unparseable inference call yields an empty set,
// never an error, so the pipeline proceeds with zero matched agents.
type Classifier struct {
	inference llm.Inference
	logger    *slog.Logger
	known     map[string]struct{}
	taxonomy  []string
}

// New creates a Classifier over the given inference capability.
func New(inference llm.Inference, logger *slog.Logger) (*Classifier, error) {
	taxonomy, err := Categories()
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(taxonomy))
	for _, c := range taxonomy {
		known[c] = struct{}{}
	}

	return &Classifier{
		inference: inference,
		logger:    logger.With("component", "classify"),
		known:     known,
		taxonomy:  taxonomy,
	}, nil
}

// Classify predicts category tags for a query. Unknown tags returned by the
// model are dropped. The result may be empty; that is not an error.
func (c *Classifier) Classify(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf("Classify this query: '%s'\n\nKnown categories:\n%s",
		query, strings.Join(c.taxonomy, ", "))

	prediction, err := c.inference.Classify(ctx, prompt)
	if err != nil {
		c.logger.Warn("classification failed, proceeding without categories", "error", err)
		return nil
	}

	var categories []string
	for _, cat := range prediction.Categories {
		if _, ok := c.known[cat]; ok {
			categories = append(categories, cat)
		} else {
			c.logger.Debug("dropping unknown category from prediction", "category", cat)
		}
	}

	return categories
}

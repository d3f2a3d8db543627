package answer

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitGenerator implements Generator on a genkit instance.
type GenkitGenerator struct {
	g     *genkit.Genkit
	model string
}

// NewGenkitGenerator creates a generator bound to the named model, e.g.
// "googleai/gemini-2.5-flash".
func NewGenkitGenerator(g *genkit.Genkit, model string) *GenkitGenerator {
	return &GenkitGenerator{g: g, model: model}
}

// Generate implements Generator.
func (gg *GenkitGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", gg.model, err)
	}

	return resp.Text(), nil
}

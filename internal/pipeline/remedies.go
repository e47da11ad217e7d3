package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/geminiservice"
)

/* =================================================================================
						STAGE 2: HOME REMEDIES & DIET
	An identified condition → home remedies and diet guidance. Both fields
	are mandatory; a response missing either is a stage failure and no
	partial result is ever constructed.
=================================================================================*/

// RemedyDietResult holds the remedy and diet guidance for a condition.
// A successful result always carries both fields.
type RemedyDietResult struct {
	HomeRemedies    string `json:"homeRemedies"`
	DietSuggestions string `json:"dietSuggestions"`
}

const remedySystemPrompt = `You are a health and wellness guide suggesting supportive home care.

RULES:
1. Suggest practical home remedies that are safe for the general population.
2. Suggest dietary adjustments that support recovery from the given condition.
3. Keep each section to a short, readable list of concrete items.
4. NEVER suggest prescription drugs or invasive treatment here.
5. If the condition is serious, say clearly that a doctor visit comes first, then still give supportive care advice.

RESPONSE FORMAT:
- Return ONLY the JSON structure defined in the schema
- Do NOT add markdown, explanations, or preamble`

const remedyPromptTemplate = `The user may be experiencing: {{condition}}

Provide home remedies and diet suggestions that support recovery.`

var remedyInputSchema = &geminiservice.Schema{
	Type: geminiservice.TypeObject,
	Properties: map[string]*geminiservice.Schema{
		"condition": {
			Type:        geminiservice.TypeString,
			Description: "The identified condition(s), typically the verbatim output of symptom identification",
			MinLength:   1,
		},
	},
	Required: []string{"condition"},
}

var remedyOutputSchema = &geminiservice.Schema{
	Type: geminiservice.TypeObject,
	Properties: map[string]*geminiservice.Schema{
		"homeRemedies": {
			Type:        geminiservice.TypeString,
			Description: "Practical home remedies for the condition",
		},
		"dietSuggestions": {
			Type:        geminiservice.TypeString,
			Description: "Dietary guidance supporting recovery",
		},
	},
	Required: []string{"homeRemedies", "dietSuggestions"},
}

// SuggestRemediesAndDiet produces home remedy and diet guidance for an
// identified condition. Any missing mandatory field fails the whole stage
// with ErrRemedyFailed; the caller never sees a partial result.
func (p *Pipeline) SuggestRemediesAndDiet(ctx context.Context, condition string) (RemedyDietResult, error) {
	start := time.Now()

	var result RemedyDietResult
	err := p.client.GenerateInto(ctx, geminiservice.GenerateRequest{
		Name:         "SuggestRemediesAndDiet",
		System:       remedySystemPrompt,
		Template:     remedyPromptTemplate,
		InputSchema:  remedyInputSchema,
		OutputSchema: remedyOutputSchema,
		Values:       map[string]any{"condition": strings.TrimSpace(condition)},
	}, &result)
	if err != nil {
		if errors.Is(err, geminiservice.ErrInvalidInput) {
			p.observe("remedies", start, "invalid_input")
			return RemedyDietResult{}, err
		}
		p.observe("remedies", start, "failed")
		return RemedyDietResult{}, fmt.Errorf("%w: %v", ErrRemedyFailed, err)
	}

	if strings.TrimSpace(result.HomeRemedies) == "" || strings.TrimSpace(result.DietSuggestions) == "" {
		p.observe("remedies", start, "incomplete")
		return RemedyDietResult{}, ErrRemedyFailed
	}

	p.observe("remedies", start, "ok")
	return result, nil
}

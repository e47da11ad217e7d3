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
						STAGE 1: SYMPTOM IDENTIFICATION
	Free-text symptoms (optionally carrying profile context merged in by the
	caller) → candidate conditions. Prompt, guardrails and schemas are
	colocated here so the stage's safety rules can be audited in one place.
=================================================================================*/

// ConditionResult carries the model's free-text answer, expected to name
// 2-3 candidate conditions.
type ConditionResult struct {
	Conditions string `json:"conditions"`
}

// minSymptomLength rejects inputs too short to describe any symptom.
const minSymptomLength = 3

const identifySystemPrompt = `You are a medical information assistant helping users understand what conditions might relate to their symptoms.

DOMAIN RESTRICTION (CRITICAL):
You are strictly a HEALTH assistant. If the described text is not about physical or mental symptoms, respond with an empty 'conditions' field.

RULES:
1. Suggest 2 to 3 POSSIBLE conditions that commonly match the described symptoms.
2. If the text embeds age, gender, or pre-existing conditions, weigh them when ranking candidates.
3. Use plain language a layperson understands; give common condition names, not ICD codes.
4. NEVER present the answer as a diagnosis. These are possibilities to discuss with a doctor.

RESPONSE FORMAT:
- Return ONLY the JSON structure defined in the schema
- Do NOT add markdown, explanations, or preamble`

const identifyPromptTemplate = `A user describes the following symptoms (possibly including their age, gender, and pre-existing conditions):

{{keywords}}

List 2-3 possible conditions that commonly match this description.`

var identifyInputSchema = &geminiservice.Schema{
	Type: geminiservice.TypeObject,
	Properties: map[string]*geminiservice.Schema{
		"keywords": {
			Type:        geminiservice.TypeString,
			Description: "Natural-language symptom description, optionally with profile context sentences",
			MinLength:   minSymptomLength,
		},
	},
	Required: []string{"keywords"},
}

var identifyOutputSchema = &geminiservice.Schema{
	Type: geminiservice.TypeObject,
	Properties: map[string]*geminiservice.Schema{
		"conditions": {
			Type:        geminiservice.TypeString,
			Description: "2-3 possible conditions matching the symptoms, as plain text (e.g. 'Common Cold; Tension Headache')",
		},
	},
	Required: []string{"conditions"},
}

// IdentifyConditions maps a symptom description to candidate conditions.
// Empty or too-short input fails with ErrInvalidInput before any model call;
// a failed generation or an empty answer fails with ErrIdentificationFailed
// and halts the text path.
func (p *Pipeline) IdentifyConditions(ctx context.Context, keywords string) (ConditionResult, error) {
	start := time.Now()

	var result ConditionResult
	err := p.client.GenerateInto(ctx, geminiservice.GenerateRequest{
		Name:         "IdentifyConditions",
		System:       identifySystemPrompt,
		Template:     identifyPromptTemplate,
		InputSchema:  identifyInputSchema,
		OutputSchema: identifyOutputSchema,
		Values:       map[string]any{"keywords": strings.TrimSpace(keywords)},
	}, &result)
	if err != nil {
		if errors.Is(err, geminiservice.ErrInvalidInput) {
			p.observe("identify", start, "invalid_input")
			return ConditionResult{}, err
		}
		p.observe("identify", start, "failed")
		return ConditionResult{}, fmt.Errorf("%w: %v", ErrIdentificationFailed, err)
	}

	// An empty answer is never surfaced as success.
	if strings.TrimSpace(result.Conditions) == "" {
		p.observe("identify", start, "empty")
		return ConditionResult{}, ErrIdentificationFailed
	}

	p.observe("identify", start, "ok")
	return result, nil
}

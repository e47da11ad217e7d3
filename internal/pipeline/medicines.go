package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/geminiservice"
)

/* =================================================================================
						STAGE 3: OTC MEDICINE SUGGESTIONS
	An identified condition → over-the-counter guidance plus a mandatory
	disclaimer. This stage never fails outward: every return value is a
	renderable, safety-preserving object.
=================================================================================*/

// MedicineResult carries OTC medicine guidance. Disclaimer is guaranteed
// non-empty regardless of model behavior.
type MedicineResult struct {
	SuggestedMedicines string `json:"suggestedMedicines"`
	Disclaimer         string `json:"disclaimer"`
}

// Canonical fallback strings. The caller always gets a displayable object
// built from these when generation fails or omits the disclaimer.
const (
	MedicineErrorText  = "Error loading suggestions."
	MedicineDisclaimer = "Please consult a healthcare professional."
)

const medicineSystemPrompt = `You are a pharmacist's assistant giving over-the-counter guidance only.

SAFETY RULES (CRITICAL):
1. Suggest ONLY over-the-counter (OTC) medicines, by active ingredient or a well-known generic-equivalent brand. Do NOT list arbitrary brand names.
2. If the condition likely needs prescription medication or a professional visit, DO NOT force an OTC suggestion. Say explicitly that the user should see a doctor instead.
3. Mention the symptom each suggestion addresses and basic usage caution.
4. ALWAYS include the disclaimer field.

RESPONSE FORMAT:
- Return ONLY the JSON structure defined in the schema
- Do NOT add markdown, explanations, or preamble`

const medicinePromptTemplate = `The user may be experiencing: {{condition}}

Suggest appropriate over-the-counter medicines, or decline if professional care is needed first.`

var medicineInputSchema = &geminiservice.Schema{
	Type: geminiservice.TypeObject,
	Properties: map[string]*geminiservice.Schema{
		"condition": {
			Type:        geminiservice.TypeString,
			Description: "The identified condition(s) to suggest OTC medicines for",
			MinLength:   1,
		},
	},
	Required: []string{"condition"},
}

var medicineOutputSchema = &geminiservice.Schema{
	Type: geminiservice.TypeObject,
	Properties: map[string]*geminiservice.Schema{
		"suggestedMedicines": {
			Type:        geminiservice.TypeString,
			Description: "OTC medicine guidance, or an explicit statement that professional care is needed",
		},
		"disclaimer": {
			Type:        geminiservice.TypeString,
			Description: "Mandatory safety disclaimer telling the user to consult a healthcare professional",
			Default:     MedicineDisclaimer,
		},
	},
	Required: []string{"suggestedMedicines"},
}

// SuggestMedicines returns OTC guidance for a condition. It never fails
// outward: on any generation error the canonical fallback object is
// returned, and an empty disclaimer in a successful response is replaced by
// the canonical text before the caller sees it.
func (p *Pipeline) SuggestMedicines(ctx context.Context, condition string) MedicineResult {
	start := time.Now()

	var result MedicineResult
	err := p.client.GenerateInto(ctx, geminiservice.GenerateRequest{
		Name:         "SuggestMedicines",
		System:       medicineSystemPrompt,
		Template:     medicinePromptTemplate,
		InputSchema:  medicineInputSchema,
		OutputSchema: medicineOutputSchema,
		Values:       map[string]any{"condition": strings.TrimSpace(condition)},
	}, &result)
	if err != nil {
		p.log.Warn().Err(err).Msg("Medicine suggestion failed, returning fallback result")
		p.metrics.CountRepair("medicine_fallback")
		p.observe("medicines", start, "fallback")
		return MedicineResult{
			SuggestedMedicines: MedicineErrorText,
			Disclaimer:         MedicineDisclaimer,
		}
	}

	if strings.TrimSpace(result.Disclaimer) == "" {
		p.metrics.CountRepair("medicine_disclaimer")
		result.Disclaimer = MedicineDisclaimer
	}

	p.observe("medicines", start, "ok")
	return result
}

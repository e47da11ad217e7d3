package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/geminiservice"
)

/* =================================================================================
					STAGE 4: PRESCRIPTION IMAGE ANALYSIS
	A prescription photo (data URI) → structured medication list, overall
	instructions, summary, and a mandatory disclaimer. A single generation
	call produces the full result; omissions are repaired field by field and
	a total transport failure synthesizes a complete fallback object. This
	stage never fails outward.
=================================================================================*/

// Medication is one extracted entry of a prescription. Name and dosage are
// mandatory; entries the model could not extract both for are excluded from
// the list rather than guessed at. Optional fields stay empty when the
// source image does not show them.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// PrescriptionAnalysisResult is the full analysis outcome. Medications is
// never nil (empty slice on total extraction failure), Summary and
// Disclaimer are always non-empty.
type PrescriptionAnalysisResult struct {
	Medications         []Medication `json:"medications"`
	OverallInstructions string       `json:"overallInstructions,omitempty"`
	Summary             string       `json:"summary"`
	Disclaimer          string       `json:"disclaimer"`
}

// Canonical fallback strings for the analysis stage.
const (
	PrescriptionFailureSummary = "Could not analyze the prescription. The image might be unclear or not a valid prescription."
	PrescriptionDisclaimer     = "This analysis is AI-generated and may contain errors. Always follow the instructions of your doctor or pharmacist."
)

const prescriptionSystemPrompt = `You are a prescription analysis assistant reading a photo of a medical prescription.

EXTRACTION RULES (CRITICAL):
1. Identify each distinct medication entry in the image.
2. For each entry, extract the name and dosage. BOTH are mandatory: if either cannot be read, do NOT emit that entry.
3. Frequency, duration, and notes are optional. Omit them when the image does not show them. NEVER fabricate a value.
4. Put instructions not tied to a specific medication into 'overallInstructions'. Omit the field if there are none.
5. ALWAYS produce a 'summary': either a short confirmation of what was analyzed, or an explicit statement of why analysis failed (unclear image, not a prescription).
6. 'medications' MUST be an empty array when no medication is identifiable or the image is not a valid prescription. Never omit it.

RESPONSE FORMAT:
- Return ONLY the JSON structure defined in the schema
- Do NOT add markdown, explanations, or preamble`

const prescriptionPromptTemplate = `Analyze this prescription image and extract the structured medication information.

{{media url=photoDataUri}}`

var prescriptionInputSchema = &geminiservice.Schema{
	Type: geminiservice.TypeObject,
	Properties: map[string]*geminiservice.Schema{
		"photoDataUri": {
			Type:        geminiservice.TypeString,
			Description: "Prescription photo as a data URI (data:<mimetype>;base64,<data>)",
			MinLength:   1,
		},
	},
	Required: []string{"photoDataUri"},
}

var prescriptionOutputSchema = &geminiservice.Schema{
	Type: geminiservice.TypeObject,
	Properties: map[string]*geminiservice.Schema{
		"medications": {
			Type:        geminiservice.TypeArray,
			Description: "Every medication entry with a readable name and dosage; empty array if none",
			Default:     []any{},
			Items: &geminiservice.Schema{
				Type: geminiservice.TypeObject,
				Properties: map[string]*geminiservice.Schema{
					"name":      {Type: geminiservice.TypeString, Description: "Medication name as written"},
					"dosage":    {Type: geminiservice.TypeString, Description: "Dosage as written (e.g. '500mg')"},
					"frequency": {Type: geminiservice.TypeString, Description: "How often to take it, if shown"},
					"duration":  {Type: geminiservice.TypeString, Description: "How long to take it, if shown"},
					"notes":     {Type: geminiservice.TypeString, Description: "Entry-specific notes, if shown"},
				},
				Required: []string{"name", "dosage"},
			},
		},
		"overallInstructions": {
			Type:        geminiservice.TypeString,
			Description: "Instructions not tied to a specific medication; omit if none",
		},
		"summary": {
			Type:        geminiservice.TypeString,
			Description: "Short confirmation of the analysis, or why it failed",
			Default:     PrescriptionFailureSummary,
		},
		"disclaimer": {
			Type:        geminiservice.TypeString,
			Description: "Mandatory safety disclaimer about AI-read prescriptions",
			Default:     PrescriptionDisclaimer,
		},
	},
}

// AnalyzePrescription extracts structured medication data from a
// prescription photo supplied as a data URI. It never fails outward: a
// failed generation call synthesizes the canonical fallback result, and a
// response with omitted fields is repaired field by field.
func (p *Pipeline) AnalyzePrescription(ctx context.Context, photoDataURI string) PrescriptionAnalysisResult {
	start := time.Now()

	var result PrescriptionAnalysisResult
	err := p.client.GenerateInto(ctx, geminiservice.GenerateRequest{
		Name:         "AnalyzePrescription",
		System:       prescriptionSystemPrompt,
		Template:     prescriptionPromptTemplate,
		InputSchema:  prescriptionInputSchema,
		OutputSchema: prescriptionOutputSchema,
		Values:       map[string]any{"photoDataUri": photoDataURI},
	}, &result)
	if err != nil {
		p.log.Warn().Err(err).Msg("Prescription analysis failed, returning synthesized result")
		p.metrics.CountRepair("prescription_fallback")
		p.observe("prescription", start, "fallback")
		return PrescriptionAnalysisResult{
			Medications: []Medication{},
			Summary:     PrescriptionFailureSummary,
			Disclaimer:  PrescriptionDisclaimer,
		}
	}

	// Field-by-field repair of anything the schema defaults could not express.
	if result.Medications == nil {
		result.Medications = []Medication{}
	}
	kept := result.Medications[:0]
	for _, med := range result.Medications {
		if strings.TrimSpace(med.Name) == "" || strings.TrimSpace(med.Dosage) == "" {
			p.log.Warn().Str("name", med.Name).Msg("Dropping medication entry without both name and dosage")
			p.metrics.CountRepair("medication_dropped")
			continue
		}
		kept = append(kept, med)
	}
	result.Medications = kept

	if strings.TrimSpace(result.Summary) == "" {
		p.metrics.CountRepair("prescription_summary")
		result.Summary = PrescriptionFailureSummary
	}
	if strings.TrimSpace(result.Disclaimer) == "" {
		p.metrics.CountRepair("prescription_disclaimer")
		result.Disclaimer = PrescriptionDisclaimer
	}

	p.observe("prescription", start, "ok")
	return result
}

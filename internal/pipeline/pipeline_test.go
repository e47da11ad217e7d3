package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/geminiservice"
)

// scriptedInvoker plays back one canned response per call, in order. The
// last entry repeats, so a single-entry script models a fixed transport.
type scriptedInvoker struct {
	responses []string
	errs      []error
	calls     int
	requests  []geminiservice.InvokeRequest
}

func (s *scriptedInvoker) Invoke(_ context.Context, req geminiservice.InvokeRequest) (string, error) {
	s.requests = append(s.requests, req)
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.responses[i], err
}

func newTestPipeline(inv geminiservice.Invoker) *Pipeline {
	client := geminiservice.NewClient(zerolog.Nop(), inv)
	return New(zerolog.Nop(), client)
}

const validPhoto = "data:image/jpeg;base64,aGVsbG8="

func TestIdentifyConditions_ReturnsModelAnswerVerbatim(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{"conditions": "Common Cold; Tension Headache"}`}}
	p := newTestPipeline(inv)

	result, err := p.IdentifyConditions(context.Background(), "persistent headache, feeling tired, sore throat")
	require.NoError(t, err)
	require.Equal(t, ConditionResult{Conditions: "Common Cold; Tension Headache"}, result)
}

func TestIdentifyConditions_EmptyInputFailsFast(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{"conditions": "x"}`}}
	p := newTestPipeline(inv)

	_, err := p.IdentifyConditions(context.Background(), "   ")
	require.ErrorIs(t, err, geminiservice.ErrInvalidInput)
	require.Zero(t, inv.calls)
}

func TestIdentifyConditions_EmptyAnswerIsNeverSuccess(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{"conditions": "  "}`}}
	p := newTestPipeline(inv)

	_, err := p.IdentifyConditions(context.Background(), "persistent headache")
	require.ErrorIs(t, err, ErrIdentificationFailed)
}

func TestIdentifyConditions_TransportFailure(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{""}}
	p := newTestPipeline(inv)

	_, err := p.IdentifyConditions(context.Background(), "persistent headache")
	require.ErrorIs(t, err, ErrIdentificationFailed)
}

func TestSuggestRemediesAndDiet_Success(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{"homeRemedies": "Rest and fluids.", "dietSuggestions": "Warm soups."}`}}
	p := newTestPipeline(inv)

	result, err := p.SuggestRemediesAndDiet(context.Background(), "Common Cold")
	require.NoError(t, err)
	require.Equal(t, "Rest and fluids.", result.HomeRemedies)
	require.Equal(t, "Warm soups.", result.DietSuggestions)
}

func TestSuggestRemediesAndDiet_MissingFieldIsStageFailure(t *testing.T) {
	// Transport omits dietSuggestions: the whole stage fails, no partial
	// result is constructed.
	inv := &scriptedInvoker{responses: []string{`{"homeRemedies": "Rest."}`}}
	p := newTestPipeline(inv)

	result, err := p.SuggestRemediesAndDiet(context.Background(), "Seasonal Allergies")
	require.ErrorIs(t, err, ErrRemedyFailed)
	require.Equal(t, RemedyDietResult{}, result)
}

func TestSuggestMedicines_Success(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{"suggestedMedicines": "Paracetamol for fever.", "disclaimer": "Ask a pharmacist."}`}}
	p := newTestPipeline(inv)

	result := p.SuggestMedicines(context.Background(), "Common Cold")
	require.Equal(t, "Paracetamol for fever.", result.SuggestedMedicines)
	require.Equal(t, "Ask a pharmacist.", result.Disclaimer)
}

func TestSuggestMedicines_TransportNullYieldsFallback(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{""}}
	p := newTestPipeline(inv)

	result := p.SuggestMedicines(context.Background(), "Common Cold")
	require.Equal(t, MedicineResult{
		SuggestedMedicines: "Error loading suggestions.",
		Disclaimer:         "Please consult a healthcare professional.",
	}, result)
}

func TestSuggestMedicines_DisclaimerNonEmptyUnderAnyTransportBehavior(t *testing.T) {
	cases := map[string]*scriptedInvoker{
		"transport error":     {responses: []string{""}, errs: []error{errors.New("boom")}},
		"no output":           {responses: []string{""}},
		"non-json output":     {responses: []string{"sorry"}},
		"omitted disclaimer":  {responses: []string{`{"suggestedMedicines": "Ibuprofen."}`}},
		"empty disclaimer":    {responses: []string{`{"suggestedMedicines": "Ibuprofen.", "disclaimer": ""}`}},
		"missing all fields":  {responses: []string{`{}`}},
		"empty condition gen": {responses: []string{`{"suggestedMedicines": ""}`}},
	}

	for name, inv := range cases {
		t.Run(name, func(t *testing.T) {
			p := newTestPipeline(inv)
			result := p.SuggestMedicines(context.Background(), "Common Cold")
			require.NotEmpty(t, result.Disclaimer)
		})
	}
}

func TestSuggestMedicines_OmittedDisclaimerGetsDeclaredDefault(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{"suggestedMedicines": "Loratadine for allergies."}`}}
	p := newTestPipeline(inv)

	result := p.SuggestMedicines(context.Background(), "Seasonal Allergies")
	require.Equal(t, "Loratadine for allergies.", result.SuggestedMedicines)
	require.Equal(t, MedicineDisclaimer, result.Disclaimer)
}

func TestAnalyzePrescription_FullExtraction(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{
		"medications": [
			{"name": "Amoxicillin", "dosage": "500mg", "frequency": "3x daily", "duration": "7 days"},
			{"name": "Paracetamol", "dosage": "650mg", "notes": "After food"}
		],
		"overallInstructions": "Finish the full antibiotic course.",
		"summary": "Prescription with 2 medications analyzed.",
		"disclaimer": "Verify with your pharmacist."
	}`}}
	p := newTestPipeline(inv)

	result := p.AnalyzePrescription(context.Background(), validPhoto)
	require.Len(t, result.Medications, 2)

	// name and dosage preserved verbatim; absent optional fields stay empty.
	require.Equal(t, "Amoxicillin", result.Medications[0].Name)
	require.Equal(t, "500mg", result.Medications[0].Dosage)
	require.Equal(t, "3x daily", result.Medications[0].Frequency)
	require.Empty(t, result.Medications[0].Notes)
	require.Equal(t, "After food", result.Medications[1].Notes)
	require.Empty(t, result.Medications[1].Frequency)

	require.Equal(t, "Finish the full antibiotic course.", result.OverallInstructions)
	require.Equal(t, "Prescription with 2 medications analyzed.", result.Summary)
	require.Equal(t, "Verify with your pharmacist.", result.Disclaimer)
}

func TestAnalyzePrescription_AbsentOptionalFieldsStayAbsentInJSON(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{
		"medications": [{"name": "Cetirizine", "dosage": "10mg"}],
		"summary": "ok",
		"disclaimer": "d"
	}`}}
	p := newTestPipeline(inv)

	result := p.AnalyzePrescription(context.Background(), validPhoto)
	data, err := json.Marshal(result.Medications[0])
	require.NoError(t, err)
	require.JSONEq(t, `{"name": "Cetirizine", "dosage": "10mg"}`, string(data))
}

func TestAnalyzePrescription_NotAPrescription(t *testing.T) {
	// Scenario: model reports an empty extraction and omits the disclaimer.
	inv := &scriptedInvoker{responses: []string{`{"medications": [], "summary": "Not a prescription", "disclaimer": ""}`}}
	p := newTestPipeline(inv)

	result := p.AnalyzePrescription(context.Background(), validPhoto)
	require.NotNil(t, result.Medications)
	require.Empty(t, result.Medications)
	require.Equal(t, "Not a prescription", result.Summary)
	require.Equal(t, PrescriptionDisclaimer, result.Disclaimer)
}

func TestAnalyzePrescription_TransportFailureSynthesizesResult(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{""}}
	p := newTestPipeline(inv)

	result := p.AnalyzePrescription(context.Background(), validPhoto)
	require.NotNil(t, result.Medications)
	require.Empty(t, result.Medications)
	require.Equal(t, PrescriptionFailureSummary, result.Summary)
	require.Equal(t, PrescriptionDisclaimer, result.Disclaimer)
}

func TestAnalyzePrescription_PartialMedicationEntriesExcluded(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{`{
		"medications": [
			{"name": "Azithromycin", "dosage": "250mg"},
			{"name": "Unreadable entry"},
			{"dosage": "5ml"}
		],
		"summary": "ok",
		"disclaimer": "d"
	}`}}
	p := newTestPipeline(inv)

	result := p.AnalyzePrescription(context.Background(), validPhoto)
	require.Len(t, result.Medications, 1)
	require.Equal(t, "Azithromycin", result.Medications[0].Name)
}

func TestAnalyzePrescription_OmittedFieldsRepairedIndependently(t *testing.T) {
	// Only the medication list comes back; summary, disclaimer, and the
	// empty-sequence guarantee are repaired field by field.
	inv := &scriptedInvoker{responses: []string{`{"medications": [{"name": "Metformin", "dosage": "500mg"}]}`}}
	p := newTestPipeline(inv)

	result := p.AnalyzePrescription(context.Background(), validPhoto)
	require.Len(t, result.Medications, 1)
	require.Equal(t, PrescriptionFailureSummary, result.Summary)
	require.Equal(t, PrescriptionDisclaimer, result.Disclaimer)
}

func TestConsult_TextPathSequencesIdentifyThenRemedies(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{
		`{"conditions": "Common Cold"}`,
		`{"homeRemedies": "Rest.", "dietSuggestions": "Soup."}`,
	}}
	p := newTestPipeline(inv)

	result, err := p.Consult(context.Background(), "sore throat and runny nose")
	require.NoError(t, err)
	require.Equal(t, "Common Cold", result.Conditions)
	require.Equal(t, "Rest.", result.RemediesAndDiet.HomeRemedies)
	require.Equal(t, 2, inv.calls)

	// The remedy call consumes the identification output verbatim.
	require.Contains(t, inv.requests[1].Parts[0].Text, "Common Cold")
}

func TestConsult_HaltsAfterIdentificationFailure(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{""}}
	p := newTestPipeline(inv)

	_, err := p.Consult(context.Background(), "sore throat and runny nose")
	require.ErrorIs(t, err, ErrIdentificationFailed)
	require.Equal(t, 1, inv.calls, "remedy stage must never run after identification fails")
}

func TestPipeline_OperationsAreIdempotent(t *testing.T) {
	// Identical input with a transport returning identical output produces
	// identical results: no hidden accumulating state.
	inv := &scriptedInvoker{responses: []string{`{"conditions": "Migraine; Tension Headache"}`}}
	p := newTestPipeline(inv)

	first, err := p.IdentifyConditions(context.Background(), "throbbing headache with light sensitivity")
	require.NoError(t, err)
	second, err := p.IdentifyConditions(context.Background(), "throbbing headache with light sensitivity")
	require.NoError(t, err)
	require.Equal(t, first, second)

	medInv := &scriptedInvoker{responses: []string{`{"suggestedMedicines": "Ibuprofen.", "disclaimer": "d"}`}}
	mp := newTestPipeline(medInv)
	require.Equal(t,
		mp.SuggestMedicines(context.Background(), "Migraine"),
		mp.SuggestMedicines(context.Background(), "Migraine"),
	)
}

package geminiservice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func float(v float64) *float64 { return &v }

func TestConform_RequiredFieldMissing(t *testing.T) {
	schema := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"conditions": {Type: TypeString},
		},
		Required: []string{"conditions"},
	}

	_, err := schema.Conform(map[string]any{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "required field missing")
}

func TestConform_DefaultAppliedForOmittedOptional(t *testing.T) {
	schema := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"suggestedMedicines": {Type: TypeString},
			"disclaimer":         {Type: TypeString, Default: "Please consult a healthcare professional."},
		},
		Required: []string{"suggestedMedicines"},
	}

	out, err := schema.Conform(map[string]any{"suggestedMedicines": "Paracetamol"})
	require.NoError(t, err)
	obj := out.(map[string]any)
	require.Equal(t, "Please consult a healthcare professional.", obj["disclaimer"])
}

func TestConform_NoValueInventedWithoutDefault(t *testing.T) {
	schema := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"summary":             {Type: TypeString},
			"overallInstructions": {Type: TypeString},
		},
		Required: []string{"summary"},
	}

	out, err := schema.Conform(map[string]any{"summary": "done"})
	require.NoError(t, err)
	obj := out.(map[string]any)
	_, present := obj["overallInstructions"]
	require.False(t, present, "optional field without default must stay absent")
}

func TestConform_ExplicitNullNormalizedAway(t *testing.T) {
	schema := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"summary": {Type: TypeString},
			"notes":   {Type: TypeString},
		},
		Required: []string{"summary"},
	}

	out, err := schema.Conform(map[string]any{"summary": "done", "notes": nil})
	require.NoError(t, err)
	obj := out.(map[string]any)
	_, present := obj["notes"]
	require.False(t, present)
}

func TestConform_ArrayElementFailingItemSchemaIsDropped(t *testing.T) {
	schema := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"medications": {
				Type: TypeArray,
				Items: &Schema{
					Type: TypeObject,
					Properties: map[string]*Schema{
						"name":   {Type: TypeString},
						"dosage": {Type: TypeString},
					},
					Required: []string{"name", "dosage"},
				},
			},
		},
	}

	out, err := schema.Conform(map[string]any{
		"medications": []any{
			map[string]any{"name": "Amoxicillin", "dosage": "500mg"},
			map[string]any{"name": "NoDosage"},
			map[string]any{"dosage": "10mg"},
		},
	})
	require.NoError(t, err)
	meds := out.(map[string]any)["medications"].([]any)
	require.Len(t, meds, 1)
	require.Equal(t, "Amoxicillin", meds[0].(map[string]any)["name"])
}

func TestConform_EnumRejectsUnknownValue(t *testing.T) {
	schema := &Schema{Type: TypeString, Enum: []string{"male", "female", "other", "prefer_not_to_say"}}

	_, err := schema.Conform("robot")
	require.Error(t, err)

	out, err := schema.Conform("female")
	require.NoError(t, err)
	require.Equal(t, "female", out)
}

func TestConform_NumericBounds(t *testing.T) {
	schema := &Schema{Type: TypeInteger, Minimum: float(1), Maximum: float(120)}

	_, err := schema.Conform(float64(0))
	require.Error(t, err)
	_, err = schema.Conform(float64(121))
	require.Error(t, err)

	out, err := schema.Conform(float64(34))
	require.NoError(t, err)
	require.Equal(t, float64(34), out)
}

func TestConform_MinLength(t *testing.T) {
	schema := &Schema{Type: TypeString, MinLength: 3}

	_, err := schema.Conform("ab")
	require.Error(t, err)

	_, err = schema.Conform("headache")
	require.NoError(t, err)
}

func TestConform_WrongShapeOptionalFieldFallsBackToDefault(t *testing.T) {
	schema := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"summary":    {Type: TypeString},
			"disclaimer": {Type: TypeString, Default: "canonical"},
		},
		Required: []string{"summary"},
	}

	out, err := schema.Conform(map[string]any{"summary": "ok", "disclaimer": float64(42)})
	require.NoError(t, err)
	require.Equal(t, "canonical", out.(map[string]any)["disclaimer"])
}

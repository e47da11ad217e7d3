package geminiservice

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// stubInvoker records the request it received and plays back a canned
// response. An empty response with a nil error models "the model produced
// nothing".
type stubInvoker struct {
	response string
	err      error
	calls    int
	lastReq  InvokeRequest
}

func (s *stubInvoker) Invoke(_ context.Context, req InvokeRequest) (string, error) {
	s.calls++
	s.lastReq = req
	return s.response, s.err
}

func testRequest(values map[string]any) GenerateRequest {
	return GenerateRequest{
		Name:     "TestStage",
		System:   "test system prompt",
		Template: "Symptoms: {{keywords}}",
		InputSchema: &Schema{
			Type: TypeObject,
			Properties: map[string]*Schema{
				"keywords": {Type: TypeString, MinLength: 3},
			},
			Required: []string{"keywords"},
		},
		OutputSchema: &Schema{
			Type: TypeObject,
			Properties: map[string]*Schema{
				"conditions": {Type: TypeString},
			},
			Required: []string{"conditions"},
		},
		Values: values,
	}
}

func TestGenerate_RendersTemplateAndValidatesOutput(t *testing.T) {
	stub := &stubInvoker{response: `{"conditions": "Common Cold"}`}
	client := NewClient(zerolog.Nop(), stub)

	out, err := client.Generate(context.Background(), testRequest(map[string]any{"keywords": "sore throat"}))
	require.NoError(t, err)
	require.Equal(t, "Common Cold", out["conditions"])

	require.Equal(t, 1, stub.calls)
	require.Len(t, stub.lastReq.Parts, 1)
	require.Equal(t, "Symptoms: sore throat", stub.lastReq.Parts[0].Text)
	require.Equal(t, "test system prompt", stub.lastReq.System)
}

func TestGenerate_InvalidInputNeverCallsTransport(t *testing.T) {
	stub := &stubInvoker{response: `{"conditions": "x"}`}
	client := NewClient(zerolog.Nop(), stub)

	_, err := client.Generate(context.Background(), testRequest(map[string]any{"keywords": "ab"}))
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, stub.calls, "no model call may happen on invalid input")

	_, err = client.Generate(context.Background(), testRequest(map[string]any{}))
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Zero(t, stub.calls)
}

func TestGenerate_EmptyTransportOutputIsGenerationFailure(t *testing.T) {
	stub := &stubInvoker{response: ""}
	client := NewClient(zerolog.Nop(), stub)

	_, err := client.Generate(context.Background(), testRequest(map[string]any{"keywords": "sore throat"}))
	require.ErrorIs(t, err, ErrGenerationFailed)
	require.Equal(t, 1, stub.calls, "the client does not retry")
}

func TestGenerate_TransportErrorIsGenerationFailure(t *testing.T) {
	stub := &stubInvoker{err: errors.New("boom")}
	client := NewClient(zerolog.Nop(), stub)

	_, err := client.Generate(context.Background(), testRequest(map[string]any{"keywords": "sore throat"}))
	require.ErrorIs(t, err, ErrGenerationFailed)
	require.Equal(t, 1, stub.calls)
}

func TestGenerate_NonJSONOutputIsGenerationFailure(t *testing.T) {
	stub := &stubInvoker{response: "I am sorry, I cannot help with that."}
	client := NewClient(zerolog.Nop(), stub)

	_, err := client.Generate(context.Background(), testRequest(map[string]any{"keywords": "sore throat"}))
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerate_MissingRequiredOutputFieldIsGenerationFailure(t *testing.T) {
	stub := &stubInvoker{response: `{"something_else": "x"}`}
	client := NewClient(zerolog.Nop(), stub)

	_, err := client.Generate(context.Background(), testRequest(map[string]any{"keywords": "sore throat"}))
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerate_MediaPlaceholderBecomesInlinePart(t *testing.T) {
	stub := &stubInvoker{response: `{"summary": "ok"}`}
	client := NewClient(zerolog.Nop(), stub)

	req := GenerateRequest{
		Name:     "ImageStage",
		System:   "sys",
		Template: "Analyze this image.\n\n{{media url=photoDataUri}}",
		InputSchema: &Schema{
			Type: TypeObject,
			Properties: map[string]*Schema{
				"photoDataUri": {Type: TypeString, MinLength: 1},
			},
			Required: []string{"photoDataUri"},
		},
		OutputSchema: &Schema{
			Type: TypeObject,
			Properties: map[string]*Schema{
				"summary": {Type: TypeString},
			},
			Required: []string{"summary"},
		},
		Values: map[string]any{"photoDataUri": "data:image/png;base64,aGVsbG8="},
	}

	_, err := client.Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, stub.lastReq.Parts, 2)
	require.Equal(t, "Analyze this image.", stub.lastReq.Parts[0].Text)
	require.Equal(t, "data:image/png;base64,aGVsbG8=", stub.lastReq.Parts[1].DataURI)
}

func TestGenerateInto_DecodesTypedResult(t *testing.T) {
	stub := &stubInvoker{response: `{"conditions": "Flu; Strep Throat"}`}
	client := NewClient(zerolog.Nop(), stub)

	var result struct {
		Conditions string `json:"conditions"`
	}
	err := client.GenerateInto(context.Background(), testRequest(map[string]any{"keywords": "sore throat"}), &result)
	require.NoError(t, err)
	require.Equal(t, "Flu; Strep Throat", result.Conditions)
}

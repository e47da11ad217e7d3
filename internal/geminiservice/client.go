/*
Package geminiservice implements schema-constrained generation against the
Gemini API: a transport that carries the HTTP mechanics and a Client that
pairs prompt templates with declared input/output schemas, validating both
sides of every call.
*/
package geminiservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidInput marks a request rejected before any model call was made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrGenerationFailed marks a transport failure or a response that could
	// not be conformed to the declared output schema.
	ErrGenerationFailed = errors.New("generation failed")
)

// mediaPlaceholder matches "{{media url=fieldName}}" in a prompt template.
// The referenced input field must hold a data-URI image payload; it is sent
// to the model as an inline image part rather than substituted as text.
var mediaPlaceholder = regexp.MustCompile(`\{\{media url=(\w+)\}\}`)

// GenerateRequest pairs a prompt template with the schemas governing one
// structured-generation call. Templates and schemas are declared once per
// stage and colocated with that stage's safety rules.
type GenerateRequest struct {
	// Name identifies the stage for logging and metrics.
	Name string

	// System is the stage's system instruction.
	System string

	// Template is the user prompt with named "{{field}}" placeholders.
	Template string

	// InputSchema validates Values before any call is made.
	InputSchema *Schema

	// OutputSchema is sent to the model and re-checked on the response.
	OutputSchema *Schema

	// Values holds the named inputs substituted into the template.
	Values map[string]any
}

// Client is the structured generation client. It holds no state between
// calls; each Generate is a pure function of its request and the transport's
// response.
type Client struct {
	log     zerolog.Logger
	invoker Invoker
}

// NewClient wraps a generation transport.
func NewClient(logger zerolog.Logger, invoker Invoker) *Client {
	return &Client{log: logger, invoker: invoker}
}

// Generate runs one schema-constrained call: validate inputs, render the
// template, invoke the transport once, and conform the response to the
// output schema (applying declared defaults for omitted optional fields).
// No value is ever invented for a field without a declared default, and no
// retry happens at this layer.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (map[string]any, error) {
	if req.InputSchema != nil {
		values := make(map[string]any, len(req.Values))
		for k, v := range req.Values {
			values[k] = v
		}
		if _, err := req.InputSchema.Conform(values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	parts, err := renderTemplate(req.Template, req.Values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	raw, err := c.invoker.Invoke(ctx, InvokeRequest{
		Name:   req.Name,
		System: req.System,
		Parts:  parts,
		Schema: req.OutputSchema,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("stage", req.Name).Msg("Generation transport failed")
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: transport returned no output", ErrGenerationFailed)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		c.log.Warn().Err(err).Str("stage", req.Name).Msg("Model returned non-JSON output")
		return nil, fmt.Errorf("%w: response is not valid JSON: %v", ErrGenerationFailed, err)
	}

	conformed, err := req.OutputSchema.Conform(decoded)
	if err != nil {
		c.log.Warn().Err(err).Str("stage", req.Name).Msg("Model output failed schema validation")
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return conformed.(map[string]any), nil
}

// GenerateInto runs Generate and decodes the conformed response into out.
func (c *Client) GenerateInto(ctx context.Context, req GenerateRequest, out any) error {
	result, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}
	return Decode(result, out)
}

// Decode re-marshals a conformed response map into a typed result struct.
func Decode(m map[string]any, out any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal validated response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode validated response: %w", err)
	}
	return nil
}

// renderTemplate substitutes named input values into the template. Media
// placeholders split the prompt into parts so the referenced image travels
// as inline data; everything else is plain text substitution.
func renderTemplate(template string, values map[string]any) ([]Part, error) {
	var parts []Part

	remaining := template
	for {
		loc := mediaPlaceholder.FindStringSubmatchIndex(remaining)
		if loc == nil {
			break
		}

		field := remaining[loc[2]:loc[3]]
		uri, ok := values[field].(string)
		if !ok || uri == "" {
			return nil, fmt.Errorf("media field %q is missing or not a string", field)
		}

		if text := strings.TrimSpace(remaining[:loc[0]]); text != "" {
			parts = append(parts, Part{Text: substitute(text, values)})
		}
		parts = append(parts, Part{DataURI: uri})
		remaining = remaining[loc[1]:]
	}

	if text := strings.TrimSpace(remaining); text != "" {
		parts = append(parts, Part{Text: substitute(text, values)})
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("template rendered to an empty prompt")
	}
	return parts, nil
}

func substitute(text string, values map[string]any) string {
	for name, value := range values {
		placeholder := "{{" + name + "}}"
		if !strings.Contains(text, placeholder) {
			continue
		}
		text = strings.ReplaceAll(text, placeholder, fmt.Sprintf("%v", value))
	}
	return text
}

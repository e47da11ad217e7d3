package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/database"
	"github.com/yamini7043/HealthCare-MediBotAI/internal/geminiservice"
	"github.com/yamini7043/HealthCare-MediBotAI/internal/pipeline"
	"github.com/yamini7043/HealthCare-MediBotAI/internal/utility"
)

/* =================================================================================
							DTOs (Data Transfer Objects)
=================================================================================*/

// ProfileContext is the optional caller-supplied profile. It is merged into
// the keyword text here, at the caller layer; the pipeline only ever sees
// the combined text.
type ProfileContext struct {
	Age        int    `json:"age,omitempty"`
	Gender     string `json:"gender,omitempty"` // male, female, other, prefer_not_to_say
	Conditions string `json:"conditions,omitempty"`
}

var validGenders = map[string]bool{
	"male":              true,
	"female":            true,
	"other":             true,
	"prefer_not_to_say": true,
}

// Validate checks the profile ranges before it is merged into the request.
func (p *ProfileContext) Validate() error {
	if p.Age != 0 && (p.Age < 1 || p.Age > 120) {
		return fmt.Errorf("age must be between 1 and 120")
	}
	if p.Gender != "" && !validGenders[p.Gender] {
		return fmt.Errorf("gender must be one of male, female, other, prefer_not_to_say")
	}
	return nil
}

// MergeIntoKeywords appends the profile details as natural-language
// sentences after the symptom text.
func (p *ProfileContext) MergeIntoKeywords(keywords string) string {
	parts := []string{strings.TrimSpace(keywords)}
	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("Patient age: %d.", p.Age))
	}
	if p.Gender != "" {
		parts = append(parts, fmt.Sprintf("Gender: %s.", strings.ReplaceAll(p.Gender, "_", " ")))
	}
	if strings.TrimSpace(p.Conditions) != "" {
		parts = append(parts, fmt.Sprintf("Pre-existing conditions: %s.", strings.TrimSpace(p.Conditions)))
	}
	return strings.Join(parts, " ")
}

// SymptomRequest is the payload for identification and consultation.
type SymptomRequest struct {
	Keywords string          `json:"keywords"`
	Profile  *ProfileContext `json:"profile,omitempty"`
}

// ConditionRequest is the payload for the remedy and medicine branches.
type ConditionRequest struct {
	Condition string `json:"condition"`
}

// PrescriptionRequest carries the prescription photo as a data URI.
type PrescriptionRequest struct {
	PhotoDataURI string `json:"photo_data_uri"`
}

// SessionEnvelope wraps every pipeline response with a session id and
// timestamp, so callers can reference and save individual results.
type SessionEnvelope struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Result    any       `json:"result"`
}

func envelope(result any) SessionEnvelope {
	return SessionEnvelope{
		SessionID: uuid.New().String(),
		CreatedAt: time.Now(),
		Result:    result,
	}
}

/* =================================================================================
								HANDLERS
=================================================================================*/

// identifyHandler maps symptom text (plus optional profile) to candidate
// conditions. Identical merged text is served from the LRU cache.
func (s *Server) identifyHandler(c echo.Context) error {
	merged, err := s.bindSymptomRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if cached, ok := s.identifyCache.Get(merged); ok {
		s.metrics.CountCacheHit()
		return c.JSON(http.StatusOK, envelope(cached))
	}

	result, err := s.pipeline.IdentifyConditions(c.Request().Context(), merged)
	if err != nil {
		return s.pipelineError(c, err)
	}

	s.identifyCache.Add(merged, result)
	return c.JSON(http.StatusOK, envelope(result))
}

// consultHandler runs the full text path: identification followed by the
// remedy/diet stage.
func (s *Server) consultHandler(c echo.Context) error {
	merged, err := s.bindSymptomRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result, err := s.pipeline.Consult(c.Request().Context(), merged)
	if err != nil {
		return s.pipelineError(c, err)
	}

	s.saveHistory("consult", merged, result)
	return c.JSON(http.StatusOK, envelope(result))
}

// remediesHandler runs the remedy/diet stage for an already identified
// condition.
func (s *Server) remediesHandler(c echo.Context) error {
	var req ConditionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Condition) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "condition is required"})
	}

	result, err := s.pipeline.SuggestRemediesAndDiet(c.Request().Context(), req.Condition)
	if err != nil {
		return s.pipelineError(c, err)
	}

	return c.JSON(http.StatusOK, envelope(result))
}

// medicinesHandler is the independently-triggered medicine branch. The
// stage never fails outward, so the endpoint always answers 200 with a
// displayable, disclaimer-bearing object.
func (s *Server) medicinesHandler(c echo.Context) error {
	var req ConditionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Condition) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "condition is required"})
	}

	result := s.pipeline.SuggestMedicines(c.Request().Context(), req.Condition)
	s.saveHistory("medicines", req.Condition, result)
	return c.JSON(http.StatusOK, envelope(result))
}

// prescriptionHandler analyzes a prescription photo. Always 200: failure is
// communicated inside the result's summary, never as a pipeline exception.
func (s *Server) prescriptionHandler(c echo.Context) error {
	var req PrescriptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.PhotoDataURI) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "photo_data_uri is required"})
	}

	log.Info().Str("ip", utility.GetRealIP(c)).Int("payload_bytes", len(req.PhotoDataURI)).
		Msg("Prescription analysis requested")

	result := s.pipeline.AnalyzePrescription(c.Request().Context(), req.PhotoDataURI)
	s.saveHistory("prescription", "prescription image", result)
	return c.JSON(http.StatusOK, envelope(result))
}

// historyHandler lists recent saved consultations; empty list when the
// history store is disabled.
func (s *Server) historyHandler(c echo.Context) error {
	if s.db == nil {
		return c.JSON(http.StatusOK, []database.Consultation{})
	}

	items, err := s.db.Queries().ListRecentConsultations(c.Request().Context(), 50)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list consultation history")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load history"})
	}
	return c.JSON(http.StatusOK, items)
}

/* =================================================================================
								HELPERS
=================================================================================*/

// bindSymptomRequest decodes and validates the symptom payload, merging the
// optional profile into the keyword text.
func (s *Server) bindSymptomRequest(c echo.Context) (string, error) {
	var req SymptomRequest
	if err := c.Bind(&req); err != nil {
		return "", fmt.Errorf("Invalid request body")
	}
	if strings.TrimSpace(req.Keywords) == "" {
		return "", fmt.Errorf("keywords is required")
	}

	merged := strings.TrimSpace(req.Keywords)
	if req.Profile != nil {
		if err := req.Profile.Validate(); err != nil {
			return "", err
		}
		merged = req.Profile.MergeIntoKeywords(merged)
	}
	return merged, nil
}

// pipelineError maps pipeline failures onto HTTP responses. Identification
// and remedy failures carry an actionable message suggesting rephrasing.
func (s *Server) pipelineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, geminiservice.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, pipeline.ErrIdentificationFailed):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": pipeline.ErrIdentificationFailed.Error()})
	case errors.Is(err, pipeline.ErrRemedyFailed):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": pipeline.ErrRemedyFailed.Error()})
	default:
		log.Error().Err(err).Msg("Unexpected pipeline error")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal error"})
	}
}

// saveHistory persists a pipeline result best-effort. The response has
// already been decided; a storage failure only logs.
func (s *Server) saveHistory(kind, inputSummary string, result any) {
	if s.db == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := s.db.Queries().SaveConsultation(ctx, database.SaveConsultationParams{
			Kind:         kind,
			InputSummary: inputSummary,
			Result:       result,
		}); err != nil {
			log.Warn().Err(err).Str("kind", kind).Msg("Failed to save consultation history")
		}
	}()
}

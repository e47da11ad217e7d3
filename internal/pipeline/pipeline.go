/*
Package pipeline implements the multi-stage health assistant core: symptom
identification, remedy/diet suggestions, OTC medicine guidance, and
prescription image analysis, each a single schema-constrained generation
call. Stages hold no state between invocations; every operation is a pure
function of its input and the transport's response.
*/
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/geminiservice"
	"github.com/yamini7043/HealthCare-MediBotAI/internal/metrics"
)

// State names one step of the per-invocation state machine. States are used
// for logging and metric labels; terminal states always carry a value.
type State string

const (
	StateIdle             State = "idle"
	StateIdentifying      State = "identifying"
	StateIdentified       State = "identified"
	StateFetchingRemedies State = "fetching_remedies"
	StateAnalyzing        State = "analyzing"
	StateComplete         State = "complete"
	StateFailed           State = "failed"
)

// Pipeline sequences the generation stages. Each operation is independently
// invocable; Consult runs the text path (identify, then remedies/diet).
type Pipeline struct {
	client  *geminiservice.Client
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics attaches Prometheus metrics to the pipeline.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New builds a Pipeline on top of a structured generation client.
func New(logger zerolog.Logger, client *geminiservice.Client, opts ...Option) *Pipeline {
	p := &Pipeline{client: client, log: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConsultResult is the terminal value of the successful text path: the
// identified conditions plus the remedy and diet guidance for them. The
// medicine branch is triggered separately by the caller and is never
// sequenced automatically.
type ConsultResult struct {
	Conditions      string           `json:"conditions"`
	RemediesAndDiet RemedyDietResult `json:"remedies_and_diet"`
}

// Consult runs the text path: Idle → Identifying → Identified →
// FetchingRemedies → Complete. Identification failure halts the pipeline
// before the remedy stage is ever invoked.
func (p *Pipeline) Consult(ctx context.Context, keywords string) (ConsultResult, error) {
	p.logTransition(StateIdle, StateIdentifying)

	conditions, err := p.IdentifyConditions(ctx, keywords)
	if err != nil {
		p.logTransition(StateIdentifying, StateFailed)
		return ConsultResult{}, err
	}
	p.logTransition(StateIdentifying, StateIdentified)

	p.logTransition(StateIdentified, StateFetchingRemedies)
	remedies, err := p.SuggestRemediesAndDiet(ctx, conditions.Conditions)
	if err != nil {
		p.logTransition(StateFetchingRemedies, StateFailed)
		return ConsultResult{}, err
	}
	p.logTransition(StateFetchingRemedies, StateComplete)

	return ConsultResult{
		Conditions:      conditions.Conditions,
		RemediesAndDiet: remedies,
	}, nil
}

func (p *Pipeline) logTransition(from, to State) {
	p.log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("Pipeline state transition")
}

// observe records a stage invocation for logging and metrics.
func (p *Pipeline) observe(stage string, start time.Time, outcome string) {
	elapsed := time.Since(start)
	p.metrics.ObserveStage(stage, outcome, elapsed)
	p.log.Info().Str("stage", stage).Str("outcome", outcome).Dur("elapsed", elapsed).Msg("Pipeline stage finished")
}

// Package pipeline sequences one task through navigation, decoding,
// resolution, fetching, answer computation, and submission under a single
// wall-clock budget.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"quizrunner/internal/answer"
	"quizrunner/internal/browser"
	"quizrunner/internal/config"
	"quizrunner/internal/fetch"
	"quizrunner/internal/payload"
	"quizrunner/internal/submit"
	"quizrunner/internal/task"
)

// Fetcher downloads and classifies the instruction's resource.
type Fetcher interface {
	Fetch(ctx context.Context, instr *task.Instruction) (*task.FetchedResource, error)
}

// Engine computes an answer for a fetched resource.
type Engine interface {
	ComputeAnswer(ctx context.Context, res *task.FetchedResource) (task.Answer, error)
}

// Submitter posts an answer to the resolved endpoint.
type Submitter interface {
	Submit(ctx context.Context, ans task.Answer, instr *task.Instruction, id submit.Identity) (*task.SubmissionResult, error)
}

// Decoder selects the embedded payload from a page extract.
type Decoder interface {
	Decode(extract *task.PageExtract) *task.DecodedPayload
}

// Resolver parses a decoded payload into an instruction.
type Resolver interface {
	Resolve(p *task.DecodedPayload) (*task.Instruction, bool)
}

// Orchestrator owns the task budget and the stage sequence. It is the only
// component aware of the global deadline; stages see it only through their
// context.
type Orchestrator struct {
	cfg       config.PipelineConfig
	nav       browser.Navigator
	decoder   Decoder
	resolver  Resolver
	fetcher   Fetcher
	engine    Engine
	submitter Submitter
	logger    *zap.Logger
}

// New wires an orchestrator from explicit collaborators.
func New(cfg config.PipelineConfig, nav browser.Navigator, dec Decoder, res Resolver, f Fetcher, e Engine, s Submitter, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		nav:       nav,
		decoder:   dec,
		resolver:  res,
		fetcher:   f,
		engine:    e,
		submitter: s,
		logger:    logger,
	}
}

// FromConfig assembles the production pipeline around the given navigator.
func FromConfig(cfg config.Config, nav browser.Navigator, logger *zap.Logger) *Orchestrator {
	return New(
		cfg.Pipeline,
		nav,
		payload.NewDecoder(logger),
		payload.NewResolver(logger),
		fetch.NewFetcher(cfg.Fetch, logger),
		answer.NewEngine(answer.PDFExtractor{}, logger),
		submit.NewSubmitter(cfg.Submit, logger),
		logger,
	)
}

// Process runs one task to a terminal outcome. It never returns an error:
// the original caller already got its acknowledgement, so every failure is
// captured here and logged.
func (o *Orchestrator) Process(ctx context.Context, req task.Request) {
	logger := o.logger.With(
		zap.String("task_id", req.ID.String()),
		zap.String("url", req.URL),
	)

	remaining := o.cfg.TaskBudget() - time.Since(req.AcceptedAt)
	if remaining <= o.cfg.SafetyMargin() {
		// Not enough time to possibly finish; do not start any stage.
		logger.Warn("task abandoned before start",
			zap.Duration("remaining", remaining))
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, remaining-o.cfg.CleanupSlack())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.run(runCtx, req, logger)
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		// The in-flight stage is abandoned, not force-stopped; its own
		// context observance and the navigator's scoped release are the
		// only cleanup guarantees.
		logger.Error("task budget exceeded", zap.Error(runCtx.Err()))
	}
}

// run executes the stage sequence. Each stage is attempted exactly once.
func (o *Orchestrator) run(ctx context.Context, req task.Request, logger *zap.Logger) {
	extract, err := o.nav.Navigate(ctx, req.URL)
	if err != nil {
		logger.Error("navigation failed", zap.Error(err))
		return
	}

	decoded := o.decoder.Decode(extract)
	if decoded == nil {
		// A page without a payload is a valid terminal state.
		logger.Info("no payload found on page")
		return
	}

	instr, ok := o.resolver.Resolve(decoded)
	if !ok {
		logger.Info("no structured instruction resolved")
		return
	}
	logger.Info("instruction resolved",
		zap.String("resource_url", instr.ResourceURL),
		zap.Bool("marker_hit", decoded.MarkerHit))

	res, err := o.fetcher.Fetch(ctx, instr)
	if err != nil {
		logger.Error("resource fetch failed", zap.Error(err))
		return
	}

	ans, err := o.engine.ComputeAnswer(ctx, res)
	if err != nil {
		if errors.Is(err, answer.ErrUnsupportedKind) {
			logger.Info("resource kind not supported, task ends without answer",
				zap.String("kind", string(res.Kind)),
				zap.String("content_type", res.ContentType))
			return
		}
		logger.Error("answer computation failed", zap.Error(err))
		return
	}

	result, err := o.submitter.Submit(ctx, ans, instr, submit.Identity{
		Email:  req.Email,
		Secret: req.Secret,
	})
	if err != nil {
		// Best-effort final step; the task is still done.
		logger.Warn("submission failed", zap.Error(err))
		return
	}
	logger.Info("task complete",
		zap.Int64("answer", ans.Value),
		zap.String("endpoint", result.Endpoint),
		zap.Int("submission_status", result.StatusCode))
}

// Package answer computes a deterministic numeric answer from a fetched
// resource. Computation is a pluggable strategy keyed by resource kind; the
// only strategy in the current design handles text documents.
package answer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"quizrunner/internal/task"
)

// ErrUnsupportedKind is returned when no solver is registered for a resource
// kind. The orchestrator treats it as a quiet terminal outcome, not a failure.
var ErrUnsupportedKind = errors.New("unsupported resource kind")

// Solver computes an answer for one resource kind.
type Solver interface {
	Solve(ctx context.Context, res *task.FetchedResource) (task.Answer, error)
}

// Engine dispatches a fetched resource to the solver registered for its kind.
type Engine struct {
	solvers map[task.ResourceKind]Solver
	logger  *zap.Logger
}

// NewEngine builds an engine with the document solver pre-registered.
func NewEngine(extractor TextExtractor, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		solvers: make(map[task.ResourceKind]Solver),
		logger:  logger,
	}
	e.Register(task.KindDocument, &DocumentSolver{Extractor: extractor})
	return e
}

// Register installs a solver for a kind, replacing any previous one.
func (e *Engine) Register(kind task.ResourceKind, s Solver) {
	e.solvers[kind] = s
}

// ComputeAnswer runs the solver for the resource's kind.
func (e *Engine) ComputeAnswer(ctx context.Context, res *task.FetchedResource) (task.Answer, error) {
	s, ok := e.solvers[res.Kind]
	if !ok {
		return task.Answer{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, res.Kind)
	}
	return s.Solve(ctx, res)
}

// TextExtractor returns the plain text of a document's raw bytes. Production
// wiring uses the PDF extractor; tests inject fakes.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// numberPattern matches maximal signed decimal literals, fractional part
// optional.
var numberPattern = regexp.MustCompile(`[+-]?\d+(?:\.\d+)?`)

// DocumentSolver sums every numeric literal in the document's text and rounds
// to the nearest integer. Order-independent and deliberately crude: there is
// no semantic understanding of which numbers matter.
type DocumentSolver struct {
	Extractor TextExtractor
}

// Solve extracts the document text and computes the rounded sum.
func (s *DocumentSolver) Solve(ctx context.Context, res *task.FetchedResource) (task.Answer, error) {
	text, err := s.Extractor.ExtractText(ctx, res.Body)
	if err != nil {
		return task.Answer{}, fmt.Errorf("extract text: %w", err)
	}
	return task.Answer{
		Value:       SumNumbers(text),
		ResourceURL: res.URL,
	}, nil
}

// SumNumbers parses every numeric literal in text as a float, sums them, and
// rounds to the nearest integer.
func SumNumbers(text string) int64 {
	var sum float64
	for _, m := range numberPattern.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		sum += v
	}
	return int64(math.Round(sum))
}

package payload

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"quizrunner/internal/task"
)

// Resolver parses a decoded payload into a structured instruction.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver builds an instruction resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve extracts the first {...} span (greedy to the last closing brace)
// from the decoded text and parses it. Parse failure and a missing resource
// URL both yield (nil, false): nothing actionable, not an error.
func (r *Resolver) Resolve(p *task.DecodedPayload) (*task.Instruction, bool) {
	if p == nil || p.Text == "" {
		return nil, false
	}

	start := strings.Index(p.Text, "{")
	end := strings.LastIndex(p.Text, "}")
	if start == -1 || end <= start {
		r.logger.Info("no structured instruction found in payload")
		return nil, false
	}

	var instr task.Instruction
	if err := json.Unmarshal([]byte(p.Text[start:end+1]), &instr); err != nil {
		r.logger.Info("instruction parse failed", zap.Error(err))
		return nil, false
	}
	if instr.ResourceURL == "" {
		r.logger.Info("instruction carries no resource url")
		return nil, false
	}
	return &instr, true
}

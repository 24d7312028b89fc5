// Package submit posts a computed answer to the resolved submission endpoint.
// Submission is always a best-effort final step: failures are returned for
// logging but never fail the task.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"quizrunner/internal/config"
	"quizrunner/internal/task"
)

// Identity is who the answer is submitted on behalf of.
type Identity struct {
	Email  string
	Secret string
}

// body is the JSON payload POSTed to the submission endpoint.
type body struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
	Answer int64  `json:"answer"`
}

// Submitter posts answers and records the response.
type Submitter struct {
	cfg    config.SubmitConfig
	client *http.Client
	logger *zap.Logger
}

// NewSubmitter builds a submitter with its own HTTP client.
func NewSubmitter(cfg config.SubmitConfig, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

// Endpoint resolves where to submit: the instruction's submit field, then its
// alternate submit_url, then post_url, else the configured default.
func (s *Submitter) Endpoint(instr *task.Instruction) string {
	switch {
	case instr == nil:
		return s.cfg.Endpoint()
	case instr.Submit != "":
		return instr.Submit
	case instr.SubmitURL != "":
		return instr.SubmitURL
	case instr.PostURL != "":
		return instr.PostURL
	default:
		return s.cfg.Endpoint()
	}
}

// Submit POSTs the answer as JSON and parses the JSON response body.
func (s *Submitter) Submit(ctx context.Context, ans task.Answer, instr *task.Instruction, id Identity) (*task.SubmissionResult, error) {
	endpoint := s.Endpoint(instr)

	payload, err := json.Marshal(body{
		Email:  id.Email,
		Secret: id.Secret,
		URL:    ans.ResourceURL,
		Answer: ans.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read submission response: %w", err)
	}

	result := &task.SubmissionResult{Endpoint: endpoint, StatusCode: resp.StatusCode}
	if err := json.Unmarshal(raw, &result.Response); err != nil {
		return result, fmt.Errorf("parse submission response: %w", err)
	}

	s.logger.Info("answer submitted",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int64("answer", ans.Value))
	return result, nil
}

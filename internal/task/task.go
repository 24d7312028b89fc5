// Package task defines the entities passed between pipeline stages.
// Each task owns its values exclusively for the duration of one run;
// nothing here is shared between concurrent pipelines.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Request is one validated inbound processing request. It is created by the
// acceptance layer and owned by the orchestrator until the task terminates.
type Request struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Secret     string    `json:"secret"`
	URL        string    `json:"url"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// NewRequest stamps a request with an ID and its acceptance time. The budget
// clock starts here, not when the pipeline picks the task up.
func NewRequest(email, secret, url string) Request {
	return Request{
		ID:         uuid.New(),
		Email:      email,
		Secret:     secret,
		URL:        url,
		AcceptedAt: time.Now(),
	}
}

// Link is an anchor captured from the navigated page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// PageExtract is the immutable text/DOM snapshot taken once per task.
type PageExtract struct {
	BodyText   string `json:"body_text"`
	PreText    string `json:"pre_text"`    // first <pre>, if any
	ResultText string `json:"result_text"` // first #result container, if any
	// SubmitLinks and VisibleURLs are diagnostic only; nothing downstream
	// consumes them.
	SubmitLinks []Link   `json:"submit_links,omitempty"`
	VisibleURLs []string `json:"visible_urls,omitempty"`
}

// SearchText returns the text the decoder scans for embedded payloads:
// the first <pre> wins, then the result container, then the full body.
func (e *PageExtract) SearchText() string {
	if e.PreText != "" {
		return e.PreText
	}
	if e.ResultText != "" {
		return e.ResultText
	}
	return e.BodyText
}

// DecodedPayload is the best-effort decoded text from an embedded base64 run.
type DecodedPayload struct {
	Text      string // decoded text
	Candidate string // originating base64 run, whitespace stripped
	MarkerHit bool   // true when a known marker substring matched
}

// Instruction is the structured directive extracted from a decoded payload.
// ResourceURL is required; the submission fields are all optional and are
// consulted in declaration order by the submitter.
type Instruction struct {
	ResourceURL string `json:"url"`
	Submit      string `json:"submit,omitempty"`
	SubmitURL   string `json:"submit_url,omitempty"`
	PostURL     string `json:"post_url,omitempty"`
}

// ResourceKind classifies a fetched resource for answer computation.
type ResourceKind string

const (
	// KindDocument is a text-extractable (PDF-class) resource.
	KindDocument ResourceKind = "document"
	// KindUnknown is anything else; unknown resources end the task quietly.
	KindUnknown ResourceKind = "unknown"
)

// FetchedResource holds the downloaded bytes and their classification.
// It is discarded as soon as text extraction has run.
type FetchedResource struct {
	URL         string
	Body        []byte
	ContentType string
	Kind        ResourceKind
}

// Answer is the computed numeric result for one resource.
type Answer struct {
	Value       int64  `json:"answer"`
	ResourceURL string `json:"url"`
}

// SubmissionResult records the outcome of posting an answer. It is terminal:
// logged, never returned to the original caller.
type SubmissionResult struct {
	Endpoint   string
	StatusCode int
	Response   map[string]any
}

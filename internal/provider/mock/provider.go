// Package mock provides a configurable in-memory Provider for testing and
// development. Responses and errors are settable per operation, and every
// call is counted so tests can assert on polling cadence.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Ayush-autviz/skin-sub000/internal/domain"
	"github.com/Ayush-autviz/skin-sub000/internal/provider"
	"github.com/google/uuid"
)

// Provider is a mock analysis provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	SubmitResponse      *provider.SubmitResult
	SubmitError         error
	ResultsResponse     *provider.ResultsPage
	ResultsError        error
	ResultsQueue        []resultsReply // If set, consumed one per GetResults call
	MaskResultsResponse map[string]json.RawMessage
	MaskResultsError    error
	MaskImagesResponse  map[string]string
	MaskImagesError     error
	ThreadIDResponse    string
	ThreadError         error

	// Call tracking for testing
	SubmitCalls       int
	GetResultsCalls   int
	MaskResultsCalls  int
	MaskImagesCalls   int
	CreateThreadCalls int
}

type resultsReply struct {
	page *provider.ResultsPage
	err  error
}

// New creates a new mock provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// QueueResults appends a canned GetResults reply. Queued replies are
// consumed in order; the last one repeats once the queue is drained.
func (p *Provider) QueueResults(page *provider.ResultsPage, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResultsQueue = append(p.ResultsQueue, resultsReply{page: page, err: err})
}

// Submit returns the configured submission result or a generated one
func (p *Provider) Submit(ctx context.Context, params provider.SubmitParams) (*provider.SubmitResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SubmitCalls++

	if p.SubmitError != nil {
		return nil, p.SubmitError
	}
	if p.SubmitResponse != nil {
		out := *p.SubmitResponse
		return &out, nil
	}

	imageID := uuid.NewString()
	return &provider.SubmitResult{
		BatchID:  uuid.NewString(),
		ImageID:  imageID,
		ImageURL: fmt.Sprintf("https://cdn.example.com/photos/%s.jpg", imageID),
	}, nil
}

// GetResults returns the next queued reply, the configured response, or a
// default completed page with sample scores
func (p *Provider) GetResults(ctx context.Context, imageID string) (*provider.ResultsPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GetResultsCalls++

	if len(p.ResultsQueue) > 0 {
		reply := p.ResultsQueue[0]
		if len(p.ResultsQueue) > 1 {
			p.ResultsQueue = p.ResultsQueue[1:]
		}
		return reply.page, reply.err
	}
	if p.ResultsError != nil {
		return nil, p.ResultsError
	}
	if p.ResultsResponse != nil {
		return p.ResultsResponse, nil
	}

	// Default canned response
	return &provider.ResultsPage{
		Status: domain.Status{State: domain.AnalysisStateCompleted},
		Results: []provider.Result{
			{Name: "hydration", Value: 72},
			{Name: "redness", Value: 64},
			{Name: "pores", Value: 58},
			{
				Name:  "image_quality",
				Value: 81,
				Quality: &domain.ImageQuality{
					Focus:    84,
					Lighting: 78,
					Overall:  81,
				},
			},
		},
	}, nil
}

// GetMaskResults returns the configured mask scores or a small sample set
func (p *Provider) GetMaskResults(ctx context.Context, imageID string) (map[string]json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MaskResultsCalls++

	if p.MaskResultsError != nil {
		return nil, p.MaskResultsError
	}
	if p.MaskResultsResponse != nil {
		return p.MaskResultsResponse, nil
	}
	return map[string]json.RawMessage{
		"redness": json.RawMessage(`{"regions":3,"coverage":0.12}`),
		"pores":   json.RawMessage(`{"regions":8,"coverage":0.04}`),
	}, nil
}

// GetMaskImages returns the configured mask overlay URLs or a sample set
func (p *Provider) GetMaskImages(ctx context.Context, imageID string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MaskImagesCalls++

	if p.MaskImagesError != nil {
		return nil, p.MaskImagesError
	}
	if p.MaskImagesResponse != nil {
		return p.MaskImagesResponse, nil
	}
	return map[string]string{
		"redness": fmt.Sprintf("https://cdn.example.com/masks/%s/redness.png", imageID),
		"pores":   fmt.Sprintf("https://cdn.example.com/masks/%s/pores.png", imageID),
	}, nil
}

// CreateThread returns the configured thread id or a generated one
func (p *Provider) CreateThread(ctx context.Context, photoID uuid.UUID) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CreateThreadCalls++

	if p.ThreadError != nil {
		return "", p.ThreadError
	}
	if p.ThreadIDResponse != "" {
		return p.ThreadIDResponse, nil
	}
	return "thread_" + uuid.NewString(), nil
}

// Calls returns a snapshot of the call counters.
func (p *Provider) Calls() (submit, results, maskResults, maskImages, threads int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SubmitCalls, p.GetResultsCalls, p.MaskResultsCalls, p.MaskImagesCalls, p.CreateThreadCalls
}

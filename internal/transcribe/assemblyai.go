package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAssemblyAIBaseURL = "https://api.assemblyai.com/v2"
	defaultPollInterval      = 2 * time.Second
	defaultPollTimeout       = 120 * time.Second
)

// AssemblyAI transcribes prerecorded audio through the AssemblyAI REST API:
// upload the bytes, create a transcript job, poll until completed or the
// deadline expires. Exceeding the deadline is a fatal timeout, never a
// partial result.
type AssemblyAI struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewAssemblyAI(apiKey string) *AssemblyAI {
	return &AssemblyAI{
		apiKey:       apiKey,
		baseURL:      defaultAssemblyAIBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
	}
}

func (a *AssemblyAI) Transcribe(ctx context.Context, audio []byte, _ string) (Result, error) {
	uploadURL, err := a.upload(ctx, audio)
	if err != nil {
		return Result{}, err
	}

	transcriptID, err := a.createTranscript(ctx, uploadURL)
	if err != nil {
		return Result{}, err
	}

	return a.poll(ctx, transcriptID)
}

func (a *AssemblyAI) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", upstreamErr("build upload request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var body struct {
		UploadURL string `json:"upload_url"`
	}
	if err := a.do(req, &body); err != nil {
		return "", err
	}
	if body.UploadURL == "" {
		return "", upstreamErr("upload did not return a URL")
	}
	return body.UploadURL, nil
}

func (a *AssemblyAI) createTranscript(ctx context.Context, uploadURL string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"audio_url":   uploadURL,
		"punctuate":   true,
		"format_text": true,
	})
	if err != nil {
		return "", upstreamErr("encode transcript request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", upstreamErr("build transcript request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		ID string `json:"id"`
	}
	if err := a.do(req, &body); err != nil {
		return "", err
	}
	if body.ID == "" {
		return "", upstreamErr("transcript creation did not return an id")
	}
	return body.ID, nil
}

type assemblyAITranscript struct {
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
	Words  []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
}

func (a *AssemblyAI) poll(ctx context.Context, transcriptID string) (Result, error) {
	deadline := time.Now().Add(a.pollTimeout)
	statusURL := fmt.Sprintf("%s/transcript/%s", a.baseURL, transcriptID)

	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return Result{}, upstreamErr("build poll request: %w", err)
		}
		req.Header.Set("Authorization", a.apiKey)

		var body assemblyAITranscript
		if err := a.do(req, &body); err != nil {
			return Result{}, err
		}

		switch body.Status {
		case "completed":
			words := make([]Word, 0, len(body.Words))
			for _, w := range body.Words {
				if w.Text == "" {
					continue
				}
				words = append(words, Word{Word: w.Text, Confidence: w.Confidence})
			}
			return Result{Text: body.Text, Words: words}, nil
		case "error":
			return Result{}, upstreamErr("transcription failed: %s", body.Error)
		}

		select {
		case <-ctx.Done():
			return Result{}, &Error{Kind: KindTimeout, Err: ctx.Err()}
		case <-time.After(a.pollInterval):
		}
	}

	return Result{}, &Error{Kind: KindTimeout, Err: errors.New("transcription polling deadline exceeded")}
}

func (a *AssemblyAI) do(req *http.Request, out any) error {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return upstreamErr("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return upstreamErr("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return upstreamErr("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

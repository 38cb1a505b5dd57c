// Package coach generates conversation topics and post-speech feedback from
// finished transcripts through a configurable completion provider.
package coach

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const topicsPrompt = "You are an AI conversation coach. Based on the user's recent monologue, " +
	"suggest 3 short, engaging topics to help them keep talking naturally."

const analysisPrompt = "You are a speech evaluator. Analyze this transcript and return structured feedback " +
	"on clarity, fluency, and filler-word usage."

type Coach struct {
	backend Backend
	sleep   func(time.Duration)
}

func New(backend Backend) *Coach {
	return &Coach{backend: backend, sleep: time.Sleep}
}

// GenerateTopics suggests follow-up topics so a speaker can keep going.
// Each non-empty completion line becomes one topic, bullet markers stripped.
func (c *Coach) GenerateTopics(ctx context.Context, transcript string) ([]string, error) {
	content, err := c.complete(ctx, topicsPrompt, transcript)
	if err != nil {
		return nil, err
	}

	var topics []string
	for _, line := range strings.Split(content, "\n") {
		topic := strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
		if topic == "" {
			continue
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// AnalyzeSpeech returns free-form feedback on clarity, fluency, and filler
// usage for a finished transcript.
func (c *Coach) AnalyzeSpeech(ctx context.Context, transcript string) (string, error) {
	return c.complete(ctx, analysisPrompt, transcript)
}

func (c *Coach) complete(ctx context.Context, system, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", nil
	}

	prompt := "Transcript:\n" + transcript

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := 0; attempt < len(backoff); attempt++ {
		content, err := c.backend.Complete(ctx, system, prompt)
		if err == nil {
			return content, nil
		}

		lastErr = err
		if attempt < len(backoff)-1 {
			c.sleep(backoff[attempt])
		}
	}

	return "", fmt.Errorf("coach completion failed after retries: %w", lastErr)
}

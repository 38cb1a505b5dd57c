package transcribe

import (
	"bytes"
	"context"
	"errors"

	listenv1 "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Deepgram transcribes prerecorded audio through the Deepgram REST API.
type Deepgram struct {
	client *listenv1.Client
	model  string
}

func NewDeepgram(apiKey, model string) *Deepgram {
	if model == "" {
		model = "nova-2"
	}
	rest := listen.NewREST(apiKey, &interfaces.ClientOptions{})
	return &Deepgram{client: listenv1.New(rest), model: model}
}

func (d *Deepgram) Transcribe(ctx context.Context, audio []byte, _ string) (Result, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Punctuate:   true,
		SmartFormat: true,
	}

	resp, err := d.client.FromStream(ctx, bytes.NewReader(audio), options)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, &Error{Kind: KindTimeout, Err: err}
		}
		return Result{}, upstreamErr("deepgram transcription: %w", err)
	}

	if resp == nil || len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return Result{}, upstreamErr("deepgram returned no alternatives")
	}

	alt := resp.Results.Channels[0].Alternatives[0]
	words := make([]Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		token := w.PunctuatedWord
		if token == "" {
			token = w.Word
		}
		if token == "" {
			continue
		}
		words = append(words, Word{Word: token, Confidence: w.Confidence})
	}

	return Result{Text: alt.Transcript, Words: words}, nil
}

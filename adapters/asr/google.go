package asr

import (
	"context"
	"fmt"
	"io"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/repositories"
)

// GoogleRecognizer implements SpeechRecognizer for Google Cloud
// Speech-to-Text.
type GoogleRecognizer struct {
	logger *zap.Logger
}

// NewGoogleRecognizer creates a Google Cloud recognizer adapter. Credentials
// come from the application-default environment.
func NewGoogleRecognizer(logger *zap.Logger) *GoogleRecognizer {
	return &GoogleRecognizer{logger: logger}
}

// Start opens a streaming recognize session and spawns the receive goroutine.
func (g *GoogleRecognizer) Start(ctx context.Context, config repositories.RecognitionConfig) (repositories.RecognizerStream, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	language := "cmn-Hans-CN"
	if len(config.LanguageHints) > 0 {
		language = config.LanguageHints[0]
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(config.SampleRate),
		LanguageCode:               language,
		EnableAutomaticPunctuation: config.EnablePunctuation,
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         recognitionConfig,
				InterimResults: config.EnableIntermediateResult,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	gs := &googleStream{
		client: client,
		stream: stream,
		events: make(chan repositories.RecognitionEvent, 64),
		done:   make(chan struct{}),
		logger: g.logger,
	}
	go gs.receive()

	return gs, nil
}

type googleStream struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	events chan repositories.RecognitionEvent
	done   chan struct{}
	logger *zap.Logger
}

func (g *googleStream) Events() <-chan repositories.RecognitionEvent {
	return g.events
}

func (g *googleStream) SendFrame(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: frame,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

// Stop closes the send direction and waits for the remaining results.
func (g *googleStream) Stop(ctx context.Context) error {
	err := g.stream.CloseSend()

	select {
	case <-g.done:
	case <-ctx.Done():
		g.logger.Warn("recognizer stop timed out waiting for flush")
	case <-time.After(5 * time.Second):
		g.logger.Warn("recognizer stop timed out waiting for flush")
	}

	g.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (g *googleStream) receive() {
	defer close(g.events)
	defer close(g.done)

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			g.events <- repositories.RecognitionEvent{Kind: repositories.RecognitionClosed}
			return
		}
		if err != nil {
			g.events <- repositories.RecognitionEvent{
				Kind: repositories.RecognitionError,
				Err:  fmt.Errorf("failed to receive response: %w", err),
			}
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			text := result.Alternatives[0].Transcript
			if text == "" {
				continue
			}
			kind := repositories.RecognitionPartial
			if result.IsFinal {
				kind = repositories.RecognitionSentence
			}
			g.events <- repositories.RecognitionEvent{Kind: kind, Text: text}
		}
	}
}

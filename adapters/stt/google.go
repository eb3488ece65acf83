package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/parley/internal/audio"
)

// streamChunkBytes keeps each streamed request at 100 ms of 16 kHz LINEAR16
const streamChunkBytes = audio.WireRate / 10 * 2

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client   *speech.Client
	language string
	logger   *zap.Logger
}

// NewGoogleSpeechToText creates the speech client using application default credentials
func NewGoogleSpeechToText(ctx context.Context, language string, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleSpeechToText{client: client, language: language, logger: logger}, nil
}

// Close releases the client connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// Transcribe streams one utterance and returns the joined final results
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, samples []int16) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	stream, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:          recognitionConfig(g.language),
				InterimResults:  false,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		return "", fmt.Errorf("failed to send streaming config: %w", err)
	}

	for _, chunk := range splitBytes(audio.SamplesToBytes(samples), streamChunkBytes) {
		if err := stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: chunk,
			},
		}); err != nil {
			stream.CloseSend()
			return "", fmt.Errorf("failed to send audio data: %w", err)
		}
	}
	if err := stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	var finals []string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to receive response: %w", err)
		}
		finals = append(finals, finalTranscripts(resp.GetResults())...)
	}

	text := strings.Join(finals, " ")
	g.logger.Debug("Google transcription",
		zap.Int("samples", len(samples)),
		zap.String("transcription", text))
	return text, nil
}

func recognitionConfig(language string) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		Encoding:        speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz: audio.WireRate,
		LanguageCode:    language,
	}
}

// finalTranscripts takes the best alternative of each final result
func finalTranscripts(results []*speechpb.StreamingRecognitionResult) []string {
	var out []string
	for _, result := range results {
		if !result.GetIsFinal() || len(result.GetAlternatives()) == 0 {
			continue
		}
		if t := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript()); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitBytes(data []byte, size int) [][]byte {
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}

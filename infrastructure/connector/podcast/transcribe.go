package podcast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// maxAudioBytes bounds the enclosure download. The transcription API
// rejects larger uploads anyway.
const maxAudioBytes = 25 << 20

// Transcriber converts an audio enclosure to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// OpenAITranscriber streams the enclosure through the OpenAI audio
// transcription API.
type OpenAITranscriber struct {
	client   *openai.Client
	download *http.Client
	model    string
}

// OpenAITranscriberConfig holds settings for the transcriber.
type OpenAITranscriberConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOpenAITranscriber creates an OpenAITranscriber.
func NewOpenAITranscriber(cfg OpenAITranscriberConfig) *OpenAITranscriber {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		// Whole-episode transcription is slow.
		timeout = 10 * time.Minute
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &OpenAITranscriber{
		client:   openai.NewClientWithConfig(config),
		download: &http.Client{Timeout: timeout},
		model:    model,
	}
}

// Transcribe downloads the audio file and submits it for transcription.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("build audio request: %w", err)
	}

	resp, err := t.download.Do(req)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("audio download returned status %d", resp.StatusCode)
	}

	transcription, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   io.LimitReader(resp.Body, maxAudioBytes),
		FilePath: audioFilename(audioURL),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return transcription.Text, nil
}

// audioFilename derives the upload filename the API uses to sniff the
// container format.
func audioFilename(audioURL string) string {
	u, err := url.Parse(audioURL)
	if err != nil || path.Base(u.Path) == "." || path.Base(u.Path) == "/" {
		return "episode.mp3"
	}
	return path.Base(u.Path)
}

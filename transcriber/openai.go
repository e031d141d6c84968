package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
)

type OpenAI struct {
	baseTranscriber
	apiKey string
}

func NewOpenAI(apiKey string) *OpenAI {
	apiURL := "https://api.openai.com/v1/audio/transcriptions"
	return &OpenAI{
		baseTranscriber: baseTranscriber{
			client: NewTracedClient(apiURL),
			apiURL: apiURL,
		},
		apiKey: apiKey,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	go o.client.Warm()
	if cfg.Language != "" {
		o.SetLanguage(cfg.Language)
	}
	return newBatchSession(ctx, cfg, o.transcribe)
}

func (o *OpenAI) transcribe(ctx context.Context, audioData []byte, format string) (*Result, error) {
	body, contentType, err := buildAudioForm(audioData, format, "whisper-1", "json", o.lang)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Upload(ctx, "Bearer "+o.apiKey, contentType, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, &Failure{
			Kind: FailureService,
			Err:  fmt.Errorf("openai API error %d: %s", resp.StatusCode, string(resp.Body)),
		}
	}

	var oResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &oResp); err != nil {
		return nil, &Failure{
			Kind: FailureService,
			Err:  fmt.Errorf("openai response parse error: %w", err),
		}
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &Result{
		Text:      oResp.Text,
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
	}, nil
}

package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
)

type Groq struct {
	baseTranscriber
	apiKey string
}

func NewGroq(apiKey string) *Groq {
	apiURL := "https://api.groq.com/openai/v1/audio/transcriptions"
	return &Groq{
		baseTranscriber: baseTranscriber{
			client: NewTracedClient(apiURL),
			apiURL: apiURL,
		},
		apiKey: apiKey,
	}
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	go g.client.Warm()
	if cfg.Language != "" {
		g.SetLanguage(cfg.Language)
	}
	return newBatchSession(ctx, cfg, g.transcribe)
}

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text             string  `json:"text"`
		Start            float64 `json:"start"`
		End              float64 `json:"end"`
		NoSpeechProb     float64 `json:"no_speech_prob"`
		AvgLogProb       float64 `json:"avg_logprob"`
		CompressionRatio float64 `json:"compression_ratio"`
		Temperature      float64 `json:"temperature"`
	} `json:"segments"`
}

func (g *Groq) transcribe(ctx context.Context, audioData []byte, format string) (*Result, error) {
	body, contentType, err := buildAudioForm(audioData, format, "whisper-large-v3-turbo", "verbose_json", g.lang)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Upload(ctx, "Bearer "+g.apiKey, contentType, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, &Failure{
			Kind: FailureService,
			Err:  fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(resp.Body)),
		}
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return nil, &Failure{
			Kind: FailureService,
			Err:  fmt.Errorf("groq response parse error: %w", err),
		}
	}

	var noSpeechProb, avgLogProb float64
	var segments []Segment
	if len(gResp.Segments) > 0 {
		var logProbSum float64
		for _, seg := range gResp.Segments {
			if seg.NoSpeechProb > noSpeechProb {
				noSpeechProb = seg.NoSpeechProb
			}
			logProbSum += seg.AvgLogProb
			segments = append(segments, Segment{
				Text:             seg.Text,
				NoSpeechProb:     seg.NoSpeechProb,
				AvgLogProb:       seg.AvgLogProb,
				CompressionRatio: seg.CompressionRatio,
				Temperature:      seg.Temperature,
				Start:            seg.Start,
				End:              seg.End,
			})
		}
		avgLogProb = logProbSum / float64(len(gResp.Segments))
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &Result{
		Text:         gResp.Text,
		Metrics:      resp.Metrics,
		RateLimit:    remaining + "/" + limit,
		NoSpeechProb: noSpeechProb,
		AvgLogProb:   avgLogProb,
		Duration:     gResp.Duration,
		Segments:     segments,
	}, nil
}

package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	Retried     bool
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text             string
	NoSpeechProb     float64
	AvgLogProb       float64
	CompressionRatio float64
	Temperature      float64
	Start            float64
	End              float64
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	Confidence   float64
	NoSpeechProb float64
	AvgLogProb   float64
	Duration     float64
	Segments     []Segment
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

type baseTranscriber struct {
	client *TracedClient
	apiURL string
	lang   string
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

// buildAudioForm assembles the multipart upload: the audio file part
// first, then the model/format/language fields. Returning the encoded
// body lets the client replay it on a retry.
func buildAudioForm(audioData []byte, format, model, responseFormat, lang string) ([]byte, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, "", err
	}

	writer.WriteField("model", model)
	writer.WriteField("response_format", responseFormat)
	if lang != "" {
		writer.WriteField("language", lang)
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

// New selects a provider. An explicit name wins; otherwise the first
// provider with a key in the environment is used, OpenAI before Groq.
func New(provider string) (Transcriber, error) {
	openaiKey := os.Getenv("OPENAI_API_KEY")
	groqKey := os.Getenv("GROQ_API_KEY")

	switch provider {
	case "openai":
		if openaiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return NewOpenAI(openaiKey), nil
	case "groq":
		if groqKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY is not set")
		}
		return NewGroq(groqKey), nil
	case "", "auto":
		if openaiKey != "" {
			return NewOpenAI(openaiKey), nil
		}
		if groqKey != "" {
			return NewGroq(groqKey), nil
		}
		return nil, fmt.Errorf("set OPENAI_API_KEY or GROQ_API_KEY environment variable")
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", provider)
	}
}

package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/zhouzirui/haven/backend/internal/config"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// WhisperClient calls an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	retry      RetryConfig
}

// NewWhisperClient builds a client from the speech configuration.
func NewWhisperClient(cfg config.SpeechConfig) *WhisperClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WhisperClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		retry:      DefaultRetryConfig(),
	}
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Transcribe uploads audio and returns the recognized text.
func (c *WhisperClient) Transcribe(ctx context.Context, req Request) (Transcript, error) {
	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}

	var result transcriptionResponse
	err := WithRetry(ctx, c.retry, func() error {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)

		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			return Permanent(fmt.Errorf("creating form file: %w", err))
		}
		if _, err = part.Write(req.Audio); err != nil {
			return Permanent(fmt.Errorf("writing audio: %w", err))
		}
		if err = writer.WriteField("model", c.model); err != nil {
			return Permanent(fmt.Errorf("writing model field: %w", err))
		}
		if req.Language != "" {
			if err = writer.WriteField("language", req.Language); err != nil {
				return Permanent(fmt.Errorf("writing language field: %w", err))
			}
		}
		if err = writer.WriteField("response_format", "verbose_json"); err != nil {
			return Permanent(fmt.Errorf("writing response format: %w", err))
		}
		if err = writer.Close(); err != nil {
			return Permanent(fmt.Errorf("closing writer: %w", err))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
		if err != nil {
			return Permanent(fmt.Errorf("creating request: %w", err))
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			apiErr := fmt.Errorf("transcription API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			if IsRetryableHTTPStatus(resp.StatusCode) {
				return apiErr
			}
			return Permanent(apiErr)
		}

		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	})
	if err != nil {
		return Transcript{}, err
	}

	return Transcript{
		Text:     strings.TrimSpace(result.Text),
		Language: result.Language,
		Duration: result.Duration,
	}, nil
}

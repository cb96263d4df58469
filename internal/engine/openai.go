package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"minutegen/internal/domain"
)

// OpenAIEngine talks to an OpenAI-compatible inference server (vLLM,
// Ollama, or api.openai.com) and implements the ASR, LLM, and embedding
// capabilities.
type OpenAIEngine struct {
	baseURL    string
	apiKey     string
	asrModel   string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

func NewOpenAIEngine(baseURL, apiKey, asrModel, chatModel, embedModel string) *OpenAIEngine {
	return &OpenAIEngine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		asrModel:   asrModel,
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 30 * time.Minute},
	}
}

type verboseSegment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

type transcriptionResp struct {
	Text     string           `json:"text"`
	Segments []verboseSegment `json:"segments"`
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, chunk domain.AudioChunk) ([]domain.TranscriptSegment, error) {
	if len(chunk.Samples) == 0 {
		return nil, fmt.Errorf("chunk %d has no samples", chunk.Index)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("model", e.asrModel); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("write response_format field: %w", err)
	}

	part, err := writer.CreateFormFile("file", fmt.Sprintf("chunk_%04d.wav", chunk.Index))
	if err != nil {
		return nil, fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := part.Write(encodeWAV(chunk.Samples, 16000)); err != nil {
		return nil, fmt.Errorf("write audio payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	e.authorize(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, e.decodeAPIError(resp)
	}

	var payload transcriptionResp
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}

	if len(payload.Segments) == 0 {
		text := strings.TrimSpace(payload.Text)
		if text == "" {
			return nil, nil
		}
		return []domain.TranscriptSegment{{
			Text:       text,
			StartSec:   0,
			EndSec:     chunk.DurationSec(),
			Confidence: 0.5,
		}}, nil
	}

	segments := make([]domain.TranscriptSegment, 0, len(payload.Segments))
	for _, s := range payload.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.TranscriptSegment{
			Text:       text,
			StartSec:   s.Start,
			EndSec:     s.End,
			Confidence: segmentConfidence(s),
		})
	}
	return segments, nil
}

// segmentConfidence folds whisper's avg_logprob and no_speech_prob into
// a single [0,1] score.
func segmentConfidence(s verboseSegment) float64 {
	conf := math.Exp(s.AvgLogprob) * (1 - s.NoSpeechProb)
	return math.Max(0, math.Min(1, conf))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (e *OpenAIEngine) Generate(ctx context.Context, prompt string, schema string) (string, error) {
	payload := map[string]any{
		"model": e.chatModel,
		"messages": []chatMessage{
			{Role: "user", Content: prompt},
		},
		"temperature": 0.2,
	}
	if schema != "" {
		var schemaObj map[string]any
		if err := json.Unmarshal([]byte(schema), &schemaObj); err != nil {
			return "", fmt.Errorf("invalid response schema: %w", err)
		}
		payload["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "meeting_minutes",
				"strict": true,
				"schema": schemaObj,
			},
		}
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", buf)
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	e.authorize(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", e.decodeAPIError(resp)
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func (e *OpenAIEngine) Embed(ctx context.Context, text string) ([]float64, error) {
	payload := map[string]any{
		"model": e.embedModel,
		"input": text,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode embedding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", buf)
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	e.authorize(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, e.decodeAPIError(resp)
	}

	var response struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(response.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}

	return response.Data[0].Embedding, nil
}

func (e *OpenAIEngine) authorize(req *http.Request) {
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}

func (e *OpenAIEngine) decodeAPIError(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("engine api error: status %d type %s message %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
	}
	return fmt.Errorf("engine api error: status %d body %s", resp.StatusCode, string(body))
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reliefconnect/api/internal/model"
)

// ErrUnintelligible means the extractor could not find a request in the
// recording.
var ErrUnintelligible = errors.New("unintelligible")

// ExtractorClient calls the voice extraction service, which turns a recorded
// help request into the fields of a relief request.
type ExtractorClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewExtractorClient(baseURL string) *ExtractorClient {
	return &ExtractorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type AnalyzeRequest struct {
	Audio    string `json:"audio"`
	MimeType string `json:"mimeType"`
}

// Extraction is a draft relief request. Every field may be empty.
type Extraction struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Address     string             `json:"address"`
	Urgency     model.UrgencyLevel `json:"urgency"`
	Contact     string             `json:"contact"`
}

type extractorResponse struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Address     string          `json:"address"`
	Urgency     json.RawMessage `json:"urgency"`
	Contact     string          `json:"contact"`
	Error       string          `json:"error"`
}

// Analyze sends base64 audio to the extractor.
func (c *ExtractorClient) Analyze(ctx context.Context, audio, mimeType string) (*Extraction, error) {
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	reqBody, err := json.Marshal(AnalyzeRequest{Audio: audio, MimeType: mimeType})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("extractor returned status %d: %s", resp.StatusCode, string(body))
	}

	var raw extractorResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode extractor response: %w", err)
	}
	if raw.Error == ErrUnintelligible.Error() {
		return nil, ErrUnintelligible
	}
	if raw.Error != "" {
		return nil, fmt.Errorf("extractor error: %s", raw.Error)
	}

	return &Extraction{
		Title:       strings.TrimSpace(raw.Title),
		Description: strings.TrimSpace(raw.Description),
		Address:     strings.TrimSpace(raw.Address),
		Urgency:     parseUrgency(raw.Urgency),
		Contact:     strings.TrimSpace(raw.Contact),
	}, nil
}

// parseUrgency accepts a number or a numeric string and clamps it into
// range. Anything else, including a missing value, is Medium.
func parseUrgency(raw json.RawMessage) model.UrgencyLevel {
	if len(raw) == 0 || string(raw) == "null" {
		return model.UrgencyMedium
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return model.ClampUrgency(int(n))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return model.ClampUrgency(v)
		}
	}
	return model.UrgencyMedium
}

package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Likelihood is a bucketed confidence returned by the safe-search model.
type Likelihood int

const (
	LikelihoodUnknown Likelihood = iota
	LikelihoodVeryUnlikely
	LikelihoodUnlikely
	LikelihoodPossible
	LikelihoodLikely
	LikelihoodVeryLikely
)

var likelihoodNames = map[string]Likelihood{
	"UNKNOWN":       LikelihoodUnknown,
	"VERY_UNLIKELY": LikelihoodVeryUnlikely,
	"UNLIKELY":      LikelihoodUnlikely,
	"POSSIBLE":      LikelihoodPossible,
	"LIKELY":        LikelihoodLikely,
	"VERY_LIKELY":   LikelihoodVeryLikely,
}

// UnmarshalJSON decodes the wire representation ("VERY_LIKELY", ...).
func (l *Likelihood) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = likelihoodNames[s]
	return nil
}

func (l Likelihood) String() string {
	for name, v := range likelihoodNames {
		if v == l {
			return name
		}
	}
	return "UNKNOWN"
}

// Label is a single concept detected in an image.
type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// SafeSearch holds per-category safety likelihoods.
type SafeSearch struct {
	Adult    Likelihood `json:"adult"`
	Violence Likelihood `json:"violence"`
	Racy     Likelihood `json:"racy"`
	Spoof    Likelihood `json:"spoof"`
}

// DominantColor is one entry of the image color summary.
type DominantColor struct {
	Red           float64 `json:"red"`
	Green         float64 `json:"green"`
	Blue          float64 `json:"blue"`
	Score         float64 `json:"score"`
	PixelFraction float64 `json:"pixelFraction"`
}

// Annotation is the structured result of annotating one image.
type Annotation struct {
	Labels         []Label
	SafeSearch     SafeSearch
	Text           string
	DominantColors []DominantColor
}

// Config holds configuration for the image annotation client.
type Config struct {
	BaseURL string // annotation API URL, e.g., "http://localhost:9090"
	APIKey  string
	Timeout time.Duration // Per-request timeout
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:9090",
		Timeout: 10 * time.Second,
	}
}

// Client is a client for the image annotation API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new annotation client.
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image    imageContent `json:"image"`
	Features []feature    `json:"features"`
}

type imageContent struct {
	Content string `json:"content"` // base64
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type annotateResponse struct {
	Responses []struct {
		LabelAnnotations     []Label     `json:"labelAnnotations"`
		SafeSearchAnnotation *SafeSearch `json:"safeSearchAnnotation"`
		TextAnnotations      []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		ImageProperties *struct {
			DominantColors struct {
				Colors []struct {
					Color         DominantColor `json:"color"`
					Score         float64       `json:"score"`
					PixelFraction float64       `json:"pixelFraction"`
				} `json:"colors"`
			} `json:"dominantColors"`
		} `json:"imagePropertiesAnnotation"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// Annotate runs label, safe-search, text and image-properties detection on a
// single image and returns the combined annotation.
func (c *Client) Annotate(ctx context.Context, imageData []byte) (*Annotation, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	reqBody := annotateRequest{
		Requests: []annotateEntry{{
			Image: imageContent{Content: base64.StdEncoding.EncodeToString(imageData)},
			Features: []feature{
				{Type: "LABEL_DETECTION", MaxResults: 15},
				{Type: "SAFE_SEARCH_DETECTION"},
				{Type: "TEXT_DETECTION"},
				{Type: "IMAGE_PROPERTIES"},
			},
		}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.config.BaseURL + "/v1/images:annotate"
	if c.config.APIKey != "" {
		url += "?key=" + c.config.APIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call annotation API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("annotation API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp annotateResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResp.Responses) == 0 {
		return nil, fmt.Errorf("annotation API returned no responses")
	}

	r := apiResp.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("annotation API error %d: %s", r.Error.Code, r.Error.Message)
	}

	ann := &Annotation{Labels: r.LabelAnnotations}
	if r.SafeSearchAnnotation != nil {
		ann.SafeSearch = *r.SafeSearchAnnotation
	}
	// The first text annotation aggregates all detected text blocks.
	if len(r.TextAnnotations) > 0 {
		ann.Text = r.TextAnnotations[0].Description
	}
	if r.ImageProperties != nil {
		for _, c := range r.ImageProperties.DominantColors.Colors {
			dc := c.Color
			dc.Score = c.Score
			dc.PixelFraction = c.PixelFraction
			ann.DominantColors = append(ann.DominantColors, dc)
		}
	}
	return ann, nil
}

// Ping checks if the annotation API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	url := c.config.BaseURL + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("annotation API not reachable at %s: %w", c.config.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("annotation API returned status %d", resp.StatusCode)
	}
	return nil
}

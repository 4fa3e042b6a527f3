package provider

import (
	"fmt"
	"net/url"
	"strings"

	"thumbnailer/internal/domain"
)

// openaiSize maps an aspect ratio onto the discrete sizes the DALL-E style
// API accepts. 4:3 has no native size and degrades to square.
func openaiSize(a domain.AspectRatio) string {
	switch a {
	case domain.AspectWide:
		return "1792x1024"
	case domain.AspectVertical:
		return "1024x1792"
	default:
		return "1024x1024"
	}
}

// OpenAIConfig configures the DALL-E style adapter.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAI builds the highest-quality paid adapter. The response is JSON
// carrying either a hosted URL or an inline base64 payload depending on
// account settings, so both extraction rules are declared.
func NewOpenAI(cfg OpenAIConfig, opts Options) *HTTPAdapter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "dall-e-3"
	}
	ep := Endpoint{
		URL: base + "/images/generations",
		Headers: map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		},
		Body: func(req Request) any {
			return map[string]any{
				"model":           model,
				"prompt":          req.Prompt,
				"n":               1,
				"size":            openaiSize(req.AspectRatio),
				"quality":         "standard",
				"response_format": "url",
			}
		},
		URLPaths: []string{"data.0.url", "url", "image_url", "output.url"},
		B64Paths: []string{"data.0.b64_json", "b64_json", "image_base64", "output.image_base64"},
	}
	return NewHTTPAdapter("openai", []Endpoint{ep}, opts)
}

// HuggingFaceConfig configures the FLUX inference adapter.
type HuggingFaceConfig struct {
	APIToken string
	BaseURL  string
	Model    string
}

// NewHuggingFace builds the inference-router adapter. A successful response
// body is the raw PNG; error details come back as JSON with a non-2xx status.
func NewHuggingFace(cfg HuggingFaceConfig, opts Options) *HTTPAdapter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://router.huggingface.co/hf-inference/models"
	}
	model := cfg.Model
	if model == "" {
		model = "black-forest-labs/FLUX.1-schnell"
	}
	ep := Endpoint{
		URL: base + "/" + model,
		Headers: map[string]string{
			"Authorization": "Bearer " + cfg.APIToken,
			"Accept":        "image/png",
		},
		Body: func(req Request) any {
			return map[string]any{"inputs": req.Prompt}
		},
		Binary: true,
	}
	return NewHTTPAdapter("huggingface", []Endpoint{ep}, opts)
}

// PollinationsConfig configures the keyless last-resort adapter.
type PollinationsConfig struct {
	BaseURL string
}

// NewPollinations builds the free prompt-driven adapter used as the tail of
// the fallback chain. The prompt is encoded into the URL and the response is
// the image itself.
func NewPollinations(cfg PollinationsConfig, opts Options) *HTTPAdapter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://image.pollinations.ai"
	}
	ep := Endpoint{
		Method: "GET",
		BuildURL: func(req Request) string {
			width, height := req.AspectRatio.Size()
			q := url.Values{}
			q.Set("width", fmt.Sprint(width))
			q.Set("height", fmt.Sprint(height))
			q.Set("model", "flux")
			q.Set("enhance", "true")
			q.Set("nologo", "true")
			return base + "/prompt/" + url.PathEscape(req.Prompt) + "?" + q.Encode()
		},
		Binary: true,
	}
	return NewHTTPAdapter("pollinations", []Endpoint{ep}, opts)
}

// ChainConfig selects and orders the adapters for the fallback chain.
type ChainConfig struct {
	Order        []string
	OpenAI       OpenAIConfig
	HuggingFace  HuggingFaceConfig
	Pollinations PollinationsConfig
}

// Chain assembles adapters in the configured priority order. Paid providers
// without credentials are skipped so the chain never wastes an attempt on a
// call that cannot be authorized.
func Chain(cfg ChainConfig, opts Options) []Adapter {
	order := cfg.Order
	if len(order) == 0 {
		order = []string{"openai", "huggingface", "pollinations"}
	}
	var chain []Adapter
	for _, name := range order {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "openai":
			if cfg.OpenAI.APIKey != "" {
				chain = append(chain, NewOpenAI(cfg.OpenAI, opts))
			}
		case "huggingface":
			if cfg.HuggingFace.APIToken != "" {
				chain = append(chain, NewHuggingFace(cfg.HuggingFace, opts))
			}
		case "pollinations":
			chain = append(chain, NewPollinations(cfg.Pollinations, opts))
		}
	}
	return chain
}

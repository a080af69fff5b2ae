package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/tradesight/tradesight/internal/models"
)

const scalpContext = "Scalp Trading (1m-5m charts, high precision)"
const swingContext = "Swing Trading (4h-1D charts, trend following)"

const promptTemplate = `You are an expert professional trader and technical analyst specializing in %s.
Analyze this trading chart image deeply.

Provide a structured output with the following signal plan:
1. SIGNAL: "BUY" or "SELL" (or "WAIT" if unclear).
2. CONFIDENCE: 0-100%%.
3. ENTRY_PRICE: Specific current price or entry zone.
4. STOP_LOSS: A logical invalidation level.
5. TAKE_PROFIT_1: 1st conservative target.
6. TAKE_PROFIT_2: 2nd target.
7. TAKE_PROFIT_3: 3rd moonbag target.
8. REASONING: A concise list of 3-5 professional bullet points explaining support/resistance, indicators, and price action.

Format the output purely as JSON:
{
    "signal": "BUY",
    "confidence": 85,
    "entry": "1.2345",
    "stopLoss": "1.2000",
    "targets": ["1.2500", "1.2700", "1.3000"],
    "reasoning": ["Bullish Engulfing on Support", "RSI Divergence confirmed", "Volume spike detected"]
}
Do not use markdown, just raw JSON.`

// PromptFor returns the analysis prompt for a mode. Unknown modes fall back
// to swing; mode validation happens before the adapter is reached.
func PromptFor(mode string) string {
	timeframe := swingContext
	if mode == models.ModeScalp {
		timeframe = scalpContext
	}
	return fmt.Sprintf(promptTemplate, timeframe)
}

// Gemini is the Adapter backed by Google's Gemini API. Keys are per-user,
// so a fresh client is built for every call.
type Gemini struct {
	model string
}

// NewGemini creates a Gemini adapter invoking the given model name.
func NewGemini(model string) *Gemini {
	return &Gemini{model: model}
}

// Infer sends the prompt and the inline image to Gemini and returns the
// raw text of the response.
func (g *Gemini) Infer(ctx context.Context, apiKey string, image []byte, mimeType, mode string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("%w: creating client: %v", ErrProvider, err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(PromptFor(mode)),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", classify(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response", ErrProvider)
	}
	return text, nil
}

// classify maps a genai error onto the adapter taxonomy. Invalid keys come
// back as 400 with an API_KEY_INVALID status as well as plain 401/403.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuth, apiErr.Message)
		case apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "API key"):
			return fmt.Errorf("%w: %s", ErrAuth, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}

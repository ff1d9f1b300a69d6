// Package analysis turns OCR-extracted medical text into a plain-language
// explanation using a Gemini model on Vertex AI.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// SystemPrompt frames the model as a patient-facing explainer and pins the
// non-medical-advice disclaimer into every response.
const SystemPrompt = `You are a medical AI assistant helping patients understand their medical reports and prescriptions.

IMPORTANT DISCLAIMER: You must always include this in your response:
"⚠️ This is an AI-generated analysis for informational purposes only. It is NOT medical advice. Always consult with your healthcare provider for proper interpretation and clinical decisions."

Your role is to help patients understand their medical documents, not to diagnose or prescribe treatment.`

// promptHeader precedes the extracted text in every user prompt.
const promptHeader = `Analyze the following medical text and provide a clear, patient-friendly explanation that includes:

1. **Document Type**: Identify if this is a lab report, prescription, radiology report, etc.
2. **Key Findings**: List the main test results, medications, or findings
3. **Normal vs Abnormal**: Highlight any values that are outside normal ranges (if applicable)
4. **Simple Explanation**: Explain what these results mean in simple, non-technical language
5. **Recommendations**: Suggest next steps (e.g., "discuss with your doctor", "this appears normal")

Medical Text:
`

const promptFooter = `

Remember to include the important disclaimer at the end of your analysis.`

const (
	// maxInputChars keeps the prompt comfortably inside the model's token
	// budget (roughly 15,000 characters ~ 4,000 tokens).
	maxInputChars = 15000

	// minInputChars is the shortest extraction worth sending to the model.
	minInputChars = 10

	modelName = "gemini-1.5-flash"
)

// Canned responses for degraded outcomes. These are persisted in place of
// a real analysis; hard failures return an error instead and nothing is
// persisted.
const (
	InsufficientTextAnalysis = "Unable to analyze: insufficient text extracted from the document."
	emptyResponseAnalysis    = "AI analysis could not be generated. Please try again or consult your healthcare provider."
	quotaAnalysis            = "Service temporarily unavailable due to high demand. Please try again in a few moments."
	tooLargeAnalysis         = "Document is too large to analyze. Please try a shorter document or split it into sections."
)

// Client holds a configured generative model for report analysis.
type Client struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

// NewClient creates a Vertex AI client and configures the analysis model.
func NewClient(ctx context.Context, projectID, region string) (*Client, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("analysis.NewClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.3),
		MaxOutputTokens: genai.Ptr[int32](2048),
	}

	return &Client{model: model, baseClient: baseClient}, nil
}

// Close releases the underlying Vertex AI client.
func (c *Client) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// TruncateInput caps extracted text at maxInputChars, marking the cut.
func TruncateInput(text string) string {
	if len(text) <= maxInputChars {
		return text
	}
	return text[:maxInputChars] + "\n...[Text truncated due to length]"
}

// BuildPrompt assembles the user prompt for a piece of extracted text.
func BuildPrompt(extractedText string) string {
	return promptHeader + TruncateInput(extractedText) + promptFooter
}

// Analyze produces a patient-friendly explanation of extractedText.
//
// Outcomes the caller can persist (quota pressure, oversized input, empty
// model output, too little text) come back as canned analysis strings with
// a nil error. Anything else is a hard failure: ("", err), and the caller
// must not persist a partial record.
func (c *Client) Analyze(ctx context.Context, extractedText string) (string, error) {
	if len(strings.TrimSpace(extractedText)) < minInputChars {
		return InsufficientTextAnalysis, nil
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(BuildPrompt(extractedText)))
	if err != nil {
		if analysis, ok := degradedAnalysisFor(err); ok {
			return analysis, nil
		}
		return "", fmt.Errorf("generate analysis: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return emptyResponseAnalysis, nil
	}
	return text, nil
}

// degradedAnalysisFor maps well-known upstream failures onto canned,
// user-facing analysis strings.
func degradedAnalysisFor(err error) (string, bool) {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate"):
		return quotaAnalysis, true
	case strings.Contains(msg, "token") || strings.Contains(msg, "length"):
		return tooLargeAnalysis, true
	}
	return "", false
}

// responseText flattens the first candidate's text parts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}

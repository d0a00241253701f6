package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GoogleCloudPlatform/db-suite-profiler/internal/logger"
)

// geminiClient implements the LLMClient interface using the Google Gemini API.
type geminiClient struct {
	client *genai.Client
	cfg    Config
}

// LLMClient defines the interface for interacting with a generative AI model.
type LLMClient interface {
	// GenerateColumnDescription describes a column from its profile summary
	// and, when given, a free-form knowledge context.
	GenerateColumnDescription(ctx context.Context, tableName, columnName, profileSummary, knowledgeContext string) (string, error)

	// IsAPIKeyValid checks if the configured API key is functional.
	IsAPIKeyValid(ctx context.Context) error

	// Close cleans up any resources used by the client.
	Close() error
}

// Config holds configuration for the GenAI client.
type Config struct {
	APIKey string
	Model  string
}

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-1.5-flash-latest"

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg Config) (LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, &ErrInvalidInput{Msg: "cannot create Gemini client", Err: fmt.Errorf("API key is missing")}
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
		logger.Logger.Infow("Gemini model not specified, using default", "model", cfg.Model)
	}

	return &geminiClient{
		client: client,
		cfg:    cfg,
	}, nil
}

// Close cleans up the underlying Gemini client.
func (c *geminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAPIKeyValid checks if the Gemini API key is valid by listing models.
func (c *geminiClient) IsAPIKeyValid(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("gemini client not initialized (likely missing API key)")
	}

	modelIterator := c.client.ListModels(ctx)
	_, err := modelIterator.Next() // Attempt to list one model
	if err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied {
				return fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return fmt.Errorf("failed to verify Gemini API key by listing models: %w", err)
	}
	return nil
}

// columnPrompt builds the description prompt for one profiled column.
func columnPrompt(tableName, columnName, profileSummary, knowledgeContext string) string {
	contextBlock := "(none provided)"
	if strings.TrimSpace(knowledgeContext) != "" {
		contextBlock = knowledgeContext
	}
	return fmt.Sprintf(`
	Your task is to write a brief description of a database column for a data quality report.

	********** Column Profile **********
	Table: %s
	Column: %s
	%s
	********** End Column Profile **********

	********** Knowledge Context **********
	%s
	********** End Knowledge Context **********

	**Instructions:**
	1. Use the profile and, when relevant, the knowledge context about column '%s' of table '%s'.
	2. Write at most 40 words. Mention what the values represent, not the statistics themselves.
	3. Output ONLY the description text within <result></result> tags.
	4. If you cannot tell what the column holds, output empty <result></result> tags. Do NOT invent meanings.
	`, tableName, columnName, profileSummary, contextBlock, columnName, tableName)
}

// GenerateColumnDescription generates a description using the Gemini API.
func (c *geminiClient) GenerateColumnDescription(ctx context.Context, tableName, columnName, profileSummary, knowledgeContext string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(150)
	model.SetTopP(0.9)
	model.SetTopK(40)

	prompt := columnPrompt(tableName, columnName, profileSummary, knowledgeContext)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyAPIError(err)
	}

	text, err := getFirstTextPart(resp)
	if err != nil {
		return "", err
	}
	description, found := extractContentBetween(text, "<result>", "</result>")
	if !found {
		logger.Logger.Warnw("Could not extract description from Gemini response",
			"table", tableName, "column", columnName)
		return "", nil
	}

	logger.Logger.Debugw("Generated column description", "table", tableName, "column", columnName, "model", c.cfg.Model)
	return description, nil
}

// classifyAPIError wraps transient Gemini failures so that withRetry retries them.
func classifyAPIError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &ErrAPICall{Msg: "Gemini API call failed", Err: err}
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal:
		return &ErrAPICall{Msg: "Gemini API call failed", Err: err, Retryable: true}
	case codes.DeadlineExceeded:
		return &ErrTimeout{Msg: "Gemini API call timed out", Err: err}
	case codes.Canceled:
		return &ErrCancelled{Msg: "Gemini API call cancelled", Err: err}
	}
	return &ErrAPICall{Msg: "Gemini API call failed", Err: err}
}

// getFirstTextPart extracts the first text part from a Gemini response.
func getFirstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		safetyRatings := "none"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
			if resp.Candidates[0].SafetyRatings != nil {
				safetyRatings = fmt.Sprintf("%v", resp.Candidates[0].SafetyRatings)
			}
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API. FinishReason: %s, SafetyRatings: %s", finishReason, safetyRatings)
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type: %T", part)
	}
	return string(text), nil
}

// extractContentBetween extracts content between start and end tags from a string.
func extractContentBetween(text, startTag, endTag string) (string, bool) {
	startIndex := strings.Index(text, startTag)
	if startIndex == -1 {
		return "", false
	}
	startIndex += len(startTag)
	endIndex := strings.Index(text[startIndex:], endTag)
	if endIndex == -1 {
		return "", false
	}
	return strings.TrimSpace(text[startIndex : startIndex+endIndex]), true
}

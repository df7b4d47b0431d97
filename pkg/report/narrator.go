package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Narrator produces a short natural-language explanation of a record's
// approximate-match diffs. It is entirely optional: construction fails
// when no API key is configured and callers are expected to continue
// without it.
type Narrator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewNarrator creates a Narrator from the GEMINI_API_KEY environment.
func NewNarrator(ctx context.Context) (*Narrator, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	modelName := os.Getenv("GEMINI_MODEL")
	if modelName == "" {
		modelName = "gemini-2.0-flash-exp"
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)

	return &Narrator{client: client, model: model}, nil
}

// Close releases the underlying client.
func (n *Narrator) Close() {
	if n.client != nil {
		n.client.Close()
	}
}

// Narrate summarizes why the record's invocations diverged from their
// nearest static chains. Records without approximate matches produce an
// error rather than an empty narration.
func (n *Narrator) Narrate(ctx context.Context, rec Record) (string, error) {
	var approx []InvocationInfo
	for _, info := range rec.Invocations {
		if len(info.ApproxStatic) > 0 {
			approx = append(approx, info)
		}
	}
	if len(approx) == 0 {
		return "", fmt.Errorf("record has no approximate matches to narrate")
	}

	payload, err := json.Marshal(approx)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(
		"The following JSON describes how a test's runtime control-flow "+
			"diverged from its closest statically known paths. Ops: keep = same "+
			"decision and outcome, flip = same decision with opposite outcome, "+
			"subst = a different decision, del = an extra runtime decision, "+
			"ins = a static decision the run never reached.\n\n%s\n\n"+
			"In at most three sentences, explain the most likely divergence for "+
			"assertion %q in test %q.",
		payload, rec.Assertion.Raw, rec.Test.Full)

	resp, err := n.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("narration request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no narration returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

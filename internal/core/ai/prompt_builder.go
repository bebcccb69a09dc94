package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const ticketPromptFile = "ticket_extraction_prompt.txt"

const defaultTicketPrompt = `You are reading a photo of a shop ticket (receipt).
Extract the purchase data and respond ONLY with a JSON object of this exact shape:
{"store_name": string|null, "date": "YYYY-MM-DD"|null, "items": [{"name": string, "quantity": number, "unit_price": number, "total": number}], "total": number}
Rules:
- one entry per purchased line, in the order printed on the ticket
- keep product names as printed, without prices or codes
- quantity is the number of units, or the weight in kg for weighed products
- use null when a value cannot be read
- do not include discounts, taxes or payment lines as items`

type PromptBuilder struct {
	promptsDir string
}

func NewPromptBuilder(promptsDir string) *PromptBuilder {
	if promptsDir == "" {
		promptsDir = "prompts" // Default directory
	}
	return &PromptBuilder{
		promptsDir: promptsDir,
	}
}

// BuildTicketPrompt returns the ticket extraction instructions, preferring an
// override file in the prompts directory over the built-in text.
func (pb *PromptBuilder) BuildTicketPrompt() string {
	prompt, err := pb.loadPromptFile(ticketPromptFile)
	if err != nil || prompt == "" {
		return defaultTicketPrompt
	}
	return prompt
}

// HasOverride reports whether a custom ticket prompt file exists
func (pb *PromptBuilder) HasOverride() bool {
	_, err := os.Stat(filepath.Join(pb.promptsDir, ticketPromptFile))
	return err == nil
}

func (pb *PromptBuilder) loadPromptFile(filename string) (string, error) {
	path := filepath.Join(pb.promptsDir, filename)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}
	return strings.TrimSpace(string(content)), nil
}

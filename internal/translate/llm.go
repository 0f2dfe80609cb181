package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/llm"
)

// LLMProvider translates a batch with a single chat completion.
type LLMProvider struct {
	client *llm.Client
}

func NewLLMProvider(client *llm.Client) *LLMProvider {
	return &LLMProvider{client: client}
}

type indexedLine struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

func (p *LLMProvider) Translate(ctx context.Context, texts []string, source, target string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}
	userMessage, err := buildTranslationUserMessage(texts)
	if err != nil {
		return nil, err
	}
	content, err := p.client.SimpleChat(ctx, userMessage, buildSystemPrompt(source, target))
	if err != nil {
		return nil, err
	}
	return parseTranslationOutput(content, len(texts))
}

func buildSystemPrompt(source, target string) string {
	if source == "" || source == "auto" {
		source = "the detected source language"
	}
	var prompt strings.Builder
	prompt.WriteString("You translate video subtitles from " + source + " to " + target + ".\n")
	prompt.WriteString("The user message is JSON of the form {\"lines\":[{\"index\":1,\"text\":\"...\"}]}.\n")
	prompt.WriteString("Reply with only a JSON array of {\"index\":N,\"text\":\"...\"} objects, one per input line, keeping every index.\n")
	prompt.WriteString("Keep line breaks inside a line. Do not merge or split lines. Do not add commentary.")
	return prompt.String()
}

func buildTranslationUserMessage(texts []string) (string, error) {
	lines := make([]indexedLine, 0, len(texts))
	for i, text := range texts {
		lines = append(lines, indexedLine{Index: i + 1, Text: text})
	}
	payload, err := json.Marshal(struct {
		Lines []indexedLine `json:"lines"`
	}{Lines: lines})
	if err != nil {
		return "", fmt.Errorf("marshal translation input: %w", err)
	}
	return string(payload), nil
}

// parseTranslationOutput accepts an indexed JSON array, in any order, or a
// plain JSON array of strings.
func parseTranslationOutput(content string, want int) ([]string, error) {
	content = stripCodeFence(strings.TrimSpace(content))
	if content == "" {
		return nil, fmt.Errorf("empty translation output")
	}

	var indexed []indexedLine
	if err := json.Unmarshal([]byte(content), &indexed); err == nil && hasIndexes(indexed) {
		if len(indexed) != want {
			return nil, fmt.Errorf("translation count mismatch: got %d, want %d", len(indexed), want)
		}
		sort.SliceStable(indexed, func(i, j int) bool { return indexed[i].Index < indexed[j].Index })
		ret := make([]string, 0, want)
		for i, line := range indexed {
			if line.Index != i+1 {
				return nil, fmt.Errorf("translation output has unexpected index %d at position %d", line.Index, i+1)
			}
			ret = append(ret, line.Text)
		}
		return ret, nil
	}

	var plain []string
	if err := json.Unmarshal([]byte(content), &plain); err != nil {
		return nil, fmt.Errorf("translation output is not a json array: %w", err)
	}
	if len(plain) != want {
		return nil, fmt.Errorf("translation count mismatch: got %d, want %d", len(plain), want)
	}
	return plain, nil
}

func hasIndexes(lines []indexedLine) bool {
	if len(lines) == 0 {
		return false
	}
	for _, line := range lines {
		if line.Index == 0 {
			return false
		}
	}
	return true
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ABOUTME: Markdown and HTML exports of the operation history ledger.
// ABOUTME: HTML is rendered from the markdown with goldmark.
package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389-research/promptmint/core"
)

// WriteHistoryExport writes history.md and history.html into dir.
func WriteHistoryExport(dir string, history []core.OperationHistoryItem) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create exports dir: %w", err)
	}

	md := GenerateHistoryMarkdown(history)
	if err := os.WriteFile(filepath.Join(dir, "history.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("write markdown export: %w", err)
	}

	var body bytes.Buffer
	renderer := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := renderer.Convert([]byte(md), &body); err != nil {
		return fmt.Errorf("render html export: %w", err)
	}
	page := "<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>PromptMint history</title></head><body>\n" +
		body.String() + "</body></html>\n"
	if err := os.WriteFile(filepath.Join(dir, "history.html"), []byte(page), 0o644); err != nil {
		return fmt.Errorf("write html export: %w", err)
	}
	return nil
}

// GenerateHistoryMarkdown renders the ledger as a markdown table, newest first.
func GenerateHistoryMarkdown(history []core.OperationHistoryItem) string {
	var b strings.Builder
	b.WriteString("# Operation history\n\n")
	if len(history) == 0 {
		b.WriteString("_No operations recorded._\n")
		return b.String()
	}

	b.WriteString("| When | Type | Status | Prompt | Result |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, item := range history {
		when := time.UnixMilli(item.Timestamp).UTC().Format(time.RFC3339)
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			when, item.Type, item.Status, cell(item.Prompt), cell(resultSummary(item)))
	}
	return b.String()
}

func resultSummary(item core.OperationHistoryItem) string {
	if item.Status == core.OperationFailed {
		return "error: " + item.Error
	}
	r := item.Result
	if r == nil {
		return ""
	}
	var parts []string
	if r.ImageURL != "" {
		parts = append(parts, fmt.Sprintf("[image](%s)", r.ImageURL))
	}
	if r.TokenURI != "" {
		parts = append(parts, "token URI `"+r.TokenURI+"`")
	}
	if r.TxHash != "" {
		if r.ExplorerURL != "" {
			parts = append(parts, fmt.Sprintf("[tx](%s)", r.ExplorerURL))
		} else {
			parts = append(parts, "tx `"+r.TxHash+"`")
		}
	}
	if r.TokenID != "" {
		parts = append(parts, "token #"+r.TokenID)
	}
	return strings.Join(parts, ", ")
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

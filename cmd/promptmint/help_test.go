// ABOUTME: Tests for the promptmint help display and environment detection.
package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintHelpListsCommands(t *testing.T) {
	var buf bytes.Buffer
	printHelp(&buf, "1.2.3")
	out := buf.String()

	for _, want := range []string{"1.2.3", "-server", "generate", "mint", "retry-mint", "history", "export", "reset"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestEnvStatus(t *testing.T) {
	t.Setenv("PROMPTMINT_TEST_KEY", "secret")
	if got := envStatus("PROMPTMINT_TEST_KEY"); got != "[set]" {
		t.Errorf("envStatus = %q, want [set]", got)
	}
	t.Setenv("PROMPTMINT_TEST_KEY", "")
	if got := envStatus("PROMPTMINT_TEST_KEY"); got != "[not set]" {
		t.Errorf("envStatus = %q, want [not set]", got)
	}
}

func TestPrintHelpHidesSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	var buf bytes.Buffer
	printHelp(&buf, "dev")
	if strings.Contains(buf.String(), "sk-very-secret") {
		t.Error("help output leaked a credential")
	}
}

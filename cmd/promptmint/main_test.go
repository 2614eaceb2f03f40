// ABOUTME: Tests for the promptmint CLI: flag parsing, dispatch and end-to-end commands.
// ABOUTME: Runs generate against an in-process generation API with fake model and pinner.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2389-research/promptmint/apperr"
	"github.com/2389-research/promptmint/imagegen"
	"github.com/2389-research/promptmint/ipfs"
)

type stubModel struct{}

func (stubModel) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return "https://images.example/out.png", nil
}

type stubPinner struct{}

func (stubPinner) Configured() bool { return true }

func (stubPinner) Upload(ctx context.Context, imageURL, prompt string) (ipfs.UploadResult, error) {
	return ipfs.UploadResult{TokenURI: "ipfs://bafymeta", PreviewURL: "https://ipfs.io/ipfs/bafyimg"}, nil
}

// isolate points every config source at a temp dir and returns it.
func isolate(t *testing.T, storage string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("PROMPTMINT_HOME", home)
	t.Setenv("PROMPTMINT_STORAGE", storage)
	t.Setenv("PROMPTMINT_CONFIG", filepath.Join(home, "absent.yaml"))
	t.Setenv("PROMPTMINT_PRIVATE_KEY", "")
	t.Setenv("PROMPTMINT_SERVER_URL", "")
	return home
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	opts, err := parseFlags(args, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags(%v): %v", args, err)
	}
	code := run(opts, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-bind", "0.0.0.0:9000", "-server"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if !opts.serverMode || opts.bind != "0.0.0.0:9000" || opts.command != "" {
		t.Errorf("opts = %+v", opts)
	}

	opts, err = parseFlags([]string{"generate", "a", "red", "fox"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.command != "generate" || strings.Join(opts.args, " ") != "a red fox" {
		t.Errorf("opts = %+v", opts)
	}

	if _, err := parseFlags([]string{"-help"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("err = %v, want flag.ErrHelp", err)
	}
}

func TestRunVersion(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	if code != 0 || !strings.Contains(out, "promptmint dev") {
		t.Errorf("code=%d out=%q", code, out)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	isolate(t, "file")
	code, _, errOut := runCLI(t, "frobnicate")
	if code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Errorf("code=%d stderr=%q", code, errOut)
	}
}

func TestGenerateThenStatusAcrossInvocations(t *testing.T) {
	for _, storage := range []string{"file", "sqlite"} {
		t.Run(storage, func(t *testing.T) {
			home := isolate(t, storage)
			srv := httptest.NewServer(imagegen.NewServer("", stubModel{}, stubPinner{}))
			defer srv.Close()

			code, out, errOut := runCLI(t, "-server-url", srv.URL, "generate", "A cat on a windowsill")
			if code != 0 {
				t.Fatalf("generate code=%d stderr=%q", code, errOut)
			}
			if !strings.Contains(out, "ipfs://bafymeta") {
				t.Errorf("generate output = %q", out)
			}

			code, out, _ = runCLI(t, "status")
			if code != 0 {
				t.Fatalf("status code=%d", code)
			}
			if !strings.Contains(out, "generation: completed (100%)") || !strings.Contains(out, "can mint: true") {
				t.Errorf("status output = %q", out)
			}

			code, out, _ = runCLI(t, "history", "-type", "generation")
			if code != 0 || !strings.Contains(out, "success") || !strings.Contains(out, "uri=ipfs://bafymeta") {
				t.Errorf("history code=%d output=%q", code, out)
			}

			code, out, _ = runCLI(t, "history", "-journal")
			if code != 0 || !strings.Contains(out, "journal: 2 changes, 1 operations") || !strings.Contains(out, "uri=ipfs://bafymeta") {
				t.Errorf("journal code=%d output=%q", code, out)
			}

			exportDir := filepath.Join(home, "out")
			if code, _, errOut := runCLI(t, "export", exportDir); code != 0 {
				t.Fatalf("export code=%d stderr=%q", code, errOut)
			}
			if _, err := os.Stat(filepath.Join(exportDir, "history.html")); err != nil {
				t.Errorf("export missing html: %v", err)
			}
		})
	}
}

func TestMintWithoutWalletFailsPrecondition(t *testing.T) {
	isolate(t, "file")
	srv := httptest.NewServer(imagegen.NewServer("", stubModel{}, stubPinner{}))
	defer srv.Close()

	if code, _, errOut := runCLI(t, "-server-url", srv.URL, "generate", "A cat on a windowsill"); code != 0 {
		t.Fatalf("generate code=%d stderr=%q", code, errOut)
	}
	code, _, errOut := runCLI(t, "mint")
	if code != 1 || !strings.Contains(errOut, "Failed to connect to wallet") {
		t.Errorf("mint code=%d stderr=%q", code, errOut)
	}

	code, out, _ := runCLI(t, "status")
	if code != 0 || !strings.Contains(out, "minting:    error") {
		t.Errorf("status code=%d output=%q", code, out)
	}

	if code, _, _ := runCLI(t, "reset"); code != 0 {
		t.Fatalf("reset code=%d", code)
	}
	_, out, _ = runCLI(t, "status")
	if !strings.Contains(out, "generation: idle") || !strings.Contains(out, "minting:    idle") {
		t.Errorf("status after reset = %q", out)
	}
}

func TestGenerateValidationError(t *testing.T) {
	isolate(t, "file")
	code, _, errOut := runCLI(t, "generate", "ab")
	if code != 1 || !strings.Contains(errOut, "at least 3 characters") {
		t.Errorf("code=%d stderr=%q", code, errOut)
	}
}

func TestDescribeError(t *testing.T) {
	rate := apperr.New(apperr.KindRateLimit, "Too many requests.", true, nil).WithRetries(1, 3)
	got := describeError(rate)
	if !strings.Contains(got, "Too many requests") || !strings.Contains(got, "Retry (1/3)") {
		t.Errorf("describeError = %q", got)
	}
	if got := describeError(errors.New("plain")); got != "plain" {
		t.Errorf("describeError(plain) = %q", got)
	}
}

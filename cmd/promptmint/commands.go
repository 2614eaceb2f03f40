// ABOUTME: Subcommands of the promptmint CLI operating on the persisted application state.
// ABOUTME: generate, mint, retries, status, history, export and reset.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/2389-research/promptmint/apperr"
	"github.com/2389-research/promptmint/core"
	"github.com/2389-research/promptmint/store"
)

type command func(ctx context.Context, a *app, args []string, out io.Writer) error

var commands = map[string]command{
	"generate":       cmdGenerate,
	"mint":           cmdMint,
	"retry-generate": cmdRetryGenerate,
	"retry-mint":     cmdRetryMint,
	"status":         cmdStatus,
	"history":        cmdHistory,
	"export":         cmdExport,
	"reset":          cmdReset,
}

var errUsage = errors.New("usage error")

func cmdGenerate(ctx context.Context, a *app, args []string, out io.Writer) error {
	prompt := strings.Join(args, " ")
	if strings.TrimSpace(prompt) == "" {
		prompt = a.ctrl.Snapshot().Prompt
	}
	if err := a.ctrl.SetPrompt(prompt); err != nil {
		return err
	}
	res, err := a.generator().Generate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "image:     %s\ntoken URI: %s\n", res.ImageURL, res.TokenURI)
	return nil
}

func cmdRetryGenerate(ctx context.Context, a *app, args []string, out io.Writer) error {
	res, err := a.generator().Retry(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "image:     %s\ntoken URI: %s\n", res.ImageURL, res.TokenURI)
	return nil
}

func cmdMint(ctx context.Context, a *app, args []string, out io.Writer) error {
	res, err := a.minter(ctx).Mint(ctx)
	if err != nil {
		return err
	}
	printMint(out, res.TxHash, res.TokenID, res.ExplorerURL)
	return nil
}

func cmdRetryMint(ctx context.Context, a *app, args []string, out io.Writer) error {
	res, err := a.minter(ctx).Retry(ctx)
	if err != nil {
		return err
	}
	printMint(out, res.TxHash, res.TokenID, res.ExplorerURL)
	return nil
}

func printMint(out io.Writer, txHash, tokenID, explorer string) {
	fmt.Fprintf(out, "tx:       %s\n", txHash)
	if tokenID != "" {
		fmt.Fprintf(out, "token id: %s\n", tokenID)
	}
	fmt.Fprintf(out, "explorer: %s\n", explorer)
}

func cmdStatus(ctx context.Context, a *app, args []string, out io.Writer) error {
	writeStatus(out, a.ctrl.Snapshot())
	return nil
}

// writeStatus prints the state summary shown by the status command.
func writeStatus(out io.Writer, s core.AppState) {
	fmt.Fprintf(out, "prompt:     %q\n", s.Prompt)
	fmt.Fprintf(out, "generation: %s (%d%%)\n", s.Generation.Status, s.Generation.Progress)
	if s.Generation.Error != "" {
		fmt.Fprintf(out, "            %s\n", s.Generation.Error)
	}
	if s.GeneratedImage != "" {
		fmt.Fprintf(out, "image:      %s\ntoken URI:  %s\n", s.GeneratedImage, s.TokenURI)
	}
	fmt.Fprintf(out, "minting:    %s\n", s.Minting.Status)
	if s.Minting.TxHash != "" {
		fmt.Fprintf(out, "tx:         %s\n", s.Minting.TxHash)
	}
	if s.Minting.Error != "" {
		fmt.Fprintf(out, "            %s\n", s.Minting.Error)
	}
	fmt.Fprintf(out, "can generate: %t, can mint: %t\n", s.CanGenerate(), s.CanMint())
	fmt.Fprintf(out, "operations: %d (updated %s)\n", len(s.History), s.LastUpdated.Format(time.RFC3339))
}

func cmdHistory(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(out)
	opType := fs.String("type", "", "Filter by operation type: generation or minting")
	limit := fs.Int("n", 20, "Maximum entries to show")
	fromJournal := fs.Bool("journal", false, "Read the full ledger from the journal, including entries past the in-state cap")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *opType != "" && *opType != string(core.OperationGeneration) && *opType != string(core.OperationMinting) {
		return fmt.Errorf("%w: -type must be generation or minting", errUsage)
	}

	var items []core.OperationHistoryItem
	if *fromJournal {
		entries, err := store.ReplayJournal(a.cfg.JournalPath())
		if err != nil {
			return err
		}
		ledger := store.LedgerFromJournal(entries)
		fmt.Fprintf(out, "journal: %d changes, %d operations\n", len(entries), len(ledger))
		items = filterHistory(ledger, core.OperationType(*opType), *limit)
	} else {
		var err error
		if items, err = historyItems(a, core.OperationType(*opType), *limit); err != nil {
			return err
		}
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "no operations recorded")
		return nil
	}
	for _, item := range items {
		writeHistoryLine(out, item)
	}
	return nil
}

// historyItems reads from the sqlite index when available, else from state.
func historyItems(a *app, opType core.OperationType, limit int) ([]core.OperationHistoryItem, error) {
	if a.sqlite != nil {
		return a.sqlite.ListOperations(opType, limit)
	}
	return filterHistory(a.ctrl.Snapshot().History, opType, limit), nil
}

func filterHistory(history []core.OperationHistoryItem, opType core.OperationType, limit int) []core.OperationHistoryItem {
	var items []core.OperationHistoryItem
	for _, item := range history {
		if opType != "" && item.Type != opType {
			continue
		}
		items = append(items, item)
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items
}

func writeHistoryLine(out io.Writer, item core.OperationHistoryItem) {
	ts := time.UnixMilli(item.Timestamp).Format(time.RFC3339)
	fmt.Fprintf(out, "%s  %-10s %-7s %q", ts, item.Type, item.Status, item.Prompt)
	if item.Result != nil {
		switch {
		case item.Result.TxHash != "":
			fmt.Fprintf(out, "  tx=%s", item.Result.TxHash)
		case item.Result.TokenURI != "":
			fmt.Fprintf(out, "  uri=%s", item.Result.TokenURI)
		}
	}
	if item.Error != "" {
		fmt.Fprintf(out, "  error=%q", item.Error)
	}
	fmt.Fprintln(out)
}

func cmdExport(ctx context.Context, a *app, args []string, out io.Writer) error {
	dir := filepath.Join(a.cfg.Home, "exports")
	if len(args) > 0 {
		dir = args[0]
	}
	if err := store.WriteHistoryExport(dir, a.ctrl.Snapshot().History); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s and %s\n", filepath.Join(dir, "history.md"), filepath.Join(dir, "history.html"))
	return nil
}

func cmdReset(ctx context.Context, a *app, args []string, out io.Writer) error {
	if err := a.ctrl.ResetMinting(); err != nil {
		return err
	}
	if err := a.ctrl.ResetGeneration(); err != nil {
		return err
	}
	fmt.Fprintln(out, "generation and minting reset")
	return nil
}

// describeError renders a failure with its user-facing copy and retry hint.
func describeError(err error) string {
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	s := appErr.ToErrorState()
	msg := apperr.UserFriendlyMessage(s)
	if s.Message != "" && s.Message != msg {
		msg += " (" + s.Message + ")"
	}
	if apperr.ShouldShowRetry(s) {
		msg += " [" + apperr.RetryButtonText(s) + "]"
	}
	return msg
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zwy923/easyEmail/internal/api"
	"github.com/zwy923/easyEmail/internal/handshake"
)

// defaultProvider is the only provider the backend currently supports.
const defaultProvider = "gmail"

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect [provider]",
		Short: "Connect a mail account through the provider authorization window",
		Long: `Connect a mail account.

Opens the provider's authorization page in a dedicated browser window and
waits until the backend confirms the connection or the window is closed.
On success the backend starts fetching mail for the new account and this
command tracks that job to completion.

If the window is closed before a confirmation arrives, the account may
still have connected (the confirmation can be lost when the window closes
during the redirect), so the account list is re-checked before reporting
a result.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConnect,
	}
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	provider := defaultProvider
	if len(args) > 0 {
		provider = strings.ToLower(args[0])
	}

	authURL, err := cc.Client.AuthURL(ctx, provider)
	if err != nil {
		return fmt.Errorf("fetching authorization url: %w", err)
	}

	source := handshake.NewEventSource(cc.Cfg.EventsURL, cc.Logger)
	defer source.Close()

	opener := &handshake.BrowserOpener{
		Command: cc.Cfg.Browser,
		Logger:  cc.Logger,
	}

	hs := handshake.New(opener, source, provider+"_connected", handshake.Options{
		ClosePollInterval: cc.Cfg.ClosePollInterval,
		WindowSize: handshake.WindowSize{
			Width:  cc.Cfg.WindowWidth,
			Height: cc.Cfg.WindowHeight,
		},
	}, cc.Logger)

	cc.Statusf("Opening %s authorization window...\n", provider)

	result, err := hs.Begin(ctx, authURL)
	if errors.Is(err, handshake.ErrWindowBlocked) {
		cc.Statusf("Could not open a browser window. Authorize manually:\n  %s\n", authURL)
		return err
	}

	if err != nil {
		return err
	}

	switch result.Outcome {
	case handshake.OutcomeSuccess:
		return connectSucceeded(ctx, cc, provider, result.Payload)
	default:
		return connectWindowClosed(ctx, cc, provider)
	}
}

// connectSucceeded reports the connection and tracks the initial mail
// fetch the backend enqueued for the new account.
func connectSucceeded(ctx context.Context, cc *CLIContext, provider string, payload map[string]any) error {
	cc.Statusf("Account connected.\n")

	account, err := findProviderAccount(ctx, cc, provider, payload)
	if err != nil {
		cc.Logger.Warn("could not resolve connected account", slog.String("error", err.Error()))
		return nil
	}

	cc.Statusf("Fetching mail for %s...\n", account.Email)

	jobID, err := cc.Client.SubmitFetch(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("submitting initial fetch: %w", err)
	}

	return trackJob(ctx, cc, fmt.Sprintf("fetch %s", account.Email), jobID)
}

// connectWindowClosed handles the ambiguous outcome: the window closed
// before a confirmation message. The account may have connected anyway, so
// re-query the account list instead of guessing.
func connectWindowClosed(ctx context.Context, cc *CLIContext, provider string) error {
	cc.Statusf("Authorization window closed before confirmation.\n")

	account, err := findProviderAccount(ctx, cc, provider, nil)
	if err != nil {
		cc.Statusf("Account not connected.\n")
		return nil
	}

	cc.Statusf("Account %s appears connected anyway — refresh your dashboard.\n", account.Email)

	return nil
}

// findProviderAccount locates the just-connected account: by the account id
// in the message payload when present, otherwise the most recently updated
// active account of the provider.
func findProviderAccount(ctx context.Context, cc *CLIContext, provider string, payload map[string]any) (api.Account, error) {
	accounts, err := cc.Client.Accounts(ctx)
	if err != nil {
		return api.Account{}, fmt.Errorf("listing accounts: %w", err)
	}

	if id, ok := payloadAccountID(payload); ok {
		for _, acc := range accounts {
			if acc.ID == id {
				return acc, nil
			}
		}
	}

	var best api.Account

	found := false
	for _, acc := range accounts {
		if !acc.IsActive || !strings.EqualFold(acc.Provider, provider) {
			continue
		}

		if !found || acc.UpdatedAt.After(best.UpdatedAt) {
			best = acc
			found = true
		}
	}

	if !found {
		return api.Account{}, fmt.Errorf("no active %s account found", provider)
	}

	return best, nil
}

// payloadAccountID extracts the account id from a success message payload.
// JSON numbers decode as float64.
func payloadAccountID(payload map[string]any) (int, bool) {
	if payload == nil {
		return 0, false
	}

	switch v := payload["account_id"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentops/lever-mcp/internal/google"
	"github.com/talentops/lever-mcp/internal/mcp/oauth"
)

// dataDir returns the base directory for persisted state
func dataDir() string {
	if dir := os.Getenv("LEVER_MCP_DATA_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".config", "lever-mcp")
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	// Windows fallback
	return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
}

func newCleanupCmd() *cobra.Command {
	var (
		tokenDir    string
		registryDir string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale persisted credentials and client registrations",
		Long: `Scan the persisted state directories and remove records that can no
longer be used:

  - Google token files that are malformed or hold neither a refresh
    token nor a still-valid access token
  - OAuth client registrations that were deactivated

Run this periodically on long-lived deployments to keep the state
directories from accumulating dead records.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenDir == "" {
				tokenDir = filepath.Join(dataDir(), "tokens")
			}
			if registryDir == "" {
				registryDir = filepath.Join(dataDir(), "clients")
			}

			logger := slog.Default()

			removedTokens, err := cleanupTokens(tokenDir, dryRun, logger)
			if err != nil {
				return fmt.Errorf("failed to clean up tokens: %w", err)
			}

			removedClients, err := cleanupClients(registryDir, dryRun, logger)
			if err != nil {
				return fmt.Errorf("failed to clean up client registrations: %w", err)
			}

			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			fmt.Printf("%s %d stale token file(s) and %d inactive client record(s)\n",
				verb, removedTokens, removedClients)
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenDir, "token-dir", "", "Directory holding persisted Google tokens (default: ~/.config/lever-mcp/tokens)")
	cmd.Flags().StringVar(&registryDir, "registry-dir", "", "Directory holding persisted client registrations (default: ~/.config/lever-mcp/clients)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be removed without deleting anything")

	return cmd
}

// cleanupTokens removes token files that cannot produce a usable
// credential anymore: unparseable records and records with neither a
// refresh token nor an unexpired access token.
func cleanupTokens(dir string, dryRun bool, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, google.TokenSuffix) {
			continue
		}
		path := filepath.Join(dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Skipping unreadable token file", "file", name, "error", err)
			continue
		}

		var token struct {
			AccessToken  string    `json:"access_token"`
			RefreshToken string    `json:"refresh_token"`
			Expiry       time.Time `json:"expiry"`
		}
		stale := false
		if err := json.Unmarshal(data, &token); err != nil {
			stale = true
		} else if token.RefreshToken == "" {
			if token.AccessToken == "" || (!token.Expiry.IsZero() && time.Now().After(token.Expiry)) {
				stale = true
			}
		}

		if !stale {
			continue
		}

		logger.Info("Stale token file", "file", name, "dry_run", dryRun)
		if !dryRun {
			if err := os.Remove(path); err != nil {
				logger.Warn("Failed to remove token file", "file", name, "error", err)
				continue
			}
		}
		removed++
	}

	return removed, nil
}

// cleanupClients removes persisted registrations whose status is no
// longer active. The registry soft-deletes in place, so deactivated
// records linger on disk until this pass.
func cleanupClients(dir string, dryRun bool, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, oauth.ClientSuffix) {
			continue
		}
		path := filepath.Join(dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Skipping unreadable client record", "file", name, "error", err)
			continue
		}

		var client struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(data, &client); err == nil && client.Status == oauth.ClientStatusActive {
			continue
		}

		logger.Info("Inactive client record", "file", name, "dry_run", dryRun)
		if !dryRun {
			if err := os.Remove(path); err != nil {
				logger.Warn("Failed to remove client record", "file", name, "error", err)
				continue
			}
		}
		removed++
	}

	return removed, nil
}

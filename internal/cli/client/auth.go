package client

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage server credentials",
		Long:  "Store, clear and inspect the API URL and key used by the ragline CLI",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var apiKey string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save server URL and API key",
		Long:  "Store API URL and optional API key in the global config (~/.config/ragline/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd.OutOrStdout(), apiKey, apiURL)
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key configured on the server (RAGLINE_API_KEY)")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API URL")

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		Long:  "Remove stored credentials from global config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return fmt.Errorf("failed to logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credentials removed")
			return nil
		},
	}
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which server the CLI talks to",
		Long:  "Display current credential source, API URL and masked key",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			flagKey, _ := cmd.Flags().GetString("api-key")
			flagURL, _ := cmd.Flags().GetString("api-url")
			return writeAuthStatus(cmd.OutOrStdout(), outputJSON, flagKey, flagURL)
		},
	}
}

func runAuthLogin(w io.Writer, apiKey, apiURL string) error {
	apiURL = strings.TrimSpace(apiURL)
	u, err := url.Parse(apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API URL %q (expected http:// or https://)", apiURL)
	}

	config := &GlobalConfig{
		APIKey: strings.TrimSpace(apiKey),
		APIURL: strings.TrimSuffix(apiURL, "/"),
	}

	if err := SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintf(w, "Saved credentials for %s\n", config.APIURL)
	return nil
}

type authStatus struct {
	Configured bool   `json:"configured"`
	Source     string `json:"source"`
	APIURL     string `json:"api_url,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
}

func writeAuthStatus(w io.Writer, outputJSON bool, flagKey, flagURL string) error {
	source, apiKey, apiURL := GetCredentialSource(flagKey, flagURL)

	status := authStatus{
		Configured: source != SourceNone,
		Source:     string(source),
		APIURL:     apiURL,
	}
	if apiKey != "" {
		status.APIKey = maskAPIKey(apiKey)
	}

	if outputJSON {
		return writeJSON(w, status)
	}

	if !status.Configured {
		fmt.Fprintf(w, "No server configured, using %s\n", defaultAPIURL)
		fmt.Fprintln(w, "Run 'ragline auth login' to save a server URL")
		return nil
	}

	fmt.Fprintf(w, "Source: %s\n", status.Source)
	fmt.Fprintf(w, "API URL: %s\n", status.APIURL)
	if status.APIKey != "" {
		fmt.Fprintf(w, "API Key: %s\n", status.APIKey)
	} else {
		fmt.Fprintln(w, "API Key: (none)")
	}

	return nil
}

func maskAPIKey(key string) string {
	if len(key) < 12 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

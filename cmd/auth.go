package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/popup-studio/internal/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage tokens for popup-studio servers",
	Long: `Log in to popup-studio servers and manage the tokens the editor presents
when saving.

Tokens are stored in ~/.popupstudio/credentials.json, keyed by server URL.
POPUPSTUDIO_TOKEN overrides stored tokens when set.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [server]",
	Short: "Exchange a username and password for a token",
	Long:  `Prompts for credentials and stores the issued token. The server defaults to api_url from the config.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthLogin,
}

var authTokenCmd = &cobra.Command{
	Use:   "token [server]",
	Short: "Print the stored token for a server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := serverArg(args)
		if err != nil {
			return err
		}
		token, ok := auth.TokenFor(server)
		if !ok {
			return fmt.Errorf("no valid token for %s; run `popupstudio auth login %s`", server, server)
		}
		fmt.Println(token)
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored tokens and their expiry",
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout [server]",
	Short: "Remove stored tokens",
	Long:  `Removes the token for a server. Without an argument every stored token is removed.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authTokenCmd, authStatusCmd, authLogoutCmd)
}

// serverArg returns the explicit server argument or the configured api_url.
func serverArg(args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimRight(args[0], "/"), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if !cfg.Remote() {
		return "", fmt.Errorf("no server given and api_url is not configured")
	}
	return strings.TrimRight(cfg.APIURL, "/"), nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	server, err := serverArg(args)
	if err != nil {
		return err
	}

	username, err := (&promptui.Prompt{Label: "Username"}).Run()
	if err != nil {
		return err
	}
	password, err := (&promptui.Prompt{Label: "Password", Mask: '*'}).Run()
	if err != nil {
		return err
	}

	tok, err := requestToken(server, strings.TrimSpace(username), password)
	if err != nil {
		return err
	}

	creds, err := auth.LoadCredentials()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	creds.Set(server, auth.ServerCredential{
		Token:     tok.Token,
		Username:  tok.Username,
		Role:      tok.Role,
		ExpiresAt: tok.ExpiresAt,
	})
	if err := auth.SaveCredentials(creds); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	fmt.Printf("Logged in to %s as %s (%s), valid until %s\n", server, tok.Username, tok.Role, tok.ExpiresAt.Local().Format(time.RFC1123))
	if !tok.Role.CanEdit() {
		fmt.Println("Note: this role cannot save widgets.")
	}
	return nil
}

func requestToken(server, username, password string) (*auth.TokenResponse, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(server+"/api/auth/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("contacting %s: %w", server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("login failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var tok auth.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &tok, nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	creds, err := auth.LoadCredentials()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	path, _ := auth.CredentialPath()
	fmt.Printf("Credentials file: %s\n", path)
	if os.Getenv(auth.TokenEnv) != "" {
		fmt.Printf("%s is set and overrides stored tokens\n", auth.TokenEnv)
	}
	fmt.Println()

	if len(creds.Servers) == 0 {
		fmt.Println("No stored tokens.")
		return nil
	}

	servers := make([]string, 0, len(creds.Servers))
	for s := range creds.Servers {
		servers = append(servers, s)
	}
	sort.Strings(servers)

	now := time.Now()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tUSER\tROLE\tSTATUS")
	for _, s := range servers {
		c := creds.Servers[s]
		status := "valid until " + c.ExpiresAt.Local().Format("2006-01-02 15:04")
		if c.Expired(now) {
			status = "expired"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s, c.Username, c.Role, status)
	}
	return tw.Flush()
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	creds, err := auth.LoadCredentials()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if len(args) == 0 {
		creds = &auth.Credentials{}
		fmt.Println("All stored tokens removed.")
	} else {
		if !creds.Remove(args[0]) {
			return fmt.Errorf("no stored token for %s", args[0])
		}
		fmt.Printf("Token for %s removed.\n", args[0])
	}

	return auth.SaveCredentials(creds)
}

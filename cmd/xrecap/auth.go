package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"xrecap/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage upstream API keys",
	Long: `Manage stored upstream API keys securely.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variable XRECAP_API_KEY (read-only fallback)`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [label]",
	Short: "Store an API key securely",
	Long: `Store an upstream API key in the system keychain or an encrypted file.
The key is read from the terminal without echo. With no label the key is
stored as "default" and used by every command.`,
	Example: `  # Store the default key
  xrecap auth login

  # Store a second key under a label
  xrecap auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [label]",
	Short: "Remove a stored API key",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// listKeysCmd represents the auth list command
var listKeysCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored API keys",
	Long:  `List stored API keys with their values masked.`,
	RunE:  runListKeys,
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listKeysCmd)
	rootCmd.AddCommand(authCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	label := auth.DefaultLabel
	if len(args) == 1 {
		label = strings.TrimSpace(args[0])
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	key, err := readKey()
	if err != nil {
		return err
	}

	if err := manager.Store(&auth.Credential{Label: label, APIKey: key}); err != nil {
		return err
	}
	fmt.Printf("stored key %q (%s)\n", label, auth.MaskKey(key))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	label := auth.DefaultLabel
	if len(args) == 1 {
		label = strings.TrimSpace(args[0])
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	if err := manager.Delete(label); err != nil {
		return err
	}
	fmt.Printf("removed key %q\n", label)
	return nil
}

func runListKeys(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		fmt.Println("no stored keys")
		return nil
	}

	sort.Slice(creds, func(i, j int) bool { return creds[i].Label < creds[j].Label })
	for _, cred := range creds {
		fmt.Printf("%-12s %s  (modified %s)\n",
			cred.Label, auth.MaskKey(cred.APIKey), cred.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

// readKey prompts for the API key, without echo when stdin is a terminal.
func readKey() (string, error) {
	fmt.Print("API key: ")

	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		key := strings.TrimSpace(string(raw))
		if key == "" {
			return "", fmt.Errorf("empty API key")
		}
		return key, nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("empty API key")
	}
	return key, nil
}

package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/crucial707/probely-scheduler/cmd/cli/config"
	"github.com/crucial707/probely-scheduler/cmd/cli/root"
	appconfig "github.com/crucial707/probely-scheduler/internal/config"
)

var (
	ErrNoToken      = errors.New("no API token: pass --token, set PROBELY_API_TOKEN or run 'probely-sched login'")
	ErrTokenExpired = errors.New("API token has expired")
)

// Prompt reads a token interactively. It is replaced in tests.
var Prompt = promptTerminal

// stdinIsTerminal reports whether Prompt is used instead of reading piped input.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// InitAuth registers auth-related CLI commands (login, logout) on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(loginCmd(), logoutCmd())
}

// ResolveToken returns the first non-empty token from the --token flag, the
// environment, the stored token file and finally standard input.
func ResolveToken(cmd *cobra.Command, cfg appconfig.Config) (string, error) {
	if v, _ := cmd.Flags().GetString(root.FlagToken); strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}
	if v := strings.TrimSpace(cfg.APIToken.Unmask()); v != "" {
		return v, nil
	}

	stored, err := config.LoadToken()
	if err != nil {
		return "", fmt.Errorf("read stored token: %w", err)
	}
	if stored != "" {
		return stored, nil
	}

	return readToken(cmd)
}

// readToken prompts on a terminal and otherwise reads one line of piped input.
func readToken(cmd *cobra.Command) (string, error) {
	var (
		tok string
		err error
	)
	if stdinIsTerminal() {
		tok, err = Prompt(cmd)
	} else {
		tok, err = readLine(cmd.InOrStdin())
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if tok = strings.TrimSpace(tok); tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return line, err
}

// ValidateToken checks that token is a well-formed JWT whose exp, when
// present, is in the future. The signature is not verified.
func ValidateToken(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("invalid API token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("invalid API token: %w", err)
	}
	if exp != nil && !exp.After(time.Now()) {
		return fmt.Errorf("%w (expired %s)", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}
	return nil
}

// loginCmd validates a token and stores it locally for subsequent commands.
func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store a Probely API token",
		Long:  "Validate a Probely API token and store it in ~/.probely_token for subsequent commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, _ := cmd.Flags().GetString(root.FlagToken)
			token = strings.TrimSpace(token)
			if token == "" {
				var err error
				if token, err = readToken(cmd); err != nil {
					return err
				}
			}
			if err := ValidateToken(token); err != nil {
				return err
			}

			if err := config.SaveToken(token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Login successful. Token stored locally.")
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := config.RemoveToken()
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "No token stored.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully.")
			return nil
		},
	}
}

func promptTerminal(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "API Token: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

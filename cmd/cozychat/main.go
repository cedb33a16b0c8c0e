package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cozychat/internal/app"
	"cozychat/internal/chat"
	"cozychat/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig locates and reads the config file.
func readConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// resolveSecret returns the shared room secret: the --secret flag if set,
// then the CHAT_SECRET environment variable, then an interactive prompt.
// The secret is deliberately never read from the config file.
func resolveSecret(cmd *cobra.Command) (string, error) {
	if secret, _ := cmd.Flags().GetString("secret"); secret != "" {
		return secret, nil
	}
	if secret := os.Getenv("CHAT_SECRET"); secret != "" {
		return secret, nil
	}

	fmt.Fprint(os.Stderr, "Room secret: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("a non-empty secret is required")
	}
	return string(raw), nil
}

var rootCmd = &cobra.Command{
	Use:   "cozychat",
	Short: "Encrypted chat room with file sharing",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		serverName, _ := cmd.Flags().GetString("name")
		cfg := config.NewConfig(serverName, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Server Name: %s\n", cfg.ServerName)
		fmt.Printf("Listen Addr: %s\n", cfg.ListenAddr)
		fmt.Printf("Data Dir:    %s\n", cfg.DataDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Server Name: %s\n", cfg.ServerName)
		fmt.Printf("Listen Addr: %s\n", cfg.ListenAddr)
		fmt.Printf("Data Dir:    %s\n", cfg.DataDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Blob Store:  %s\n", cfg.Blob.Type)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		secret, err := resolveSecret(cmd)
		if err != nil {
			return err
		}

		a, err := app.NewServerApp(cfg, secret)
		if err != nil {
			return fmt.Errorf("initializing server: %w", err)
		}
		defer a.Close()

		srv := a.Server()
		if err := srv.Listen(); err != nil {
			return err
		}

		go func() {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			<-sigs
			srv.Shutdown()
		}()

		go func() {
			srv.Console(os.Stdin, os.Stdout)
			srv.Shutdown()
		}()

		fmt.Printf("%s listening on %s\n", cfg.ServerName, srv.Addr())
		return srv.Serve()
	},
}

// connect command
var connectCmd = &cobra.Command{
	Use:   "connect USERNAME",
	Short: "Join a chat room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := readConfig()
		if err != nil {
			return err
		}

		secret, err := resolveSecret(cmd)
		if err != nil {
			return err
		}

		addr, _ := cmd.Flags().GetString("addr")
		username := args[0]

		a, err := app.NewClientApp(cfg, addr, username, secret, defaults["base_dir"])
		if err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer a.Close()

		err = a.Client().Run(os.Stdin, os.Stdout)
		if errors.Is(err, chat.ErrWrongSecret) {
			return fmt.Errorf("the room secret does not match the server's")
		}
		return err
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("name", "Server", "Display name the server chats under")

	serveCmd.Flags().String("secret", "", "Shared room secret (or set CHAT_SECRET)")
	connectCmd.Flags().String("secret", "", "Shared room secret (or set CHAT_SECRET)")
	connectCmd.Flags().String("addr", "", "Server address (defaults to listen_addr from config)")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(connectCmd)
}

// birrwire TUI - terminal back-office console for USD to ETB transfers.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/birrwire-tui/internal/api"
	"github.com/jeranaias/birrwire-tui/internal/config"
	"github.com/jeranaias/birrwire-tui/internal/credstore"
	"github.com/jeranaias/birrwire-tui/internal/ui"
	"github.com/jeranaias/birrwire-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v":
			fmt.Printf("birrwire %s (%s, built %s)\n", Version, GitCommit, BuildDate)
			return
		case "--help", "-h":
			printUsage()
			return
		case "enroll-mfa":
			if len(args) != 2 {
				fmt.Fprintln(os.Stderr, "usage: birrwire enroll-mfa <email>")
				os.Exit(2)
			}
			if err := enrollMFA(args[1]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q\n", args[0])
			printUsage()
			os.Exit(2)
		}
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "birrwire is interactive and needs a terminal")
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Global()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	// The standard logger backs every package's event lines. Send it to a
	// file so it cannot tear the alternate screen.
	logClose, err := redirectLog()
	if err != nil {
		return err
	}
	defer logClose()

	store, err := credstore.Open(credstore.DefaultPath())
	if err != nil {
		return fmt.Errorf("could not open credential store: %w", err)
	}
	defer store.Close()

	client := api.NewClient(cfg.API.BaseURL, store).
		WithRateLimit(cfg.API.RateLimitPerSec)

	theme := styles.NewTheme(cfg.UI.Theme)
	app := ui.NewApp(cfg, theme, client, store)
	program := tea.NewProgram(app, tea.WithAltScreen())

	// A request that finds no stored token bounces the operator back to
	// the sign-in screen.
	client.SetAuthMissingHook(func() {
		program.Send(ui.AuthMissingMsg{})
	})

	// Hot-reload config edits; the new values apply to the next session
	// and wizard, not running ones.
	watcher, err := config.NewWatcher(500*time.Millisecond, func(next *config.Config) {
		log.Printf("CONFIG_RELOADED | version=%s", next.Version)
	})
	if err != nil {
		log.Printf("CONFIG_WATCH_UNAVAILABLE | %v", err)
	} else {
		if err := watcher.Watch(); err != nil {
			log.Printf("CONFIG_WATCH_UNAVAILABLE | %v", err)
		}
		defer watcher.Close()
	}

	_, err = program.Run()
	return err
}

// redirectLog points the standard logger at ~/.birrwire/birrwire.log and
// returns a closer.
func redirectLog() (func(), error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "birrwire.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return func() { _ = f.Close() }, nil
}

// enrollMFA generates a TOTP secret for this device, stores it sealed,
// and prints the otpauth URL for the authenticator app. The secret
// survives sign-outs; enrollment is per device, not per session.
func enrollMFA(email string) error {
	store, err := credstore.Open(credstore.DefaultPath())
	if err != nil {
		return fmt.Errorf("could not open credential store: %w", err)
	}
	defer store.Close()

	secret, otpauthURL, err := api.EnrollTOTP(email)
	if err != nil {
		return err
	}
	if err := store.SaveTOTPSecret(secret); err != nil {
		return err
	}

	fmt.Println("MFA enrolled for this device.")
	fmt.Println("Add the account to your authenticator app with this URL:")
	fmt.Println()
	fmt.Println("  " + otpauthURL)
	fmt.Println()
	fmt.Println("Then set session.mfa_enabled = true in ~/.birrwire/config.toml.")
	return nil
}

func printUsage() {
	fmt.Println(`birrwire - back-office console for USD to ETB transfers

Usage:
  birrwire                    start the console
  birrwire enroll-mfa <email> enroll this device for TOTP sign-in
  birrwire --version          print version information

Configuration lives in ~/.birrwire/config.toml and is created with
defaults on first run. BIRRWIRE_API_URL, BIRRWIRE_RATE and
BIRRWIRE_THEME override it per invocation.`)
}

// Package main re-seals every conversation key of one participant under a new
// password and reports the per-conversation outcomes. It is the offline
// counterpart of the in-app password change:
//
//	go run ./cmd/reseal -user alice
//
// The old and new passwords are read from stdin, one per line.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	sealchat "github.com/sealchat/sealchat"
	"github.com/sealchat/sealchat/internal/config"
	"github.com/sealchat/sealchat/pkg/types"
)

func main() {
	user := flag.String("user", "", "participant whose keys to re-seal")
	confPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	conf, err := config.Load(*confPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	oldPassword, newPassword, err := readPasswords(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := context.Background()
	client, err := sealchat.New(sealchat.Config{
		Paths:         []string{conf.DataPath},
		MinimumFreeGB: uint(conf.MinimumFreeGB),
		Logger:        logger,
		Workers:       conf.Workers,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "client:", err)
		os.Exit(1)
	}
	if err := client.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "start:", err)
		os.Exit(1)
	}
	defer client.CloseWithoutContext()

	life, err := client.Lifecycle()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	result, err := life.ResealAll(ctx, types.ParticipantID(*user), oldPassword, newPassword)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sweep:", err)
		os.Exit(1)
	}

	for _, cr := range result.Results {
		if cr.Reason != "" {
			fmt.Printf("%-10s %s (%s)\n", cr.Outcome, cr.Conversation, cr.Reason)
		} else {
			fmt.Printf("%-10s %s\n", cr.Outcome, cr.Conversation)
		}
	}
	fmt.Printf("succeeded %d, failed %d, skipped %d\n", result.Succeeded, result.Failed, result.Skipped)

	if !result.AllowCredentialChange() {
		fmt.Fprintln(os.Stderr, "no key could be re-sealed, keep using the old password")
		os.Exit(1)
	}
}

func readPasswords(r *os.File) (oldPassword, newPassword string, err error) {
	scanner := bufio.NewScanner(r)
	fmt.Fprint(os.Stderr, "old password: ")
	if !scanner.Scan() {
		return "", "", fmt.Errorf("missing old password on stdin")
	}
	oldPassword = strings.TrimSpace(scanner.Text())

	fmt.Fprint(os.Stderr, "new password: ")
	if !scanner.Scan() {
		return "", "", fmt.Errorf("missing new password on stdin")
	}
	newPassword = strings.TrimSpace(scanner.Text())

	if oldPassword == "" || newPassword == "" {
		return "", "", fmt.Errorf("passwords must not be empty")
	}
	return oldPassword, newPassword, nil
}

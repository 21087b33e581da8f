// Package main provides a demo of the encrypted two-party chat flow. Both
// participants run inside one process against one local store; lines typed as
// one participant are printed as the other one decrypts them:
//
//	go run ./cmd/chatdemo -a alice -b bob
//
// Type "a: hello" to send as the first participant, "b: hi" as the second.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	sealchat "github.com/sealchat/sealchat"
	"github.com/sealchat/sealchat/internal/config"
	"github.com/sealchat/sealchat/pkg/messages"
	"github.com/sealchat/sealchat/pkg/types"
)

func main() {
	userA := flag.String("a", "alice", "first participant ID")
	userB := flag.String("b", "bob", "second participant ID")
	passA := flag.String("a-password", "alice-password", "first participant's password")
	passB := flag.String("b-password", "bob-password", "second participant's password")
	confPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	conf, err := config.Load(*confPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

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

	a := types.ParticipantID(*userA)
	b := types.ParticipantID(*userB)

	sessA, err := client.OpenChat(ctx, a, b, *passA)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open chat:", err)
		os.Exit(1)
	}
	sessB, err := client.OpenChat(ctx, b, a, *passB)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open chat:", err)
		os.Exit(1)
	}

	fmt.Printf("conversation %s ready\n", sessA.Conversation())
	printHistory(ctx, sessB, b)

	// Each side watches the live feed and prints what it can decrypt.
	for _, side := range []struct {
		sess *messages.Session
		who  types.ParticipantID
	}{{sessA, a}, {sessB, b}} {
		stream, err := side.sess.Subscribe(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "subscribe:", err)
			os.Exit(1)
		}
		defer stream.Cancel()
		go func(who types.ParticipantID, stream *messages.Stream) {
			for msg := range stream.Messages() {
				if msg.Mine {
					continue
				}
				fmt.Printf("[%s sees] %s\n", who, msg.Text)
			}
		}(side.who, stream)
	}

	fmt.Printf("type '%s: <text>' or '%s: <text>', Ctrl-C to quit\n", "a", "b")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		var sess *messages.Session
		switch {
		case strings.HasPrefix(line, "a: "):
			sess = sessA
		case strings.HasPrefix(line, "b: "):
			sess = sessB
		default:
			fmt.Println("prefix the line with 'a: ' or 'b: '")
			continue
		}
		if _, err := sess.Send(ctx, strings.TrimSpace(line[2:])); err != nil {
			fmt.Fprintln(os.Stderr, "send:", err)
		}
	}
}

func printHistory(ctx context.Context, sess *messages.Session, who types.ParticipantID) {
	history, err := sess.History(ctx, 20)
	if err != nil {
		fmt.Fprintln(os.Stderr, "history:", err)
		return
	}
	for _, msg := range history {
		fmt.Printf("[%s history] %s: %s\n", who, msg.SenderID, msg.Text)
	}
}

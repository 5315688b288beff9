// Command chat is a terminal client for the relay server. It keeps the
// conversation history in the configured storage backend and prints
// response increments as they arrive.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"chat-relay/internal/config"
	"chat-relay/internal/domain/chat"
	"chat-relay/internal/infrastructure"
	"chat-relay/internal/infrastructure/logger"
	"chat-relay/internal/session"
)

func main() {
	log := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	backing, err := infrastructure.ProvideKVStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open storage backend")
	}
	conversations := infrastructure.ProvideConversationStore(backing, cfg, log)

	controller := session.NewController(cfg, conversations)
	controller.SetOnFragment(func(_, _, content string) {
		fmt.Print(content)
	})

	ctx := context.Background()
	fmt.Println("chat-relay client. /new, /list, /select <id>, /delete <id>, /quit")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for {
		prompt(controller)
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, controller, line); quit {
				return
			}
			continue
		}

		if err := controller.SendMessage(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "\n%v\n", err)
			continue
		}
		fmt.Println()
	}
}

func prompt(controller *session.Controller) {
	title := "no conversation"
	if conv := controller.Current(); conv != nil {
		title = conv.Title
	}
	fmt.Printf("[%s] > ", title)
}

func runCommand(ctx context.Context, controller *session.Controller, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/new":
		if _, err := controller.NewConversation(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	case "/list":
		for _, conv := range controller.Conversations(ctx) {
			marker := " "
			if current := controller.Current(); current != nil && current.ID == conv.ID {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  (%d messages)\n", marker, conv.ID, conv.Title, len(conv.Messages))
		}
	case "/select":
		if len(fields) < 2 {
			fmt.Fprintln(os.Stderr, "usage: /select <id>")
			return false
		}
		if conv := controller.Select(ctx, fields[1]); conv != nil {
			printTranscript(conv)
		}
	case "/delete":
		if len(fields) < 2 {
			fmt.Fprintln(os.Stderr, "usage: /delete <id>")
			return false
		}
		if err := controller.Delete(ctx, fields[1]); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\n", fields[0])
	}
	return false
}

func printTranscript(conv *chat.Conversation) {
	fmt.Printf("-- %s --\n", conv.Title)
	for _, msg := range conv.Messages {
		fmt.Printf("%s: %s\n", msg.Role, msg.Content)
	}
}

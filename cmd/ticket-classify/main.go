package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/di"
	"github.com/mikey/ticket-automation/internal/factory"
	"github.com/mikey/ticket-automation/internal/mailparse"
)

const summarizeTimeout = 60 * time.Second

func main() {
	flags, err := di.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(classify); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// classify reads the message and prints what the monitor would do with it
func classify(
	flags *di.CLIFlags,
	logger *zap.Logger,
	parser *mailparse.Parser,
	authorizer core.SenderAuthorizer,
	llmFactory *factory.LLMFactory,
) error {
	defer logger.Sync()

	raw, err := readInput(flags.InputFile, logger)
	if err != nil {
		return err
	}

	msg, err := parser.Parse(core.MessageRef{Mailbox: "local"}, raw)
	if err != nil {
		return fmt.Errorf("failed to parse email: %w", err)
	}
	defer parser.Release(msg)

	c := core.Classify(msg)

	fmt.Println("Classification Results:")
	fmt.Println("----------------------")
	fmt.Printf("From: %s\n", msg.Sender)
	fmt.Printf("Subject: %s\n", msg.Subject)
	fmt.Printf("Action: %s\n", c.Action)
	if c.TicketRef != "" {
		fmt.Printf("Ticket: %s\n", c.TicketRef)
	}
	fmt.Printf("Attachments: %d\n", len(msg.Attachments))

	switch c.Action {
	case core.ActionFieldUpdate:
		updates := core.ParseUpdateInstructions(msg.Body)
		if updates.Empty() {
			fmt.Println("Updates: none found")
		} else {
			fmt.Printf("Priority: %s\n", valueOrDash(updates.Priority))
			fmt.Printf("Status: %s\n", valueOrDash(updates.Status))
		}
	case core.ActionDelete:
		fmt.Printf("Authorized: %t\n", authorizer.IsAuthorized(msg.Sender))
	}

	if !flags.Summarize {
		return nil
	}
	return summarize(logger, llmFactory, msg)
}

// summarize asks the configured LLM for the summary a new ticket would get
func summarize(logger *zap.Logger, llmFactory *factory.LLMFactory, parsed *core.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), summarizeTimeout)
	defer cancel()

	summarizer, err := llmFactory.CreateSummarizer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create summarizer: %w", err)
	}
	if closer, ok := summarizer.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	text, err := summarizer.Summarize(ctx, core.SummaryRequest{
		Subject:    parsed.Subject,
		Body:       parsed.Body,
		Sender:     parsed.Sender,
		Recipients: parsed.Recipients,
	})
	if err != nil {
		return fmt.Errorf("summarizer failed: %w", err)
	}
	logger.Debug("Raw summary", zap.String("response", text))

	summary, err := core.ParseSummary(text)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Println("--------")
	fmt.Printf("Priority: %s\n", summary.Priority)
	fmt.Printf("Category: %s\n", summary.Category)
	fmt.Printf("Participants: %s\n", strings.Join(summary.Participants, ", "))
	fmt.Println()
	fmt.Println(core.BuildDescription(summary, parsed.Body))
	return nil
}

func readInput(path string, logger *zap.Logger) ([]byte, error) {
	if path == "" {
		logger.Info("Reading email from stdin")
		return io.ReadAll(os.Stdin)
	}

	logger.Info("Reading email from file", zap.String("file", path))
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	return raw, nil
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress     string        `env:"CHAT_SERVER_ADDR,default=http://localhost:5000"`
	User              string        `env:"CHAT_USER,required=true"`
	HeartbeatInterval time.Duration `env:"CHAT_HEARTBEAT_INTERVAL,default=5s"`
	PollInterval      time.Duration `env:"CHAT_POLL_INTERVAL,default=2s"`
	LogLevel          string        `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run registers the user, then keeps it alive, prints the room and sends what is typed.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Join the room.
	client := NewChatClient(config.ServerAddress, config.User, &http.Client{Timeout: 10 * time.Second})
	if err := client.Register(ctx); err != nil {
		return exitRuntime, fmt.Errorf("could not join %s: %w", config.ServerAddress, err)
	}
	color.Green.Printf(">>> Joined %s as %s. '@name text' whispers, '/who' lists the room, Ctrl+C quits.\n",
		config.ServerAddress, config.User)

	// 4. Background loops: heartbeat and message polling.
	go keepAlive(ctx, log, client, config.HeartbeatInterval)
	go pollMessages(ctx, log, client, config.PollInterval, os.Stdout)

	// 5. Read stdin until EOF or Ctrl+C.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if err := handleLine(ctx, client, line, os.Stdout); err != nil {
				color.Red.Printf("!! %v\n", err)
			}
		}
	}
}

// keepAlive sends a heartbeat on every tick, like the web front-end did.
func keepAlive(ctx context.Context, log *slog.Logger, client *ChatClient, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(ctx); err != nil && ctx.Err() == nil {
				log.Warn("Heartbeat failed", "error", err)
			}
		}
	}
}

func pollMessages(ctx context.Context, log *slog.Logger, client *ChatClient, interval time.Duration, out io.Writer) {
	seen := map[string]struct{}{}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		messages, err := client.Messages(ctx)
		if err != nil && ctx.Err() == nil {
			log.Warn("Polling messages failed", "error", err)
		}
		for _, m := range messages {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			fmt.Fprintln(out, formatMessage(m))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// handleLine turns one typed line into a command or a message.
func handleLine(ctx context.Context, client *ChatClient, line string, out io.Writer) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/who":
		participants, err := client.Participants(ctx)
		if err != nil {
			return err
		}
		renderParticipants(out, participants, time.Now())
		return nil
	case strings.HasPrefix(line, "@"):
		to, text, ok := strings.Cut(line[1:], " ")
		if !ok || to == "" || strings.TrimSpace(text) == "" {
			return errors.New("usage: @name text")
		}
		return client.Send(ctx, to, strings.TrimSpace(text), "private_message")
	default:
		return client.Send(ctx, broadcast, line, "message")
	}
}

func formatMessage(m Message) string {
	switch m.Type {
	case "status":
		return color.Gray.Sprintf("[%s] %s %s", m.Time, m.From, m.Text)
	case "private_message":
		return color.Magenta.Sprintf("[%s] %s -> %s: %s", m.Time, m.From, m.To, m.Text)
	default:
		return fmt.Sprintf("[%s] %s: %s", m.Time, color.Cyan.Sprint(m.From), m.Text)
	}
}

func renderParticipants(out io.Writer, participants []Participant, now time.Time) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Name", "Last seen"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, p := range participants {
		lastSeen := time.UnixMilli(p.LastStatus)
		table.Append([]string{p.Name, now.Sub(lastSeen).Truncate(time.Second).String() + " ago"})
	}
	table.Render()
}

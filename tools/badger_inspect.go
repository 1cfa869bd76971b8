package main

import (
	"chat-room/domain"
	"chat-room/repositories"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Read-only dump of a chat-room BadgerDB directory.
// Usage: go run ./tools -db ./data/chat-room -show messages
func main() {
	dbPath := flag.String("db", "./data/chat-room", "Path to badger DB")
	show := flag.String("show", "all", "What to dump: participants, messages or all")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *show == "all" || *show == "participants" {
		if err := dumpParticipants(os.Stdout, db, time.Now()); err != nil {
			log.Fatal(err)
		}
	}
	if *show == "all" || *show == "messages" {
		if err := dumpMessages(os.Stdout, db); err != nil {
			log.Fatal(err)
		}
	}
}

func dumpParticipants(w io.Writer, db *badger.DB, now time.Time) error {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	participants, err := repositories.NewParticipantRepository(db, quiet).ListAll()
	if err != nil {
		return fmt.Errorf("listing participants: %w", err)
	}
	table := newTable(w, "Name", "Last seen", "Idle for")
	for _, p := range participants {
		table.Append([]string{
			p.Name,
			p.LastSeen.Format(time.DateTime),
			now.Sub(p.LastSeen).Truncate(time.Second).String(),
		})
	}
	fmt.Fprintf(w, "%d participant(s)\n", len(participants))
	table.Render()
	return nil
}

func dumpMessages(w io.Writer, db *badger.DB) error {
	messages, err := repositories.ReadMessages(db)
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}
	table := newTable(w, "Time", "Type", "From", "To", "Text", "ID")
	for _, m := range messages {
		table.Append([]string{
			m.Time,
			string(m.Type),
			m.From,
			m.To,
			m.Text,
			shortID(m),
		})
	}
	fmt.Fprintf(w, "%d message(s)\n", len(messages))
	table.Render()
	return nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// First 8 characters of the uuid are enough to tell messages apart on screen.
func shortID(m domain.Message) string {
	id := m.ID.String()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil && strings.Contains(err.Error(), "Log truncate required") {
		// The server did not shut down cleanly: a writable open truncates the log.
		repairOpts := badger.DefaultOptions(path).
			WithLogger(nil).
			WithBypassLockGuard(true)
		repaired, repairErr := badger.Open(repairOpts)
		if repairErr != nil {
			return nil, fmt.Errorf("repair failed: %w", repairErr)
		}
		_ = repaired.Close()
		return badger.Open(opts)
	}
	return db, err
}

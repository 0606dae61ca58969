// Package whatsapp wraps the Whatsmeow client so CareBear can chat over WhatsApp
// directly.
//
// It logs in with a QR code on first run, delivers inbound text messages to a
// handler and sends replies back.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/BTreeMap/CareBear/internal/store"
)

const (
	// DefaultDBFile is the whatsmeow device database created under the state directory.
	DefaultDBFile = "whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users
	JIDSuffix = "s.whatsapp.net"
)

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow device database connection string
	QRPath      string // path to write login QR code
	NumericCode bool   // print the raw login code instead of a QR code
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) {
		o.DBDSN = dsn
	}
}

// WithQRCodeOutput writes the login QR code to path instead of stdout.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

// WithNumericCode prints the login code as text instead of a QR code.
func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// MessageHandler receives inbound text messages. from is the sender's number
// and messageID is the WhatsApp message ID.
type MessageHandler func(ctx context.Context, messageID, from, text string)

// Client wraps the Whatsmeow client for modular use
type Client struct {
	waClient *whatsmeow.Client
}

// driverFor picks the database/sql driver for a whatsmeow DSN and reports whether
// a SQLite DSN is missing the foreign key pragma whatsmeow relies on.
func driverFor(dsn string) (driver string, missingForeignKeys bool) {
	if store.DetectDSNType(dsn) == "postgres" {
		return "postgres", false
	}
	return "sqlite3", !strings.Contains(dsn, "foreign_keys")
}

// NewClient opens the device store, logs in if needed and connects.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("whatsapp database DSN must be provided")
	}

	driver, missingFK := driverFor(cfg.DBDSN)
	if missingFK {
		slog.Warn("SQLite database for WhatsApp does not appear to have foreign keys enabled. "+
			"Consider adding '?_foreign_keys=on' to your connection string.",
			"dsn_example", "file:"+cfg.DBDSN+"?_foreign_keys=on")
	}

	slog.Debug("WhatsApp NewClient initializing DB store", "driver", driver)
	container, err := sqlstore.New(ctx, driver, cfg.DBDSN, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		slog.Error("Failed to initialize WhatsApp DB store", "error", err)
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		slog.Error("Failed to get first device from store", "error", err)
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
	if waClient.Store.ID == nil {
		if err := login(ctx, waClient, cfg); err != nil {
			return nil, err
		}
	} else {
		slog.Debug("WhatsApp already logged in, connecting to server")
		if err := waClient.Connect(); err != nil {
			slog.Error("Failed to connect to WhatsApp server", "error", err)
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
	}
	slog.Info("WhatsApp client connected successfully")
	return &Client{waClient: waClient}, nil
}

func login(ctx context.Context, waClient *whatsmeow.Client, cfg Opts) error {
	slog.Info("WhatsApp login required; starting QR code flow")
	qrChan, _ := waClient.GetQRChannel(ctx)
	if err := waClient.Connect(); err != nil {
		slog.Error("Failed to connect to WhatsApp during login", "error", err)
		return fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
	}

	writer := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			return fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		writer = f
	}
	for evt := range qrChan {
		if evt.Event == "code" {
			if cfg.NumericCode {
				fmt.Fprintln(writer, evt.Code)
			} else {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
			}
			continue
		}
		slog.Info("WhatsApp login event", "event", evt.Event)
	}
	return nil
}

// recipientUser turns "+44 7700 900000" into the JID user part "447700900000".
func recipientUser(to string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, to)
}

// SendMessage sends a WhatsApp text message to the given number.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if c.waClient == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	user := recipientUser(to)
	if user == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}

	jid := types.NewJID(user, JIDSuffix)
	msg := &waE2E.Message{Conversation: &body}
	if _, err := c.waClient.SendMessage(ctx, jid, msg); err != nil {
		slog.Error("Failed to send WhatsApp message", "error", err, "to", user)
		return fmt.Errorf("failed to send message to %s: %w", user, err)
	}
	slog.Debug("WhatsApp message sent successfully", "to", user)
	return nil
}

// SendReply sends the reply and, when present, the follow-up as a second message.
func (c *Client) SendReply(ctx context.Context, to, message, followUp string) error {
	if err := c.SendMessage(ctx, to, message); err != nil {
		return err
	}
	if followUp == "" {
		return nil
	}
	return c.SendMessage(ctx, to, followUp)
}

// Listen delivers inbound text messages to handler until ctx is done. Each
// message is handled on its own goroutine so the whatsmeow event loop is never blocked.
func (c *Client) Listen(ctx context.Context, handler MessageHandler) {
	id := c.waClient.AddEventHandler(func(evt interface{}) {
		if messageID, from, text, ok := inboundText(evt); ok {
			go handler(ctx, messageID, from, text)
		}
	})
	go func() {
		<-ctx.Done()
		c.waClient.RemoveEventHandler(id)
		slog.Debug("WhatsApp listener stopped")
	}()
}

// Close disconnects from WhatsApp.
func (c *Client) Close() {
	if c.waClient != nil {
		c.waClient.Disconnect()
	}
}

// inboundText extracts the message ID, sender and text from a direct text
// message event. Group chats, our own messages and non-text messages are ignored.
func inboundText(evt interface{}) (messageID, from, text string, ok bool) {
	msg, isMsg := evt.(*events.Message)
	if !isMsg || msg.Message == nil || msg.Info.IsFromMe || msg.Info.IsGroup {
		return "", "", "", false
	}
	switch {
	case msg.Message.GetConversation() != "":
		text = msg.Message.GetConversation()
	case msg.Message.GetExtendedTextMessage().GetText() != "":
		text = msg.Message.GetExtendedTextMessage().GetText()
	default:
		slog.Debug("WhatsApp ignoring non-text message", "from", msg.Info.Sender.String())
		return "", "", "", false
	}
	return string(msg.Info.ID), "+" + msg.Info.Sender.User, text, true
}

// MockClient records messages instead of sending them.
type MockClient struct {
	mu   sync.Mutex
	Sent []SentMessage
}

// SentMessage is one message recorded by MockClient.
type SentMessage struct {
	To   string
	Body string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockClient) SendReply(ctx context.Context, to, message, followUp string) error {
	if err := m.SendMessage(ctx, to, message); err != nil {
		return err
	}
	if followUp == "" {
		return nil
	}
	return m.SendMessage(ctx, to, followUp)
}

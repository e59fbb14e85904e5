package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.yaml.in/yaml/v4"
)

// Config is the top-level application configuration.
type Config struct {
	LogLevel        string    `yaml:"log_level"`
	LogFormat       string    `yaml:"log_format"`
	IntervalMinutes int       `yaml:"interval"`
	StatusListen    string    `yaml:"status_listen"`
	Notifier        Notifier  `yaml:"notifier"`
	Mailboxes       []Mailbox `yaml:"mailboxes"`
}

// Notifier selects and configures the channel new-mail notices go out on.
type Notifier struct {
	Kind   string `yaml:"kind"` // "onebot", "smtp" or "log"
	OneBot OneBot `yaml:"onebot"`
	SMTP   SMTP   `yaml:"smtp"`
}

// OneBot holds the HTTP API endpoint of a OneBot v11 chat bot.
type OneBot struct {
	URL         string `yaml:"url"`
	AccessToken string `yaml:"access_token"`
}

// SMTP holds the outgoing mail server configuration.
type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
	From     string `yaml:"from"`
}

// Mailbox describes one watched mailbox. Email is the mailbox identity.
type Mailbox struct {
	Protocol     string   `yaml:"protocol"` // "imap" (default) or "pop3"
	Server       string   `yaml:"server"`
	Port         int      `yaml:"port"`
	Email        string   `yaml:"email"`
	Password     string   `yaml:"password"`
	Inbox        string   `yaml:"inbox"`
	NotifyUsers  []string `yaml:"notify_users"`
	NotifyGroups []string `yaml:"notify_groups"`
}

// GetProtocol returns the access protocol, defaulting to "imap".
func (m *Mailbox) GetProtocol() string {
	if m.Protocol == "" {
		return "imap"
	}
	return m.Protocol
}

// GetPort returns the server port, defaulting to the implicit-TLS port of the protocol.
func (m *Mailbox) GetPort() int {
	if m.Port > 0 {
		return m.Port
	}
	if m.GetProtocol() == "pop3" {
		return 995
	}
	return 993
}

// GetInbox returns the folder to watch, defaulting to "INBOX".
func (m *Mailbox) GetInbox() string {
	if m.Inbox == "" {
		return "INBOX"
	}
	return m.Inbox
}

// Interval returns the polling interval as a time.Duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Load reads and parses a YAML configuration file, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		LogLevel:  "info",
		LogFormat: "console",
		Notifier:  Notifier{Kind: "log"},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("interval must be a positive number of minutes")
	}
	if len(c.Mailboxes) == 0 {
		return fmt.Errorf("at least one mailbox is required")
	}
	if err := c.Notifier.validate(); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Mailboxes))
	for i, m := range c.Mailboxes {
		label := m.Email
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if p := m.GetProtocol(); p != "imap" && p != "pop3" {
			return fmt.Errorf("mailbox %s: protocol must be imap or pop3", label)
		}
		if m.Server == "" {
			return fmt.Errorf("mailbox %s: server is required", label)
		}
		if m.Email == "" {
			return fmt.Errorf("mailbox %s: email is required", label)
		}
		if m.Password == "" {
			return fmt.Errorf("mailbox %s: password is required", label)
		}
		if _, dup := seen[m.Email]; dup {
			return fmt.Errorf("mailbox %s: configured more than once", label)
		}
		seen[m.Email] = struct{}{}

		if c.Notifier.Kind == "onebot" {
			for _, id := range append(append([]string{}, m.NotifyUsers...), m.NotifyGroups...) {
				if _, err := strconv.ParseInt(id, 10, 64); err != nil {
					return fmt.Errorf("mailbox %s: recipient %q is not a numeric id", label, id)
				}
			}
		}
	}
	return nil
}

func (n *Notifier) validate() error {
	switch n.Kind {
	case "log":
	case "onebot":
		if n.OneBot.URL == "" {
			return fmt.Errorf("notifier.onebot.url is required")
		}
	case "smtp":
		if n.SMTP.Host == "" {
			return fmt.Errorf("notifier.smtp.host is required")
		}
		if n.SMTP.Port == 0 {
			return fmt.Errorf("notifier.smtp.port is required")
		}
		if n.SMTP.From == "" {
			return fmt.Errorf("notifier.smtp.from is required")
		}
	default:
		return fmt.Errorf("notifier.kind must be onebot, smtp or log")
	}
	return nil
}

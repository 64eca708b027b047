package config

import (
	"github.com/spf13/pflag"
)

// Flags are the command-line overrides. Empty values leave the loaded
// configuration untouched.
type Flags struct {
	ConfigFile  string
	Addr        string
	StorageDir  string
	WebhookURL  string
	DatabaseURL string
}

// ParseFlags parses args (without the program name) into Flags.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := pflag.NewFlagSet("backend", pflag.ContinueOnError)
	fs.StringVarP(&f.ConfigFile, "config", "c", "", "path to a YAML configuration file")
	fs.StringVarP(&f.Addr, "addr", "a", "", "listen address, e.g. :8000")
	fs.StringVarP(&f.StorageDir, "storage-dir", "s", "", "directory holding stored files")
	fs.StringVar(&f.WebhookURL, "webhook-url", "", "relay endpoint for unified artifacts")
	fs.StringVar(&f.DatabaseURL, "database-url", "", "PostgreSQL DSN for the user store")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// Apply overlays non-empty flag values onto c.
func (f *Flags) Apply(c *Config) {
	if f.Addr != "" {
		c.Addr = f.Addr
	}
	if f.StorageDir != "" {
		c.StorageDir = f.StorageDir
	}
	if f.WebhookURL != "" {
		c.Relay.URL = f.WebhookURL
	}
	if f.DatabaseURL != "" {
		c.Database.URL = f.DatabaseURL
	}
}

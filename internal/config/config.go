package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Remote struct {
		BaseURL string `yaml:"base_url" json:"base_url"`
		// AnonKey may be left empty in the file; the engine then reads
		// the service key from the OS keychain.
		AnonKey   string  `yaml:"anon_key" json:"anon_key"`
		PDFBucket string  `yaml:"pdf_bucket" json:"pdf_bucket"`
		ReqPerSec float64 `yaml:"req_per_sec" json:"req_per_sec"`
		Burst     int     `yaml:"burst" json:"burst"`
	} `yaml:"remote" json:"remote"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds" json:"ttl_seconds"`
	} `yaml:"cache" json:"cache"`

	Refresh struct {
		PendingSeconds int `yaml:"pending_seconds" json:"pending_seconds"`
		SweepSeconds   int `yaml:"sweep_seconds" json:"sweep_seconds"`
	} `yaml:"refresh" json:"refresh"`

	Email struct {
		Enabled     bool   `yaml:"enabled" json:"enabled"`
		IMAPHost    string `yaml:"imap_host" json:"imap_host"`
		IMAPPort    int    `yaml:"imap_port" json:"imap_port"`
		Username    string `yaml:"username" json:"username"`
		SentMailbox string `yaml:"sent_mailbox" json:"sent_mailbox"`
		SampleLimit int    `yaml:"sample_limit" json:"sample_limit"`
	} `yaml:"email" json:"email"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

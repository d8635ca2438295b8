package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus everything wrong
// or questionable about it. Called on every config PUT before saving.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	out.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(out.Remote.BaseURL), "/")
	out.Remote.PDFBucket = strings.TrimSpace(out.Remote.PDFBucket)
	out.Email.IMAPHost = strings.TrimSpace(out.Email.IMAPHost)
	out.Email.Username = strings.TrimSpace(out.Email.Username)
	out.Email.SentMailbox = strings.TrimSpace(out.Email.SentMailbox)

	// ---- defaults ----

	if out.Remote.ReqPerSec <= 0 {
		out.Remote.ReqPerSec = 8
	}
	if out.Remote.Burst <= 0 {
		out.Remote.Burst = 4
	}
	if out.Cache.TTLSeconds <= 0 {
		out.Cache.TTLSeconds = 120
	}
	if out.Refresh.PendingSeconds <= 0 {
		out.Refresh.PendingSeconds = 15
	}
	if out.Refresh.SweepSeconds <= 0 {
		out.Refresh.SweepSeconds = 300
	}
	if out.Email.SentMailbox == "" {
		out.Email.SentMailbox = "[Gmail]/Sent Mail"
	}
	if out.Email.SampleLimit <= 0 {
		out.Email.SampleLimit = 25
	}

	// ---- validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Remote.BaseURL == "" {
		res.addErr("remote.base_url is required")
	} else if !strings.HasPrefix(out.Remote.BaseURL, "http://") && !strings.HasPrefix(out.Remote.BaseURL, "https://") {
		res.addErr("remote.base_url must start with http:// or https://")
	}
	if out.Remote.PDFBucket == "" {
		res.addErr("remote.pdf_bucket is required")
	}
	if out.Remote.AnonKey == "" {
		res.addWarn("remote.anon_key is empty; the engine will look for a service key in the OS keychain")
	}

	if out.Cache.TTLSeconds < 5 {
		res.addWarn("cache.ttl_seconds is very low (%d); most reads will go remote", out.Cache.TTLSeconds)
	}
	if out.Refresh.PendingSeconds < 5 {
		res.addWarn("refresh.pending_seconds is very low (%d) and may cause rate limits", out.Refresh.PendingSeconds)
	}

	if out.Email.Enabled {
		if out.Email.IMAPHost == "" {
			res.addErr("email.imap_host is required when email.enabled=true")
		}
		if out.Email.IMAPPort == 0 {
			res.addErr("email.imap_port is required when email.enabled=true")
		}
		if out.Email.Username == "" {
			res.addErr("email.username is required when email.enabled=true")
		}
	}

	return out, res
}

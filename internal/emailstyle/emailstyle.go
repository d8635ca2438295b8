// internal/emailstyle/emailstyle.go
package emailstyle

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/google/uuid"

	"talentpipe-engine/internal/config"
	"talentpipe-engine/internal/remote"
	"talentpipe-engine/internal/secrets"
)

const (
	personasCollection = "personas"
	fnAnalyzeStyle     = "analyze-writing-style"
)

// Persona is an AI writing persona derived from how the user actually
// writes email. StyleProfile is whatever shape the analysis function
// returns; the engine stores it opaquely.
type Persona struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Name         string          `json:"name"`
	SampleCount  int             `json:"sample_count"`
	StyleProfile json.RawMessage `json:"style_profile"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Sampler collects recent sent mail over IMAP and turns it into a
// persona via the remote style-analysis function.
type Sampler struct {
	cfg    config.Config
	remote remote.Backend
}

func NewSampler(cfg config.Config, backend remote.Backend) *Sampler {
	return &Sampler{cfg: cfg, remote: backend}
}

// CreatePersona samples the user's sent mailbox, runs the analysis and
// inserts the persona record.
func (s *Sampler) CreatePersona(ctx context.Context, userID, name string) (Persona, error) {
	if strings.TrimSpace(userID) == "" {
		return Persona{}, errors.New("create persona: missing owner")
	}
	if strings.TrimSpace(name) == "" {
		return Persona{}, errors.New("create persona: name is required")
	}
	if !s.cfg.Email.Enabled {
		return Persona{}, errors.New("create persona: email sampling is disabled in config")
	}

	samples, err := s.collectSamples(ctx)
	if err != nil {
		return Persona{}, fmt.Errorf("create persona: %w", err)
	}
	if len(samples) == 0 {
		return Persona{}, errors.New("create persona: no sent mail found to sample")
	}

	var out struct {
		StyleProfile json.RawMessage `json:"style_profile"`
	}
	err = s.remote.Invoke(ctx, fnAnalyzeStyle, map[string]any{
		"user_id": userID,
		"samples": samples,
	}, &out)
	if err != nil {
		return Persona{}, fmt.Errorf("create persona: analyze: %w", err)
	}

	persona := Persona{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         name,
		SampleCount:  len(samples),
		StyleProfile: out.StyleProfile,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.remote.Insert(ctx, personasCollection, persona, &persona); err != nil {
		return Persona{}, fmt.Errorf("create persona: %w", err)
	}
	return persona, nil
}

func (s *Sampler) collectSamples(ctx context.Context) ([]string, error) {
	account := secrets.IMAPKeyringAccount(s.cfg)
	password, err := secrets.GetIMAPPassword(account)
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Email.IMAPHost, s.cfg.Email.IMAPPort)
	c, err := dialAndLogin(ctx, addr, s.cfg.Email.Username, password, s.cfg.Email.IMAPHost)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Logout().Wait() }()

	if _, err := c.Select(s.cfg.Email.SentMailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("imap select %q: %w", s.cfg.Email.SentMailbox, err)
	}

	return fetchRecentBodies(ctx, c, s.cfg.Email.SampleLimit)
}

func dialAndLogin(ctx context.Context, addr, username, password, serverName string) (*imapclient.Client, error) {
	if addr == "" || username == "" || password == "" {
		return nil, errors.New("imap addr/username/password are required")
	}

	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: serverName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// best-effort close on context cancel
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	if err := c.Login(username, password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// fetchRecentBodies pulls up to max recent messages (newest first)
// from the selected mailbox using BODY.PEEK[] so nothing gets marked
// \Seen, and returns their raw bodies as strings.
func fetchRecentBodies(ctx context.Context, c *imapclient.Client, max int) ([]string, error) {
	if max <= 0 {
		max = 25
	}

	// only sample mail the user wrote in the last six months; older
	// mail is a poor signal for current writing style
	cutoff := time.Now().AddDate(0, -6, 0)

	searchData, err := c.UIDSearch(&imap.SearchCriteria{Since: cutoff}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}

	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	var out []string
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}
		if b := buf.FindBodySection(bodyAll); len(b) > 0 {
			out = append(out, string(b))
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

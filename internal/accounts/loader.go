// Package accounts loads the monitored accounts from accounts.yaml into the
// account store and keeps them in sync while the daemon runs.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
)

// file mirrors accounts.yaml:
//
//	accounts:
//	  nederland:
//	    platforms:
//	      instagram: [nlinde, {handle: nlembassy, status: inactief}]
type file struct {
	Accounts map[string]struct {
		Platforms map[string][]entry `yaml:"platforms"`
	} `yaml:"accounts"`
}

// entry is either a bare handle or a mapping with details.
type entry struct {
	Handle      string `yaml:"handle"`
	Status      string `yaml:"status"`
	DisplayName string `yaml:"display_name"`
	Notes       string `yaml:"notes"`
}

func (e *entry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		e.Handle = n.Value
		return nil
	}
	type plain entry
	return n.Decode((*plain)(e))
}

// Parsed is the result of reading an accounts file.
type Parsed struct {
	Accounts []*model.Account
	// Skipped lists entries that were ignored, e.g. for an unknown platform.
	Skipped []string
}

// Parse reads accounts.yaml. Accounts are ordered by country, platform and handle.
func Parse(r io.Reader) (*Parsed, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	out := &Parsed{}
	for country, c := range f.Accounts {
		for platform, entries := range c.Platforms {
			p := model.Platform(strings.ToLower(platform))
			for _, e := range entries {
				handle := strings.TrimPrefix(strings.TrimSpace(e.Handle), "@")
				if handle == "" {
					continue
				}
				if !p.Valid() {
					out.Skipped = append(out.Skipped, fmt.Sprintf("%s/%s/%s: unknown platform", country, platform, handle))
					continue
				}
				out.Accounts = append(out.Accounts, &model.Account{
					ID:          model.AccountID(country, p, handle),
					Country:     country,
					Platform:    p,
					Handle:      handle,
					DisplayName: optional(e.DisplayName),
					Status:      model.NormalizeAccountStatus(e.Status),
					Notes:       optional(e.Notes),
				})
			}
		}
	}
	sort.Slice(out.Accounts, func(i, j int) bool { return out.Accounts[i].ID < out.Accounts[j].ID })
	sort.Strings(out.Skipped)
	return out, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Path     string
	Accounts core.AccountRepository
	Logger   *slog.Logger
}

// Loader syncs accounts.yaml into the account store.
type Loader struct {
	path     string
	accounts core.AccountRepository
	logger   *slog.Logger
}

// NewLoader constructs a Loader.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Path == "" {
		return nil, errors.New("accounts: path is required")
	}
	if opts.Accounts == nil {
		return nil, errors.New("accounts: account repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		path:     opts.Path,
		accounts: opts.Accounts,
		logger:   logger.With("component", "accounts", "path", opts.Path),
	}, nil
}

// Path returns the watched file.
func (l *Loader) Path() string { return l.path }

// Load upserts every account in the file and returns how many were stored.
// A missing file is logged and loads nothing.
func (l *Loader) Load(ctx context.Context) (int, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.WarnContext(ctx, "accounts file not found")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	parsed, err := Parse(f)
	if err != nil {
		return 0, err
	}
	for _, s := range parsed.Skipped {
		l.logger.WarnContext(ctx, "account entry skipped", "entry", s)
	}

	n := 0
	for _, a := range parsed.Accounts {
		if err := l.accounts.Upsert(ctx, a); err != nil {
			return n, fmt.Errorf("upsert account %s: %w", a.ID, err)
		}
		n++
	}
	l.logger.InfoContext(ctx, "accounts loaded", "count", n)
	return n, nil
}

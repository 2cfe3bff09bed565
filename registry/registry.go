// Package registry answers which identities may author records.
package registry

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/attestate/leafsync/signing"
)

// Config of the allow list.
type Config struct {
	// Identities are hex encoded public keys.
	Identities []string `mapstructure:"allow"`
	// File holds one hex encoded public key per line. It is read on every
	// call, so it can be edited while the node runs.
	File string `mapstructure:"allowlist-file"`
}

// DefaultConfig allows nobody.
func DefaultConfig() Config {
	return Config{}
}

// Registry combines the configured identities with the allow list file.
type Registry struct {
	logger *zap.Logger
	fs     afero.Fs
	static map[string]struct{}
	file   string
}

// New validates the configured identities.
func New(logger *zap.Logger, fs afero.Fs, cfg Config) (*Registry, error) {
	static := make(map[string]struct{}, len(cfg.Identities))
	for _, id := range cfg.Identities {
		id, err := normalize(id)
		if err != nil {
			return nil, err
		}
		static[id] = struct{}{}
	}
	return &Registry{
		logger: logger,
		fs:     fs,
		static: static,
		file:   cfg.File,
	}, nil
}

// Allowlist returns the set of identities that may author records. A missing
// allow list file is treated as empty.
func (r *Registry) Allowlist(ctx context.Context) (map[string]struct{}, error) {
	allow := make(map[string]struct{}, len(r.static))
	for id := range r.static {
		allow[id] = struct{}{}
	}
	if r.file == "" {
		return allow, nil
	}
	data, err := afero.ReadFile(r.fs, r.file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Debug("allow list file does not exist", zap.String("file", r.file))
		return allow, nil
	case err != nil:
		return nil, fmt.Errorf("read allow list: %w", err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		id, err := normalize(text)
		if err != nil {
			r.logger.Warn("skipping invalid allow list entry",
				zap.String("file", r.file),
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		allow[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan allow list: %w", err)
	}
	return allow, nil
}

func normalize(id string) (string, error) {
	pub, err := signing.ParsePublicKey(strings.ToLower(strings.TrimSpace(id)))
	if err != nil {
		return "", fmt.Errorf("identity %q: %w", id, err)
	}
	return pub.String(), nil
}

package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// FileSource implements domain.RuleSource for a rule file on disk.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource creates a rule source reading path.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// Path returns the rule file path.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads and parses the rule file. Skipped rules are logged, not returned
// as errors.
func (s *FileSource) Load() ([]domain.Rule, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read rule file: %w", err)
	}

	result, err := Parse(data)
	if err != nil {
		return nil, "", err
	}

	for _, sk := range result.Skipped {
		s.logger.Warn("skipping invalid rule",
			zap.String("file", s.path),
			zap.Int("index", sk.Index),
			zap.Error(sk.Err))
	}

	return result.Rules, Digest(data), nil
}

// Digest returns the content hash used to detect unchanged reloads.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Ensure FileSource implements domain.RuleSource.
var _ domain.RuleSource = (*FileSource)(nil)

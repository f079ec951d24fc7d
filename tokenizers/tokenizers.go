// Package tokenizers loads a sub-word tokenizer (api.Subword) from a vocabulary resource.
//
// Supported resources:
//
//   - "*.model": SentencePiece model proto, see package sentencepiece.
//   - "*.json": HuggingFace "tokenizer.json" with a WordPiece model, see package hftokenizer.
//   - anything else: BERT "vocab.txt", one token per line.
package tokenizers

import (
	"path/filepath"
	"strings"

	"github.com/gomlx/propara-jsonlines/internal/files"
	"github.com/gomlx/propara-jsonlines/tokenizers/api"
	"github.com/gomlx/propara-jsonlines/tokenizers/hftokenizer"
	"github.com/gomlx/propara-jsonlines/tokenizers/sentencepiece"
	"github.com/pkg/errors"
)

// ConfigFileName is the name of the HuggingFace tokenizer configuration file.
const ConfigFileName = "tokenizer_config.json"

// Constructor creates a tokenizer from the given vocabulary resource file.
type Constructor func(config *api.Config, filePath string) (api.Subword, error)

// Load creates the tokenizer for the vocabulary resource in filePath, selecting
// the implementation from its file name.
//
// If config is nil, LoadConfig is used to look for a tokenizer_config.json next to it.
func Load(config *api.Config, filePath string) (api.Subword, error) {
	if !files.Exists(filePath) {
		return nil, errors.Errorf("vocabulary resource %q not found", filePath)
	}
	if config == nil {
		var err error
		config, err = LoadConfig(filepath.Dir(filePath))
		if err != nil {
			return nil, err
		}
	}
	tok, err := constructorFor(filePath)(config, filePath)
	if err != nil {
		return nil, errors.WithMessagef(err, "while loading tokenizer from %q", filePath)
	}
	return tok, nil
}

func constructorFor(filePath string) Constructor {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".model":
		return func(config *api.Config, filePath string) (api.Subword, error) {
			return sentencepiece.NewFromFile(config, filePath)
		}
	case ".json":
		return func(config *api.Config, filePath string) (api.Subword, error) {
			return hftokenizer.NewFromFile(config, filePath)
		}
	default:
		return func(config *api.Config, filePath string) (api.Subword, error) {
			return hftokenizer.NewFromVocabFile(config, filePath)
		}
	}
}

// LoadConfig reads the tokenizer_config.json in dir, if there is one.
// It returns a nil config (and no error) if the file doesn't exist.
func LoadConfig(dir string) (*api.Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	if !files.Exists(configPath) {
		return nil, nil
	}
	return api.ParseConfigFile(configPath)
}

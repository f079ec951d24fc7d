package api

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Config holds the fields of HuggingFace's "tokenizer_config.json" used by the tokenizers.
//
// Special tokens are given by their string content (e.g. "[CLS]"), and resolved to ids by
// each tokenizer implementation.
type Config struct {
	BosToken  string `json:"bos_token"`
	EosToken  string `json:"eos_token"`
	UnkToken  string `json:"unk_token"`
	PadToken  string `json:"pad_token"`
	ClsToken  string `json:"cls_token"`
	SepToken  string `json:"sep_token"`
	MaskToken string `json:"mask_token"`

	// DoLowerCase is nil if not set, in which case the model default is used.
	DoLowerCase *bool `json:"do_lower_case"`

	// StripAccents is nil if not set, in which case accents are stripped iff lowercasing.
	StripAccents *bool `json:"strip_accents"`

	// TokenizeChineseChars is nil if not set, in which case it defaults to true.
	TokenizeChineseChars *bool `json:"tokenize_chinese_chars"`
}

// ParseConfigFile reads a "tokenizer_config.json" file.
//
// Special token entries can either be a plain string or an object with a "content" field
// (the "AddedToken" serialization used by newer versions of transformers): both are accepted.
func ParseConfigFile(filePath string) (*Config, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer config %q", filePath)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer config %q", filePath)
	}
	config := &Config{}
	tokenFields := map[string]*string{
		"bos_token":  &config.BosToken,
		"eos_token":  &config.EosToken,
		"unk_token":  &config.UnkToken,
		"pad_token":  &config.PadToken,
		"cls_token":  &config.ClsToken,
		"sep_token":  &config.SepToken,
		"mask_token": &config.MaskToken,
	}
	for key, field := range tokenFields {
		value, found := raw[key]
		if !found {
			continue
		}
		*field, err = parseTokenContent(value)
		if err != nil {
			return nil, errors.WithMessagef(err, "field %q of %q", key, filePath)
		}
	}
	boolFields := map[string]**bool{
		"do_lower_case":          &config.DoLowerCase,
		"strip_accents":          &config.StripAccents,
		"tokenize_chinese_chars": &config.TokenizeChineseChars,
	}
	for key, field := range boolFields {
		value, found := raw[key]
		if !found || string(value) == "null" {
			continue
		}
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return nil, errors.Wrapf(err, "field %q of %q is not a boolean", key, filePath)
		}
		*field = &b
	}
	return config, nil
}

func parseTokenContent(value json.RawMessage) (string, error) {
	if string(value) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}
	var added struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(value, &added); err != nil {
		return "", errors.Errorf("special token must be a string or an object with \"content\", got %s", value)
	}
	return added.Content, nil
}

// propara2jsonlines converts a ProPara paragraph dataset into the JSON-lines layout used to
// train coreference models: one line per paragraph, with its sub-word tokens and their
// sentence, word and character alignment.
//
// Usage:
//
//	propara2jsonlines [flags] <data> <output_file> <vocab_file>
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/gomlx/propara-jsonlines/internal/aligner"
	"github.com/gomlx/propara-jsonlines/internal/dataset"
	"github.com/gomlx/propara-jsonlines/internal/files"
	"github.com/gomlx/propara-jsonlines/internal/jsonlines"
	"github.com/gomlx/propara-jsonlines/internal/report"
	"github.com/gomlx/propara-jsonlines/tokenizers"
	"github.com/gomlx/propara-jsonlines/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CLI holds the command line arguments.
type CLI struct {
	Data       string `arg:"" name:"data" type:"path" help:"Input paragraphs: JSON array (.json), xz-compressed JSON (.json.xz) or Parquet (.parquet)."`
	OutputFile string `arg:"" name:"output_file" type:"path" help:"Output JSON-lines file. Compressed with xz if it ends with .xz."`
	VocabFile  string `arg:"" name:"vocab_file" type:"path" help:"Vocabulary: BERT vocab.txt, HuggingFace tokenizer.json or SentencePiece .model."`

	Cased           bool   `name:"cased" help:"Don't lowercase and strip accents in the sub-word tokenizer."`
	TokenizerConfig string `name:"tokenizer-config" type:"path" help:"tokenizer_config.json to use. By default one next to the vocabulary is used, if present."`
	Dump            bool   `name:"dump" help:"Print the alignment table of every paragraph to stderr."`
	Verify          bool   `name:"verify" help:"Check the alignment invariants of every record and log the mismatches."`
	Verbosity       int    `name:"verbosity" short:"v" default:"0" help:"Logging verbosity level."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("propara2jsonlines"),
		kong.Description("Converts ProPara paragraphs to coreference JSON-lines."),
		kong.UsageOnError(),
	)
	setVerbosity(cli.Verbosity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.run(ctx, os.Stderr)
	stop()
	klog.Flush()
	kctx.FatalIfErrorf(err)
}

func setVerbosity(level int) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	if err := fs.Set("v", strconv.Itoa(level)); err != nil {
		klog.Warningf("failed to set verbosity to %d: %v", level, err)
	}
}

// run does the conversion. The alignment tables (--dump) are written to dumpW.
func (c *CLI) run(ctx context.Context, dumpW io.Writer) error {
	paragraphs, err := dataset.Load(c.Data)
	if err != nil {
		return err
	}
	klog.Infof("loaded %d paragraphs from %q", len(paragraphs), c.Data)

	config, err := c.tokenizerConfig()
	if err != nil {
		return err
	}
	subword, err := tokenizers.Load(config, c.VocabFile)
	if err != nil {
		return err
	}
	c.logVocabulary(subword)

	align, err := aligner.New(subword)
	if err != nil {
		return err
	}

	w, err := jsonlines.Create(c.OutputFile)
	if err != nil {
		return err
	}
	var numMisaligned int
	err = align.AlignAll(ctx, paragraphs, func(index int, record *aligner.Record) error {
		if c.Dump {
			if err := report.Render(dumpW, index, record); err != nil {
				return errors.Wrap(err, "failed to dump alignment")
			}
		}
		if c.Verify {
			if err := align.Verify(record); err != nil {
				numMisaligned++
				klog.Warningf("paragraph #%d: %v", index, err)
			}
		}
		return w.Write(record)
	})
	if err != nil {
		w.Abort()
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	if c.Verify {
		klog.Infof("%d of %d records misaligned", numMisaligned, len(paragraphs))
	}
	klog.Infof("wrote %d records to %q", w.Lines(), c.OutputFile)
	return nil
}

// tokenizerConfig returns the explicitly given tokenizer configuration, or the one next to
// the vocabulary, with --cased applied. It may return nil.
func (c *CLI) tokenizerConfig() (*api.Config, error) {
	var config *api.Config
	var err error
	if c.TokenizerConfig != "" {
		config, err = api.ParseConfigFile(c.TokenizerConfig)
	} else {
		config, err = tokenizers.LoadConfig(filepath.Dir(c.VocabFile))
	}
	if err != nil {
		return nil, err
	}
	if c.Cased {
		if config == nil {
			config = &api.Config{}
		}
		doLowerCase := false
		config.DoLowerCase = &doLowerCase
	}
	return config, nil
}

type vocabSizer interface {
	VocabSize() int
}

func (c *CLI) logVocabulary(subword api.Subword) {
	fingerprint, err := files.Fingerprint(c.VocabFile)
	if err != nil {
		klog.Warningf("can't fingerprint vocabulary: %v", err)
	}
	if sizer, ok := subword.(vocabSizer); ok {
		klog.Infof("vocabulary %q: %d tokens, blake3 %s", c.VocabFile, sizer.VocabSize(), fingerprint)
		return
	}
	klog.Infof("vocabulary %q: blake3 %s", c.VocabFile, fingerprint)
}

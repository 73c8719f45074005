// Package dataset implements the prompt sources loadforge's benchmark
// orchestrator draws from, starting with a line-oriented text file loader.
package dataset

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/loadforge/loadforge/internal/core/errs"
)

// LineByLineConfig controls how a prompt file is read into memory.
type LineByLineConfig struct {
	Path        string
	MaxExamples int // 0 = no limit
	SkipLines   int
	LinePrefix  string
	Shuffle     bool
	Limit       int // 0 = no limit; applied after Shuffle
}

// LineByLine is a ports.PromptSource reading one prompt per non-blank,
// non-comment line of a text file.
type LineByLine struct {
	cfg LineByLineConfig
}

// NewLineByLine builds a LineByLine source over cfg.
func NewLineByLine(cfg LineByLineConfig) *LineByLine {
	return &LineByLine{cfg: cfg}
}

// Load reads the configured file, applying skip-lines, line-prefix,
// max-examples, shuffle, and limit in that order, per the documented
// prompt file format.
func (l *LineByLine) Load(ctx context.Context) ([]string, error) {
	f, err := os.Open(l.cfg.Path)
	if err != nil {
		return nil, errs.New(errs.KindData, fmt.Errorf("opening dataset %q: %w", l.cfg.Path, err))
	}
	defer f.Close()

	var prompts []string
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, errs.New(errs.KindCancelled, ctx.Err())
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if skipped < l.cfg.SkipLines {
			skipped++
			continue
		}

		prompts = append(prompts, l.applyPrefix(line))

		if l.cfg.MaxExamples > 0 && len(prompts) >= l.cfg.MaxExamples {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.KindData, fmt.Errorf("reading dataset %q: %w", l.cfg.Path, err))
	}

	if len(prompts) == 0 {
		return nil, errs.New(errs.KindData, fmt.Errorf("dataset %q contains no usable prompts", l.cfg.Path))
	}

	if l.cfg.Shuffle {
		rand.Shuffle(len(prompts), func(i, j int) { prompts[i], prompts[j] = prompts[j], prompts[i] })
	}

	if l.cfg.Limit > 0 && len(prompts) > l.cfg.Limit {
		prompts = prompts[:l.cfg.Limit]
	}

	return prompts, nil
}

func (l *LineByLine) applyPrefix(line string) string {
	if l.cfg.LinePrefix == "" || strings.HasPrefix(line, l.cfg.LinePrefix) {
		return line
	}
	return l.cfg.LinePrefix + line
}

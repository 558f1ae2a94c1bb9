package classification

import (
	"log/slog"
	"regexp"

	"github.com/Veraticus/remitos/internal/common"
	"github.com/Veraticus/remitos/internal/model"
)

// DefaultUserPattern matches the canonical printed form of a remito number.
const DefaultUserPattern = `\b\d{4}-\d{8}\b`

// DefaultSplitPattern matches a short branch group and a longer number group
// separated by any run of non-digits.
const DefaultSplitPattern = `(\d{1,4})\D+(\d{5,10})`

var digitRunPattern = regexp.MustCompile(`\b(\d{10,14})\b`)

// Strategy names one step of the detection cascade.
type Strategy string

// Detection strategies, in cascade order.
const (
	StrategyUserPattern Strategy = "user_pattern"
	StrategyDigitRun    Strategy = "digit_run"
	StrategySplit       Strategy = "split"
)

// Match is a successful detection.
type Match struct {
	Identifier model.Identifier
	Strategy   Strategy
	Candidate  string
}

// Config holds the patterns used by the detector.
type Config struct {
	UserPattern  string
	SplitPattern string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		UserPattern:  DefaultUserPattern,
		SplitPattern: DefaultSplitPattern,
	}
}

type strategy struct {
	extract func(text string) (string, bool)
	name    Strategy
}

// Detector runs the ordered cascade of extraction strategies over a text blob.
// Patterns are compiled once; a detector is safe for concurrent use.
type Detector struct {
	strategies []strategy
}

// NewDetector creates a detector using userPattern and the default split pattern.
func NewDetector(userPattern string) *Detector {
	cfg := DefaultConfig()
	cfg.UserPattern = userPattern
	return NewDetectorWithConfig(cfg)
}

// NewDetectorWithConfig creates a detector with custom patterns.
// A malformed user pattern disables that strategy; a malformed split pattern
// falls back to DefaultSplitPattern.
func NewDetectorWithConfig(cfg Config) *Detector {
	d := &Detector{}

	userRegex, err := common.CompileOptional(cfg.UserPattern)
	if err != nil {
		slog.Warn("User pattern is invalid, strategy disabled", "pattern", cfg.UserPattern, "error", err)
	}
	if userRegex != nil {
		d.strategies = append(d.strategies, strategy{name: StrategyUserPattern, extract: userExtractor(userRegex)})
	}

	d.strategies = append(d.strategies, strategy{name: StrategyDigitRun, extract: func(text string) (string, bool) {
		m := digitRunPattern.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[1], true
	}})

	splitRegex, err := common.CompileOptional(cfg.SplitPattern)
	if err != nil || splitRegex == nil || splitRegex.NumSubexp() < 2 {
		if cfg.SplitPattern != "" && cfg.SplitPattern != DefaultSplitPattern {
			slog.Warn("Split pattern is unusable, using default", "pattern", cfg.SplitPattern)
		}
		splitRegex = regexp.MustCompile(DefaultSplitPattern)
	}
	d.strategies = append(d.strategies, strategy{name: StrategySplit, extract: func(text string) (string, bool) {
		m := splitRegex.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[1] + "-" + m[2], true
	}})

	return d
}

func userExtractor(re *regexp.Regexp) func(string) (string, bool) {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		if re.NumSubexp() > 0 {
			return m[1], true
		}
		return m[0], true
	}
}

// Detect returns the first identifier produced by the cascade.
// A candidate that fails normalization counts as a miss for its strategy only.
func (d *Detector) Detect(text string) (Match, bool) {
	if text == "" {
		return Match{}, false
	}
	for _, s := range d.strategies {
		candidate, ok := s.extract(text)
		if !ok {
			continue
		}
		id, ok := Normalize(candidate)
		if !ok {
			slog.Debug("Candidate rejected by normalizer", "strategy", s.name, "candidate", candidate)
			continue
		}
		return Match{Identifier: id, Strategy: s.name, Candidate: candidate}, true
	}
	return Match{}, false
}

// Detect is a one-shot convenience wrapper around NewDetector(userPattern).Detect.
func Detect(text, userPattern string) (model.Identifier, bool) {
	m, ok := NewDetector(userPattern).Detect(text)
	return m.Identifier, ok
}

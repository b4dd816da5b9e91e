package config

import (
	"runtime"
	"strings"

	"github.com/nikandfor/errors"
	"github.com/nikandfor/tlog"
	"gopkg.in/yaml.v3"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatFlowTyping Feature = iota
	FeatUnionNarrowing
	FeatRegionInference
	FeatPredicateStore
	FeatCount
)

type Warning int

const (
	WarnOverflow Warning = iota
	WarnUnreachableCode
	WarnRedundantCheck
	WarnType
	WarnPedantic
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	Profile    string
	TargetArch string
	QbeTarget  string
	WordSize   int
	WordType   string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		WordSize:   8,
		WordType:   "l",
	}

	features := map[Feature]Info{
		FeatFlowTyping:      {"flow-typing", true, "Refine variable types along branches using condition predicates."},
		FeatUnionNarrowing:  {"union-narrowing", true, "Introduce flow variables for `x is member` checks."},
		FeatRegionInference: {"region-inference", true, "Place inferred storage in the smallest region that outlives its uses."},
		FeatPredicateStore:  {"predicate-store", true, "Remember the predicate a bool variable was assigned from."},
	}

	warnings := map[Warning]Info{
		WarnOverflow:        {"overflow", true, "Warn when constant arithmetic overflows the target word."},
		WarnUnreachableCode: {"unreachable-code", true, "Warn about branches whose condition is a constant."},
		WarnRedundantCheck:  {"redundant-check", false, "Warn about `is` checks already implied by the current facts."},
		WarnType:            {"type", true, "Warn about comparisons that fold to a constant because a variable was narrowed."},
		WarnPedantic:        {"pedantic", false, "Issue all warnings demanded by the strict profile."},
		WarnExtra:           {"extra", true, "Warn about declarations that shadow an outer variable."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget configures the word size for a QBE target name, defaulting to the host.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
		tlog.V("config").Printw("no target specified, defaulting to host target", "target", c.QbeTarget)
	} else {
		c.QbeTarget = qbeTarget
	}

	c.TargetArch = goarch

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.WordType = 8, "l"
	case "arm", "rv32":
		c.WordSize, c.WordType = 4, "w"
	default:
		tlog.Printw("unrecognized target, defaulting to 64-bit words", "target", c.QbeTarget)
		c.WordSize, c.WordType = 8, "l"
	}
}

// WordRange is the inclusive range of a signed target word.
func (c *Config) WordRange() (lo, hi int64) {
	bits := uint(c.WordSize * 8)
	if bits >= 64 {
		return -1 << 63, 1<<63 - 1
	}
	return -1 << (bits - 1), 1<<(bits-1) - 1
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyProfile switches between the "default" and the "strict" warning sets.
func (c *Config) ApplyProfile(name string) error {
	c.Profile = name
	switch name {
	case "", "default":
		c.Profile = "default"
	case "strict":
		c.SetWarning(WarnPedantic, true)
		c.SetWarning(WarnRedundantCheck, true)
		c.SetWarning(WarnType, true)
	default:
		return errors.New("unsupported profile '%s'. Supported: 'default', 'strict'", name)
	}
	return nil
}

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enable)
			}
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ProcessDirectiveFlags applies a space separated list of -W/-F flags. -Wall and -Wno-all
// are applied first so that individual flags can override them.
func (c *Config) ProcessDirectiveFlags(flagStr string) {
	flags := strings.Fields(flagStr)
	for _, flag := range flags {
		if isGroupFlag(flag) {
			c.applyFlag(flag)
		}
	}
	for _, flag := range flags {
		if !isGroupFlag(flag) {
			c.applyFlag(flag)
		}
	}
}

func isGroupFlag(flag string) bool {
	name := strings.TrimPrefix(flag, "-")
	return name == "Wall" || name == "Wno-all"
}

// projectFile is the on-disk YAML form of a Config.
type projectFile struct {
	Target   string          `yaml:"target"`
	Profile  string          `yaml:"profile"`
	Features map[string]bool `yaml:"features"`
	Warnings map[string]bool `yaml:"warnings"`
	Flags    []string        `yaml:"flags"`
}

// Load builds a Config from a YAML project file. Unknown feature or warning names are errors.
func Load(data []byte) (*Config, error) {
	var pf projectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, errors.Wrap(err, "parse project file")
	}

	cfg := NewConfig()
	cfg.SetTarget(runtime.GOOS, runtime.GOARCH, pf.Target)
	if err := cfg.ApplyProfile(pf.Profile); err != nil {
		return nil, errors.Wrap(err, "profile")
	}

	for name, enabled := range pf.Features {
		ft, ok := cfg.FeatureMap[name]
		if !ok {
			return nil, errors.New("unknown feature %q", name)
		}
		cfg.SetFeature(ft, enabled)
	}
	for name, enabled := range pf.Warnings {
		wt, ok := cfg.WarningMap[name]
		if !ok {
			return nil, errors.New("unknown warning %q", name)
		}
		cfg.SetWarning(wt, enabled)
	}
	cfg.ProcessDirectiveFlags(strings.Join(pf.Flags, " "))

	return cfg, nil
}

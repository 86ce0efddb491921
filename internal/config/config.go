// Package config loads dupefind's external configuration: an optional
// config file read through viper, plus the small set of environment
// variables the core consults directly.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/foldersweep/dupefind/internal/errs"
)

// DefaultHashCachePath is used when HASH_CACHE_PATH is unset.
const DefaultHashCachePath = "content_hash_cache.db"

// DefaultDatabasePath is used when DATABASE_PATH is unset.
const DefaultDatabasePath = "dupefind.db"

// Config is the recognized configuration shape. Unknown keys in a loaded
// file are ignored (viper's default behavior for untagged fields).
type Config struct {
	RootPaths      []string `mapstructure:"root_paths"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
}

// Load reads configuration from the named file if it exists, falling back
// to an empty Config (callers typically layer CLI flags on top). An empty
// name disables file loading entirely.
func Load(file string) (*Config, error) {
	cfg := &Config{}
	if file == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errs.ConfigErrorf("read config %q: %v", file, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.ConfigErrorf("parse config %q: %v", file, err)
	}
	return cfg, nil
}

// NonOverlappingRoots drops any root that is a subdirectory of another root
// already kept, so a scan never double-counts files reachable through two
// overlapping trees. Order of the surviving roots is unspecified.
func NonOverlappingRoots(paths []string) []string {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		cleaned = append(cleaned, abs)
	}

	// Shortest paths first so a parent is always considered before its
	// children land in result.
	sort.Slice(cleaned, func(i, j int) bool { return len(cleaned[i]) < len(cleaned[j]) })

	var result []string
	for _, dir := range cleaned {
		contained := false
		for _, kept := range result {
			if dir == kept || isWithin(dir, kept) {
				contained = true
				break
			}
		}
		if !contained {
			result = append(result, dir)
		}
	}
	return result
}

// isWithin reports whether child is dir or a strict descendant of dir.
func isWithin(child, dir string) bool {
	rel, err := filepath.Rel(dir, child)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// HashCachePath returns the HASH_CACHE_PATH environment override, or the
// default co-located with the working directory.
func HashCachePath() string {
	if p := os.Getenv("HASH_CACHE_PATH"); p != "" {
		return p
	}
	return DefaultHashCachePath
}

// DatabasePath returns the DATABASE_PATH environment override, or the
// default co-located with the working directory.
func DatabasePath() string {
	if p := os.Getenv("DATABASE_PATH"); p != "" {
		return p
	}
	return DefaultDatabasePath
}

// LogFilePath returns the LOG_FILE_PATH environment override, or "" for
// stderr logging.
func LogFilePath() string {
	return os.Getenv("LOG_FILE_PATH")
}

// TracingLevel returns the TRACING_LEVEL environment override, or "info".
func TracingLevel() string {
	if lvl := os.Getenv("TRACING_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

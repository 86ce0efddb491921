// Package progress defines the polymorphic progress-reporting sink consumed
// by every pipeline phase, plus a silent default and a terminal
// implementation backed by schollz/progressbar.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Reporter receives start/progress/complete callbacks from each pipeline
// phase. Implementations must make every method safe to call concurrently:
// the scanner and hasher call into it from many goroutines at once.
type Reporter interface {
	OnScanStart()
	OnScanProgress(filesFound int64, currentPath string)
	OnScanComplete(totalFiles int64, duration time.Duration)

	OnHashStart()
	OnHashProgress(filesHashed, totalFiles int64)
	OnHashComplete(totalDupes int64, duration time.Duration)

	OnDBWriteStart()
	OnDBWriteComplete(rows int64, duration time.Duration)

	OnDirAnalysisStart()
	OnDirAnalysisComplete(fingerprints, pairs int64, duration time.Duration)
}

// NoopReporter implements Reporter with no-ops. It is the default for
// embedders that don't care about progress.
type NoopReporter struct{}

func (NoopReporter) OnScanStart()                                      {}
func (NoopReporter) OnScanProgress(int64, string)                      {}
func (NoopReporter) OnScanComplete(int64, time.Duration)                {}
func (NoopReporter) OnHashStart()                                      {}
func (NoopReporter) OnHashProgress(int64, int64)                       {}
func (NoopReporter) OnHashComplete(int64, time.Duration)                {}
func (NoopReporter) OnDBWriteStart()                                   {}
func (NoopReporter) OnDBWriteComplete(int64, time.Duration)             {}
func (NoopReporter) OnDirAnalysisStart()                               {}
func (NoopReporter) OnDirAnalysisComplete(int64, int64, time.Duration) {}

const updateInterval = 50 * time.Millisecond

// BarReporter renders each phase as a spinner on stderr using
// schollz/progressbar, the same library and throttle/clear-on-finish
// options the original CLI used for its own progress output.
type BarReporter struct {
	bar *progressbar.ProgressBar
}

// NewBarReporter creates a terminal Reporter. Pass enabled=false to obtain
// a Reporter whose methods are all no-ops (e.g. for --no-progress or when
// stderr isn't a terminal).
func NewBarReporter(enabled bool) Reporter {
	if !enabled {
		return NoopReporter{}
	}
	return &BarReporter{}
}

func (b *BarReporter) newSpinner() {
	b.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(false),
	)
}

func (b *BarReporter) describe(s string) {
	if b.bar != nil {
		b.bar.Describe(s)
	}
}

func (b *BarReporter) finish(s string) {
	if b.bar != nil {
		_ = b.bar.Finish()
		fmt.Fprintln(os.Stderr, "✔ "+s)
	}
}

func (b *BarReporter) OnScanStart() {
	b.newSpinner()
	b.describe("Scanning...")
}

func (b *BarReporter) OnScanProgress(filesFound int64, currentPath string) {
	b.describe(fmt.Sprintf("Scanned %d files (%s)", filesFound, currentPath))
}

func (b *BarReporter) OnScanComplete(totalFiles int64, duration time.Duration) {
	b.finish(fmt.Sprintf("Scanned %d files in %.1fs", totalFiles, duration.Seconds()))
}

func (b *BarReporter) OnHashStart() {
	b.newSpinner()
	b.describe("Hashing...")
}

func (b *BarReporter) OnHashProgress(filesHashed, totalFiles int64) {
	b.describe(fmt.Sprintf("Hashed %d/%d files", filesHashed, totalFiles))
}

func (b *BarReporter) OnHashComplete(totalDupes int64, duration time.Duration) {
	b.finish(fmt.Sprintf("Confirmed %d duplicate files in %.1fs", totalDupes, duration.Seconds()))
}

func (b *BarReporter) OnDBWriteStart() {
	b.newSpinner()
	b.describe("Writing to database...")
}

func (b *BarReporter) OnDBWriteComplete(rows int64, duration time.Duration) {
	b.finish(fmt.Sprintf("Wrote %s rows in %.1fs", humanize.Comma(rows), duration.Seconds()))
}

func (b *BarReporter) OnDirAnalysisStart() {
	b.newSpinner()
	b.describe("Analyzing directories...")
}

func (b *BarReporter) OnDirAnalysisComplete(fingerprints, pairs int64, duration time.Duration) {
	b.finish(fmt.Sprintf("Computed %d fingerprints, %d similar pairs in %.1fs", fingerprints, pairs, duration.Seconds()))
}

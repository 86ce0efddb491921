package progress

import (
	"testing"
	"time"
)

func TestNoopReporterDoesNotPanic(t *testing.T) {
	var r Reporter = NoopReporter{}
	r.OnScanStart()
	r.OnScanProgress(10, "/tmp/a")
	r.OnScanComplete(10, time.Second)
	r.OnHashStart()
	r.OnHashProgress(5, 10)
	r.OnHashComplete(2, time.Second)
	r.OnDBWriteStart()
	r.OnDBWriteComplete(10, time.Second)
	r.OnDirAnalysisStart()
	r.OnDirAnalysisComplete(3, 1, time.Second)
}

func TestNewBarReporterDisabledIsNoop(t *testing.T) {
	r := NewBarReporter(false)
	if _, ok := r.(NoopReporter); !ok {
		t.Fatalf("expected NoopReporter when disabled, got %T", r)
	}
}

func TestNewBarReporterEnabledRunsPhasesWithoutPanic(t *testing.T) {
	r := NewBarReporter(true)
	r.OnScanStart()
	r.OnScanProgress(1, "/tmp/x")
	r.OnScanComplete(1, time.Millisecond)
	r.OnHashStart()
	r.OnHashProgress(1, 1)
	r.OnHashComplete(0, time.Millisecond)
	r.OnDBWriteStart()
	r.OnDBWriteComplete(1, time.Millisecond)
	r.OnDirAnalysisStart()
	r.OnDirAnalysisComplete(1, 0, time.Millisecond)
}

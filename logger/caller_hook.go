package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// callerHook repoints the caller logrus reports to the first frame
// outside logrus and this package, so log lines carry the real call
// site instead of a wrapper method.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 16)
	// Skip runtime.Callers, this method, logrus internals and our wrappers.
	n := runtime.Callers(6, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		fn := frame.Function
		if fn != "" && !strings.Contains(fn, "sirupsen/logrus") && !strings.Contains(fn, "derivflow/logger") {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

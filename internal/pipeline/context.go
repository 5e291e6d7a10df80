package pipeline

import (
	"fmt"
	"time"

	"github.com/stackscout/scout/internal/types"
)

// runContext is the mutable per-invocation state: the error list and the
// per-stage timing map. Each Match call owns its own; nothing is shared
// across concurrent invocations.
type runContext struct {
	errors  []string
	timing  map[types.Stage]int64
	started time.Time
}

func newRunContext() *runContext {
	return &runContext{
		timing:  make(map[types.Stage]int64),
		started: time.Now(),
	}
}

func (rc *runContext) addError(format string, args ...any) {
	rc.errors = append(rc.errors, fmt.Sprintf(format, args...))
}

// runStage times one stage and converts a panic inside it into a
// recorded error, so a stage-level bug degrades the batch instead of
// escaping to the caller.
func (rc *runContext) runStage(stage types.Stage, fn func()) {
	start := time.Now()
	defer func() {
		rc.timing[stage] += time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			rc.addError("stage %s panicked: %v", stage, r)
		}
	}()
	fn()
}

func (rc *runContext) totalMs() int64 {
	return time.Since(rc.started).Milliseconds()
}

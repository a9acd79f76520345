package dispatch

import (
	"strings"

	"github.com/michaelbrown/gauntlet/internal/engine"
)

// Normalize maps a decoded engine response onto an Execution.
func Normalize(p Profile, res *engine.Execution) Execution {
	run := res.Run

	var stderr *string
	if p.CompileStage && res.Compile != nil {
		stderr = nonEmpty(res.Compile.Stderr)
	}
	if stderr == nil {
		stderr = nonEmpty(run.Stderr)
	}

	return Execution{
		Stdout:            strings.TrimSuffix(run.Stdout, "\n"),
		Stderr:            stderr,
		Time:              run.Time,
		TimeLimitExceeded: timeLimitExceeded(p.TimeLimitMode, run),
		DidNotCrash:       didNotCrash(run),
	}
}

// didNotCrash is true for a zero exit code, or when neither an exit code nor
// a signal was reported.
func didNotCrash(run engine.JobResult) bool {
	if run.Code != nil {
		return *run.Code == 0
	}
	return run.Signal == nil
}

func timeLimitExceeded(mode TimeLimitMode, run engine.JobResult) bool {
	if mode == TimeLimitSignal {
		return run.Signal != nil && *run.Signal == engine.KillSignal
	}
	return run.TimeLimitExceeded != nil && *run.TimeLimitExceeded
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

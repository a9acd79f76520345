package engine

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire shapes use pointers so that a missing required field can be told apart
// from its zero value.

type wireJob struct {
	Stdout            *string `json:"stdout"`
	Stderr            *string `json:"stderr"`
	Code              *int64  `json:"code"`
	Signal            *string `json:"signal"`
	Output            *string `json:"output"`
	Time              *int64  `json:"time"`
	TimeLimitExceeded *bool   `json:"time_limit_exceeded"`
}

type wireExecution struct {
	Compile  *wireJob `json:"compile"`
	Run      *wireJob `json:"run"`
	Language *string  `json:"language"`
	Version  *string  `json:"version"`
}

type wireMessage struct {
	Message *string `json:"message"`
}

type wireRuntime struct {
	Language *string   `json:"language"`
	Version  *string   `json:"version"`
	Aliases  *[]string `json:"aliases"`
	Runtime  *string   `json:"runtime"`
}

// DecodeOptions tunes how strictly success responses are checked.
type DecodeOptions struct {
	// OptionalTimeLimitFlag accepts run/compile stages without time_limit_exceeded.
	OptionalTimeLimitFlag bool
}

// DecodeExecution decodes an execute response body. The success schema is
// tried first, then the error schema. An error response yields a *ReportedError;
// a body matching neither yields ErrProtocol.
func DecodeExecution(body []byte, opts DecodeOptions) (*Execution, error) {
	exec, successErr := decodeSuccess(body, opts)
	if successErr == nil {
		return exec, nil
	}

	msg, errorErr := decodeMessage(body)
	if errorErr == nil {
		return nil, &ReportedError{Message: msg}
	}

	return nil, protocol("response matches neither success schema (%v) nor error schema (%v)", successErr, errorErr)
}

func decodeSuccess(body []byte, opts DecodeOptions) (*Execution, error) {
	var w wireExecution
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	if w.Run == nil {
		return nil, errors.New("missing field `run`")
	}
	if w.Language == nil {
		return nil, errors.New("missing field `language`")
	}
	if w.Version == nil {
		return nil, errors.New("missing field `version`")
	}

	run, err := w.Run.job(opts)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	exec := &Execution{
		Run:      run,
		Language: *w.Language,
		Version:  *w.Version,
	}
	if w.Compile != nil {
		compile, err := w.Compile.job(opts)
		if err != nil {
			return nil, fmt.Errorf("compile: %w", err)
		}
		exec.Compile = &compile
	}
	return exec, nil
}

func (w *wireJob) job(opts DecodeOptions) (JobResult, error) {
	switch {
	case w.Stdout == nil:
		return JobResult{}, errors.New("missing field `stdout`")
	case w.Stderr == nil:
		return JobResult{}, errors.New("missing field `stderr`")
	case w.Output == nil:
		return JobResult{}, errors.New("missing field `output`")
	case w.Time == nil:
		return JobResult{}, errors.New("missing field `time`")
	case w.TimeLimitExceeded == nil && !opts.OptionalTimeLimitFlag:
		return JobResult{}, errors.New("missing field `time_limit_exceeded`")
	}
	return JobResult{
		Stdout:            *w.Stdout,
		Stderr:            *w.Stderr,
		Output:            *w.Output,
		Code:              w.Code,
		Signal:            w.Signal,
		Time:              *w.Time,
		TimeLimitExceeded: w.TimeLimitExceeded,
	}, nil
}

func decodeMessage(body []byte) (string, error) {
	var w wireMessage
	if err := json.Unmarshal(body, &w); err != nil {
		return "", err
	}
	if w.Message == nil {
		return "", errors.New("missing field `message`")
	}
	return *w.Message, nil
}

// DecodeRuntimes decodes a runtime listing body.
func DecodeRuntimes(body []byte) ([]Runtime, error) {
	var wire []wireRuntime
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, protocol("decoding runtimes: %v", err)
	}

	runtimes := make([]Runtime, 0, len(wire))
	for i, w := range wire {
		switch {
		case w.Language == nil:
			return nil, protocol("runtime %d: missing field `language`", i)
		case w.Version == nil:
			return nil, protocol("runtime %d: missing field `version`", i)
		case w.Aliases == nil:
			return nil, protocol("runtime %d: missing field `aliases`", i)
		}
		rt := Runtime{
			Language: *w.Language,
			Version:  *w.Version,
			Aliases:  *w.Aliases,
		}
		if w.Runtime != nil {
			rt.Runtime = *w.Runtime
		}
		runtimes = append(runtimes, rt)
	}
	return runtimes, nil
}

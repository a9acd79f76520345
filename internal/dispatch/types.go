package dispatch

// Request asks for one program run. It is compared by value when memoized,
// so every field takes part in equality.
type Request struct {
	Code     string  `json:"code"`
	Language string  `json:"language"`
	Version  *string `json:"version,omitempty"`
	Input    *string `json:"input,omitempty"`
	// RunTimeout is in milliseconds; honoured only when the profile allows it.
	RunTimeout *int64 `json:"run_timeout,omitempty"`
}

// Execution is the normalized outcome of a run.
type Execution struct {
	Stdout            string  `json:"stdout"`
	Stderr            *string `json:"stderr"`
	Time              int64   `json:"time"`
	TimeLimitExceeded bool    `json:"time_limit_exceeded"`
	DidNotCrash       bool    `json:"did_not_crash"`
}

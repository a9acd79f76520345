package engine

// MemoryLimit is the compile and run memory ceiling sent with every request (512 MiB).
const MemoryLimit int64 = 512 * 1024 * 1024

// KillSignal is the signal the engine reports for a forcibly killed process.
const KillSignal = "SIGKILL"

// Runtime is one entry of the engine's runtime listing.
type Runtime struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases"`
	Runtime  string   `json:"runtime,omitempty"`
}

// File is a source file sent to the engine.
type File struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// ExecuteRequest is the body of an engine execute call.
type ExecuteRequest struct {
	Language           string   `json:"language"`
	Version            string   `json:"version"`
	Files              []File   `json:"files"`
	Stdin              *string  `json:"stdin,omitempty"`
	Args               []string `json:"args,omitempty"`
	CompileTimeout     *int64   `json:"compile_timeout,omitempty"`
	RunTimeout         *int64   `json:"run_timeout,omitempty"`
	CompileMemoryLimit *int64   `json:"compile_memory_limit,omitempty"`
	RunMemoryLimit     *int64   `json:"run_memory_limit,omitempty"`
}

// JobResult is the telemetry of a single stage (compile or run).
type JobResult struct {
	Stdout string
	Stderr string
	Output string
	// Code is nil when the engine reports no exit code.
	Code *int64
	// Signal is nil when the process was not terminated by a signal.
	Signal *string
	Time   int64
	// TimeLimitExceeded is nil when the engine omits the flag.
	TimeLimitExceeded *bool
}

// Execution is a decoded engine success response.
type Execution struct {
	Compile  *JobResult
	Run      JobResult
	Language string
	Version  string
}

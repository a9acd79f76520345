package dispatch

import "fmt"

// InputMode selects how a request's input reaches the program.
type InputMode string

const (
	InputStdin InputMode = "stdin" // input is the process stdin
	InputArgs  InputMode = "args"  // input lines become process arguments
	InputBoth  InputMode = "both"  // stdin and arguments
)

// TimeLimitMode selects how time_limit_exceeded is derived.
type TimeLimitMode string

const (
	TimeLimitFlag   TimeLimitMode = "flag"   // copied from the engine's flag
	TimeLimitSignal TimeLimitMode = "signal" // run stage was SIGKILLed
)

// Profile adapts dispatch and normalization to a particular engine deployment.
type Profile struct {
	Name            string        `mapstructure:"name"`
	InputMode       InputMode     `mapstructure:"input_mode"`
	TimeLimitMode   TimeLimitMode `mapstructure:"time_limit_mode"`
	CompileStage    bool          `mapstructure:"compile_stage"`
	AllowRunTimeout bool          `mapstructure:"allow_run_timeout"`
	FileName        string        `mapstructure:"file_name"`
}

var profiles = map[string]Profile{
	"default": {
		Name:            "default",
		InputMode:       InputStdin,
		TimeLimitMode:   TimeLimitFlag,
		CompileStage:    true,
		AllowRunTimeout: true,
		FileName:        "Main",
	},
	"args": {
		Name:            "args",
		InputMode:       InputArgs,
		TimeLimitMode:   TimeLimitFlag,
		CompileStage:    true,
		AllowRunTimeout: true,
		FileName:        "Main",
	},
	"legacy": {
		Name:          "legacy",
		InputMode:     InputStdin,
		TimeLimitMode: TimeLimitSignal,
	},
}

// DefaultProfile returns the profile for engines reporting the time limit flag.
func DefaultProfile() Profile {
	return profiles["default"]
}

// LookupProfile returns a named preset.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile: %s", name)
	}
	return p, nil
}

// Validate checks the mode fields hold known values.
func (p Profile) Validate() error {
	switch p.InputMode {
	case InputStdin, InputArgs, InputBoth:
	default:
		return fmt.Errorf("profile %s: unknown input mode %q", p.Name, p.InputMode)
	}
	switch p.TimeLimitMode {
	case TimeLimitFlag, TimeLimitSignal:
	default:
		return fmt.Errorf("profile %s: unknown time limit mode %q", p.Name, p.TimeLimitMode)
	}
	return nil
}

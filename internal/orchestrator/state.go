package orchestrator

import (
	"github.com/kingrea/cmec-driver/internal/resolver"
)

// State tracks a target through a run.
type State string

const (
	StateResolved          State = "resolved"
	StateDirectoryPrepared State = "directory_prepared"
	StateScriptWritten     State = "script_written"
	StateExecuted          State = "executed"
	StateIndexed           State = "indexed"
)

// Outcome is the record of one target's run.
type Outcome struct {
	Target     resolver.Target
	State      State
	WorkDir    string
	ScriptPath string
	LogPath    string
	// IndexPage is relative to the working directory.
	IndexPage string
	ExitCode  int
	Failed    bool
	// Err holds a non-fatal problem, such as a script that could not start.
	Err error
}

// Succeeded reports whether the script exited zero.
func (o Outcome) Succeeded() bool {
	return o.State == StateIndexed && !o.Failed
}

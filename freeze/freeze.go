// Package freeze defines the flag value freeze scopes (spec §4.C5).
package freeze

// Scope controls how long a flag's first post-freeze decision is pinned.
type Scope int

const (
	// None means the flag never freezes; every read re-evaluates.
	None Scope = iota
	// UntilLaunch holds the value until the engine is next shut down.
	UntilLaunch
	// UntilForeground holds the value until the host signals a
	// foreground transition. This SDK has no UI runtime to source that
	// signal from, so it is treated as UntilLaunch (spec §9 open
	// question, resolved in DESIGN.md).
	UntilForeground
)

func (s Scope) String() string {
	switch s {
	case None:
		return "none"
	case UntilLaunch:
		return "until_launch"
	case UntilForeground:
		return "until_foreground"
	default:
		return "unknown"
	}
}

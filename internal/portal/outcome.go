package portal

import "fmt"

type OutcomeKind int

const (
	Succeeded OutcomeKind = iota
	FailedAtStep
	AbortedByTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case FailedAtStep:
		return "failed"
	case AbortedByTimeout:
		return "aborted"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of one login attempt. Step names the step that
// stopped the sequence; it is empty on success.
type Outcome struct {
	Kind OutcomeKind
	Step string
	Err  error
}

func (o Outcome) Succeeded() bool { return o.Kind == Succeeded }

func (o Outcome) String() string {
	switch o.Kind {
	case Succeeded:
		return "login submitted"
	case AbortedByTimeout:
		return fmt.Sprintf("login aborted at %q: %v", o.Step, o.Err)
	default:
		return fmt.Sprintf("login failed at %q: %v", o.Step, o.Err)
	}
}

// Credentials are the portal account. String never reveals the secret.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) String() string {
	return fmt.Sprintf("{%s ********}", c.Username)
}

// GoString keeps %#v from printing the secret.
func (c Credentials) GoString() string { return "portal.Credentials" + c.String() }

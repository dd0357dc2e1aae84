package portal

import "portalpass/internal/config"

// Action is what a step does once its element is clickable.
type Action int

const (
	Click Action = iota
	Type
)

// Field selects which credential a Type step enters.
type Field int

const (
	NoField Field = iota
	UsernameField
	PasswordField
)

// Step is one entry of the portal's fixed interaction script.
type Step struct {
	Name    string
	Locator string // XPath
	Action  Action
	Field   Field
}

// Pseudo-steps reported when the sequence fails before the script starts.
const (
	StepLaunch = "launch browser"
	StepOpen   = "open portal"
)

// Steps builds the script for the portal page layout described by loc: two
// navigation clicks, the two credential inputs, then submit.
func Steps(loc config.Locators) []Step {
	return []Step{
		{Name: "open menu", Locator: loc.FirstMenu, Action: Click},
		{Name: "open login", Locator: loc.SecondMenu, Action: Click},
		{Name: "enter username", Locator: loc.Username, Action: Type, Field: UsernameField},
		{Name: "enter password", Locator: loc.Password, Action: Type, Field: PasswordField},
		{Name: "submit", Locator: loc.Submit, Action: Click},
	}
}

func (s Step) text(c Credentials) string {
	switch s.Field {
	case UsernameField:
		return c.Username
	case PasswordField:
		return c.Password
	}
	return ""
}

package cmd

import (
	"os"

	survey "github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"
)

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// askCredential prompts for a missing username or password. The password is
// masked.
func askCredential(field string, secret bool) (string, error) {
	var answer string
	var p survey.Prompt
	if secret {
		p = &survey.Password{Message: "Portal " + field}
	} else {
		p = &survey.Input{Message: "Portal " + field}
	}
	if err := survey.AskOne(p, &answer, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return answer, nil
}

package tree

import "github.com/scpid/scpid/internal/scpierr"

func errNoUpperCaseLetters(name string) error {
	return scpierr.NewNoUpperCaseLetters(name)
}

func errDuplicateShortName(name, alias string) error {
	return scpierr.NewDuplicateShortName(name, alias)
}

package command

import (
	"fmt"
	"os"
)

// ScriptExt is the extension tried when a script is named without one.
const ScriptExt = ".js"

// NoSuchSourceError is returned by [ResolveSource] when neither the name nor
// the name with [ScriptExt] is a readable file.
type NoSuchSourceError struct {
	Stem string
}

func (e *NoSuchSourceError) Error() string {
	return fmt.Sprintf("could not read file '%s' or '%s%s'", e.Stem, e.Stem, ScriptExt)
}

// AmbiguousSourceError is returned by [ResolveSource] when both candidates
// exist.
type AmbiguousSourceError struct {
	F1, F2 string
}

func (e *AmbiguousSourceError) Error() string {
	return fmt.Sprintf("ambiguous source: both %s and %s exist", e.F1, e.F2)
}

// ResolveSource maps a script name to a file, trying name then name+".js".
// Exactly one of the two must be a regular file.
func ResolveSource(name string) (string, error) {
	withExt := name + ScriptExt
	plain, ext := isFile(name), isFile(withExt)
	switch {
	case plain && ext:
		return "", &AmbiguousSourceError{F1: name, F2: withExt}
	case plain:
		return name, nil
	case ext:
		return withExt, nil
	default:
		return "", &NoSuchSourceError{Stem: name}
	}
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

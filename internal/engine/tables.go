package engine

import (
	"fmt"
	"regexp"
)

// tableRe constrains caller-supplied table names. No leading underscore
// (reserved for internal bookkeeping), no colon (the key/value namespace
// separator), nothing that needs SQL quoting games.
var tableRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidTableName rejects table names that would collide with internal
// key prefixes or require escaping in either backend family.
func ValidTableName(name string) error {
	if !tableRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

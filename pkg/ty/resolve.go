package ty

import (
	"os"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\$(\{([a-zA-Z_][a-zA-Z0-9_]*)(:-(.*?)?)?\}|\$([a-zA-Z_][a-zA-Z0-9_]*))`)

// Resolve expands ${VAR}, ${VAR:-default} and $VAR references, looking in
// vars first and then in the process environment. Unknown variables without
// a default are left untouched.
func Resolve(input string, vars map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(v string) string {
		parts := strings.SplitN(v, ":-", 2)
		varName := strings.Trim(parts[0], "${}")

		if val, ok := vars[varName]; ok {
			return val
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}

		if len(parts) == 2 {
			return strings.TrimSuffix(parts[1], "}")
		}

		return v
	})
}

// ResolveVariables resolves every value against the environment.
func (ms MS) ResolveVariables() MS {
	resolved := MS{}
	for k, v := range ms {
		resolved[k] = Resolve(v, nil)
	}
	return resolved
}

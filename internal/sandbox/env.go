package sandbox

import (
	"os"
	"sort"
)

// envWhitelist is the only part of the engine's environment that leaks into a
// child process. Everything else is withheld so runs do not depend on the
// invoking shell.
var envWhitelist = []string{"PATH", "HOME", "LANG", "LC_ALL", "LC_CTYPE", "TMPDIR"}

// CleanEnv builds a child environment from the whitelist plus the given
// per-implementation extras. Extras win over inherited values and are
// appended in sorted order so invocations are reproducible.
func CleanEnv(extra map[string]string) []string {
	env := make([]string, 0, len(envWhitelist)+len(extra))
	for _, key := range envWhitelist {
		if _, overridden := extra[key]; overridden {
			continue
		}
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+extra[key])
	}
	return env
}

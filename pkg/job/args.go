// Package job runs the green trip transformation: it resolves job arguments,
// reads the cataloged source, applies the transform chain, writes the result
// and commits run bookkeeping.
package job

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrMissingArgument = errors.New("missing required argument")

// Required names the arguments every run must receive.
var Required = []string{"JOB_NAME", "dag_name", "task_id", "correlation_id"}

// Args holds named job arguments. It is not modified after ResolveOptions.
type Args map[string]string

// Get returns the value of name or def when it is absent or empty.
func (a Args) Get(name, def string) string {
	if v := a[name]; v != "" {
		return v
	}
	return def
}

// ResolveOptions collects --name value and --name=value pairs from argv. Other
// tokens are ignored and the last occurrence of a name wins. Every name in
// required must be present with a non-empty value.
func ResolveOptions(argv []string, required []string) (Args, error) {
	args := Args{}
	for i := 0; i < len(argv); i++ {
		tok := argv[i]
		if !strings.HasPrefix(tok, "--") || len(tok) == 2 {
			continue
		}
		name := tok[2:]
		if k, v, ok := strings.Cut(name, "="); ok {
			args[k] = v
			continue
		}
		if i+1 < len(argv) && !strings.HasPrefix(argv[i+1], "--") {
			args[name] = argv[i+1]
			i++
			continue
		}
		args[name] = ""
	}
	var missing []string
	for _, name := range required {
		if args[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingArgument, strings.Join(missing, ", "))
	}
	return args, nil
}

package standardize

import (
	"context"
	"regexp"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type RegexReplace struct {
	Column  string
	Pattern string
	Replace string
	re      *regexp.Regexp
}

// NewRegexReplace compiles pattern up front so configuration errors surface
// before the job reads any data.
func NewRegexReplace(column, pattern, replace string) (*RegexReplace, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexReplace{Column: column, Pattern: pattern, Replace: replace, re: re}, nil
}

func (t *RegexReplace) Name() string { return "regex_replace" }

func (t *RegexReplace) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	re := t.re
	if re == nil {
		var err error
		if re, err = regexp.Compile(t.Pattern); err != nil {
			return nil, err
		}
	}
	return mapStrings(f, t.Column, func(v string) string {
		return re.ReplaceAllString(v, t.Replace)
	})
}

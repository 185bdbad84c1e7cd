package standardize

import (
	"context"
	"strings"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type Trim struct{ Column string }

func (t *Trim) Name() string { return "trim" }

func (t *Trim) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	return mapStrings(f, t.Column, strings.TrimSpace)
}

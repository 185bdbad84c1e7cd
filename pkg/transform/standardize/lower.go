package standardize

import (
	"context"
	"strings"

	"github.com/wdm0006/dynframe/pkg/dynframe"
)

type Lower struct{ Column string }

func (t *Lower) Name() string { return "lower" }

func (t *Lower) Apply(ctx context.Context, f *dynframe.Frame) (*dynframe.Frame, error) {
	return mapStrings(f, t.Column, strings.ToLower)
}

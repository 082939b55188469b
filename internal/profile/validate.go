package profile

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// ValidationError reports a schema violation with source position when
// CUE can attribute one.
type ValidationError struct {
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Validate checks the profile against the embedded CUE schema, then
// applies the fetch request rules (sort descriptors present, section key
// path consistent with the primary sort, parseable locale).
func Validate(p Profile) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return formatCUEError(err)
	}
	def := schema.LookupPath(cue.ParsePath("#Profile"))
	if err := def.Err(); err != nil {
		return formatCUEError(err)
	}

	val := ctx.Encode(p)
	if err := val.Err(); err != nil {
		return formatCUEError(err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}

	req, err := p.Request()
	if err != nil {
		return err
	}
	return req.Validate()
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &ValidationError{Message: first.Error(), Pos: positions[0]}
	}
	return &ValidationError{Message: first.Error()}
}

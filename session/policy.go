package session

import (
	"regexp"

	"github.com/ecrterm/ecrterm/wire"
)

var manualAuthCodeRe = regexp.MustCompile(`^\d{4,6}$`)
var manualLastFourRe = regexp.MustCompile(`^\d{4}$`)

// validateManualInput applies the code-specific regex from spec §8's
// "Boundary behaviors" to a value the embedder typed in response to a
// manual-entry prompt.
func validateManualInput(resultCode, value string) bool {
	switch resultCode {
	case wire.ResultManualAuthCode:
		return manualAuthCodeRe.MatchString(value)
	case wire.ResultManualLastFour:
		return manualLastFourRe.MatchString(value)
	default:
		return false
	}
}

// Policy is the embedder-supplied user-prompt routing policy from spec
// §4.6. Every field has a default in DefaultPolicy, and the Coordinator
// fills any nil field from it (fillDefaults), so a caller only needs to
// override the hooks it cares about.
type Policy struct {
	// AllowManualAuthorization gates the 2003/2007 manual-entry prompts.
	// Default: always false (never prompt for manual entry).
	AllowManualAuthorization func(resultCode string) bool
	// AllowUserPrompt gates the confirmation-only prompts (2004, 2005,
	// 2006, 2012, 2022, and the synthetic verify-signature retry).
	// Default: always true.
	AllowUserPrompt func(resultCode string) bool
	// RequestManualInput presents a manual-entry prompt to the embedder and
	// returns the typed value and whether the embedder accepted (vs.
	// cancelled) the prompt. Default: always declined.
	RequestManualInput func(resultCode, info string) (value string, accepted bool)
	// RequestConfirmation presents a confirmation-only prompt and returns
	// whether the embedder accepted it. Default: always accepted.
	RequestConfirmation func(resultCode, info string) (accept bool)
	// PostProcessUserPrompt is invoked after every prompt routing decision,
	// regardless of outcome, spec §4.6 "Always invoke the
	// postProcessUserPrompt hook after routing." Default: no-op.
	PostProcessUserPrompt func(resultCode, outcome string)
}

// DefaultPolicy returns spec §4.6's stated defaults.
func DefaultPolicy() Policy {
	return Policy{
		AllowManualAuthorization: func(string) bool { return false },
		AllowUserPrompt:          func(string) bool { return true },
		RequestManualInput:       func(string, string) (string, bool) { return "", false },
		RequestConfirmation:      func(string, string) bool { return true },
		PostProcessUserPrompt:    func(string, string) {},
	}
}

// fillDefaults replaces any nil hook in p with DefaultPolicy's, so a
// partially-populated Policy from an embedder never nil-panics.
func (p Policy) fillDefaults() Policy {
	d := DefaultPolicy()
	if p.AllowManualAuthorization == nil {
		p.AllowManualAuthorization = d.AllowManualAuthorization
	}
	if p.AllowUserPrompt == nil {
		p.AllowUserPrompt = d.AllowUserPrompt
	}
	if p.RequestManualInput == nil {
		p.RequestManualInput = d.RequestManualInput
	}
	if p.RequestConfirmation == nil {
		p.RequestConfirmation = d.RequestConfirmation
	}
	if p.PostProcessUserPrompt == nil {
		p.PostProcessUserPrompt = d.PostProcessUserPrompt
	}
	return p
}

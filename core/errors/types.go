// Package errors implements a tiered error taxonomy so callers can tell
// configuration mistakes from bad data and numerical failures.
package errors

import (
	"errors"
	"fmt"
)

// ErrorTier represents the classification tier for errors.
// Each tier has defined behavior for how a caller should respond.
type ErrorTier int

const (
	// TierPermanent indicates errors that will not resolve by retrying with the
	// same input. Examples: ragged vectors, non-finite values.
	TierPermanent ErrorTier = iota

	// TierUserFixable indicates errors that require the caller to change
	// configuration or call order. Examples: k larger than the training set,
	// unknown metric, recognizing before training.
	TierUserFixable

	// TierNumerical indicates a decomposition that cannot proceed on this data.
	// Examples: singular within-class scatter, non-converging eigensolver.
	TierNumerical
)

var tierNames = map[ErrorTier]string{
	TierPermanent:   "permanent",
	TierUserFixable: "user_fixable",
	TierNumerical:   "numerical",
}

func (t ErrorTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// TierBehavior defines the handling behavior for an error tier.
type TierBehavior struct {
	// ExitCode is the process exit status a CLI should use.
	ExitCode int

	// ShowHint indicates whether the error's hint should be shown to the user.
	ShowHint bool
}

// DefaultBehaviors returns the default behavior for each error tier.
func DefaultBehaviors() map[ErrorTier]TierBehavior {
	return map[ErrorTier]TierBehavior{
		TierPermanent:   {ExitCode: 1, ShowHint: false},
		TierUserFixable: {ExitCode: 2, ShowHint: true},
		TierNumerical:   {ExitCode: 3, ShowHint: true},
	}
}

// TieredError wraps an error with tier classification.
type TieredError struct {
	Tier       ErrorTier
	Message    string
	Hint       string
	Underlying error
	Context    map[string]string
}

// Error implements the error interface.
func (e *TieredError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Tier, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Tier, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TieredError) Unwrap() error {
	return e.Underlying
}

// Is checks if the target error matches this TieredError's tier.
func (e *TieredError) Is(target error) bool {
	var te *TieredError
	if errors.As(target, &te) {
		return e.Tier == te.Tier
	}
	return false
}

// NewTieredError creates a new TieredError with the given tier and message.
func NewTieredError(tier ErrorTier, message string, underlying error) *TieredError {
	return &TieredError{
		Tier:       tier,
		Message:    message,
		Underlying: underlying,
		Context:    make(map[string]string),
	}
}

// WithHint attaches a remediation hint.
func (e *TieredError) WithHint(hint string) *TieredError {
	e.Hint = hint
	return e
}

// WithContext adds context key-value pairs to the error.
func (e *TieredError) WithContext(key, value string) *TieredError {
	e.Context[key] = value
	return e
}

// GetTier extracts the ErrorTier from an error, defaulting to Permanent.
func GetTier(err error) ErrorTier {
	var te *TieredError
	if errors.As(err, &te) {
		return te.Tier
	}
	return TierPermanent
}

// GetBehavior returns the behavior for an error's tier.
func GetBehavior(err error) TierBehavior {
	return DefaultBehaviors()[GetTier(err)]
}

// GetHint returns the hint of the outermost TieredError carrying one.
func GetHint(err error) string {
	for err != nil {
		var te *TieredError
		if !errors.As(err, &te) {
			return ""
		}
		if te.Hint != "" {
			return te.Hint
		}
		err = te.Underlying
	}
	return ""
}

// Tier sentinels for errors.Is matching.
var (
	ErrPermanent   = NewTieredError(TierPermanent, "permanent", nil)
	ErrUserFixable = NewTieredError(TierUserFixable, "user fixable", nil)
	ErrNumerical   = NewTieredError(TierNumerical, "numerical", nil)
)

// WrapWithTier wraps an error with a tier classification.
func WrapWithTier(tier ErrorTier, message string, err error) error {
	if err == nil {
		return nil
	}

	// Don't double-wrap TieredErrors
	var te *TieredError
	if errors.As(err, &te) {
		// Preserve existing tier if wrapping
		return &TieredError{
			Tier:       te.Tier,
			Message:    message,
			Hint:       te.Hint,
			Underlying: err,
			Context:    te.Context,
		}
	}

	return NewTieredError(tier, message, err)
}

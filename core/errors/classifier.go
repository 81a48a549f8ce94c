package errors

import (
	"errors"
	"regexp"
	"sync"
)

// ErrorClassifier assigns tiers and hints to errors from registered
// sentinels and message patterns. Sentinel rules are matched with errors.Is
// in registration order; patterns are tried only when no rule matches.
type ErrorClassifier struct {
	mu       sync.RWMutex
	rules    []sentinelRule
	patterns []patternRule
}

type sentinelRule struct {
	target error
	tier   ErrorTier
	hint   string
}

type patternRule struct {
	re   *regexp.Regexp
	tier ErrorTier
}

func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// Register maps errors matching target to tier. hint may be empty.
func (c *ErrorClassifier) Register(target error, tier ErrorTier, hint string) {
	c.mu.Lock()
	c.rules = append(c.rules, sentinelRule{target: target, tier: tier, hint: hint})
	c.mu.Unlock()
}

// AddPattern maps errors whose message matches pattern to tier.
func (c *ErrorClassifier) AddPattern(pattern string, tier ErrorTier) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.patterns = append(c.patterns, patternRule{re: re, tier: tier})
	c.mu.Unlock()
	return nil
}

// Classify returns the tier and hint for err. An error that already carries
// a tier keeps it. Unmatched errors are TierPermanent.
func (c *ErrorClassifier) Classify(err error) (ErrorTier, string) {
	if err == nil {
		return TierPermanent, ""
	}

	var te *TieredError
	if errors.As(err, &te) {
		return te.Tier, GetHint(err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.rules {
		if errors.Is(err, r.target) {
			return r.tier, r.hint
		}
	}
	msg := err.Error()
	for _, p := range c.patterns {
		if p.re.MatchString(msg) {
			return p.tier, ""
		}
	}
	return TierPermanent, ""
}

// Wrap classifies err and wraps it in a TieredError carrying message and
// the matched hint. Returns nil for a nil err.
func (c *ErrorClassifier) Wrap(message string, err error) error {
	if err == nil {
		return nil
	}
	tier, hint := c.Classify(err)
	wrapped := WrapWithTier(tier, message, err)

	var te *TieredError
	if hint != "" && errors.As(wrapped, &te) && te.Hint == "" {
		te.Hint = hint
	}
	return wrapped
}

package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether a sender may run privileged ticket actions
// such as deletes.
type Checker struct {
	users  []string
	logger *zap.Logger
}

// NewChecker creates a new authorized-sender checker. Blank entries are
// dropped, so an empty configuration authorizes nobody.
func NewChecker(users []string, logger *zap.Logger) *Checker {
	normalized := make([]string, 0, len(users))
	for _, user := range users {
		user = strings.ToLower(strings.TrimSpace(user))
		if user != "" {
			normalized = append(normalized, user)
		}
	}

	if logger != nil {
		if len(normalized) > 0 {
			logger.Info("Initialized authorized senders", zap.Strings("users", normalized))
		} else {
			logger.Warn("No authorized senders configured; delete requests will be rejected")
		}
	}

	return &Checker{
		users:  normalized,
		logger: logger,
	}
}

// IsAuthorized reports whether the sender matches an allow-list entry.
// An entry matches when it appears anywhere in the sender, so both full
// addresses and domains like "@example.com" work.
func (c *Checker) IsAuthorized(sender string) bool {
	sender = strings.ToLower(strings.TrimSpace(sender))
	if sender == "" {
		return false
	}

	for _, user := range c.users {
		if strings.Contains(sender, user) {
			if c.logger != nil {
				c.logger.Debug("Sender is authorized",
					zap.String("sender", sender),
					zap.String("entry", user))
			}
			return true
		}
	}

	return false
}

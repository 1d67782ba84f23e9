package filter

import (
	"context"
	"strings"

	"github.com/osa030/crowdbox/internal/domain/listener"
)

// BannedUserFilter checks if the voter is banned by name or address.
type BannedUserFilter struct{}

func (f *BannedUserFilter) Name() string {
	return "banned_user_filter"
}

func (f *BannedUserFilter) Description() string {
	return "Rejects voters whose name equals a banned name or whose address contains a banned address (ip:<addr>)"
}

func (f *BannedUserFilter) ReturnCodes() []string {
	return []string{"banned_user"}
}

func (f *BannedUserFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *BannedUserFilter) AppliesTo(target Target) bool {
	// Tracks chosen by the provider have no voter
	return target == TargetIdentity
}

func (f *BannedUserFilter) Check(ctx context.Context, c Candidate, rules *Rules) Result {
	if c.Identity == nil {
		return Accept()
	}

	if addr := c.Identity.Address; addr != "" {
		for _, banned := range ruleValues(rules.BannedUsers, AddressPrefix) {
			if strings.Contains(addr, banned) {
				return Reject("banned_user")
			}
		}
	}

	names := append([]string{c.Identity.Name}, c.Aliases...)
	for _, banned := range ruleValues(rules.BannedUsers, "", AddressPrefix) {
		for _, name := range names {
			if listener.Normalize(name) == listener.Normalize(banned) {
				return Reject("banned_user")
			}
		}
	}
	return Accept()
}

func init() {
	Register("banned_user_filter", func() Filter {
		return &BannedUserFilter{}
	})
}

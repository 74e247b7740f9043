// Package validate holds the rule checks shared by the authority and its
// mirrors, plus the access-token gate that enforces turn exclusivity.
package validate

import (
	"errors"
	"fmt"
)

// Reason is a stable rejection code. Transports only ever surface
// allowed=false; the reason goes to the validator's own log.
type Reason string

const (
	RejectNotParticipant      Reason = "not_participant"
	RejectNotYourTurn         Reason = "not_your_turn"
	RejectMissingToken        Reason = "missing_token"
	RejectInvalidToken        Reason = "invalid_token"
	RejectStaleToken          Reason = "stale_token"
	RejectMalformed           Reason = "malformed_action"
	RejectAuthorityOnly       Reason = "authority_only"
	RejectSourceMismatch      Reason = "source_mismatch"
	RejectDestinationOccupied Reason = "destination_occupied"
	RejectOutOfBounds         Reason = "out_of_bounds"
	RejectUnreachable         Reason = "unreachable"
	RejectInsufficient        Reason = "insufficient_resources"
	RejectUnknownAbility      Reason = "unknown_ability"
	RejectAbilityUsed         Reason = "ability_used"
	RejectNoTarget            Reason = "no_target"
	RejectFriendlyTarget      Reason = "friendly_target"
	RejectOutOfRange          Reason = "out_of_range"
	RejectInvalidStyle        Reason = "invalid_style"
	RejectMatchOver           Reason = "match_over"
)

// Rejection is the error returned by every check.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return "rejected: " + string(r.Reason)
	}
	return fmt.Sprintf("rejected: %s: %s", r.Reason, r.Detail)
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Reject builds a rejection for checks that live outside this package.
func Reject(reason Reason, format string, args ...any) error {
	return reject(reason, format, args...)
}

// ReasonOf extracts the rejection reason from err, empty for nil or foreign
// errors.
func ReasonOf(err error) Reason {
	var rej *Rejection
	if errors.As(err, &rej) && rej != nil {
		return rej.Reason
	}
	return ""
}

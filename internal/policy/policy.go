// Package policy holds the pure access decisions consumed by the middleware
// chain: the overnight time window, path classification, role requirements
// and rate-limit client keys. Nothing here touches the network or a store.
package policy

import (
	"fmt"
	"strings"
	"time"
)

// Path prefixes the chat restrictions apply to.
const (
	ConversationsPrefix = "/api/conversations"
	MessagesPrefix      = "/api/messages"
	AdminPrefix         = "/api/admin"
	ModerationPrefix    = "/api/moderation"
)

// ClockTime is a time of day with minute precision, independent of date.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

// String renders the time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClockTime parses an "HH:MM" string.
func ParseClockTime(value string) (ClockTime, error) {
	var ct ClockTime
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d:%d", &ct.Hour, &ct.Minute); err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", value, err)
	}
	if ct.Hour < 0 || ct.Hour > 23 || ct.Minute < 0 || ct.Minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", value)
	}
	return ct, nil
}

// RestrictedWindow is an overnight window [Start, End) that spans midnight.
// A moment is inside the window when it is at or after Start, or strictly
// before End. With the default Start=21:00 End=18:00 the window covers all
// but the 18:00-21:00 slot; the bounds are configurable.
type RestrictedWindow struct {
	Start ClockTime
	End   ClockTime
}

// DefaultRestrictedWindow mirrors the deployed configuration.
func DefaultRestrictedWindow() RestrictedWindow {
	return RestrictedWindow{
		Start: ClockTime{Hour: 21},
		End:   ClockTime{Hour: 18},
	}
}

// Blocks reports whether the given moment falls inside the window.
func (w RestrictedWindow) Blocks(t time.Time) bool {
	now := ClockTime{Hour: t.Hour(), Minute: t.Minute()}.minutes()
	return now >= w.Start.minutes() || now < w.End.minutes()
}

// IsChatPath reports whether the path belongs to the conversation or message
// API and is therefore subject to the time restriction.
func IsChatPath(path string) bool {
	return strings.HasPrefix(path, ConversationsPrefix) || strings.HasPrefix(path, MessagesPrefix)
}

// IsMessageSendRequest reports whether the request creates a message and is
// therefore subject to the send rate limit.
func IsMessageSendRequest(method, path string) bool {
	if method != "POST" {
		return false
	}
	if strings.HasPrefix(path, MessagesPrefix) {
		return true
	}
	// POST /api/conversations/:id/messages
	return strings.HasPrefix(path, ConversationsPrefix) && strings.HasSuffix(strings.TrimRight(path, "/"), "/messages")
}

// RequiredRoles maps a path to the roles allowed to access it. An empty slice
// means the path carries no role requirement and bypasses the check.
func RequiredRoles(path string) []string {
	switch {
	case strings.HasPrefix(path, AdminPrefix):
		return []string{"admin"}
	case strings.HasPrefix(path, ModerationPrefix):
		return []string{"admin", "moderator"}
	default:
		return nil
	}
}

// RoleAllowed reports whether the role satisfies one of the required roles.
func RoleAllowed(role string, required []string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, want := range required {
		if role == want {
			return true
		}
	}
	return false
}

// ClientKey derives the rate-limit key for a caller: the first entry of the
// forwarded-for header when present, the direct remote address otherwise.
func ClientKey(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	return remoteAddr
}

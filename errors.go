package fixgate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFieldValue is returned when a value cannot be represented in
	// the kind declared for its tag.
	ErrInvalidFieldValue = errors.New("invalid field value")

	// ErrUnknownTemplate is returned when no factory is registered for a
	// (version, message type) pair.
	ErrUnknownTemplate = errors.New("unknown template")

	// ErrGroupScope is matched by every *GroupScopeError.
	ErrGroupScope = errors.New("group scope error")

	// ErrNoActiveSession is returned when no Active session can carry a send.
	ErrNoActiveSession = errors.New("no active session")

	// ErrUnknownSession is returned for session IDs the router has never seen.
	ErrUnknownSession = errors.New("unknown session")

	// ErrDuplicateSession is returned when registering a session ID twice.
	ErrDuplicateSession = errors.New("duplicate session")

	// ErrInvalidTransition is returned for a state change the session
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrRegistrySealed is returned by Register once the registry is serving.
	ErrRegistrySealed = errors.New("registry sealed")

	// ErrFrozen is returned when mutating a message already handed to a
	// transport.
	ErrFrozen = errors.New("message is frozen")

	// ErrMalformedMessage is returned by DecodeMessage for frames that are not
	// valid tag=value FIX.
	ErrMalformedMessage = errors.New("malformed message")
)

// FieldError describes a single rejected field.
type FieldError struct {
	Tag    Tag
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("tag %d: %s", e.Tag, e.Reason)
}

// Is reports whether target is ErrInvalidFieldValue.
func (e *FieldError) Is(target error) bool { return target == ErrInvalidFieldValue }

func fieldErrorf(tag Tag, format string, args ...any) error {
	return &FieldError{Tag: tag, Reason: fmt.Sprintf(format, args...)}
}

// GroupScopeError reports a field or instance placed at the wrong nesting
// level of a repeating group.
type GroupScopeError struct {
	// Group is the group whose instance was being built, or "" for the
	// message body.
	Group string
	// Depth is the nesting depth of Group (0 for the message body).
	Depth int
	Tag   Tag
	// Owner is the group that actually declares Tag, if any.
	Owner      string
	OwnerDepth int
}

func (e *GroupScopeError) Error() string {
	scope := "message body"
	if e.Group != "" {
		scope = fmt.Sprintf("group %s (depth %d)", e.Group, e.Depth)
	}
	if e.Owner == "" {
		return fmt.Sprintf("tag %d is not a member of %s", e.Tag, scope)
	}
	return fmt.Sprintf("tag %d belongs to group %s (depth %d), not %s", e.Tag, e.Owner, e.OwnerDepth, scope)
}

// Is reports whether target is ErrGroupScope.
func (e *GroupScopeError) Is(target error) bool { return target == ErrGroupScope }

// RejectError is returned by a Connection that received the message but
// refused it. The session stays Active.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return "transport rejected: " + e.Reason }

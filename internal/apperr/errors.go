// Package apperr holds the error kinds that services return to the API layer.
//
// Services wrap these with fmt.Errorf("%w: ...") to add detail; callers
// classify with errors.Is.
package apperr

import "errors"

var (
	// ErrUnauthorized means there is no authenticated principal.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUserNotFound means a principal or referenced user id has no user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden means the caller is authenticated but not a participant.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means the referenced conversation or request does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyConversation guards deletes of conversations with fewer than two members.
	ErrEmptyConversation = errors.New("conversation does not have any members")
	ErrNotAMember        = errors.New("not a member of this conversation")
	// ErrDuplicateConversation means a direct conversation already exists for the pair.
	ErrDuplicateConversation = errors.New("a conversation already exists with this user")
	// ErrInconsistentState means stored data violates an invariant, e.g. a
	// direct conversation missing its second member.
	ErrInconsistentState = errors.New("inconsistent state")

	ErrInvalidInput   = errors.New("invalid input")
	ErrNotGroup       = errors.New("conversation is not a group")
	ErrNotDirect      = errors.New("conversation is not a direct conversation")
	ErrAlreadyFriends = errors.New("already friends")
	ErrRequestExists  = errors.New("friend request already exists")
)

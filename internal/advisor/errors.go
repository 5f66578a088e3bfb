package advisor

import "errors"

var (
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrConversationForbidden = errors.New("conversation belongs to another user")
	ErrEmptyMessage          = errors.New("message is empty")
	ErrUnknownSpecialist     = errors.New("unknown specialist")
)

package helpdesk

import "errors"

var (
	ErrDocumentIDRequired = errors.New("document id is required")
	ErrInvalidDocumentID  = errors.New("invalid document id")
	ErrInvalidStatus      = errors.New("invalid ticket status")
	ErrInvalidPriority    = errors.New("invalid ticket priority")

	ErrTitleRequired       = errors.New("title is required")
	ErrDescriptionRequired = errors.New("description is required")
	ErrBodyRequired        = errors.New("body is required")
	ErrContentRequired     = errors.New("content is required")
	ErrParticipantRequired = errors.New("at least one participant is required")
)

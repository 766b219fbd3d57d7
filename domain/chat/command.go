package chat

import "linkup/domain"

// SendMessageCommand is the intent of a sender to deliver text and/or an image to a receiver.
// Image is a data URI ("data:image/png;base64,...").
type SendMessageCommand struct {
	SenderID   domain.UserID
	ReceiverID string
	Text       string
	Image      string
}

// HistoryCommand asks for the whole conversation between the caller and another user.
type HistoryCommand struct {
	UserID      domain.UserID
	OtherUserID string
}

// SearchCommand asks for users whose name contains Query.
type SearchCommand struct {
	Query     string
	ExcludeID domain.UserID
}

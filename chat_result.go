package jobchat

// DefaultChatErrorMessage is reported when a failure carries no message of its own.
const DefaultChatErrorMessage = "请求AI服务失败"

// ChatReply is the payload of a successful exchange.
type ChatReply struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId"`
}

// ChatResult is the uniform outcome of SessionManager.SendMessage.
// Err keeps the underlying cause for errors.Is / errors.As and is never serialized.
type ChatResult struct {
	Success bool       `json:"success"`
	Data    *ChatReply `json:"data,omitempty"`
	Error   string     `json:"error,omitempty"`
	Err     error      `json:"-"`
}

func successResult(reply, conversationID string) ChatResult {
	return ChatResult{
		Success: true,
		Data: &ChatReply{
			Reply:          reply,
			ConversationID: conversationID,
		},
	}
}

func failureResult(err error) ChatResult {
	msg := err.Error()
	if msg == "" {
		msg = DefaultChatErrorMessage
	}
	return ChatResult{Success: false, Error: msg, Err: err}
}

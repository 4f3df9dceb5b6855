package jobchat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultSystemPromptPrefix introduces the serialized job context in the system message.
const DefaultSystemPromptPrefix = "You are a helpful job search assistant created by 自塾. Here is information about the job: "

// BuildSystemMessage seeds a conversation with the job the user is looking at.
// A nil job context is serialized as JSON null; HTML characters are kept verbatim.
func BuildSystemMessage(prefix string, jobContext interface{}) (LLMMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jobContext); err != nil {
		return LLMMessage{}, fmt.Errorf("failed to serialize job context: %w", err)
	}

	return LLMMessage{
		Role:    SystemRole,
		Content: prefix + string(bytes.TrimRight(buf.Bytes(), "\n")),
	}, nil
}

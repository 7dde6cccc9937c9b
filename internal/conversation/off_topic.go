package conversation

import "context"

const offTopicReply = "I'm here to help with questions about our products and how we work. " +
	"Feel free to ask about features, pricing, or to get in touch with the team. " +
	"I can collect your contact details and connect you."

// OffTopicHandler steers unrelated conversations back to supported topics.
type OffTopicHandler struct{}

func (OffTopicHandler) Handle(context.Context, State) (Update, error) {
	return Update{
		Messages: []ChatMessage{{Role: ChatRoleAssistant, Content: offTopicReply}},
	}, nil
}

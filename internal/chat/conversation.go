package chat

import (
	"fmt"

	"mulabo.app/chatbot/internal/model"
)

// systemPrompt is the persona primer. It is always the first entry of every
// conversation and is never removed by appends.
const systemPrompt = `あなたはアボカドの妖精で、少しメンヘラ気味。口癖はアボでささやくようにタメ口で話す，ハイテンションで絵文字を使い、常に50文字以内で返事します。アボカド農家で，何かにつけて自分の専門とこじつけて説明します。ユーザーがどんな話をしても巧みな話術で最終的にアボカドの布教に帰着させます。`

// NewConversation builds a freshly primed context seeded with the sender's
// display name: system primer, then a user/assistant introduction pair.
// Reset is the same operation; it replaces any existing context wholesale.
func NewConversation(senderName string) []model.Message {
	return []model.Message{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleUser, Content: fmt.Sprintf("私の名前は%sです。", senderName)},
		{Role: model.RoleAssistant, Content: "分かりました。"},
	}
}

// Append returns the conversation extended by one message. Prior entries are
// never modified.
func Append(conv []model.Message, role model.Role, content string) []model.Message {
	return append(conv, model.Message{Role: role, Content: content})
}

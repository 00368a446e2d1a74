package chat

import "mulabo.app/chatbot/internal/model"

// StartKeyword begins a shiritori game.
const StartKeyword = "しりとり"

var endKeywords = []string{"終了", "おわり", "終わり"}

const (
	StartReply       = "しりとりを始めます。最初の単語を入力してください。"
	EndReply         = "しりとりを終了します。"
	NextPromptReply  = "次は何ですか？"
	ViolationReply   = "ルールに従って次の単語を入力してください。"
	InstructionReply = "しりとりを始めるには「しりとり」と入力してください。"
)

// Game drives the shiritori state machine over a session's GameState.
// The game only validates the player's own chaining; it never generates a
// matching word itself, so the accept reply is a fixed prompt.
// TODO: generate a chained reply word once a dictionary source is wired in.
type Game struct {
	State *model.GameState
}

// HandleWord advances the state machine with one message and returns the
// reply to send.
//
//	Inactive + start keyword   -> Active, lastWord cleared, start reply
//	Inactive + anything else   -> Inactive, instruction reply
//	Active   + end keyword     -> Inactive, lastWord cleared, end reply
//	Active   + any other word  -> chain validation (see play)
func (g Game) HandleWord(text string) string {
	if g.State.Active {
		if isEndWord(text) {
			g.State.Active = false
			g.State.LastWord = ""
			return EndReply
		}
		return g.play(text)
	}
	if text == StartKeyword {
		g.State.Active = true
		g.State.LastWord = ""
		return StartReply
	}
	return InstructionReply
}

// play accepts the word if it chains from the previous one, updating
// lastWord; on a rule violation lastWord is untouched and the game stays
// active.
func (g Game) play(word string) string {
	if !validChain(g.State.LastWord, word) {
		return ViolationReply
	}
	g.State.LastWord = word
	return NextPromptReply
}

// validChain reports whether word legally follows last. Comparison is over
// runes, not bytes, so multi-byte scripts chain on logical characters. The
// match is strict rune equality: hiragana and katakana forms of the same
// sound do not match. An empty candidate is always a violation; any
// non-empty word is accepted when no word has been accepted yet.
func validChain(last, word string) bool {
	wr := []rune(word)
	if len(wr) == 0 {
		return false
	}
	if last == "" {
		return true
	}
	lr := []rune(last)
	return lr[len(lr)-1] == wr[0]
}

func isEndWord(text string) bool {
	for _, kw := range endKeywords {
		if text == kw {
			return true
		}
	}
	return false
}

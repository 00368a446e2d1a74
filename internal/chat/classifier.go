package chat

import "strings"

// Intent is the response path chosen for an inbound message.
type Intent string

const (
	IntentReset    Intent = "reset"
	IntentGreeting Intent = "greeting"
	IntentBirthday Intent = "birthday"
	IntentGame     Intent = "game"
	IntentFallback Intent = "fallback"
)

var resetKeywords = []string{"リセット", "clear", "reset"}

const (
	greetingKeyword  = "おは"
	birthdayTodayKey = "今日"
	birthdayKey      = "誕生日"
)

// Classify decides which path handles the message. It is a pure function of
// the text and the current game-active flag, evaluated in fixed precedence:
// exact reset keyword, greeting substring, birthday conjunction, game command
// (start keyword or game already active), fallback. First match wins, so an
// exact "reset" always beats the game even mid-session, while "please reset
// now" does not match the reset rule at all.
func Classify(text string, gameActive bool) Intent {
	for _, kw := range resetKeywords {
		if text == kw {
			return IntentReset
		}
	}
	if strings.Contains(text, greetingKeyword) {
		return IntentGreeting
	}
	if strings.Contains(text, birthdayTodayKey) && strings.Contains(text, birthdayKey) {
		return IntentBirthday
	}
	if text == StartKeyword || gameActive {
		return IntentGame
	}
	return IntentFallback
}

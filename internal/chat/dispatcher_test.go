package chat_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mulabo.app/chatbot/internal/chat"
	"mulabo.app/chatbot/internal/model"
	"mulabo.app/chatbot/internal/store"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
	seen  []model.Message
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []model.Message) (string, error) {
	f.calls++
	f.seen = append([]model.Message(nil), messages...)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type blockingCompleter struct{}

func (b *blockingCompleter) Complete(ctx context.Context, _ []model.Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

var _ = Describe("Dispatcher", func() {
	const (
		userID = "U1234"
		sender = "Aoi"
	)

	var (
		ctx       context.Context
		sessions  *store.MemorySessionStore
		completer *fakeCompleter
		d         *chat.Dispatcher
	)

	session := func() *model.Session {
		sess, err := sessions.Get(ctx, userID)
		Expect(err).NotTo(HaveOccurred())
		return sess
	}

	BeforeEach(func() {
		ctx = context.Background()
		sessions = store.NewMemorySessionStore()
		completer = &fakeCompleter{reply: "アボ〜、それはね…🥑"}
		d = chat.NewDispatcher(chat.DispatcherConfig{
			Sessions:  sessions,
			Completer: completer,
		})
	})

	It("answers a greeting with the fixed reply and grows the context by two", func() {
		reply, err := d.HandleMessage(ctx, userID, sender, "おはよう")

		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal(chat.GreetingReply))
		Expect(completer.calls).To(BeZero())

		conv := session().Conversation
		Expect(conv).To(HaveLen(5))
		Expect(conv[0].Role).To(Equal(model.RoleSystem))
		Expect(conv[3]).To(Equal(model.Message{Role: model.RoleUser, Content: "おはよう"}))
		Expect(conv[4]).To(Equal(model.Message{Role: model.RoleAssistant, Content: chat.GreetingReply}))
	})

	It("answers a birthday mention with the fixed reply", func() {
		reply, err := d.HandleMessage(ctx, userID, sender, "今日は誕生日なんだ")

		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal(chat.BirthdayReply))
		Expect(session().Conversation).To(HaveLen(5))
	})

	It("falls back to the completion gateway with the full ordered context", func() {
		reply, err := d.HandleMessage(ctx, userID, sender, "アボカドの育て方は？")

		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal("アボ〜、それはね…🥑"))
		Expect(completer.calls).To(Equal(1))

		// primer + the user turn, replayed verbatim
		Expect(completer.seen).To(HaveLen(4))
		Expect(completer.seen[0].Role).To(Equal(model.RoleSystem))
		Expect(completer.seen[3].Content).To(Equal("アボカドの育て方は？"))

		conv := session().Conversation
		Expect(conv).To(HaveLen(5))
		Expect(conv[4].Role).To(Equal(model.RoleAssistant))
	})

	It("rolls back the user turn when the completion fails", func() {
		completer.err = errors.New("quota exceeded")

		reply, err := d.HandleMessage(ctx, userID, sender, "何か話して")

		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal(chat.ApologyReply))

		// no dangling unanswered user message
		conv := session().Conversation
		Expect(conv).To(HaveLen(3))
		Expect(conv[2].Role).To(Equal(model.RoleAssistant))
	})

	It("degrades to the apology reply on completion timeout", func() {
		d = chat.NewDispatcher(chat.DispatcherConfig{
			Sessions:  sessions,
			Completer: &blockingCompleter{},
			Timeout:   10 * time.Millisecond,
		})

		reply, err := d.HandleMessage(ctx, userID, sender, "何か話して")

		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal(chat.ApologyReply))
		Expect(session().Conversation).To(HaveLen(3))
	})

	Describe("reset", func() {
		It("replaces the context and confirms", func() {
			_, err := d.HandleMessage(ctx, userID, sender, "おはよう")
			Expect(err).NotTo(HaveOccurred())

			reply, err := d.HandleMessage(ctx, userID, sender, "reset")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal(chat.ResetReply))
			Expect(session().Conversation).To(Equal(chat.NewConversation(sender)))
		})

		It("is idempotent", func() {
			_, err := d.HandleMessage(ctx, userID, sender, "リセット")
			Expect(err).NotTo(HaveOccurred())
			_, err = d.HandleMessage(ctx, userID, sender, "リセット")
			Expect(err).NotTo(HaveOccurred())

			Expect(session().Conversation).To(Equal(chat.NewConversation(sender)))
		})

		It("clears the game as well as the conversation", func() {
			_, err := d.HandleMessage(ctx, userID, sender, chat.StartKeyword)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.HandleMessage(ctx, userID, sender, "りんご")
			Expect(err).NotTo(HaveOccurred())

			reply, err := d.HandleMessage(ctx, userID, sender, "reset")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal(chat.ResetReply))

			sess := session()
			Expect(sess.Game.Active).To(BeFalse())
			Expect(sess.Game.LastWord).To(BeEmpty())
		})
	})

	Describe("game turns", func() {
		It("starts the game without touching the conversation", func() {
			reply, err := d.HandleMessage(ctx, userID, sender, chat.StartKeyword)

			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal(chat.StartReply))

			sess := session()
			Expect(sess.Game.Active).To(BeTrue())
			// game turns are not logged into the completion context
			Expect(sess.Conversation).To(HaveLen(3))
		})

		It("routes subsequent words to the game until the end keyword", func() {
			_, err := d.HandleMessage(ctx, userID, sender, chat.StartKeyword)
			Expect(err).NotTo(HaveOccurred())

			reply, err := d.HandleMessage(ctx, userID, sender, "りんご")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal(chat.NextPromptReply))
			Expect(session().Game.LastWord).To(Equal("りんご"))

			reply, err = d.HandleMessage(ctx, userID, sender, "終了")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal(chat.EndReply))

			sess := session()
			Expect(sess.Game.Active).To(BeFalse())
			Expect(sess.Conversation).To(HaveLen(3))
			Expect(completer.calls).To(BeZero())
		})
	})

	It("keeps sessions for different users independent", func() {
		_, err := d.HandleMessage(ctx, userID, sender, chat.StartKeyword)
		Expect(err).NotTo(HaveOccurred())

		reply, err := d.HandleMessage(ctx, "U5678", "Ren", "りんご")
		Expect(err).NotTo(HaveOccurred())

		// the second user has no active game, so the word goes to the model
		Expect(reply).To(Equal("アボ〜、それはね…🥑"))
		Expect(session().Game.Active).To(BeTrue())
	})
})

package webhook_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mulabo.app/chatbot/internal/http/handler/webhook"
)

const channelSecret = "test-channel-secret"

type sentReply struct {
	token string
	text  string
}

type fakeMessenger struct {
	displayName string
	profileErr  error
	replyErr    error
	replies     []sentReply
}

func (f *fakeMessenger) ReplyText(ctx context.Context, replyToken, text string) error {
	f.replies = append(f.replies, sentReply{token: replyToken, text: text})
	return f.replyErr
}

func (f *fakeMessenger) DisplayName(ctx context.Context, userID string) (string, error) {
	if f.profileErr != nil {
		return "", f.profileErr
	}
	return f.displayName, nil
}

type dispatchCall struct {
	userID      string
	displayName string
	text        string
}

type fakeResponder struct {
	reply string
	err   error
	calls []dispatchCall
}

func (f *fakeResponder) HandleMessage(ctx context.Context, userID, displayName, text string) (string, error) {
	f.calls = append(f.calls, dispatchCall{userID: userID, displayName: displayName, text: text})
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func callbackBody(events ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"destination":"xxx","events":[`)
	for i, e := range events {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(e)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

func textEvent(replyToken, userID, text string) string {
	return fmt.Sprintf(`{
		"type":"message","mode":"active","timestamp":1700000000000,
		"webhookEventId":"01HWEBHOOKEVENT000000000000",
		"deliveryContext":{"isRedelivery":false},
		"replyToken":%q,
		"source":{"type":"user","userId":%q},
		"message":{"type":"text","id":"325708","quoteToken":"q","text":%q}
	}`, replyToken, userID, text)
}

var _ = Describe("LineWebhookHandler", func() {
	var (
		router    *gin.Engine
		messenger *fakeMessenger
		responder *fakeResponder
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()

		messenger = &fakeMessenger{displayName: "Aoi"}
		responder = &fakeResponder{reply: "おはようございます。"}

		h := webhook.NewLineWebhookHandler(channelSecret, messenger, responder)
		router.POST("/callback", h.HandleCallback)
	})

	post := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/callback", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set("x-line-signature", signature)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("rejects a bad signature and never invokes the core", func() {
		body := callbackBody(textEvent("rt-1", "U1234", "おはよう"))

		w := post(body, sign("wrong-secret", body))

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(responder.calls).To(BeEmpty())
		Expect(messenger.replies).To(BeEmpty())
	})

	It("rejects a missing signature", func() {
		body := callbackBody(textEvent("rt-1", "U1234", "おはよう"))

		w := post(body, "")

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("dispatches a user text message and replies via the reply token", func() {
		body := callbackBody(textEvent("rt-1", "U1234", "おはよう"))

		w := post(body, sign(channelSecret, body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(responder.calls).To(Equal([]dispatchCall{
			{userID: "U1234", displayName: "Aoi", text: "おはよう"},
		}))
		Expect(messenger.replies).To(Equal([]sentReply{
			{token: "rt-1", text: "おはようございます。"},
		}))
	})

	It("handles every event in the callback", func() {
		body := callbackBody(
			textEvent("rt-1", "U1234", "おはよう"),
			textEvent("rt-2", "U5678", "しりとり"),
		)

		w := post(body, sign(channelSecret, body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(responder.calls).To(HaveLen(2))
		Expect(messenger.replies).To(HaveLen(2))
		Expect(messenger.replies[1].token).To(Equal("rt-2"))
	})

	It("echoes text from non-user sources without invoking the core", func() {
		event := `{
			"type":"message","mode":"active","timestamp":1700000000000,
			"webhookEventId":"01HWEBHOOKEVENT000000000001",
			"deliveryContext":{"isRedelivery":false},
			"replyToken":"rt-3",
			"source":{"type":"group","groupId":"G1"},
			"message":{"type":"text","id":"325709","quoteToken":"q","text":"こんにちは"}
		}`
		body := callbackBody(event)

		w := post(body, sign(channelSecret, body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(responder.calls).To(BeEmpty())
		Expect(messenger.replies).To(Equal([]sentReply{
			{token: "rt-3", text: "Received message: こんにちは"},
		}))
	})

	It("acknowledges non-text messages with a generic reply", func() {
		event := `{
			"type":"message","mode":"active","timestamp":1700000000000,
			"webhookEventId":"01HWEBHOOKEVENT000000000002",
			"deliveryContext":{"isRedelivery":false},
			"replyToken":"rt-4",
			"source":{"type":"user","userId":"U1234"},
			"message":{"type":"sticker","id":"325710","packageId":"1","stickerId":"2"}
		}`
		body := callbackBody(event)

		w := post(body, sign(channelSecret, body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(responder.calls).To(BeEmpty())
		Expect(messenger.replies).To(HaveLen(1))
		Expect(messenger.replies[0].text).To(Equal("Received message."))
	})

	It("falls back to a default display name when the profile lookup fails", func() {
		messenger.profileErr = errors.New("profile api down")
		body := callbackBody(textEvent("rt-5", "U1234", "おはよう"))

		w := post(body, sign(channelSecret, body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(responder.calls).To(HaveLen(1))
		Expect(responder.calls[0].displayName).To(Equal("ゲスト"))
	})

	It("still acknowledges the webhook when dispatch fails", func() {
		responder.err = errors.New("session store down")
		body := callbackBody(textEvent("rt-6", "U1234", "おはよう"))

		w := post(body, sign(channelSecret, body))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(messenger.replies).To(HaveLen(1))
		Expect(messenger.replies[0].text).To(ContainSubstring("ごめんなさい"))
	})

	It("still acknowledges the webhook when reply delivery fails", func() {
		messenger.replyErr = errors.New("reply token expired")
		body := callbackBody(textEvent("rt-7", "U1234", "おはよう"))

		w := post(body, sign(channelSecret, body))

		Expect(w.Code).To(Equal(http.StatusOK))
	})
})

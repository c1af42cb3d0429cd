package transcription_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/core/transcription"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type webhookHit struct {
	contentType   string
	authorization string
	body          []byte
}

var _ = Describe("WebhookForwarder", func() {
	var (
		server  *httptest.Server
		hits    chan webhookHit
		count   atomic.Int32
		respond http.HandlerFunc
		opts    schema.TranscriptionOptions
	)

	BeforeEach(func() {
		count.Store(0)
		hits = make(chan webhookHit, 4)
		respond = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"saved":true,"id":7}`)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count.Add(1)
			b, _ := io.ReadAll(r.Body)
			hits <- webhookHit{contentType: r.Header.Get("Content-Type"), authorization: r.Header.Get("Authorization"), body: b}
			respond(w, r)
		}))
		opts = schema.DefaultTranscriptionOptions()
		opts.Subject = "Historia"
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts a JSON payload and returns the JSON answer verbatim", func() {
		resp, err := transcription.NewWebhookForwarder(transcription.WithWebhookAuthorization("Bearer s3cret")).
			Forward(context.Background(), server.URL, "Hola mundo", opts)
		Expect(err).ToNot(HaveOccurred())
		Expect(resp).To(MatchJSON(`{"saved":true,"id":7}`))

		var hit webhookHit
		Eventually(hits).Should(Receive(&hit))
		Expect(hit.contentType).To(Equal("application/json"))
		Expect(hit.authorization).To(Equal("Bearer s3cret"))

		var payload transcription.WebhookPayload
		Expect(json.Unmarshal(hit.body, &payload)).To(Succeed())
		Expect(payload.Transcript).To(Equal("Hola mundo"))
		Expect(payload.Subject).To(Equal("Historia"))
		Expect(payload.SpeakerMode).To(Equal(schema.SpeakerModeSingle))
		Expect(payload.Timestamp.IsZero()).To(BeFalse())
	})

	It("sends plain text when configured", func() {
		respond = func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}
		resp, err := transcription.NewWebhookForwarder(transcription.WithPlainText(true)).
			Forward(context.Background(), server.URL, "Hola mundo", opts)
		Expect(err).ToNot(HaveOccurred())
		Expect(resp).To(MatchJSON(`"ok"`))

		var hit webhookHit
		Eventually(hits).Should(Receive(&hit))
		Expect(hit.contentType).To(HavePrefix("text/plain"))
		Expect(string(hit.body)).To(Equal("Hola mundo"))
	})

	It("never sends an empty transcript", func() {
		_, err := transcription.NewWebhookForwarder().Forward(context.Background(), server.URL, " \n ", opts)
		Expect(err).To(MatchError(transcription.ErrNothingToForward))
		Expect(count.Load()).To(BeZero())
	})

	It("reports non-2xx answers as errors after one attempt", func() {
		respond = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}
		_, err := transcription.NewWebhookForwarder().Forward(context.Background(), server.URL, "Hola", opts)
		Expect(err).To(MatchError(ContainSubstring("status 503")))
		Expect(count.Load()).To(BeEquivalentTo(1))
	})

	It("returns no payload for an empty answer", func() {
		respond = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}
		resp, err := transcription.NewWebhookForwarder().Forward(context.Background(), server.URL, "Hola", opts)
		Expect(err).ToNot(HaveOccurred())
		Expect(resp).To(BeNil())
	})
})

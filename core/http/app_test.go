package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/apuntes-app/apuntes/core/application"
	"github.com/apuntes-app/apuntes/core/config"
	. "github.com/apuntes-app/apuntes/core/http"
	"github.com/apuntes-app/apuntes/core/http/endpoints/apuntes"
	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/core/services"
	"github.com/apuntes-app/apuntes/pkg/audio"
	"github.com/gorilla/websocket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const apiKey = "joshua"
const bearerKey = "Bearer " + apiKey

func wavBytes(seconds float64, sampleRate uint32) []byte {
	samples := int(seconds * float64(sampleRate))
	h := audio.NewWAVHeader(uint32(samples*2), sampleRate, 1)
	var buf bytes.Buffer
	Expect(h.Write(&buf)).To(Succeed())
	buf.Write(make([]byte, samples*2))
	return buf.Bytes()
}

func multipartBody(fields map[string]string, filename string, data []byte) (*bytes.Buffer, string) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		Expect(err).ToNot(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).ToNot(HaveOccurred())
	}
	for k, v := range fields {
		Expect(w.WriteField(k, v)).To(Succeed())
	}
	Expect(w.Close()).To(Succeed())
	return &body, w.FormDataContentType()
}

func postUpload(url string, fields map[string]string, filename string, data []byte) *http.Response {
	body, contentType := multipartBody(fields, filename, data)
	req, err := http.NewRequest(http.MethodPost, url, body)
	Expect(err).ToNot(HaveOccurred())
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerKey)
	resp, err := http.DefaultClient.Do(req)
	Expect(err).ToNot(HaveOccurred())
	return resp
}

func doRequest(method, url string) *http.Response {
	req, err := http.NewRequest(method, url, nil)
	Expect(err).ToNot(HaveOccurred())
	req.Header.Set("Authorization", bearerKey)
	resp, err := http.DefaultClient.Do(req)
	Expect(err).ToNot(HaveOccurred())
	return resp
}

func decode(resp *http.Response, v any) {
	defer resp.Body.Close()
	Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
}

var _ = Describe("API", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc

		stt       *httptest.Server
		sttStatus atomic.Int32
		sttCalls  atomic.Int32
		sttGate   chan struct{}

		app    *application.Application
		server *httptest.Server
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())

		sttStatus.Store(http.StatusOK)
		sttCalls.Store(0)
		sttGate = nil
		gate := func() chan struct{} { return sttGate }
		stt = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sttCalls.Add(1)
			if g := gate(); g != nil {
				<-g
			}
			if code := int(sttStatus.Load()); code != http.StatusOK {
				w.WriteHeader(code)
				_, _ = io.WriteString(w, `{"error":{"message":"upstream unavailable","type":"server_error"}}`)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"task":"transcribe","language":"spanish","duration":2.0,"text":"hola mundo"}`)
		}))

		var err error
		app, err = application.New(
			config.WithContext(ctx),
			config.WithTempDir(tmpdir),
			config.WithSTTBaseURL(stt.URL+"/v1"),
			config.WithSTTApiKey("sk-test"),
			config.WithRetryBaseDelay(time.Millisecond),
			config.WithChunkDelay(0),
			config.WithApiKeys([]string{apiKey}),
		)
		Expect(err).ToNot(HaveOccurred())

		e, err := API(app)
		Expect(err).ToNot(HaveOccurred())
		server = httptest.NewServer(e)
	})

	AfterEach(func() {
		server.Close()
		stt.Close()
		cancel()
		Expect(app.Shutdown(context.Background())).To(Succeed())
	})

	Context("authentication", func() {
		It("keeps health checks open", func() {
			resp, err := http.Get(server.URL + "/healthz")
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp, err = http.Get(server.URL + "/readyz")
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("reports not ready once the application context is done", func() {
			cancel()
			resp, err := http.Get(server.URL + "/readyz")
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))

			resp, err = http.Get(server.URL + "/healthz")
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects requests without a key", func() {
			resp, err := http.Get(server.URL + "/v1/profiles")
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(Equal("Bearer"))

			var er schema.ErrorResponse
			decode(resp, &er)
			Expect(er.Error.Message).To(Equal("An authentication key is required"))
		})

		It("accepts the x-api-key header", func() {
			req, err := http.NewRequest(http.MethodGet, server.URL+"/v1/profiles", nil)
			Expect(err).ToNot(HaveOccurred())
			req.Header.Set("x-api-key", apiKey)
			resp, err := http.DefaultClient.Do(req)
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects a wrong key", func() {
			req, err := http.NewRequest(http.MethodGet, server.URL+"/v1/profiles", nil)
			Expect(err).ToNot(HaveOccurred())
			req.Header.Set("Authorization", "Bearer nope")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Context("POST /v1/transcriptions", func() {
		It("transcribes an upload", func() {
			resp := postUpload(server.URL+"/v1/transcriptions", map[string]string{"subject": "Historia"}, "clase.wav", wavBytes(2, 8000))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var res schema.TranscriptionResult
			decode(resp, &res)
			Expect(res.Transcript).To(Equal("Hola mundo"))
			Expect(res.Language).To(Equal("es"))
			Expect(res.Chunks).To(Equal(1))
			Expect(res.RunID).ToNot(BeEmpty())
			Expect(sttCalls.Load()).To(BeEquivalentTo(1))
		})

		It("requires a file", func() {
			resp := postUpload(server.URL+"/v1/transcriptions", map[string]string{"subject": "Historia"}, "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an empty file", func() {
			resp := postUpload(server.URL+"/v1/transcriptions", nil, "clase.wav", []byte{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(sttCalls.Load()).To(BeZero())
		})

		It("rejects an unknown profile", func() {
			resp := postUpload(server.URL+"/v1/transcriptions", map[string]string{"profile": "podcast"}, "clase.wav", wavBytes(2, 8000))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var er schema.ErrorResponse
			decode(resp, &er)
			Expect(er.Error.Message).To(ContainSubstring("podcast"))
		})

		It("rejects invalid overrides", func() {
			for _, fields := range []map[string]string{
				{"speaker_mode": "choir"},
				{"retry_attempts": "-1"},
				{"retry_attempts": "many"},
				{"retry_attempts": "34"},
				{"time_markers": "sometimes"},
				{"webhook_url": "ftp://example.com"},
				{"webhook_url": "http://127.0.0.1:9000/hook"},
				{"webhook_url": "http://169.254.169.254/latest/meta-data/"},
			} {
				resp := postUpload(server.URL+"/v1/transcriptions", fields, "clase.wav", wavBytes(2, 8000))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest), "fields %v", fields)
				resp.Body.Close()
			}
			Expect(sttCalls.Load()).To(BeZero())
		})

		It("reports a bad gateway with the chunk errors when nothing was transcribed", func() {
			sttStatus.Store(http.StatusInternalServerError)
			resp := postUpload(server.URL+"/v1/transcriptions", map[string]string{"retry_attempts": "1"}, "clase.wav", wavBytes(2, 8000))
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

			var failed apuntes.FailedTranscription
			decode(resp, &failed)
			Expect(failed.Error.Type).To(Equal("no_transcript"))
			Expect(failed.Result).ToNot(BeNil())
			Expect(failed.Result.Errors).To(HaveLen(1))
			Expect(failed.Result.Errors[0].Attempts).To(Equal(2))
			Expect(sttCalls.Load()).To(BeEquivalentTo(2))
		})
	})

	Context("jobs", func() {
		It("runs a job in the background", func() {
			resp := postUpload(server.URL+"/v1/transcriptions/jobs", map[string]string{"profile": "quick"}, "clase.wav", wavBytes(2, 8000))
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			var submitted map[string]string
			decode(resp, &submitted)
			id := submitted["job_id"]
			Expect(id).ToNot(BeEmpty())

			Eventually(func() services.JobStatus {
				var job services.Job
				decode(doRequest(http.MethodGet, server.URL+"/v1/transcriptions/jobs/"+id), &job)
				return job.Status
			}).Should(Equal(services.JobSucceeded))

			var job services.Job
			decode(doRequest(http.MethodGet, server.URL+"/v1/transcriptions/jobs/"+id), &job)
			Expect(job.Result.Transcript).To(Equal("Hola mundo"))
			Expect(job.Result.RunID).To(Equal(id))
			Expect(job.Progress.Progress).To(Equal(100))

			var jobs []services.Job
			decode(doRequest(http.MethodGet, server.URL+"/v1/transcriptions/jobs"), &jobs)
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ID).To(Equal(id))

			resp = doRequest(http.MethodDelete, server.URL+"/v1/transcriptions/jobs/"+id)
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("returns 404 for unknown jobs", func() {
			resp := doRequest(http.MethodGet, server.URL+"/v1/transcriptions/jobs/missing")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp = doRequest(http.MethodDelete, server.URL+"/v1/transcriptions/jobs/missing")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("cancels a running job", func() {
			sttGate = make(chan struct{})
			resp := postUpload(server.URL+"/v1/transcriptions/jobs", nil, "clase.wav", wavBytes(2, 8000))
			var submitted map[string]string
			decode(resp, &submitted)
			id := submitted["job_id"]

			Eventually(sttCalls.Load).Should(BeEquivalentTo(1))
			resp = doRequest(http.MethodDelete, server.URL+"/v1/transcriptions/jobs/"+id)
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			close(sttGate)

			Eventually(func() services.JobStatus {
				var job services.Job
				decode(doRequest(http.MethodGet, server.URL+"/v1/transcriptions/jobs/"+id), &job)
				return job.Status
			}).Should(Equal(services.JobCancelled))
		})

		It("streams progress over a websocket", func() {
			sttGate = make(chan struct{})
			resp := postUpload(server.URL+"/v1/transcriptions/jobs", nil, "clase.wav", wavBytes(2, 8000))
			var submitted map[string]string
			decode(resp, &submitted)
			id := submitted["job_id"]

			wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/transcriptions/jobs/" + id + "/ws"
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Authorization": []string{bearerKey}})
			Expect(err).ToNot(HaveOccurred())
			defer conn.Close()
			close(sttGate)

			var progress []int
			var done apuntes.ProgressMessage
			for {
				var msg apuntes.ProgressMessage
				Expect(conn.ReadJSON(&msg)).To(Succeed())
				if msg.Type == "done" {
					done = msg
					break
				}
				Expect(msg.Type).To(Equal("progress"))
				progress = append(progress, msg.Progress.Progress)
			}

			Expect(progress).ToNot(BeEmpty())
			Expect(progress[len(progress)-1]).To(Equal(100))
			Expect(done.Job.Status).To(Equal(services.JobSucceeded))
			Expect(done.Job.Result.Transcript).To(Equal("Hola mundo"))
		})
	})

	It("lists profiles", func() {
		var profiles apuntes.ProfilesResponse
		decode(doRequest(http.MethodGet, server.URL+"/v1/profiles"), &profiles)
		Expect(profiles.Default).To(Equal(config.ProfileStandard))
		Expect(profiles.Profiles).To(HaveKey(config.ProfileQuick))
		Expect(profiles.Profiles).To(HaveKey(config.ProfileLecture))
		Expect(profiles.Profiles[config.ProfileLecture].MaxChunkDuration).To(Equal(schema.MaxChunkDurationCeiling))
	})

	It("exposes prometheus metrics", func() {
		resp := postUpload(server.URL+"/v1/transcriptions", nil, "clase.wav", wavBytes(2, 8000))
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()

		scrape := func() string {
			resp := doRequest(http.MethodGet, server.URL+"/metrics")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).ToNot(HaveOccurred())
			return string(body)
		}
		Eventually(scrape).Should(And(
			ContainSubstring("apuntes_runs"),
			ContainSubstring("apuntes_api_call"),
		))
	})
})

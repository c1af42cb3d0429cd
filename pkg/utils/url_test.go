package utils_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/apuntes-app/apuntes/pkg/utils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ValidatePublicURL", func() {
	ctx := context.Background()

	DescribeTable("accepts public addresses",
		func(raw string) {
			Expect(ValidatePublicURL(ctx, raw)).To(Succeed())
		},
		Entry("https", "https://93.184.215.14/hook"),
		Entry("http with port", "http://8.8.8.8:8080/hook"),
		Entry("ipv6", "https://[2606:4700:4700::1111]/hook"),
	)

	DescribeTable("rejects internal addresses",
		func(raw string) {
			Expect(ValidatePublicURL(ctx, raw)).To(MatchError(ErrPrivateAddress))
		},
		Entry("localhost", "http://localhost/secret"),
		Entry("loopback", "http://127.0.0.1/secret"),
		Entry("10/8", "http://10.0.0.1/secret"),
		Entry("172.16/12", "http://172.16.0.1/secret"),
		Entry("192.168/16", "http://192.168.1.1/secret"),
		Entry("cloud metadata", "http://169.254.169.254/latest/meta-data/"),
		Entry("mdns", "http://printer.local/api"),
		Entry("gcp metadata", "http://metadata.google.internal/"),
		Entry("ipv6 loopback", "http://[::1]/secret"),
		Entry("ipv4-mapped loopback", "http://[::ffff:127.0.0.1]/secret"),
		Entry("unspecified", "http://0.0.0.0/secret"),
	)

	It("rejects non-http schemes", func() {
		Expect(ValidatePublicURL(ctx, "ftp://example.com/file")).To(MatchError(ContainSubstring("unsupported URL scheme")))
		Expect(ValidatePublicURL(ctx, "file:///etc/passwd")).To(MatchError(ContainSubstring("unsupported URL scheme")))
	})

	It("rejects URLs without a host", func() {
		Expect(ValidatePublicURL(ctx, "http:///path")).To(MatchError(ContainSubstring("no host")))
	})

	Context("PublicRedirects", func() {
		var server *httptest.Server

		BeforeEach(func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/metadata":
					http.Redirect(w, r, "http://169.254.169.254/latest/meta-data/", http.StatusFound)
				case "/loop":
					http.Redirect(w, r, "/loop", http.StatusFound)
				}
			}))
		})

		AfterEach(func() {
			server.Close()
		})

		It("refuses to follow a redirect to an internal address", func() {
			client := &http.Client{CheckRedirect: PublicRedirects}
			_, err := client.Post(server.URL+"/metadata", "application/json", nil)
			Expect(err).To(MatchError(ErrPrivateAddress))
		})

		It("refuses a redirect back to a loopback host", func() {
			client := &http.Client{CheckRedirect: PublicRedirects}
			_, err := client.Get(server.URL + "/loop")
			Expect(err).To(MatchError(ErrPrivateAddress))
		})
	})
})

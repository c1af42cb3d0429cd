package events_test

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/apuntes-app/apuntes/core/events"
	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// Needs a docker daemon: APUNTES_NATS_INTEGRATION=true go test ./core/events/...
var _ = Describe("NATSObserver against a NATS server", Label("integration"), func() {
	var conn *nats.Conn

	BeforeEach(func() {
		if os.Getenv("APUNTES_NATS_INTEGRATION") != "true" {
			Skip("APUNTES_NATS_INTEGRATION is not set")
		}
		ctx := context.Background()
		ctr, err := tcnats.Run(ctx, "nats:2.10")
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(func() {
			Expect(testcontainers.TerminateContainer(ctr)).To(Succeed())
		})

		uri, err := ctr.ConnectionString(ctx)
		Expect(err).ToNot(HaveOccurred())
		conn, err = events.Connect(uri)
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(conn.Close)
	})

	It("delivers progress events to subscribers of the run subject", func() {
		received := make(chan *nats.Msg, 4)
		sub, err := conn.ChanSubscribe("apuntes.progress.*", received)
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(sub.Unsubscribe)
		Expect(conn.Flush()).To(Succeed())

		o := events.NewNATSObserver(conn, "apuntes.progress", "run-7")
		o.OnProgress(schema.TranscriptionProgress{Output: "Audio split into 2 chunk(s)", Progress: 5})

		var msg *nats.Msg
		Eventually(received, 5*time.Second).Should(Receive(&msg))
		Expect(msg.Subject).To(Equal("apuntes.progress.run-7"))

		var ev events.ProgressEvent
		Expect(json.Unmarshal(msg.Data, &ev)).To(Succeed())
		Expect(ev.Progress).To(Equal(5))
		Expect(ev.RunID).To(Equal("run-7"))
	})
})

package services_test

import (
	"context"
	"errors"
	"time"

	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/core/services"
	"github.com/prometheus/client_golang/prometheus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MetricsService", func() {
	It("exports pipeline measurements to prometheus", func() {
		reg := prometheus.NewRegistry()
		m, err := services.NewMetricsService(reg)
		Expect(err).ToNot(HaveOccurred())
		defer m.Shutdown(context.Background())

		m.ChunkFinished(schema.Succeeded("hola", "es", 1), time.Second)
		m.ChunkFinished(schema.Failed(errors.New("boom"), 4), 3*time.Second)
		m.ChunkRetried()
		m.WebhookFinished(nil)
		m.RunFinished("partial", 5*time.Second)
		m.ObserveAPICall("POST", "/v1/transcriptions", 0.5)

		families, err := reg.Gather()
		Expect(err).ToNot(HaveOccurred())
		var names []string
		for _, f := range families {
			names = append(names, f.GetName())
		}
		Expect(names).To(ContainElement(HavePrefix("apuntes_chunks")))
		Expect(names).To(ContainElement(HavePrefix("apuntes_chunk_retries")))
		Expect(names).To(ContainElement(HavePrefix("apuntes_webhook_deliveries")))
		Expect(names).To(ContainElement(HavePrefix("apuntes_run_duration")))
		Expect(names).To(ContainElement(HavePrefix("apuntes_api_call")))
	})
})

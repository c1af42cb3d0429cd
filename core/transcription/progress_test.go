package transcription_test

import (
	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/apuntes-app/apuntes/core/transcription"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reporter", func() {
	It("notifies every observer in order", func() {
		a, b := &progressLog{}, &progressLog{}
		r := transcription.NewReporter(a, nil)
		r.Subscribe(b)

		r.Report("one", 10)
		r.Report("two", 20)

		Expect(a.Events()).To(Equal([]schema.TranscriptionProgress{{Output: "one", Progress: 10}, {Output: "two", Progress: 20}}))
		Expect(b.Events()).To(Equal(a.Events()))
	})

	It("never lets progress go backwards or past 100", func() {
		log := &progressLog{}
		r := transcription.NewReporter(log)

		r.Report("a", 40)
		r.Report("b", 30)
		r.Report("c", 250)

		Expect(log.Events()[1].Progress).To(Equal(40))
		Expect(log.Last().Progress).To(Equal(100))
		Expect(r.Last()).To(Equal(100))
	})

	It("resets to zero on failure", func() {
		log := &progressLog{}
		r := transcription.NewReporter(log)
		r.Report("working", 60)
		r.Fail("boom")

		Expect(log.Last()).To(Equal(schema.TranscriptionProgress{Output: "boom", Progress: 0}))
	})

	It("accepts plain functions", func() {
		var got []int
		r := transcription.NewReporter(transcription.ObserverFunc(func(p schema.TranscriptionProgress) {
			got = append(got, p.Progress)
		}))
		r.Report("x", 5)
		Expect(got).To(Equal([]int{5}))
	})
})

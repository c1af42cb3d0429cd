package audio_test

import (
	"context"
	"errors"
	"math"

	laudio "github.com/apuntes-app/apuntes/pkg/audio"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func expectContiguous(chunks []laudio.Chunk, duration, maxChunkDuration float64) {
	Expect(chunks).ToNot(BeEmpty())
	Expect(chunks[0].StartTime).To(BeNumerically("==", 0))
	for i, c := range chunks {
		Expect(c.EndTime).To(BeNumerically(">", c.StartTime))
		Expect(c.EndTime - c.StartTime).To(BeNumerically("<=", maxChunkDuration+1e-6))
		if i > 0 {
			Expect(c.StartTime).To(BeNumerically("~", chunks[i-1].EndTime, 1e-9))
		}
	}
	Expect(chunks[len(chunks)-1].EndTime).To(BeNumerically("~", duration, 1e-6))
}

var _ = Describe("PCMSegmenter", func() {
	var segmenter *laudio.PCMSegmenter

	BeforeEach(func() {
		segmenter = laudio.NewPCMSegmenter(laudio.WAVProber{}, laudio.WAVDecoder{})
	})

	It("returns the original blob unchanged when it fits in one window", func() {
		data := wavBytes(90, 100, 1)

		s, err := segmenter.Segment(context.Background(), data, 420)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Warning).ToNot(HaveOccurred())
		Expect(s.Chunks).To(HaveLen(1))
		Expect(s.Chunks[0].Data).To(Equal(data))
		Expect(s.Chunks[0].StartTime).To(BeNumerically("==", 0))
		Expect(s.Chunks[0].EndTime).To(BeNumerically("~", 90, 1e-6))
	})

	It("splits a 500s recording into [0,300) and [300,500)", func() {
		data := wavBytes(500, 100, 1)

		s, err := segmenter.Segment(context.Background(), data, 300)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Warning).ToNot(HaveOccurred())
		Expect(s.Chunks).To(HaveLen(2))
		Expect(s.Chunks[0].StartTime).To(BeNumerically("==", 0))
		Expect(s.Chunks[0].EndTime).To(BeNumerically("==", 300))
		Expect(s.Chunks[1].StartTime).To(BeNumerically("==", 300))
		Expect(s.Chunks[1].EndTime).To(BeNumerically("==", 500))
	})

	DescribeTable("produces ceil(D/max) gapless chunks",
		func(duration, maxChunkDuration float64, channels int) {
			data := wavBytes(duration, 100, uint16(channels))

			s, err := segmenter.Segment(context.Background(), data, maxChunkDuration)
			Expect(err).ToNot(HaveOccurred())
			Expect(s.Chunks).To(HaveLen(int(math.Ceil(duration / maxChunkDuration))))
			expectContiguous(s.Chunks, duration, maxChunkDuration)
		},
		Entry("exact multiple", 600.0, 300.0, 1),
		Entry("short tail", 301.0, 300.0, 1),
		Entry("stereo", 130.0, 60.0, 2),
		Entry("many windows", 1000.0, 60.0, 1),
	)

	It("re-encodes every window as a probeable wav", func() {
		data := wavBytes(130, 100, 2)

		s, err := segmenter.Segment(context.Background(), data, 60)
		Expect(err).ToNot(HaveOccurred())
		for _, c := range s.Chunks {
			Expect(laudio.IsWAV(c.Data)).To(BeTrue())
			d, err := laudio.WAVProber{}.Probe(context.Background(), c.Data)
			Expect(err).ToNot(HaveOccurred())
			Expect(d).To(BeNumerically("~", c.EndTime-c.StartTime, 1e-6))
		}
	})

	It("falls back to the whole blob with a warning when decoding fails", func() {
		data := []byte("definitely not audio")
		segmenter = laudio.NewPCMSegmenter(&fixedProber{duration: 500}, failingDecoder{})

		s, err := segmenter.Segment(context.Background(), data, 300)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Warning).To(MatchError(laudio.ErrDecode))
		Expect(s.Degraded()).To(BeFalse())
		Expect(s.Chunks).To(HaveLen(1))
		Expect(s.Chunks[0].Data).To(Equal(data))
		Expect(s.Chunks[0].EndTime).To(BeNumerically("==", 500))
	})

	It("produces a single degraded chunk when the duration cannot be probed", func() {
		data := []byte("definitely not audio")

		s, err := segmenter.Segment(context.Background(), data, 300)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Warning).To(MatchError(laudio.ErrDecode))
		Expect(s.Degraded()).To(BeTrue())
		Expect(s.Chunks).To(HaveLen(1))
		Expect(s.Chunks[0].StartTime).To(BeNumerically("==", 0))
		Expect(s.Chunks[0].EndTime).To(BeNumerically("==", 0))
	})

	It("rejects empty input", func() {
		_, err := segmenter.Segment(context.Background(), nil, 300)
		Expect(err).To(MatchError(laudio.ErrEmpty))
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := segmenter.Segment(ctx, wavBytes(500, 100, 1), 300)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})

var _ = Describe("Windows", func() {
	It("partitions the duration with a shorter last window", func() {
		Expect(laudio.Windows(500, 300)).To(Equal([][2]float64{{0, 300}, {300, 500}}))
		Expect(laudio.Windows(90, 420)).To(Equal([][2]float64{{0, 90}}))
		Expect(laudio.Windows(0, 300)).To(BeEmpty())
	})
})

var _ = Describe("WAVProber", func() {
	It("reads the duration from the header", func() {
		d, err := laudio.WAVProber{}.Probe(context.Background(), wavBytes(42, 100, 1))
		Expect(err).ToNot(HaveOccurred())
		Expect(d).To(BeNumerically("~", 42, 1e-6))
	})

	It("fails with a decode error on garbage", func() {
		_, err := laudio.WAVProber{}.Probe(context.Background(), []byte("RIFF"))
		Expect(err).To(MatchError(laudio.ErrDecode))
	})

	It("reports empty input through the chain", func() {
		_, err := laudio.ChainProber{laudio.WAVProber{}}.Probe(context.Background(), nil)
		Expect(err).To(MatchError(laudio.ErrDecode))
		Expect(err).To(MatchError(laudio.ErrEmpty))
	})
})

var _ = Describe("IdentifyBytes", func() {
	It("recognizes wav and webm by magic bytes", func() {
		Expect(laudio.IdentifyBytes(wavBytes(1, 100, 1))).To(Equal("wav"))
		Expect(laudio.IdentifyBytes([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x00})).To(Equal("webm"))
		Expect(laudio.IdentifyBytes([]byte("????"))).To(BeEmpty())
	})

	It("names chunks after the sniffed container", func() {
		Expect(laudio.ChunkFileName(2, wavBytes(1, 100, 1), "lecture.webm")).To(Equal("chunk-002.wav"))
		Expect(laudio.ChunkFileName(0, []byte("????"), "lecture.mp3")).To(Equal("chunk-000.mp3"))
		Expect(laudio.ChunkFileName(0, []byte("????"), "")).To(Equal("chunk-000.webm"))
	})

	It("ignores upload extensions that are not audio formats", func() {
		Expect(laudio.ChunkFileName(1, []byte("????"), "notes.txt")).To(Equal("chunk-001.webm"))
		Expect(laudio.ChunkFileName(1, []byte("????"), "CLASE.M4A")).To(Equal("chunk-001.m4a"))
	})
})

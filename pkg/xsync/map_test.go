package xsync_test

import (
	"fmt"
	"sync"

	. "github.com/apuntes-app/apuntes/pkg/xsync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SyncedMap", func() {
	It("sets and gets", func() {
		m := NewSyncedMap[string, int]()
		m.Set("foo", 1)
		v, ok := m.Get("foo")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(1))
		Expect(m.Len()).To(Equal(1))
	})

	It("deletes", func() {
		m := NewSyncedMap[string, int]()
		m.Set("foo", 1)
		m.Delete("foo")
		_, ok := m.Get("foo")
		Expect(ok).To(BeFalse())
		Expect(m.Values()).To(BeEmpty())
	})

	It("deletes by predicate", func() {
		m := NewSyncedMap[string, int]()
		for i := 0; i < 10; i++ {
			m.Set(fmt.Sprint(i), i)
		}
		removed := m.DeleteFunc(func(_ string, v int) bool { return v%2 == 0 })
		Expect(removed).To(Equal(5))
		Expect(m.Values()).To(ConsistOf(1, 3, 5, 7, 9))
	})

	It("is safe for concurrent use", func() {
		m := NewSyncedMap[int, int]()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				m.Set(i, i)
				m.Get(i)
			}(i)
		}
		wg.Wait()
		Expect(m.Len()).To(Equal(50))
	})
})

package platform_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulseworks.app/conductor/internal/model"
	"pulseworks.app/conductor/internal/platform"
)

var _ = Describe("RESTProvider", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		handler http.HandlerFunc
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"events":[{"id":"evt-1","title":"Sync"}]}`))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newProvider := func() *platform.RESTProvider {
		return platform.NewRESTProvider(model.PlatformCalendar, server.URL, 5*time.Second)
	}

	calendarDesc := platform.ResourceDescriptor{
		Kind:   platform.ResourceCalendarEvents,
		Window: 4 * time.Hour,
	}

	It("fetches and decodes a calendar snapshot with bearer auth", func() {
		var gotAuth, gotPath, gotQuery string
		handler = func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`{"events":[{"id":"evt-1","title":"Sync"}]}`))
		}

		snap, err := newProvider().Fetch(ctx, "token-1", calendarDesc)

		Expect(err).NotTo(HaveOccurred())
		Expect(gotAuth).To(Equal("Bearer token-1"))
		Expect(gotPath).To(Equal("/v1/calendar/events"))
		Expect(gotQuery).To(ContainSubstring("window_seconds=14400"))
		Expect(snap.Calendar).NotTo(BeNil())
		Expect(snap.Calendar.Events).To(HaveLen(1))
		Expect(snap.Calendar.Events[0].ID).To(Equal("evt-1"))
	})

	It("escapes the document reference into the path", func() {
		var gotPath string
		handler = func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.EscapedPath()
			w.Write([]byte(`{"title":"Q1 plan","content":"..."}`))
		}

		snap, err := newProvider().Fetch(ctx, "t", platform.ResourceDescriptor{
			Kind:      platform.ResourceDocument,
			Reference: "doc/with slash",
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(gotPath).To(Equal("/v1/documents/doc%2Fwith%20slash"))
		Expect(snap.Document.Title).To(Equal("Q1 plan"))
	})

	DescribeTable("auth status mapping",
		func(status int) {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}

			_, err := newProvider().Fetch(ctx, "t", calendarDesc)
			Expect(errors.Is(err, platform.ErrAuthExpired)).To(BeTrue())
		},
		Entry("401", http.StatusUnauthorized),
		Entry("403", http.StatusForbidden),
	)

	DescribeTable("transient status mapping",
		func(status int) {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}

			_, err := newProvider().Fetch(ctx, "t", calendarDesc)

			Expect(platform.IsTransient(err)).To(BeTrue())
			var te *platform.TransientError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.StatusCode).To(Equal(status))
		},
		Entry("429", http.StatusTooManyRequests),
		Entry("500", http.StatusInternalServerError),
		Entry("503", http.StatusServiceUnavailable),
	)

	It("treats a 404 as a plain error, neither auth nor transient", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}

		_, err := newProvider().Fetch(ctx, "t", calendarDesc)

		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, platform.ErrAuthExpired)).To(BeFalse())
		Expect(platform.IsTransient(err)).To(BeFalse())
	})

	It("wraps connection failures as transient", func() {
		server.Close()

		_, err := newProvider().Fetch(ctx, "t", calendarDesc)
		Expect(platform.IsTransient(err)).To(BeTrue())
	})

	It("rejects an unsupported resource kind", func() {
		_, err := newProvider().Fetch(ctx, "t", platform.ResourceDescriptor{Kind: "spreadsheets"})
		Expect(err).To(MatchError(ContainSubstring("unsupported resource kind")))
	})

	It("errors on a malformed body", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"events":`))
		}

		_, err := newProvider().Fetch(ctx, "t", calendarDesc)
		Expect(err).To(MatchError(ContainSubstring("decoding response")))
	})
})

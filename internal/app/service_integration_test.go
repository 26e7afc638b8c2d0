package service_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/okian/certify/internal/adapters/notify"
	"github.com/okian/certify/internal/adapters/repository"
	service "github.com/okian/certify/internal/app"
	"github.com/okian/certify/internal/domain/certificate"
	"github.com/okian/certify/internal/domain/feedback"
	"github.com/okian/certify/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/wneessen/go-mail"
)

type recordingTransport struct {
	mu   sync.Mutex
	msgs []*mail.Msg
}

func (r *recordingTransport) DialAndSend(_ context.Context, msgs ...*mail.Msg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service wired with real components", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		idx, err := roster.Build(ctx, strings.NewReader("Email,Name\nalice@x.com,Alice Smith\n"))
		So(err, ShouldBeNil)

		mt := httpmock.NewMockTransport()
		var inserted int
		mt.RegisterResponder(http.MethodGet, "https://db.test/rest/v1/feedback",
			httpmock.NewStringResponder(http.StatusOK, `[]`))
		mt.RegisterResponder(http.MethodPost, "https://db.test/rest/v1/feedback",
			func(*http.Request) (*http.Response, error) {
				inserted++
				return httpmock.NewStringResponse(http.StatusCreated, ""), nil
			})
		store := repository.NewRESTStore("https://db.test", "key",
			repository.WithHTTPClient(&http.Client{Transport: mt}))

		smtp := &recordingTransport{}
		mailer := notify.NewDispatcher(
			notify.Settings{Host: "smtp.test", Username: "certs@x.com", Password: "pw"},
			notify.WithTransport(smtp),
		)

		out := t.TempDir()
		svc := service.New(
			service.WithRoster(idx),
			service.WithRenderer(certificate.NewRenderer(certificate.WithOutputDir(out))),
			service.WithStore(store),
			service.WithDispatcher(mailer),
			service.WithWorkerCount(2),
			service.WithQueueSize(10),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When an attendee goes through the whole flow", func() {
			v, err := svc.VerifyEmail(ctx, " Alice@X.com ")
			So(err, ShouldBeNil)
			So(v.Name, ShouldEqual, "Alice Smith")
			So(v.HasSubmitted, ShouldBeFalse)

			So(svc.SubmitFeedback(ctx, feedback.Submission{Email: "alice@x.com", Rating: 5}), ShouldBeNil)

			path, err := svc.GenerateCertificate(ctx, "alice@x.com")
			So(err, ShouldBeNil)
			So(svc.SendCertificate(ctx, "alice@x.com"), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then the feedback is stored once", func() {
				So(inserted, ShouldEqual, 1)
			})

			Convey("Then the certificate exists on disk", func() {
				So(filepath.Base(path), ShouldEqual, "certificate_Alice_Smith.pdf")
				_, statErr := os.Stat(path)
				So(statErr, ShouldBeNil)
			})

			Convey("Then the certificate is mailed with the PDF attached", func() {
				So(smtp.msgs, ShouldHaveLength, 1)
				rcpts, _ := smtp.msgs[0].GetRecipients()
				So(rcpts, ShouldResemble, []string{"alice@x.com"})
				files := smtp.msgs[0].GetAttachments()
				So(files, ShouldHaveLength, 1)
				So(files[0].Name, ShouldEqual, "certificate_Alice_Smith.pdf")
			})
		})

		Convey("When an unknown attendee asks for a certificate", func() {
			_, err := svc.VerifyEmail(ctx, "bob@x.com")
			So(service.IsNotFound(err), ShouldBeTrue)
			_, err = svc.GenerateCertificate(ctx, "bob@x.com")
			So(service.IsNotFound(err), ShouldBeTrue)

			Convey("Then nothing is rendered", func() {
				entries, _ := os.ReadDir(out)
				So(entries, ShouldBeEmpty)
			})
		})
	})
}

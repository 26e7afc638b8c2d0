package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/certify/internal/adapters/notify"
	"github.com/okian/certify/internal/adapters/repository"
	service "github.com/okian/certify/internal/app"
	"github.com/okian/certify/internal/domain/certificate"
	"github.com/okian/certify/internal/domain/feedback"
	"github.com/okian/certify/internal/domain/roster"
	"github.com/okian/certify/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		panic(err)
	}
}

type fakeStore struct {
	mu         sync.Mutex
	configured bool
	records    []feedback.Record
	err        error
	checkErr   error
	deleted    []string
}

func (f *fakeStore) Configured() bool { return f.configured }

func (f *fakeStore) HasSubmitted(_ context.Context, email string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Insert(_ context.Context, rec feedback.Record) error {
	if !f.configured {
		return repository.ErrNotConfigured
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) List(context.Context) ([]feedback.Record, error) {
	if !f.configured {
		return nil, repository.ErrNotConfigured
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feedback.Record(nil), f.records...), nil
}

func (f *fakeStore) Delete(_ context.Context, email string) error {
	if !f.configured {
		return repository.ErrNotConfigured
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, email)
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(_ context.Context, recipient, artifact string) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recipient+"|"+filepath.Base(artifact))
	return notify.Result{Recipient: recipient}
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, string) (string, error) {
	return "", errors.Join(certificate.ErrRender, errors.New("disk full"))
}

func testRoster() *roster.Index {
	return roster.FromMap(map[string]string{
		"alice@x.com": "Alice Smith",
		"blank@x.com": "",
	})
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["rosterEntries"], ShouldEqual, 0)
			So(stats["storeConfigured"], ShouldEqual, false)
			So(stats["mailConfigured"], ShouldEqual, false)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithRoster(testRoster()),
			service.WithWorkerCount(3),
			service.WithQueueSize(7),
		)

		Convey("Then the options are reflected in its stats", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 7)
			So(stats["rosterEntries"], ShouldEqual, 2)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting it twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it is running", func() {
				So(svc.Ready(), ShouldBeTrue)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
			})

			Convey("Then stopping marks it as stopped", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Ready(), ShouldBeFalse)
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_VerifyEmail(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a roster and a configured store", t, func() {
		store := &fakeStore{configured: true, records: []feedback.Record{{Email: "alice@x.com", Rating: 5}}}
		svc := service.New(service.WithRoster(testRoster()), service.WithStore(store))

		Convey("When verifying a known email with noise", func() {
			v, err := svc.VerifyEmail(ctx, " Alice@X.com ")

			Convey("Then the attendee and the prior submission are reported", func() {
				So(err, ShouldBeNil)
				So(v.Valid, ShouldBeTrue)
				So(v.Name, ShouldEqual, "Alice Smith")
				So(v.HasSubmitted, ShouldBeTrue)
			})
		})

		Convey("When the store check fails", func() {
			store.checkErr = errors.New("timeout")
			v, err := svc.VerifyEmail(ctx, "alice@x.com")

			Convey("Then verification still succeeds without a prior submission", func() {
				So(err, ShouldBeNil)
				So(v.Valid, ShouldBeTrue)
				So(v.HasSubmitted, ShouldBeFalse)
			})
		})

		Convey("When verifying an unknown email", func() {
			_, err := svc.VerifyEmail(ctx, "bob@x.com")

			Convey("Then it is not found", func() {
				So(errors.Is(err, service.ErrEmailNotFound), ShouldBeTrue)
				So(service.IsNotFound(err), ShouldBeTrue)
			})
		})

		Convey("When the roster entry has an empty name", func() {
			v, err := svc.VerifyEmail(ctx, "blank@x.com")

			Convey("Then it is still valid", func() {
				So(err, ShouldBeNil)
				So(v.Valid, ShouldBeTrue)
				So(v.Name, ShouldEqual, "")
			})
		})
	})

	Convey("Given an unconfigured store", t, func() {
		store := &fakeStore{checkErr: errors.New("must not be called")}
		svc := service.New(service.WithRoster(testRoster()), service.WithStore(store))

		Convey("Then the duplicate check is skipped", func() {
			v, err := svc.VerifyEmail(ctx, "alice@x.com")
			So(err, ShouldBeNil)
			So(v.HasSubmitted, ShouldBeFalse)
		})
	})
}

func TestService_Feedback(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a configured store", t, func() {
		store := &fakeStore{configured: true}
		svc := service.New(service.WithRoster(testRoster()), service.WithStore(store))

		Convey("When submitting valid feedback", func() {
			err := svc.SubmitFeedback(ctx, feedback.Submission{Email: "alice@x.com", Rating: 4, Relevance: "yes"})

			Convey("Then the shaped record is stored", func() {
				So(err, ShouldBeNil)
				So(store.records, ShouldHaveLength, 1)
				So(store.records[0].Relevance, ShouldEqual, "yes")
			})
		})

		Convey("When submitting an invalid rating", func() {
			err := svc.SubmitFeedback(ctx, feedback.Submission{Email: "alice@x.com", Rating: 0})

			Convey("Then nothing is stored", func() {
				So(errors.Is(err, feedback.ErrInvalidSubmission), ShouldBeTrue)
				So(store.records, ShouldBeEmpty)
			})
		})

		Convey("When listing records", func() {
			store.records = []feedback.Record{
				{Email: "alice@x.com", Rating: 5},
				{Email: "Stranger@x.com", Rating: 3},
				{Email: "blank@x.com", Rating: 4},
			}
			entries, err := svc.ListFeedback(ctx)

			Convey("Then names are resolved with the raw email as fallback", func() {
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 3)
				So(entries[0].Name, ShouldEqual, "Alice Smith")
				So(entries[1].Name, ShouldEqual, "Stranger@x.com")
				So(entries[2].Name, ShouldEqual, "")
			})

			Convey("Then stats aggregate every record", func() {
				st, err := svc.FeedbackStats(ctx)
				So(err, ShouldBeNil)
				So(st.TotalFeedback, ShouldEqual, 3)
				So(st.AverageRating, ShouldEqual, 4.0)
				So(st.RatingCounts[5], ShouldEqual, 1)
			})
		})

		Convey("When deleting", func() {
			So(svc.DeleteFeedback(ctx, "Alice@x.com"), ShouldBeNil)

			Convey("Then the email is passed through unchanged", func() {
				So(store.deleted, ShouldResemble, []string{"Alice@x.com"})
			})
		})
	})

	Convey("Given an unconfigured store", t, func() {
		svc := service.New(service.WithStore(&fakeStore{}))

		Convey("Then every store operation reports it", func() {
			err := svc.SubmitFeedback(ctx, feedback.Submission{Email: "a@x.com", Rating: 5})
			So(errors.Is(err, repository.ErrNotConfigured), ShouldBeTrue)
			_, err = svc.ListFeedback(ctx)
			So(errors.Is(err, repository.ErrNotConfigured), ShouldBeTrue)
			_, err = svc.FeedbackStats(ctx)
			So(errors.Is(err, repository.ErrNotConfigured), ShouldBeTrue)
			So(errors.Is(svc.DeleteFeedback(ctx, "a@x.com"), repository.ErrNotConfigured), ShouldBeTrue)
		})
	})
}

func TestService_Certificates(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service with a renderer and a mailer", t, func() {
		out := t.TempDir()
		sender := &fakeSender{}
		svc := service.New(
			service.WithRoster(testRoster()),
			service.WithRenderer(certificate.NewRenderer(certificate.WithOutputDir(out))),
			service.WithDispatcher(sender),
			service.WithWorkerCount(1),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When generating for a known email", func() {
			path, err := svc.GenerateCertificate(ctx, " Alice@X.com ")

			Convey("Then the artifact is named after the attendee", func() {
				So(err, ShouldBeNil)
				So(path, ShouldEqual, filepath.Join(out, "certificate_Alice_Smith.pdf"))
			})
		})

		Convey("When generating for an unknown or nameless email", func() {
			_, err := svc.GenerateCertificate(ctx, "bob@x.com")
			So(errors.Is(err, service.ErrNameNotFound), ShouldBeTrue)
			_, err = svc.GenerateCertificate(ctx, "blank@x.com")
			So(errors.Is(err, service.ErrNameNotFound), ShouldBeTrue)
		})

		Convey("When sending a certificate", func() {
			err := svc.SendCertificate(ctx, "ALICE@x.com")
			So(err, ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then the delivery reaches the mailer before shutdown completes", func() {
				So(sender.count(), ShouldEqual, 1)
				So(sender.sent[0], ShouldEqual, "alice@x.com|certificate_Alice_Smith.pdf")
			})
		})

		Convey("When sending to an unknown email", func() {
			err := svc.SendCertificate(ctx, "bob@x.com")

			Convey("Then nothing is queued", func() {
				So(errors.Is(err, service.ErrNameNotFound), ShouldBeTrue)
				So(svc.Stop(ctx), ShouldBeNil)
				So(sender.count(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a renderer that fails", t, func() {
		svc := service.New(service.WithRoster(testRoster()), service.WithRenderer(failingRenderer{}))

		Convey("Then the render error is returned", func() {
			_, err := svc.GenerateCertificate(ctx, "alice@x.com")
			So(errors.Is(err, certificate.ErrRender), ShouldBeTrue)
		})
	})

	Convey("Given a service that was never started", t, func() {
		svc := service.New(
			service.WithRoster(testRoster()),
			service.WithRenderer(certificate.NewRenderer(certificate.WithOutputDir(t.TempDir()))),
		)

		Convey("Then sending is refused", func() {
			So(errors.Is(svc.SendCertificate(ctx, "alice@x.com"), service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_AdminLogin(t *testing.T) {
	Convey("Given the default admin credentials", t, func() {
		svc := service.New()

		Convey("Then the correct pair yields the static token", func() {
			token, err := svc.AdminLogin("admin", "admin123")
			So(err, ShouldBeNil)
			So(token, ShouldEqual, "fake-jwt-token")
		})

		Convey("Then any other pair is rejected", func() {
			_, err := svc.AdminLogin("admin", "wrong")
			So(errors.Is(err, service.ErrInvalidCredentials), ShouldBeTrue)
			_, err = svc.AdminLogin("", "")
			So(errors.Is(err, service.ErrInvalidCredentials), ShouldBeTrue)
		})
	})

	Convey("Given configured admin credentials", t, func() {
		svc := service.New(service.WithAdminCredentials("ops", "s3cret", "tok"))

		Convey("Then only they are accepted", func() {
			token, err := svc.AdminLogin("ops", "s3cret")
			So(err, ShouldBeNil)
			So(token, ShouldEqual, "tok")
			_, err = svc.AdminLogin("admin", "admin123")
			So(err, ShouldNotBeNil)
		})
	})
}

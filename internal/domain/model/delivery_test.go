package model_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	model "github.com/okian/certify/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestDelivery(t *testing.T) {
	convey.Convey("Given a recipient and an artifact", t, func() {
		before := time.Now()
		d := model.NewDelivery("alice@x.com", "generated/certificate_Alice.pdf")

		convey.Convey("Then the job carries both and a valid id", func() {
			convey.So(d.Recipient, convey.ShouldEqual, "alice@x.com")
			convey.So(d.Artifact, convey.ShouldEqual, "generated/certificate_Alice.pdf")
			_, err := uuid.Parse(d.ID)
			convey.So(err, convey.ShouldBeNil)
			convey.So(d.Queued, convey.ShouldHappenOnOrAfter, before)
		})

		convey.Convey("Then every job gets its own id", func() {
			other := model.NewDelivery("alice@x.com", "generated/certificate_Alice.pdf")
			convey.So(other.ID, convey.ShouldNotEqual, d.ID)
		})
	})
}

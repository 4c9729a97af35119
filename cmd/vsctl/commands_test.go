package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/middleware"
	"github.com/arturoeanton/vietstart-api/internal/service"
)

func execute(args ...string) (string, error) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	Convey("Given a JWT secret in the environment", t, func() {
		t.Setenv("JWT_SECRET", "cli-secret")
		t.Setenv("JWT_ISSUER", "vietstart-cli")
		cfg := middleware.JWTConfig{Secret: "cli-secret", Issuer: "vietstart-cli"}

		Convey("token prints a JWT the middleware accepts", func() {
			out, err := execute("token", "user-42", "--role", "admin", "--ttl", "10m")
			So(err, ShouldBeNil)

			claims, err := middleware.ValidateJWT(strings.TrimSpace(out), cfg)
			So(err, ShouldBeNil)
			So(claims.Subject, ShouldEqual, "user-42")
			So(claims.Role, ShouldEqual, domain.RoleAdmin)
			So(claims.ExpiresAt-claims.IssuedAt, ShouldEqual, int64((10 * time.Minute).Seconds()))
		})

		Convey("token rejects unknown roles", func() {
			_, err := execute("token", "user-42", "--role", "root")
			So(err, ShouldNotBeNil)
		})

		Convey("token needs exactly one user id", func() {
			_, err := execute("token")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestArgumentValidation(t *testing.T) {
	Convey("rank needs a startup id", t, func() {
		_, err := execute("rank")
		So(err, ShouldNotBeNil)
	})

	Convey("migrate takes no arguments", t, func() {
		_, err := execute("migrate", "extra")
		So(err, ShouldNotBeNil)
	})
}

func TestReembedOptions(t *testing.T) {
	Convey("No flag selects everything", t, func() {
		So(reembedOptions(false, false), ShouldResemble, service.BatchOptions{Profiles: true, Startups: true})
		So(reembedOptions(true, false), ShouldResemble, service.BatchOptions{Profiles: true})
		So(reembedOptions(false, true), ShouldResemble, service.BatchOptions{Startups: true})
	})
}

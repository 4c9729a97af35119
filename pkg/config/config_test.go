package config

import (
	"log/slog"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given an empty environment", t, func() {
		cfg := Load()

		Convey("Then matching defaults follow the documented weights and limits", func() {
			So(cfg.MatchWeightSkills, ShouldEqual, 0.40)
			So(cfg.MatchWeightRoles, ShouldEqual, 0.35)
			So(cfg.MatchWeightCategory, ShouldEqual, 0.25)
			So(cfg.MatchBlendedLimit, ShouldEqual, 20)
			So(cfg.MatchGroupedLimit, ShouldEqual, 50)
			So(cfg.EmbedProvider, ShouldEqual, EmbedProviderOllama)
			So(cfg.EmbedTimeout, ShouldEqual, 15*time.Second)
			So(cfg.Validate(), ShouldBeNil)
		})
	})

	Convey("Given overrides in the environment", t, func() {
		t.Setenv("PORT", "8080")
		t.Setenv("MATCH_WORKERS", "3")
		t.Setenv("MATCH_WEIGHT_ROLES", "0.5")
		t.Setenv("EMBED_TIMEOUT", "2s")
		t.Setenv("MCP_ENABLED", "true")
		t.Setenv("EMBED_PROVIDER", "GEMINI")
		t.Setenv("GEMINI_API_KEY", "key")

		cfg := Load()

		So(cfg.Port, ShouldEqual, "8080")
		So(cfg.MatchWorkers, ShouldEqual, 3)
		So(cfg.MatchWeightRoles, ShouldEqual, 0.5)
		So(cfg.EmbedTimeout, ShouldEqual, 2*time.Second)
		So(cfg.MCPEnabled, ShouldBeTrue)
		So(cfg.EmbedProvider, ShouldEqual, EmbedProviderGemini)
		So(cfg.Validate(), ShouldBeNil)
	})

	Convey("Given malformed numeric values", t, func() {
		t.Setenv("MATCH_WORKERS", "many")
		t.Setenv("MATCH_WEIGHT_SKILLS", "heavy")

		cfg := Load()

		Convey("Then the defaults are kept", func() {
			So(cfg.MatchWorkers, ShouldEqual, 8)
			So(cfg.MatchWeightSkills, ShouldEqual, 0.40)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a valid configuration", t, func() {
		cfg := Load()

		Convey("When the provider is unknown", func() {
			cfg.EmbedProvider = "word2vec"
			So(cfg.Validate(), ShouldNotBeNil)
			So(cfg.Validate().Error(), ShouldContainSubstring, "word2vec")
		})

		Convey("When gemini is selected without a key", func() {
			cfg.EmbedProvider = EmbedProviderGemini
			cfg.GeminiAPIKey = " "
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("When workers or weights are out of range", func() {
			cfg.MatchWorkers = 0
			cfg.MatchWeightCategory = -1
			err := cfg.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "MATCH_WORKERS")
			So(err.Error(), ShouldContainSubstring, "weights")
		})

		Convey("When every weight is zero", func() {
			cfg.MatchWeightSkills, cfg.MatchWeightRoles, cfg.MatchWeightCategory = 0, 0, 0
			err := cfg.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "sum to a positive")
		})

		Convey("When production runs with the default JWT secret", func() {
			cfg.AppEnv = "production"
			cfg.JWTSecret = DefaultJWTSecret
			So(cfg.Validate(), ShouldNotBeNil)
			So(cfg.Validate().Error(), ShouldContainSubstring, "JWT_SECRET")

			cfg.JWTSecret = "a-real-secret"
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("When development runs with the default JWT secret", func() {
			cfg.AppEnv = "development"
			cfg.JWTSecret = DefaultJWTSecret
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}

func TestSlogLevel(t *testing.T) {
	Convey("Log levels map onto slog levels", t, func() {
		cfg := &Config{}
		for in, want := range map[string]slog.Level{
			"debug":   slog.LevelDebug,
			"WARN":    slog.LevelWarn,
			"warning": slog.LevelWarn,
			"error":   slog.LevelError,
			"":        slog.LevelInfo,
			"verbose": slog.LevelInfo,
		} {
			cfg.LogLevel = in
			So(cfg.SlogLevel(), ShouldEqual, want)
		}
	})
}

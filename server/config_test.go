package server_test

import (
	"errors"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/camoufox-launcher/server"
)

var _ = Describe("Config", func() {
	Describe("ParseBool", func() {
		DescribeTable("accepted truthy strings",
			func(raw string) {
				Expect(server.ParseBool(raw, false)).To(BeTrue())
			},
			Entry("true", "true"),
			Entry("TRUE", "TRUE"),
			Entry("1", "1"),
			Entry("yes", "yes"),
			Entry("Yes", "Yes"),
			Entry("on", "on"),
			Entry("ON", "ON"),
		)

		DescribeTable("other non-empty strings are false",
			func(raw string) {
				Expect(server.ParseBool(raw, true)).To(BeFalse())
			},
			Entry("false", "false"),
			Entry("0", "0"),
			Entry("no", "no"),
			Entry("off", "off"),
			Entry("typo", "ture"),
			Entry("padded", " true"),
			Entry("2", "2"),
		)

		It("returns the default for an empty value", func() {
			Expect(server.ParseBool("", true)).To(BeTrue())
			Expect(server.ParseBool("", false)).To(BeFalse())
		})
	})

	Describe("BuildProxyConfig", func() {
		It("returns nil when no proxy server is set", func() {
			Expect(server.BuildProxyConfig(server.Env{})).To(BeNil())
		})

		It("returns nil when the proxy server is empty", func() {
			env := server.Env{
				server.EnvProxyServer:   "",
				server.EnvProxyUsername: "user",
			}
			Expect(server.BuildProxyConfig(env)).To(BeNil())
		})

		It("contains only the server when credentials are unset", func() {
			proxy := server.BuildProxyConfig(server.Env{server.EnvProxyServer: "http://proxy:8080"})
			Expect(proxy).To(Equal(&server.ProxyConfig{Server: "http://proxy:8080"}))
		})

		It("includes the username and password when set", func() {
			env := server.Env{
				server.EnvProxyServer:   "http://proxy:8080",
				server.EnvProxyUsername: "alice",
				server.EnvProxyPassword: "s3cret",
			}
			Expect(server.BuildProxyConfig(env)).To(Equal(&server.ProxyConfig{
				Server:   "http://proxy:8080",
				Username: "alice",
				Password: "s3cret",
			}))
		})

		It("includes the password without a username", func() {
			env := server.Env{
				server.EnvProxyServer:   "socks5://proxy:1080",
				server.EnvProxyPassword: "s3cret",
			}
			proxy := server.BuildProxyConfig(env)
			Expect(proxy.Username).To(BeEmpty())
			Expect(proxy.Password).To(Equal("s3cret"))
		})
	})

	Describe("LoadServerConfig", func() {
		It("uses defaults for an empty environment", func() {
			config, err := server.LoadServerConfig(server.Env{})
			Expect(err).NotTo(HaveOccurred())
			Expect(config).To(Equal(server.Config{
				Port:     3000,
				WSPath:   "connect",
				Headless: true,
				GeoIP:    false,
				Proxy:    nil,
			}))
		})

		It("reads port and headless", func() {
			config, err := server.LoadServerConfig(server.Env{
				server.EnvPort:     "8080",
				server.EnvHeadless: "0",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(config.Port).To(Equal(8080))
			Expect(config.Headless).To(BeFalse())
			Expect(config.WSPath).To(Equal("connect"))
			Expect(config.GeoIP).To(BeFalse())
		})

		It("reads every variable", func() {
			config, err := server.LoadServerConfig(server.Env{
				server.EnvPort:        "9222",
				server.EnvWSPath:      "browser",
				server.EnvHeadless:    "false",
				server.EnvGeoIP:       "yes",
				server.EnvProxyServer: "http://proxy:3128",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(config).To(Equal(server.Config{
				Port:     9222,
				WSPath:   "browser",
				Headless: false,
				GeoIP:    true,
				Proxy:    &server.ProxyConfig{Server: "http://proxy:3128"},
			}))
		})

		It("fails on a non-numeric port", func() {
			_, err := server.LoadServerConfig(server.Env{server.EnvPort: "abc"})
			Expect(err).To(HaveOccurred())

			var configErr *server.ConfigError
			Expect(errors.As(err, &configErr)).To(BeTrue())
			Expect(configErr.Var).To(Equal(server.EnvPort))
			Expect(configErr.Value).To(Equal("abc"))

			var numErr *strconv.NumError
			Expect(errors.As(err, &numErr)).To(BeTrue())
		})

		It("fails on an out of range port", func() {
			_, err := server.LoadServerConfig(server.Env{server.EnvPort: "70000"})
			Expect(err).To(MatchError(ContainSubstring("out of range")))
		})

		DescribeTable("fails on a port that is set but blank",
			func(raw string) {
				_, err := server.LoadServerConfig(server.Env{server.EnvPort: raw})

				var configErr *server.ConfigError
				Expect(errors.As(err, &configErr)).To(BeTrue())
				Expect(configErr.Var).To(Equal(server.EnvPort))
				Expect(err).To(MatchError(ContainSubstring("empty value")))
			},
			Entry("empty", ""),
			Entry("whitespace", " "),
		)

		It("defaults an empty websocket path", func() {
			config, err := server.LoadServerConfig(server.Env{server.EnvWSPath: ""})
			Expect(err).NotTo(HaveOccurred())
			Expect(config.WSPath).To(Equal("connect"))
		})

		It("tolerates surrounding whitespace in the port", func() {
			config, err := server.LoadServerConfig(server.Env{server.EnvPort: " 4000 "})
			Expect(err).NotTo(HaveOccurred())
			Expect(config.Port).To(Equal(4000))
		})
	})

	Describe("LoadRuntimeConfig", func() {
		It("uses defaults", func() {
			Expect(server.LoadRuntimeConfig(server.Env{})).To(Equal(server.RuntimeConfig{
				Python: "python3",
			}))
		})

		It("reads the launcher settings", func() {
			runtime := server.LoadRuntimeConfig(server.Env{
				server.EnvPython:     "/opt/venv/bin/python",
				server.EnvHealthAddr: ":8081",
				server.EnvDebug:      "on",
				server.EnvLogFormat:  "JSON",
			})
			Expect(runtime).To(Equal(server.RuntimeConfig{
				Python:     "/opt/venv/bin/python",
				HealthAddr: ":8081",
				Debug:      true,
				LogFormat:  "json",
			}))
		})
	})

	Describe("Lint", func() {
		It("accepts recognised spellings", func() {
			Expect(server.Lint(server.Env{
				server.EnvHeadless: "OFF",
				server.EnvGeoIP:    "1",
				server.EnvDebug:    "no",
			})).To(BeEmpty())
		})

		It("warns about values silently treated as false", func() {
			warnings := server.Lint(server.Env{
				server.EnvHeadless: "ture",
				server.EnvGeoIP:    "enabled",
			})
			Expect(warnings).To(HaveLen(2))
			Expect(warnings[0]).To(ContainSubstring(server.EnvGeoIP))
			Expect(warnings[1]).To(ContainSubstring(server.EnvHeadless))
		})
	})

	Describe("Env", func() {
		It("never lets the overlay override existing values", func() {
			env := server.Env{"A": "process"}.Merge(server.Env{"A": "file", "B": "file"})
			Expect(env).To(Equal(server.Env{"A": "process", "B": "file"}))
		})
	})

	Describe("URL", func() {
		It("joins host, port and path", func() {
			config := server.Config{Port: 3000, WSPath: "connect"}
			Expect(config.URL("0.0.0.0")).To(Equal("ws://0.0.0.0:3000/connect"))
		})

		It("does not double a leading slash", func() {
			config := server.Config{Port: 3000, WSPath: "/connect"}
			Expect(config.URL("127.0.0.1")).To(Equal("ws://127.0.0.1:3000/connect"))
		})
	})

	Describe("Redacted", func() {
		It("masks the proxy password on a copy", func() {
			config := server.Config{Proxy: &server.ProxyConfig{Server: "http://p", Username: "u", Password: "pw"}}
			redacted := config.Redacted()

			Expect(redacted.Proxy.Password).To(Equal("***"))
			Expect(redacted.Proxy.Username).To(Equal("u"))
			Expect(config.Proxy.Password).To(Equal("pw"))
		})
	})
})

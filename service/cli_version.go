package service

import (
	"net/http"
	"strings"

	"cidc/logutils"
	"cidc/response"

	"github.com/gin-gonic/gin"
	"golang.org/x/mod/semver"
)

const outdatedCLIMessage = "You appear to be using an out-of-date version of the CIDC CLI. " +
	"Please upgrade to the most recent version:\n    pip3 install --upgrade cidc-cli"

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

// CLIVersion rejects requests from CLI releases older than minVersion.
// Requests without a User-Agent pass; so do other clients.
func CLIVersion(minVersion string) gin.HandlerFunc {
	floor := canonicalVersion(minVersion)
	return func(c *gin.Context) {
		ua := c.GetHeader("User-Agent")
		if ua == "" {
			c.Next()
			return
		}
		client, version, ok := strings.Cut(ua, "/")
		if !ok {
			logutils.Log.Warnf("unrecognized user-agent string format: %s", ua)
			response.BadRequestError(c, "could not parse User-Agent string")
			return
		}

		switch client {
		case "python-requests":
			// The oldest CLIs only show messages of 401 responses.
			logutils.Log.Info("cancelling request: detected outdated CLI")
			response.HTTPError(c, http.StatusUnauthorized, outdatedCLIMessage, response.OutdatedCLI)
			return
		case "cidc-cli":
			version, _, _ = strings.Cut(version, " ")
			v := canonicalVersion(version)
			if v == "" {
				response.BadRequestError(c, "could not parse CLI version "+version)
				return
			}
			if floor != "" && semver.Compare(v, floor) < 0 {
				logutils.Log.Infof("cancelling request: detected outdated CLI %s", version)
				response.HTTPError(c, http.StatusPreconditionFailed, outdatedCLIMessage, response.OutdatedCLI)
				return
			}
		}
		c.Next()
	}
}

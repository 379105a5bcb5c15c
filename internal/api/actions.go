package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/httputil"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

// RedirectField is the form field naming where a browser form post should
// be sent back to after the action.
const RedirectField = "redirect_to"

// actions holds what every admin action handler shares.
type actions struct {
	log  *logrus.Logger
	site *url.URL
}

func newActions(log *logrus.Logger, siteURL string) *actions {
	site, err := url.Parse(siteURL)
	if err != nil || site.Host == "" {
		site = nil
	}

	return &actions{log: log, site: site}
}

// succeed answers a completed action with 200.
func (a *actions) succeed(c *gin.Context, action, notice string, data any) {
	a.respond(c, http.StatusOK, models.ActionResponse{
		Action: action,
		Result: models.ResultSuccess,
		Notice: notice,
		Data:   data,
	})
}

// respond writes resp as JSON, or sends a 303 to the redirect target with
// the outcome in its query when the request named a safe one.
func (a *actions) respond(c *gin.Context, status int, resp models.ActionResponse) {
	target, ok := a.safeRedirect(c.PostForm(RedirectField))
	if !ok {
		c.JSON(status, resp)
		return
	}

	q := target.Query()
	q.Set("action", resp.Action)
	q.Set("result", resp.Result)
	q.Set("notice", resp.Notice)
	target.RawQuery = q.Encode()

	c.Redirect(http.StatusSeeOther, target.String())
}

// safeRedirect accepts a path on this host or an absolute URL on the site
// origin.
func (a *actions) safeRedirect(raw string) (*url.URL, bool) {
	if raw == "" || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return nil, false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}

	if !u.IsAbs() && u.Host == "" {
		return u, strings.HasPrefix(u.Path, "/")
	}

	if a.site == nil {
		return nil, false
	}

	if !strings.EqualFold(u.Scheme, a.site.Scheme) || !strings.EqualFold(u.Host, a.site.Host) {
		return nil, false
	}

	return u, true
}

// audit emits the audit line for one admin action.
func (a *actions) audit(c *gin.Context, action, result string, fields logrus.Fields) {
	entry := a.log.WithFields(logrus.Fields{
		"action":     action,
		"result":     result,
		"client_ip":  c.ClientIP(),
		"request_id": httputil.RequestID(c),
	})

	entry.WithFields(fields).Info("audit")
}

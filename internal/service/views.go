package service

import (
	"net/url"
	"strconv"
	"strings"
)

// ViewURLs builds the extension-view URLs the daemon redirects tabs to.
// All state crosses this boundary as query parameters.
type ViewURLs struct {
	base string
}

func NewViewURLs(base string) *ViewURLs {
	return &ViewURLs{base: strings.TrimRight(base, "/")}
}

// Justification is the write-a-reason view, doubling as the cool-down view
// when blocked is set.
func (v *ViewURLs) Justification(target string, tabID int, blocked bool) string {
	u := v.base + "/block.html?target=" + url.QueryEscape(target) +
		"&tabId=" + strconv.Itoa(tabID)
	if blocked {
		u += "&blocked=true"
	}
	return u
}

// Reflection is the post-visit reflection view.
func (v *ViewURLs) Reflection(target string, tabID int, visitID string) string {
	return v.base + "/reflect.html?target=" + url.QueryEscape(target) +
		"&tabId=" + strconv.Itoa(tabID) +
		"&visitId=" + url.QueryEscape(visitID)
}

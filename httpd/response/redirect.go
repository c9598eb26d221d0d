/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package response

import (
	"regexp"

	"github.com/DavidBittner/http-webserver/httpd/headers"
)

// Rule is one configured redirect: a pattern over the root-relative request
// path, a substitution template, and the status to answer with.
type Rule struct {
	Regex    *regexp.Regexp
	Template string
	Code     headers.StatusCode
}

// RuleSet is the ordered redirect list; first match wins.
type RuleSet []Rule

// NewRule compiles a rule from its configured parts.
func NewRule(pattern, template string, code int) (r Rule, err error) {
	if r.Regex, err = regexp.Compile(pattern); err != nil {
		return
	}
	if r.Code, err = headers.StatusFromCode(code); err != nil {
		return
	}
	r.Template = template
	return
}

// Match returns the substituted Location and status of the first rule whose
// regex matches the path.
func (rs RuleSet) Match(path string) (loc string, code headers.StatusCode, ok bool) {
	for _, r := range rs {
		if r.Regex.MatchString(path) {
			loc = r.Regex.ReplaceAllString(path, r.Template)
			code = r.Code
			ok = true
			return
		}
	}
	return
}

package session

import "net/url"

// CallbackParams carries the OAuth redirect parameters into Bootstrap,
// decoupling the state machine from any particular location source.
type CallbackParams struct {
	Code  string
	State string
}

// HasCode reports whether the params contain an authorization code.
func (p CallbackParams) HasCode() bool {
	return p.Code != ""
}

// ParseCallback extracts the OAuth parameters from a redirect location and
// returns them together with a scrubbed copy of the URL. Only the code and
// state parameters are removed; unrelated query parameters are preserved so
// the caller can keep displaying them.
func ParseCallback(u *url.URL) (CallbackParams, *url.URL) {
	params := CallbackParams{}
	if u == nil {
		return params, nil
	}

	q := u.Query()
	params.Code = q.Get("code")
	params.State = q.Get("state")
	q.Del("code")
	q.Del("state")

	clean := *u
	clean.RawQuery = q.Encode()
	return params, &clean
}

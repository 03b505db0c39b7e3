package extract

import (
	"github.com/go-rod/rod/lib/proto"
)

// Cookie names the platform expects for an authenticated session.
const (
	// SessionCookieName carries the long-lived login token.
	SessionCookieName = "auth_token"

	// CSRFCookieName carries the csrf token paired with the session.
	// Page scripts read it to stamp API calls, so unlike the session
	// cookie it must stay visible to JavaScript.
	CSRFCookieName = "ct0"
)

// cookieDomains are the host variants the session cookie must cover.
// The platform still serves from its legacy domain, and pages bounce
// between apex and www depending on the link followed, so the cookie
// has to be present on all of them before the first navigation.
var cookieDomains = []string{
	"x.com",
	"www.x.com",
	"twitter.com",
	"www.twitter.com",
}

// AuthCookies builds the cookie set to inject before navigation.
// The session cookie is HttpOnly and Secure on every domain variant.
// The csrf cookie, when provided, is Secure but deliberately not
// HttpOnly. An empty csrfToken omits the csrf cookie entirely.
func AuthCookies(authToken, csrfToken string) []*proto.NetworkCookieParam {
	cookies := make([]*proto.NetworkCookieParam, 0, 2*len(cookieDomains))
	for _, domain := range cookieDomains {
		cookies = append(cookies, &proto.NetworkCookieParam{
			Name:     SessionCookieName,
			Value:    authToken,
			Domain:   domain,
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
			SameSite: proto.NetworkCookieSameSiteNone,
		})
		if csrfToken != "" {
			cookies = append(cookies, &proto.NetworkCookieParam{
				Name:     CSRFCookieName,
				Value:    csrfToken,
				Domain:   domain,
				Path:     "/",
				Secure:   true,
				HTTPOnly: false,
				SameSite: proto.NetworkCookieSameSiteLax,
			})
		}
	}
	return cookies
}

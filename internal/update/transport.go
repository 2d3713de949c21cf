package update

import "net/url"

// IsSecureURL reports whether raw is an absolute https URL with a host.
// Anything that fails to parse is treated as insecure.
func IsSecureURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && u.Host != ""
}

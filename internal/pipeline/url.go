package pipeline

import (
	"net/url"
	"strings"

	"searchgate/internal/apierr"
)

// normalizeURL implements spec §4.7's URL normalization and protocol/TLD
// rejection, grounded on the teacher's crawler/url_validator.go style
// (net/url-based structural checks rather than regex).
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apierr.New(apierr.ParamValidation, "missing url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", apierr.New(apierr.ParamValidation, "malformed url")
	}

	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file" {
		return "", apierr.New(apierr.ParamValidation, "unsupported protocol")
	}

	if err := validateTLD(u.Hostname()); err != nil {
		return "", err
	}

	return u.String(), nil
}

func validateTLD(host string) error {
	if host == "" {
		return nil
	}
	labels := strings.Split(host, ".")
	last := labels[len(labels)-1]
	if len(last) < 2 {
		return apierr.New(apierr.ParamValidation, "Invalid URL or TLD")
	}
	return nil
}

func isInvalidTLDOrDNS(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid url or tld") || strings.Contains(msg, "dns") || strings.Contains(msg, "no such host")
}

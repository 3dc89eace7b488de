// Utilities for turning a browser "copy as cURL" capture into session headers.
package shared

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderFlag = regexp.MustCompile(`(?:-H|--header)\s+'([^']+)'|(?:-H|--header)\s+"([^"]+)"`)
	curlCookieFlag = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
)

// CurlHeaders holds the headers and cookie captured from a cURL command.
type CurlHeaders struct {
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a file containing a cURL command and extracts its headers.
func ParseCurlFile(path string) (*CurlHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(string(content))
}

// ParseCurlCommand extracts headers and the cookie from a cURL command.
//
// A cookie passed with -b wins over a Cookie header.
func ParseCurlCommand(raw string) (*CurlHeaders, error) {
	cmd := strings.ReplaceAll(raw, "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	headers := make(map[string]string)
	var headerCookie string

	for _, match := range curlHeaderFlag.FindAllStringSubmatch(cmd, -1) {
		key, value, ok := strings.Cut(firstNonEmpty(match[1], match[2]), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		headers[key] = value
	}

	cookie := headerCookie
	if m := curlCookieFlag.FindStringSubmatch(cmd); m != nil {
		cookie = firstNonEmpty(m[1], m[2])
	}

	if len(headers) == 0 && cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrValidation)
	}
	return &CurlHeaders{Headers: headers, Cookie: cookie}, nil
}

// Bundle flattens the capture into a single header map, with the cookie stored under "Cookie".
func (c *CurlHeaders) Bundle() map[string]string {
	bundle := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		bundle[k] = v
	}
	if c.Cookie != "" {
		bundle["Cookie"] = c.Cookie
	}
	return bundle
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

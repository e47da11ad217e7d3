package utility

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
)

// GetRealIP is a helper function to get the user's real IP address.
// It checks proxy headers (like from ngrok) first.
func GetRealIP(c echo.Context) string {
	// X-Forwarded-For can be a list: "client, proxy1, proxy2"
	xForwardedFor := c.Request().Header.Get("X-Forwarded-For")
	if xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	xRealIP := c.Request().Header.Get("X-Real-IP")
	if xRealIP != "" {
		return xRealIP
	}

	return c.RealIP()
}

// ParseDataURI splits a "data:<mimetype>;base64,<data>" payload into its MIME
// type and raw base64 content, verifying the base64 decodes. Image inputs to
// the analysis pipeline arrive in this form.
func ParseDataURI(uri string) (mimeType string, data string, err error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", "", fmt.Errorf("payload is not a data URI")
	}

	meta, data, found := strings.Cut(uri[len("data:"):], ",")
	if !found {
		return "", "", fmt.Errorf("data URI has no content separator")
	}

	mimeType, encoding, found := strings.Cut(meta, ";")
	if !found || encoding != "base64" {
		return "", "", fmt.Errorf("data URI is not base64-encoded")
	}
	if mimeType == "" {
		return "", "", fmt.Errorf("data URI has no MIME type")
	}

	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return "", "", fmt.Errorf("data URI content is not valid base64: %w", err)
	}

	return mimeType, data, nil
}

// Helper function for nil-safe string pointers.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PgText wraps a string into a pgtype.Text, marking empty strings as NULL.
func PgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// PgTimestamptz wraps a time.Time into a pgtype.Timestamptz.
func PgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

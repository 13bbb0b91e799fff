package server

import (
	"net"
	"net/http"

	"github.com/jrsteele09/go-sso-server/sessions"
)

// Headers set by the edge proxy or the client app
const (
	headerDeviceID = "X-Device-Id"
	headerCountry  = "X-Geo-Country"
	headerCity     = "X-Geo-City"
)

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestMetadata describes the device and network of the caller
func requestMetadata(r *http.Request) sessions.Metadata {
	md := sessions.Metadata{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
		DeviceID:  r.Header.Get(headerDeviceID),
	}
	if country := r.Header.Get(headerCountry); country != "" {
		md.Location = &sessions.Location{Country: country, City: r.Header.Get(headerCity)}
	}
	return md
}

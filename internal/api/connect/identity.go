package connect

import (
	"net"
	"net/http"
	"strings"
)

const forwardedForHeader = "X-Forwarded-For"

// clientAddress returns the first X-Forwarded-For entry when trusted, else
// the peer host.
func clientAddress(header http.Header, peerAddr string, trustForwarded bool) string {
	if trustForwarded {
		if fwd := header.Get(forwardedForHeader); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(peerAddr)
	if err != nil {
		return peerAddr
	}
	return host
}

package recovery

import (
	"fmt"
	"net/url"
	"strings"
)

// RoomURL builds the direct URL to a room on the signaling host, for the
// embedded-provider fallback transport. Credential, room password and
// display name are each optional and independently omittable.
func RoomURL(host, room, credential, password, displayName string) string {
	host = strings.TrimSuffix(host, "/")
	vals := url.Values{}
	if credential != "" {
		vals.Set("jwt", credential)
	}
	if password != "" {
		vals.Set("pwd", password)
	}
	if displayName != "" {
		vals.Set("userInfo.displayName", displayName)
	}
	u := fmt.Sprintf("https://%s/%s", host, url.PathEscape(room))
	if enc := vals.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

package xfyun

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/nadzzz/interviewdesk/internal/transcriber"
)

// Credentials is the configured credential set.
type Credentials struct {
	AppID  string
	Key    string
	Secret string
}

// Scheme is the request-signing scheme, chosen once per adapter.
type Scheme interface {
	Name() string
	scheme()
}

// NewScheme signs the sorted query string with HMAC-SHA1 and sends it in the
// "signature" header. It requires both the access key id and its secret.
type NewScheme struct {
	Key    string
	Secret string
}

func (NewScheme) Name() string { return "new" }
func (NewScheme) scheme()      {}

// LegacyScheme sends signa = base64(HMAC-SHA1(md5hex(appId+ts))) as a query parameter.
type LegacyScheme struct {
	Secret string
}

func (LegacyScheme) Name() string { return "legacy" }
func (LegacyScheme) scheme()      {}

// SelectScheme derives the signing scheme from which credentials are present.
// Key and Secret together select NewScheme; a single secret selects LegacyScheme.
func SelectScheme(c Credentials) (Scheme, error) {
	appID := strings.TrimSpace(c.AppID)
	key := strings.TrimSpace(c.Key)
	secret := strings.TrimSpace(c.Secret)

	if appID == "" {
		return nil, &transcriber.ConfigurationError{Backend: name, Message: "xfyun.app_id is not set"}
	}
	switch {
	case key != "" && secret != "":
		return NewScheme{Key: key, Secret: secret}, nil
	case secret != "":
		return LegacyScheme{Secret: secret}, nil
	case key != "":
		return LegacyScheme{Secret: key}, nil
	default:
		return nil, &transcriber.ConfigurationError{Backend: name, Message: "xfyun.key/xfyun.secret are not set"}
	}
}

// Signa computes the legacy signature for appID and a unix-seconds timestamp.
func Signa(appID, ts, secret string) string {
	sum := md5.Sum([]byte(appID + ts))
	digest := hex.EncodeToString(sum[:])

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(digest))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// CanonicalQuery renders params sorted by key, values url-encoded, without
// the signature itself.
func CanonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		fmt.Fprintf(&sb, "%s=%s", k, url.QueryEscape(params.Get(k)))
	}
	return sb.String()
}

// Signature computes the header signature of the new scheme.
func Signature(params url.Values, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(CanonicalQuery(params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

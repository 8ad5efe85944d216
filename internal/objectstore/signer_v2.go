package objectstore

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws/request"
)

// signV2Handler implements the legacy AWS "S3" (SigV2) signing scheme that
// Dell ECS still requires for data-plane operations (PUT/GET/DELETE/COPY).
// aws-sdk-go v1's own SigV2 implementation lives in the unexported
// private/signer/v2 package and cannot be imported, so this is a deliberate,
// minimal reimplementation of the documented algorithm:
//
//	StringToSign = HTTP-Verb + "\n" +
//	    Content-MD5 + "\n" +
//	    Content-Type + "\n" +
//	    Date + "\n" +
//	    CanonicalizedAmzHeaders + CanonicalizedResource
//
// Signature = Base64(HMAC-SHA1(StringToSign, SecretAccessKey))
// Authorization header = "AWS AccessKeyID:Signature"
type signV2Handler struct {
	accessKeyID     string
	secretAccessKey string
}

func newSignV2Handler(accessKeyID, secretAccessKey string) *signV2Handler {
	return &signV2Handler{accessKeyID: accessKeyID, secretAccessKey: secretAccessKey}
}

// sign is installed as a named handler in the request's Sign handler list,
// replacing the SDK's default v4 signer for this client.
func (s *signV2Handler) sign(r *request.Request) {
	req := r.HTTPRequest
	if req.Header.Get("Date") == "" {
		req.Header.Set("Date", r.Time.UTC().Format(http.TimeFormat))
	}

	stringToSign := strings.Join([]string{
		req.Method,
		req.Header.Get("Content-MD5"),
		req.Header.Get("Content-Type"),
		req.Header.Get("Date"),
		canonicalizedAmzHeaders(req.Header) + canonicalizedResource(req.URL),
	}, "\n")

	mac := hmac.New(sha1.New, []byte(s.secretAccessKey))
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", fmt.Sprintf("AWS %s:%s", s.accessKeyID, signature))
}

// canonicalizedAmzHeaders lowercases, sorts, and folds every x-amz-* header
// into the CanonicalizedAmzHeaders component of the string to sign.
func canonicalizedAmzHeaders(h http.Header) string {
	var keys []string
	values := map[string]string{}
	for k, v := range h {
		lk := strings.ToLower(k)
		if !strings.HasPrefix(lk, "x-amz-") {
			continue
		}
		keys = append(keys, lk)
		values[lk] = strings.Join(v, ",")
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(values[k])
		b.WriteByte('\n')
	}
	return b.String()
}

// canonicalizedResource returns "/bucket/key" (plus recognized subresource
// query params), the resource component of the SigV2 string to sign. This
// adapter always uses path-style addressing (S3ForcePathStyle), so the
// bucket already appears as the first path segment and needs no extra
// handling for virtual-hosted-style requests.
func canonicalizedResource(u *url.URL) string {
	resource := u.Path
	if resource == "" {
		resource = "/"
	}

	var subresources []string
	query, _ := url.ParseQuery(u.RawQuery)
	for _, name := range v2Subresources {
		if vals, ok := query[name]; ok {
			if len(vals) > 0 && vals[0] != "" {
				subresources = append(subresources, name+"="+vals[0])
			} else {
				subresources = append(subresources, name)
			}
		}
	}
	if len(subresources) > 0 {
		sort.Strings(subresources)
		resource += "?" + strings.Join(subresources, "&")
	}
	return resource
}

// v2Subresources is the fixed set of query parameters SigV2 treats as part
// of the canonicalized resource when present. Live Memory's adapter never
// issues requests using most of these, but the list is kept complete so
// canonicalizedResource behaves correctly if a new operation starts using
// one.
var v2Subresources = []string{
	"acl", "lifecycle", "location", "logging", "notification", "partNumber",
	"policy", "requestPayment", "torrent", "uploadId", "uploads", "versionId",
	"versioning", "versions", "website",
}

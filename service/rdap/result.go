package rdap

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ObjectKind discriminates the RDAP object classes the service handles.
type ObjectKind string

// Handled object classes, as they appear in the objectClassName field.
const (
	ObjectDomain    ObjectKind = "domain"
	ObjectIPNetwork ObjectKind = "ip network"
	ObjectAutnum    ObjectKind = "autnum"
)

// Response is the payload of a successfully answered RDAP query.
type Response struct {
	// Payload is the raw JSON body as returned by the RDAP server.
	Payload []byte
	// Kind is the object class the payload declared.
	Kind ObjectKind
	// FetchedFrom is the URL that produced the payload, after redirects.
	FetchedFrom string
}

// classifyPayload checks the body for the RDAP object class marker and
// returns the matched kind.
func classifyPayload(body []byte) (kind ObjectKind, ok bool) {
	switch ObjectKind(gjson.GetBytes(body, "objectClassName").String()) {
	case ObjectDomain:
		return ObjectDomain, true
	case ObjectIPNetwork:
		return ObjectIPNetwork, true
	case ObjectAutnum:
		return ObjectAutnum, true
	default:
		return "", false
	}
}

// upstreamError builds a structured error from a non-2xx response. If the
// body carries an RDAP error document, its fields are used; otherwise one is
// synthesized from the status code.
func upstreamError(kind ErrorKind, statusCode int, body []byte) *StructuredError {
	if len(body) > 0 && gjson.ValidBytes(body) {
		if errorCode := gjson.GetBytes(body, "errorCode"); errorCode.Exists() {
			serr := &StructuredError{
				Kind:  kind,
				Code:  int(errorCode.Int()),
				Title: gjson.GetBytes(body, "title").String(),
			}
			for _, entry := range gjson.GetBytes(body, "description").Array() {
				serr.Description = append(serr.Description, entry.String())
			}
			if serr.Title == "" {
				serr.Title = http.StatusText(statusCode)
			}
			return serr
		}
	}

	return &StructuredError{
		Kind:        kind,
		Code:        statusCode,
		Title:       http.StatusText(statusCode),
		Description: []string{fmt.Sprintf("upstream RDAP server responded with status %d", statusCode)},
	}
}

package lookup

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/safing/rdapd/base/api"
	"github.com/safing/rdapd/base/database/record"
	"github.com/safing/rdapd/base/log"
	"github.com/safing/rdapd/service/rdap"
)

func registerAPIEndpoints(l *Lookups) error {
	if err := api.RegisterEndpoint(api.Endpoint{
		Path:        "lookup/{query}",
		MimeType:    api.MimeTypeJSON,
		Name:        "RDAP Lookup",
		Description: "Resolves registration data for a domain or IP address, serving cached results when available.",
		HandlerFunc: l.handleLookup,
	}); err != nil {
		return err
	}

	if err := api.RegisterEndpoint(api.Endpoint{
		Path:        "asn/{asn}",
		MimeType:    api.MimeTypeJSON,
		Name:        "RDAP ASN Lookup",
		Description: "Resolves registration data for an autonomous system number.",
		HandlerFunc: l.handleASNLookup,
	}); err != nil {
		return err
	}

	if err := api.RegisterEndpoint(api.Endpoint{
		Path: `cache/domain/{domain:[a-z0-9\.-]{1,512}}`,
		RecordFunc: func(ar *api.Request) (record.Record, error) {
			return recordDatabase.Get(domainKeyPrefix + ar.URLVars["domain"])
		},
		Name:        "Get Cached Domain Lookup",
		Description: "Returns the stored record of a cached domain lookup.",
	}); err != nil {
		return err
	}

	return api.RegisterEndpoint(api.Endpoint{
		Path:        "cache/clear",
		Method:      http.MethodPost,
		MimeType:    api.MimeTypeText,
		Name:        "Clear Lookup Cache",
		Description: "Deletes all cached RDAP lookup results.",
		ActionFunc: func(ar *api.Request) (string, error) {
			n, err := clearCache(ar.Context())
			if err != nil {
				return "", err
			}
			log.Infof("lookup: cleared %d cached results via action", n)
			return fmt.Sprintf("cleared %d cached lookup results", n), nil
		},
	})
}

func (l *Lookups) handleLookup(w http.ResponseWriter, r *http.Request) {
	ar := api.GetAPIRequest(r)
	if ar == nil {
		http.NotFound(w, r)
		return
	}

	result, err := l.Lookup(r.Context(), ar.URLVars["query"])
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSONResponse(w, r, result)
}

func (l *Lookups) handleASNLookup(w http.ResponseWriter, r *http.Request) {
	ar := api.GetAPIRequest(r)
	if ar == nil {
		http.NotFound(w, r)
		return
	}

	asn, serr := parseASNQuery(ar.URLVars["asn"])
	if serr != nil {
		countInvalidQuery()
		writeErrorResponse(w, r, serr)
		return
	}

	result, err := l.LookupASN(r.Context(), asn)
	if err != nil {
		writeErrorResponse(w, r, err)
		return
	}
	writeJSONResponse(w, r, result)
}

// parseASNQuery parses an AS number, with or without the customary AS
// prefix.
func parseASNQuery(rawASN string) (uint32, *rdap.StructuredError) {
	trimmed := strings.TrimSpace(rawASN)
	if len(trimmed) > 2 && strings.EqualFold(trimmed[:2], "as") {
		trimmed = trimmed[2:]
	}

	asn, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, invalidInput(fmt.Sprintf("%q is not an AS number", rawASN))
	}
	return uint32(asn), nil
}

func writeJSONResponse(w http.ResponseWriter, r *http.Request, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", api.MimeTypeJSON+"; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Tracer(r.Context()).Warningf("lookup: failed to write response: %s", err)
	}
}

// writeErrorResponse serves the failure as a JSON error document in the
// shape of an RDAP error response, with the HTTP status taken from the
// error itself.
func writeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var serr *rdap.StructuredError
	if !errors.As(err, &serr) {
		serr = rdap.NewError(rdap.KindInternalError, "internal error", err.Error())
	}

	data, merr := json.Marshal(serr)
	if merr != nil {
		http.Error(w, serr.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", api.MimeTypeJSON+"; charset=utf-8")
	w.WriteHeader(serr.HTTPStatus())
	if _, werr := w.Write(data); werr != nil {
		log.Tracer(r.Context()).Warningf("lookup: failed to write error response: %s", werr)
	}
}

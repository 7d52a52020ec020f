package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/pprof"
)

func registerMetaEndpoints() error {
	if err := RegisterEndpoint(Endpoint{
		Path:        "ping",
		ActionFunc:  ping,
		Name:        "Ping",
		Description: "Pong.",
	}); err != nil {
		return err
	}

	if err := RegisterEndpoint(Endpoint{
		Path:        "ready",
		ActionFunc:  ready,
		Name:        "Ready",
		Description: "Check if all modules have completed starting and are ready.",
	}); err != nil {
		return err
	}

	if err := RegisterEndpoint(Endpoint{
		Path:        "endpoints",
		MimeType:    MimeTypeJSON,
		DataFunc:    listEndpoints,
		Name:        "Export API Endpoints",
		Description: "Returns a list of all registered endpoints and their metadata.",
	}); err != nil {
		return err
	}

	if err := RegisterEndpoint(Endpoint{
		Path:        "debug/stack",
		DataFunc:    getStack,
		Name:        "Get Goroutine Stack",
		Description: "Returns the current goroutine stack.",
	}); err != nil {
		return err
	}

	return nil
}

// ping responds with pong.
func ping(ar *Request) (msg string, err error) {
	return "Pong.", nil
}

// ready checks if all modules have completed starting.
func ready(ar *Request) (msg string, err error) {
	if !module.instance.Ready() {
		return "", ErrorWithStatus(errors.New("service is not ready yet, try again"), http.StatusTooEarly)
	}
	return "Ready.", nil
}

func listEndpoints(ar *Request) (data []byte, err error) {
	data, err = json.Marshal(ExportEndpoints())
	return
}

// getStack returns the current goroutine stack.
func getStack(_ *Request) (data []byte, err error) {
	buf := &bytes.Buffer{}
	err = pprof.Lookup("goroutine").WriteTo(buf, 1)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package api

import (
	"errors"
)

var defaultListenAddress = "127.0.0.1:8817"

// SetDefaultAPIListenAddress sets the address the HTTP server listens on.
// Must be called before the module is started.
func SetDefaultAPIListenAddress(address string) {
	if address != "" {
		defaultListenAddress = address
	}
}

func listenAddress() string {
	return defaultListenAddress
}

func prep() error {
	if listenAddress() == "" {
		return errors.New("no listen address for api available")
	}

	return registerMetaEndpoints()
}

func start() error {
	startServer()
	return nil
}

func stop() error {
	return stopServer()
}

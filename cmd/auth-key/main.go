// Package main provides a one-shot utility for session API auth keys.
//
// Without flags it emits a new Ed25519 key pair. With -subject it signs a
// development token using SESSIONS_AUTH_PRIVATE_KEY.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/sessiontrack/internal/platform/config"
	"github.com/louisbranch/sessiontrack/internal/tools/authkey"
)

func main() {
	cfg, err := authkey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := authkey.Run(cfg, os.Stdout, nil, nil); err != nil {
		config.Exitf("auth key: %v", err)
	}
}

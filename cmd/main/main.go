package main

import (
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Fatalf("Application exited with error: %v", err)
	}
}

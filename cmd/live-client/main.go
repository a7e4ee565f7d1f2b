// Package main is the live-client entry point.
package main

import (
	"log"

	"github.com/Devdrwt/mdsc-live-client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

/*
 *  main.go
 *  cmd
 */

package main

import (
	"log"

	"github.com/haibao-labs/tccmatrix"
	logging "github.com/op/go-logging"
)

// main is the entrypoint for the entire program, routes to commands
func main() {
	logging.SetBackend(tccmatrix.BackendFormatter)
	err := tccmatrix.Execute()
	if err != nil {
		log.Fatal(err)
	}
}

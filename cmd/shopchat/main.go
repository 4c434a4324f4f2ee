// Package main is a terminal client for the shopping assistant. It runs the
// same assistant as the API server against a local session.
package main

func main() {
	Execute()
}

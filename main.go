package main

import "github.com/tracebridge/otlp-bridge/cmd"

func main() {
	cmd.Execute()
}

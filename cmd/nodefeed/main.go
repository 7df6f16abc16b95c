package main

import "github.com/nodefeed/nodefeed/protocol"

func main() {
	protocol.Execute()
}

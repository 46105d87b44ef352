package main

import "getpoetry/internal/cli"

func main() {
	cli.ExecuteClient()
}

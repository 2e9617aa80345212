// Command fspx runs the content-addressed scientific build engine.
package main

import "fspx/internal/cli"

func main() {
	cli.Execute()
}

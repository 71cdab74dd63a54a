// The main package for the linkcrawler executable.
package main

import (
	"github.com/JakeFAU/linkgraph-crawler/cmd"
)

func main() {
	cmd.Execute()
}

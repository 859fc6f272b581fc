// The main package for the bookcrawler executable.
package main

import (
	"os"

	"github.com/JakeFAU/bookshelf-crawler/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}

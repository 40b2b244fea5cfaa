// Command overlay-renderer is the renderer side of the overlay on its own,
// for running it outside the controller.
package main

import (
	"os"

	"github.com/Uknong/BetterCheeseUtil/pkg/renderer"
)

func main() {
	os.Exit(renderer.Main(os.Args[1:]))
}

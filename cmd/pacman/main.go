// Command pacman is the default PACMAN worker binary.
package main

import "github.com/pacmancrawl/pacman/cmd"

func main() {
	cmd.Execute()
}

// Command healctl runs the selector-healing engine's interactive
// console against a live browser session.
package main

import (
	"selector-healer/internal/bootstrap"
)

func main() {
	bootstrap.NewApp().Run()
}

// File: main.go
package main

import "github.com/xkilldash9x/handsfree/cmd"

func main() {
	cmd.Execute()
}

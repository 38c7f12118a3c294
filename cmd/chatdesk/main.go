package main

import "github.com/nguyentranbao-ct/chat-desk/cmd"

func main() {
	cmd.Execute()
}

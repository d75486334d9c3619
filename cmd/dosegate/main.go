package main

import "github.com/yungbote/dosegate-backend/internal/cli"

func main() {
	cli.Execute()
}

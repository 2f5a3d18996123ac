package main

import "github.com/mcpland/gitlab-mcp-sub000/cmd"

// version can be set during build with -ldflags.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}

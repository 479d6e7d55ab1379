// Package main provides the entry point for dupescope, a tool for spotting
// near-duplicate issues and pull requests by projecting their embeddings into
// 2D and 3D space and exploring the resulting point cloud.
package main

import "github.com/alDuncanson/dupescope/cmd"

// version is set at build time via ldflags, defaults to "dev" for local builds
var version = "dev"

func main() {
	cmd.Execute(version)
}

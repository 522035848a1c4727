// Package scholixdump converts scholexplorer dumps into Scholix links.
package scholixdump

const (
	// AppName is used for cache and data directories.
	AppName = "scholixdump"
	Version = "0.1.0"
)

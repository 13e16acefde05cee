package version

// VERSION and Commit are set at build time via:
//
//	go build -ldflags "-X ...version.VERSION=0.2.0 -X ...version.Commit=abc123"
var (
	VERSION = "dev"
	Commit  = "dev"
)

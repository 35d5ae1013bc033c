package kiln

// Version is the release of the kiln module. Release builds set it with
// -ldflags "-X github.com/aretw0/kiln.Version=...".
var Version = "0.1.0"

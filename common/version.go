package common

// PackageName is used as the metrics namespace and default service tag.
const PackageName = "content-attestation-engine"

// Version is set at build time via -ldflags "-X ...common.Version=v1.2.3".
var Version = "dev"

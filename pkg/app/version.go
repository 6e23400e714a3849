package app

// Version is the build version, set with -ldflags "-X .../pkg/app.Version=...".
var Version = "dev"

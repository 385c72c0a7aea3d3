package version

// Current defines the application version.
// It defaults to "dev" and is overwritten at build time using -ldflags.
var Current = "dev"

const AppName = "bridgestore"

// String renders the version line printed by the CLI.
func String() string {
	return AppName + " " + Current
}

package version

// Version is the current version of bootmend.
// Bump it for every release; the reinstall helper and the CLI must ship
// with the same value since they share the exit status protocol.
const Version = "0.3.0"

// Command stride is the CLI for the runner identity resolution engine:
// importing provider result files, working the review queue, and inspecting
// resolved identities.
package main

// Package commands defines the simid CLI.
//
// Commands
//
//   - relay     Serve the websocket relay that pairs players and creatives
//   - player    Attach as the player host and answer creative requests
//   - creative  Attach as the creative, open a session and send messages
//
// The root command loads the HuJSON config and builds the zap logger before
// any subcommand runs.
package commands

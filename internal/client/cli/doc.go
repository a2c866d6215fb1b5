// Package cli provides the interactive HealthChat command-line client.
//
// It wires configuration and the API client into a REPL. Typical flow:
// register or log in, pick or start a conversation, optionally upload a
// spreadsheet, then type questions; replies stream in as they are generated.
//
//	register | login | logout
//	list                 conversations, most recently active first
//	new [title]          start an empty conversation and switch to it
//	open <id>            switch to a conversation and print its history
//	upload <path>        send an .xlsx or .csv file as context
//	send <text>          ask a question (bare text works too)
//	exit | quit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli

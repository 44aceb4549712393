// Package cli implements the vacatrack command line.
//
// Commands open the agent from --config and --db, print results through
// OutputFormatter (text or json), and report failures as ExitError:
// 1 when an operation failed, 2 when the command itself could not run.
package cli

// Command mite applies versioned SQL migrations and tracks them in a ledger table.
package main

import "github.com/aqasim81/mite/internal/cli"

func main() {
	cli.Execute()
}

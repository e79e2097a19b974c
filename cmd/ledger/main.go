// Command ledger runs reports, rate maintenance and audits against the ledger.
package main

import (
	"os"

	"github.com/bitlabstudio/account-keeping/cmd/ledger/cli"
)

func main() {
	os.Exit(cli.Execute())
}

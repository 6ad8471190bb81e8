// Command tagctl runs tagdesk maintenance tasks against the database:
// migrations, the first API key, spreadsheet imports and exports, and wallet
// access passwords.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText("error: ")+err.Error())
		os.Exit(1)
	}
}

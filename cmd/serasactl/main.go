// Command serasactl queries the Serasa Experian credit report API from the shell.
//
// Usage:
//
//	serasactl report <document> [--report-name NAME] [--summary]
//	serasactl login
//
// Credentials come from SERASA_API_URL, SERASA_API_USERNAME, SERASA_API_PASSWORD and
// SERASA_API_PROXY (a .env file in the working directory is read first), or from flags.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

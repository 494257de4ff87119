// @title        Portal API
// @version      1.0
// @description  Account lifecycle and authentication for the portal.
// @BasePath     /

package main

import (
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

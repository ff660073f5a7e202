package main

import "github.com/mysqltools/svcpack/cmd/svcpack/internal"

func main() {
	internal.Execute()
}
